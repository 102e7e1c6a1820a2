package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/watchstate/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		bucket   string
		prefix   string
		location string
	}{
		{
			name:     "bucket only",
			uri:      "s3://watch",
			bucket:   "watch",
			location: "s3://watch/?region=us-east-1",
		},
		{
			name:     "prefix and region",
			uri:      "s3://watch/state/prod/?region=eu-west-1",
			bucket:   "watch",
			prefix:   "state/prod",
			location: "s3://watch/state/prod?region=eu-west-1",
		},
		{
			name:     "credentials are redacted",
			uri:      "s3://AKID:SECRET@watch/state?endpoint=http://127.0.0.1:9000",
			bucket:   "watch",
			prefix:   "state",
			location: "s3://AKID:***@watch/state?region=us-east-1&endpoint=http://127.0.0.1:9000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ParseS3URI(tt.uri, testLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, b.bucketName)
			assert.Equal(t, tt.prefix, b.prefix)
			assert.Equal(t, tt.location, b.LocationURI())
			assert.NotContains(t, b.LocationURI(), "SECRET")
			assert.Equal(t, "s3-"+tt.bucket, b.Name())
		})
	}

	for _, uri := range []string{"", "s3://", "file:///tmp", "://bad"} {
		_, err := ParseS3URI(uri, testLogger())
		assert.ErrorIs(t, err, interfaces.ErrInvalidStorageConfig, uri)
	}
}

func TestS3Backend_ObjectKey(t *testing.T) {
	b, err := NewS3Backend("watch", "/state/", "us-east-1", "", "", "", testLogger())
	require.NoError(t, err)
	assert.Equal(t, "state/u:alice:pwd", b.objectKey("u:alice:pwd"))

	b, err = NewS3Backend("watch", "", "us-east-1", "", "", "", testLogger())
	require.NoError(t, err)
	assert.Equal(t, "u:alice:pwd", b.objectKey("u:alice:pwd"))
}

func TestIsS3NotFound(t *testing.T) {
	assert.True(t, isS3NotFound(awserr.New(s3.ErrCodeNoSuchKey, "gone", nil)))
	assert.True(t, isS3NotFound(fmt.Errorf("head: %w", awserr.New("NotFound", "gone", nil))))
	assert.False(t, isS3NotFound(awserr.New("AccessDenied", "no", nil)))
	assert.False(t, isS3NotFound(errors.New("NoSuchKey")))
}

func TestParseIPFSURI(t *testing.T) {
	b, err := ParseIPFSURI("ipfs://127.0.0.1:5001", testLogger())
	require.NoError(t, err)
	assert.Equal(t, "/watchstate", b.baseDir)
	assert.Equal(t, "ipfs://127.0.0.1:5001/watchstate?timeout=30s", b.LocationURI())

	b, err = ParseIPFSURI("ipfs://ipfs.local:5001/apps/state/?timeout=5s", testLogger())
	require.NoError(t, err)
	assert.Equal(t, "/apps/state", b.baseDir)
	assert.Equal(t, "ipfs-ipfs.local:5001", b.Name())
	assert.Equal(t, "/apps/state/u:alice:pr:src1+ep%2F1", b.filePath("u:alice:pr:src1+ep/1"))

	for _, uri := range []string{"ipfs://", "http://127.0.0.1:5001", "ipfs://host:5001/?timeout=soon"} {
		_, err := ParseIPFSURI(uri, testLogger())
		assert.ErrorIs(t, err, interfaces.ErrInvalidStorageConfig, uri)
	}
}

func TestIPFSBackend_UnreachableNode(t *testing.T) {
	// Nothing listens on port 1
	b, err := NewIPFSBackend("127.0.0.1:1", "", time.Second, testLogger())
	require.NoError(t, err)
	assert.False(t, b.Available(context.Background()))
}

func TestIsMfsNotExist(t *testing.T) {
	assert.True(t, isMfsNotExist(errors.New("files/read: file does not exist")))
	assert.True(t, isMfsNotExist(errors.New("files/rm: no link named \"x\" under QmHash")))
	assert.False(t, isMfsNotExist(errors.New("context deadline exceeded")))
}
