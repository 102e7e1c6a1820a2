package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/ruteri/watchstate/interfaces"
)

// UpstashBackend implements a KVStore over the Upstash Redis REST API.
// Each operation is a single POST of a JSON command array.
type UpstashBackend struct {
	client      *retryablehttp.Client
	endpoint    string
	token       string
	log         *slog.Logger
	locationURI string
}

// upstashResponse is the envelope of every REST reply.
type upstashResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// NewUpstashBackend creates a backend for the REST endpoint with the given bearer token.
func NewUpstashBackend(endpoint, token string, timeout time.Duration, log *slog.Logger) (*UpstashBackend, error) {
	if endpoint == "" || token == "" {
		return nil, fmt.Errorf("%w: upstash url and token are required", interfaces.ErrInvalidStorageConfig)
	}

	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid upstash url %q", interfaces.ErrInvalidStorageConfig, endpoint)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = log

	return &UpstashBackend{
		client:      client,
		endpoint:    strings.TrimSuffix(u.String(), "/"),
		token:       token,
		log:         log,
		locationURI: fmt.Sprintf("upstash://%s", u.Host),
	}, nil
}

// do runs one command and returns the raw "result" field.
func (b *UpstashBackend) do(ctx context.Context, args ...string) (json.RawMessage, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstash request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstash response: %w", err)
	}

	var reply upstashResponse
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("upstash %s: unexpected response (status %d): %w", args[0], resp.StatusCode, err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("upstash %s failed: %s", args[0], reply.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstash %s failed with status %d", args[0], resp.StatusCode)
	}
	return reply.Result, nil
}

func (b *UpstashBackend) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := b.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, interfaces.ErrKeyNotFound
	}

	var value string
	if err := json.Unmarshal(result, &value); err != nil {
		return nil, fmt.Errorf("upstash GET: unexpected result: %w", err)
	}
	return []byte(value), nil
}

func (b *UpstashBackend) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.do(ctx, "SET", key, string(value))
	return err
}

func (b *UpstashBackend) Delete(ctx context.Context, key string) error {
	_, err := b.do(ctx, "DEL", key)
	return err
}

func (b *UpstashBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	seen := make(map[string]struct{})
	cursor := "0"

	for {
		result, err := b.do(ctx, "SCAN", cursor, "MATCH", globEscape(prefix)+"*", "COUNT", strconv.Itoa(scanBatchSize))
		if err != nil {
			return nil, err
		}

		// [cursor, [keys...]]; the cursor may be encoded as a string or a number
		var page []json.RawMessage
		if err := json.Unmarshal(result, &page); err != nil || len(page) != 2 {
			return nil, fmt.Errorf("upstash SCAN: unexpected result %s", string(result))
		}
		var batch []string
		if err := json.Unmarshal(page[1], &batch); err != nil {
			return nil, fmt.Errorf("upstash SCAN: unexpected keys: %w", err)
		}
		for _, key := range batch {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}

		cursor = strings.Trim(string(page[0]), `"`)
		if cursor == "0" {
			return keys, nil
		}
	}
}

func (b *UpstashBackend) Available(ctx context.Context) bool {
	if _, err := b.do(ctx, "PING"); err != nil {
		b.log.Warn("Upstash backend unavailable",
			slog.String("location", b.locationURI),
			"err", err)
		return false
	}
	return true
}

func (b *UpstashBackend) Name() string {
	return "upstash"
}

func (b *UpstashBackend) LocationURI() string {
	return b.locationURI
}

func (b *UpstashBackend) Close() error {
	b.client.HTTPClient.CloseIdleConnections()
	return nil
}
