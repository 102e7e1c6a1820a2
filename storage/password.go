package storage

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	passwordHashScheme = "argon2id"
	passwordSaltLen    = 16
)

// hashPassword derives an argon2id hash and encodes it as "argon2id$<salt>$<hash>".
func hashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate password salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return strings.Join([]string{
		passwordHashScheme,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	}, "$"), nil
}

// checkPassword compares password against a stored credential in constant time.
// Values not produced by hashPassword are treated as legacy plaintext credentials.
func checkPassword(stored, password string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 3 || parts[0] != passwordHashScheme {
		return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil || len(expected) == 0 {
		return false
	}

	key := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1
}
