package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

// DocumentID derives a stable identifier for a document from its locator.
func DocumentID(locator string) string {
	sum := blake2b.Sum256([]byte(locator))
	return hex.EncodeToString(sum[:8])
}

const secretCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var randReader io.Reader = rand.Reader

// GenerateSecureRandomString returns length characters drawn uniformly from
// [a-zA-Z0-9]. Bytes at or above the largest multiple of the charset size
// are rejected so no character is favoured.
func GenerateSecureRandomString(length int) (string, error) {
	const limit = 256 - 256%len(secretCharset)
	out := make([]byte, 0, length)
	buf := make([]byte, length)

	for len(out) < length {
		if _, err := io.ReadFull(randReader, buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, secretCharset[int(b)%len(secretCharset)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// GenerateAdminSecret returns a random signing secret for admin tokens.
func GenerateAdminSecret() (string, error) {
	return GenerateSecureRandomString(48)
}
