// Package token generates opaque secrets for endpoint and account authentication.
package token

import (
	"crypto/rand"
	"fmt"
)

const (
	// DefaultLength is the length of endpoint tokens.
	DefaultLength = 32
	// MinLength is the shortest token GenerateN will produce.
	MinLength = 32

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// maxByte is the largest multiple of len(alphabet) that fits in a byte.
// Random bytes at or above it are discarded so every symbol is equally likely.
const maxByte = 256 - (256 % len(alphabet))

// Generate returns a DefaultLength alphanumeric token.
func Generate() (string, error) {
	return GenerateN(DefaultLength)
}

// GenerateN returns an n-character alphanumeric token drawn from crypto/rand.
func GenerateN(n int) (string, error) {
	if n < MinLength {
		return "", fmt.Errorf("token length %d below minimum %d", n, MinLength)
	}

	out := make([]byte, 0, n)
	buf := make([]byte, n+n/4)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// Valid reports whether tok has at least MinLength characters, all alphanumeric.
func Valid(tok string) bool {
	if len(tok) < MinLength {
		return false
	}
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !isAlnum {
			return false
		}
	}
	return true
}
