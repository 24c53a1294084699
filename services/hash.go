package services

import (
	"crypto/rand"
	"fmt"
)

const (
	hashAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// LinkHashLength gives ~2.2e14 combinations, collisions are rare but
	// still handled by the creator's insert-retry loop.
	LinkHashLength = 8

	// MaxHashAttempts bounds the regenerate-on-collision loop.
	MaxHashAttempts = 5
)

// HashGenerator produces fixed-length identifiers over a 62-symbol
// alphanumeric alphabet. Collision handling is the caller's job: insert with
// the store's unique constraint and regenerate on conflict.
type HashGenerator struct{}

func NewHashGenerator() *HashGenerator {
	return &HashGenerator{}
}

func (g *HashGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid hash length %d", length)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = hashAlphabet[int(b)%len(hashAlphabet)]
	}

	return string(out), nil
}
