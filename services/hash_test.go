package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashGeneratorLengthAndAlphabet(t *testing.T) {
	gen := NewHashGenerator()

	for i := 0; i < 100; i++ {
		hash, err := gen.Generate(LinkHashLength)
		require.NoError(t, err)
		require.Len(t, hash, LinkHashLength)

		for _, r := range hash {
			assert.True(t, strings.ContainsRune(hashAlphabet, r), "unexpected symbol %q", r)
		}
	}
}

func TestHashGeneratorRejectsInvalidLength(t *testing.T) {
	gen := NewHashGenerator()

	_, err := gen.Generate(0)
	require.Error(t, err)

	_, err = gen.Generate(-3)
	require.Error(t, err)
}

func TestHashGeneratorSpread(t *testing.T) {
	gen := NewHashGenerator()

	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		hash, err := gen.Generate(LinkHashLength)
		require.NoError(t, err)
		seen[hash] = true
	}

	// 10k draws from ~2.2e14 combinations should essentially never collide.
	assert.GreaterOrEqual(t, len(seen), 9999)
}
