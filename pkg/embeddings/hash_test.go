package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashModel_Metadata(t *testing.T) {
	m := NewHashModel()
	assert.Equal(t, HashModelName, m.Name())
	assert.Equal(t, HashDimension, m.Dimension())
}

func TestHashSeed(t *testing.T) {
	// SHA-256 digest as integer, mod 10^8.
	tests := []struct {
		text string
		seed uint64
	}{
		{"hello world", 5751529},
		{"hello", 23427620},
		{"", 65086549},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.seed, hashSeed(tt.text), "seed for %q", tt.text)
	}
}

func TestHashModel_Deterministic(t *testing.T) {
	m := NewHashModel()
	ctx := context.Background()

	first, err := m.Encode(ctx, []string{"the quick brown fox"}, "")
	require.NoError(t, err)
	second, err := m.Encode(ctx, []string{"the quick brown fox"}, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestHashModel_UnitNorm(t *testing.T) {
	m := NewHashModel()

	vectors, err := m.Encode(context.Background(), []string{"hello world", "", "a"}, "")
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	for i, vec := range vectors {
		require.Len(t, vec, HashDimension)
		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4, "vector %d norm", i)
	}
}

func TestHashModel_DistinctTexts(t *testing.T) {
	m := NewHashModel()

	vectors, err := m.Encode(context.Background(), []string{"alpha", "beta"}, "")
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	assert.NotEqual(t, vectors[0], vectors[1])
}

func TestHashModel_PrefixIgnored(t *testing.T) {
	m := NewHashModel()
	ctx := context.Background()

	plain, err := m.Encode(ctx, []string{"doc"}, "")
	require.NoError(t, err)
	prefixed, err := m.Encode(ctx, []string{"doc"}, "passage: ")
	require.NoError(t, err)

	assert.Equal(t, plain, prefixed)
}

func TestHashModel_PreservesOrder(t *testing.T) {
	m := NewHashModel()
	ctx := context.Background()
	texts := []string{"one", "two", "three", "one"}

	vectors, err := m.Encode(ctx, texts, "")
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	// Per-text encoding matches the batch at the same index.
	for i, text := range texts {
		single, err := m.Encode(ctx, []string{text}, "")
		require.NoError(t, err)
		assert.Equal(t, single[0], vectors[i], "index %d", i)
	}
	assert.Equal(t, vectors[0], vectors[3])
}

func TestHashModel_NilInput(t *testing.T) {
	m := NewHashModel()

	_, err := m.Encode(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestHashModel_EmptySlice(t *testing.T) {
	m := NewHashModel()

	vectors, err := m.Encode(context.Background(), []string{}, "")
	require.NoError(t, err)
	assert.Empty(t, vectors)
}
