package embeddings

import (
	"context"
	"crypto/sha256"
	"math"
	"math/big"
	"math/rand/v2"
)

// HashDimension is the vector size produced by HashModel. It matches
// all-MiniLM-L6-v2 so collections built against the default local model keep
// a consistent width when the fallback kicks in.
const HashDimension = 384

// HashModelName identifies the deterministic fallback model.
const HashModelName = "fallback/text-hash-embedding"

var seedModulus = big.NewInt(100_000_000)

// HashModel is a dependency-free embedding model that derives a reproducible
// pseudo-random unit vector from a hash of the input text. Vectors carry no
// learned semantics: similarity between related texts is not meaningful.
// It exists so retrieval keeps returning structurally valid vectors when no
// real model can be constructed.
type HashModel struct{}

// NewHashModel creates the fallback hash model. Construction never fails.
func NewHashModel() *HashModel {
	return &HashModel{}
}

// Name returns the fallback model identifier.
func (m *HashModel) Name() string { return HashModelName }

// Dimension returns the fixed vector size.
func (m *HashModel) Dimension() int { return HashDimension }

// Encode implements Encoder. It returns one unit vector per input text,
// preserving order. The prefix is ignored: hash vectors have no instruction
// support.
func (m *HashModel) Encode(_ context.Context, texts []string, _ string) ([][]float32, error) {
	if texts == nil {
		return nil, ErrEmptyInput
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = hashVector(text)
	}
	return vectors, nil
}

// hashSeed reduces the SHA-256 digest of text to an integer seed, mod 10^8.
func hashSeed(text string) uint64 {
	sum := sha256.Sum256([]byte(text))
	n := new(big.Int).SetBytes(sum[:])
	return n.Mod(n, seedModulus).Uint64()
}

// hashVector draws HashDimension uniform float32 values in [0,1) from a PCG
// generator seeded by hashSeed, then normalizes to unit Euclidean norm. The
// RNG is pinned to math/rand/v2's PCG: the determinism guarantee (same text,
// same vector, across restarts and platforms) holds for this algorithm only.
// A zero-norm draw is left unnormalized rather than dividing by zero.
func hashVector(text string) []float32 {
	seed := hashSeed(text)
	rng := rand.New(rand.NewPCG(seed, seed))

	vector := make([]float32, HashDimension)
	var sum float64
	for i := range vector {
		v := rng.Float32()
		vector[i] = v
		sum += float64(v) * float64(v)
	}

	norm := math.Sqrt(sum)
	if norm == 0 {
		return vector
	}
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector
}
