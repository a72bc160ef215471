package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordInitialization(context.Background(), EngineLocal, "primary", time.Second, nil)
		m.RecordGeneration(context.Background(), "model", "embed", time.Second, 3, errors.New("x"))
	})
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(zap.NewNop())

	// The global meter provider defaults to a no-op; recording must not panic.
	assert.NotPanics(t, func() {
		m.RecordInitialization(context.Background(), EngineOpenAI, "hash", 120*time.Millisecond, nil)
		m.RecordGeneration(context.Background(), HashModelName, "embed", 5*time.Millisecond, 2, nil)
		m.RecordGeneration(context.Background(), HashModelName, "embed", 5*time.Millisecond, 0, errors.New("x"))
	})
}

func TestEngineLabel(t *testing.T) {
	assert.Equal(t, "local", engineLabel(EngineLocal))
	assert.Equal(t, "openai", engineLabel(EngineOpenAI))
	assert.Equal(t, "ollama", engineLabel(EngineOllama))
}
