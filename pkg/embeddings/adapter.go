package embeddings

import (
	"context"

	"github.com/philippgille/chromem-go"
	lcembeddings "github.com/tmc/langchaingo/embeddings"
)

// ChromemEmbeddingFunc adapts a Function to chromem-go's embedding callback,
// so collections can be created directly from an initialized function:
//
//	db.CreateCollection("docs", nil, embeddings.ChromemEmbeddingFunc(fn))
func ChromemEmbeddingFunc(f *Function) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return f.EmbedQuery(ctx, text, "", nil)
	}
}

// LangChainAdapter exposes a Function as a langchaingo embedder. Documents
// are embedded with the configured passage prefix and queries with the query
// prefix, matching the asymmetric retrieval convention.
type LangChainAdapter struct {
	fn            *Function
	PassagePrefix string
	QueryPrefix   string
}

var _ lcembeddings.Embedder = (*LangChainAdapter)(nil)

// NewLangChainAdapter wraps fn for use with langchaingo vector stores.
func NewLangChainAdapter(fn *Function) *LangChainAdapter {
	return &LangChainAdapter{fn: fn}
}

// EmbedDocuments implements embeddings.Embedder.
func (a *LangChainAdapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return a.fn.Embed(ctx, texts, a.PassagePrefix, nil)
}

// EmbedQuery implements embeddings.Embedder.
func (a *LangChainAdapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return a.fn.EmbedQuery(ctx, text, a.QueryPrefix, nil)
}
