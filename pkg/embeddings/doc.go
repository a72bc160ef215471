// Package embeddings provides resilient initialization of an embedding
// function for retrieval pipelines.
//
// Given configuration naming an embedding engine and model, the Initializer
// produces one idempotent, process-scoped Function that maps text to
// fixed-size float32 vectors. Construction degrades through a fallback
// chain: the configured engine first, a runtime-shim retry for the local
// engine, an optional external fallback API, and finally a deterministic
// hash embedder that has no dependencies. Retrieval requests therefore never
// fail solely because an embedding model is unavailable.
package embeddings
