// Package embedder turns symbol text and search queries into vectors.
//
// Four providers are available:
//
//   - ollama: a local Ollama server (POST {host}/api/embeddings)
//   - jina: the Jina AI embeddings API or a compatible endpoint
//   - openai: the OpenAI embeddings API through openai-go
//   - local: a deterministic 384-dimension character hash that needs no network
//
// # Provider Selection
//
// NewFromEnv picks a provider in this order:
//
//  1. EMBEDDING_PROVIDER, when set
//  2. jina when JINA_API_KEY is set
//  3. openai when OPENAI_API_KEY is set
//  4. ollama when OLLAMA_HOST is set
//  5. local
//
// EMBED_MODEL overrides the model and EMBEDDING_HOST overrides the endpoint.
//
// # Caching and Retries
//
// Remote providers share an LRU cache keyed by model and text, so repeated
// stage queries are embedded once. Transient failures are retried with
// exponential backoff; client errors other than 429 are not retried.
//
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vec, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: "visit controller"})
package embedder
