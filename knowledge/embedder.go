package knowledge

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmbeddingUnavailable signals that the embedding provider cannot serve
// the request (rate limit, quota, network). It is distinct from a zero
// vector: callers must degrade, never interpret it as "no similarity".
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// Vector is a fixed-length embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// OpenAIEmbedder produces embeddings through the OpenAI Embeddings API (or
// any compatible endpoint).
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
}

// OpenAIEmbedderOptions configure the OpenAI embedder.
type OpenAIEmbedderOptions struct {
	Model   openai.EmbeddingModel
	Dims    int
	BaseURL string
	APIKey  string
}

// NewOpenAIEmbedder creates an embedder using the official client.
func NewOpenAIEmbedder(optFns ...func(o *OpenAIEmbedderOptions)) *OpenAIEmbedder {
	opts := OpenAIEmbedderOptions{Model: openai.EmbeddingModelTextEmbedding3Small, Dims: 1536}
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)
	return &OpenAIEmbedder{client: &client, model: opts.Model, dims: opts.Dims}
}

// Embed implements Embedder. Every provider failure maps onto
// ErrEmbeddingUnavailable so callers have a single degradation signal.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrEmbeddingUnavailable)
	}
	raw := resp.Data[0].Embedding
	vec := make(Vector, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dims implements Embedder.
func (e *OpenAIEmbedder) Dims() int { return e.dims }

// HashEmbedder is a deterministic local vectorizer: a normalized bag-of-words
// hash projection. It needs no external provider, which makes it the
// always-available fallback for deployments without an embedding API. Quality
// is proportional to lexical overlap only.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a HashEmbedder with the given dimensionality
// (384 when dims <= 0).
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &HashEmbedder{dims: dims}
}

var wordPattern = regexp.MustCompile(`\w+`)

// Embed implements Embedder. It never fails.
func (e *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	vec := make(Vector, e.dims)
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return vec, nil
	}
	freq := map[string]int{}
	for _, w := range words {
		freq[w]++
	}
	for word, count := range freq {
		h := fnv.New32a()
		h.Write([]byte(word))
		base := h.Sum32()
		weight := float32(math.Log1p(float64(count)))
		// each word contributes to three dimensions to reduce collisions
		for i := uint32(0); i < 3; i++ {
			vec[(base+i)%uint32(e.dims)] += weight
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// Dims implements Embedder.
func (e *HashEmbedder) Dims() int { return e.dims }

// CosineSimilarity computes cosine similarity between two vectors. Mismatched
// lengths and zero vectors yield 0.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
