// Package knowledge implements the retrieval facade: text goes in as chunks
// or dialog turns, vectors go into an index, and similarity search comes back
// out with an explicit degradation flag. Embedding-provider unavailability is
// an expected condition here, not an error: every embedding-touching
// operation has a non-throwing degraded path because the chat flow must still
// produce a reply with zero context.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"finpilot/core"
	"finpilot/logging"
)

// Default logical index names.
const (
	DefaultDocumentIndex = "finpilot-knowledge"
	DefaultDialogIndex   = "finpilot-dialogs"
)

// Base is the facade for embedding content and storing it in the vector
// index.
type Base struct {
	embedder Embedder
	index    Index
	docIndex string
	dlgIndex string
	logger   logging.Logger
}

// BaseOptions configure a knowledge Base.
type BaseOptions struct {
	DocumentIndex string
	DialogIndex   string
	Logger        logging.Logger
}

// NewBase constructs the facade over an embedder and an index.
func NewBase(embedder Embedder, index Index, optFns ...func(o *BaseOptions)) *Base {
	opts := BaseOptions{DocumentIndex: DefaultDocumentIndex, DialogIndex: DefaultDialogIndex, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Base{embedder: embedder, index: index, docIndex: opts.DocumentIndex, dlgIndex: opts.DialogIndex, logger: opts.Logger}
}

// Initialize ensures both underlying indexes exist. Idempotent.
func (b *Base) Initialize(ctx context.Context) error {
	for _, name := range []string{b.docIndex, b.dlgIndex} {
		if err := b.index.Ensure(ctx, name, b.embedder.Dims()); err != nil {
			return fmt.Errorf("ensure index %s: %w", name, err)
		}
	}
	return nil
}

// Ingest embeds and indexes the chunks of one document. A chunk whose
// embedding fails is skipped without aborting the batch; the return value
// reports whether at least one chunk was indexed. Each stored unit carries
// its chunk index plus the full source metadata.
func (b *Base) Ingest(ctx context.Context, source core.DocumentSource, chunks []string) bool {
	b.logger.Info("ingesting document", "source_id", source.ID, "chunks", len(chunks))
	indexedAny := false
	for idx, chunk := range chunks {
		chunkID := fmt.Sprintf("%s:%d", source.ID, idx)
		vec, err := b.embedder.Embed(ctx, chunk)
		if err != nil {
			b.logger.Warn("skipping chunk, embedding failed", "chunk_id", chunkID, "error", err)
			continue
		}
		metadata := source.Map()
		metadata["chunk_index"] = idx
		if err := b.index.Upsert(ctx, b.docIndex, chunkID, chunk, vec, metadata); err != nil {
			b.logger.Warn("skipping chunk, index write failed", "chunk_id", chunkID, "error", err)
			continue
		}
		indexedAny = true
	}
	if !indexedAny {
		b.logger.Warn("no chunks indexed for document", "source_id", source.ID)
	}
	return indexedAny
}

// IndexDialog embeds and stores one free-text unit (a conversation turn or a
// profile summary). It returns false, never an error, when the embedding
// provider is unavailable: the caller degrades its status but keeps serving.
func (b *Base) IndexDialog(ctx context.Context, dialogID, text string, metadata map[string]any) bool {
	vec, err := b.embedder.Embed(ctx, text)
	if err != nil {
		b.logger.Warn("unable to index dialog", "dialog_id", dialogID, "error", err)
		return false
	}
	if err := b.index.Upsert(ctx, b.dlgIndex, dialogID, text, vec, metadata); err != nil {
		b.logger.Warn("dialog index write failed", "dialog_id", dialogID, "error", err)
		return false
	}
	return true
}

// Search embeds the query and returns the k nearest document units ordered
// by descending similarity. When embedding fails the response carries empty
// hits and EmbeddingAvailable=false so consumers can tell degradation from a
// genuinely empty corpus.
func (b *Base) Search(ctx context.Context, query string, k int) core.KnowledgeSearchResponse {
	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		if !errors.Is(err, ErrEmbeddingUnavailable) {
			b.logger.Error("unexpected embedding failure", "error", err)
		}
		return core.KnowledgeSearchResponse{Hits: []core.KnowledgeSearchHit{}, Query: query, EmbeddingAvailable: false}
	}
	hits, err := b.index.Search(ctx, b.docIndex, vec, k)
	if err != nil {
		b.logger.Error("index search failed", "error", err)
		return core.KnowledgeSearchResponse{Hits: []core.KnowledgeSearchHit{}, Query: query, EmbeddingAvailable: true}
	}
	if hits == nil {
		hits = []core.KnowledgeSearchHit{}
	}
	return core.KnowledgeSearchResponse{Hits: hits, Query: query, EmbeddingAvailable: true}
}

// Checksum returns the sha256 hex digest of content. It serves as the
// content-addressed deduplication key for uploads and depends on no store.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// NewDocumentID returns a sortable unique identifier for an uploaded
// document.
func NewDocumentID() string {
	return ulid.Make().String()
}
