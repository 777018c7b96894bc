package engine

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"finpilot/core"
	"finpilot/knowledge"
)

// Document status values reported after registration.
const (
	StatusIndexed         = "indexed"
	StatusEmbeddingFailed = "embedding_failed"
)

func documentKey(id string) string { return "document:" + id }

func checksumKey(sum string) string { return "document-checksum:" + sum }

func checksumRef(id string) map[string]string { return map[string]string{"document_id": id} }

// RegisterDocument ingests a pre-chunked document and records its metadata.
// Content is deduplicated by checksum: re-uploading identical bytes returns
// the already-registered source instead of indexing it twice. The returned
// status reports whether at least one chunk made it into the index.
func (e *Engine) RegisterDocument(ctx context.Context, source core.DocumentSource, content []byte, chunks []string) core.DocumentSource {
	if source.Checksum == "" {
		source.Checksum = knowledge.Checksum(content)
	}
	var ref map[string]string
	if e.store.GetJSON(ctx, checksumKey(source.Checksum), &ref) {
		var existing core.DocumentSource
		if e.store.GetJSON(ctx, documentKey(ref["document_id"]), &existing) {
			e.logger.Info("duplicate document upload", "document_id", existing.ID, "checksum", source.Checksum)
			return existing
		}
	}

	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	if source.UploadedAt.IsZero() {
		source.UploadedAt = time.Now().UTC()
	}
	if source.SizeBytes == 0 {
		source.SizeBytes = int64(len(content))
	}

	if e.knowledge.Ingest(ctx, source, chunks) {
		source.Status = StatusIndexed
	} else {
		source.Status = StatusEmbeddingFailed
	}

	e.store.SetJSON(ctx, documentKey(source.ID), source, 0)
	e.store.SetJSON(ctx, checksumKey(source.Checksum), checksumRef(source.ID), 0)
	return source
}

// ListDocuments returns registered documents newest first, optionally
// filtered by owner.
func (e *Engine) ListDocuments(ctx context.Context, ownerID string) []core.DocumentSource {
	keys := e.store.Keys(ctx, "document:*")
	docs := make([]core.DocumentSource, 0, len(keys))
	for _, key := range keys {
		var doc core.DocumentSource
		if !e.store.GetJSON(ctx, key, &doc) {
			continue
		}
		if ownerID != "" && doc.OwnerID != ownerID {
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].UploadedAt.After(docs[j].UploadedAt) })
	return docs
}

// DeleteDocument removes a document's registry entries. It reports whether
// the document existed. Indexed chunks stay searchable; the registry only
// governs metadata and dedup.
func (e *Engine) DeleteDocument(ctx context.Context, id string) bool {
	var doc core.DocumentSource
	if !e.store.GetJSON(ctx, documentKey(id), &doc) {
		return false
	}
	e.store.Delete(ctx, documentKey(id))
	if doc.Checksum != "" {
		e.store.Delete(ctx, checksumKey(doc.Checksum))
	}
	return true
}

// SearchKnowledge exposes raw retrieval for the knowledge search endpoint.
func (e *Engine) SearchKnowledge(ctx context.Context, query string, k int) core.KnowledgeSearchResponse {
	return e.knowledge.Search(ctx, query, k)
}
