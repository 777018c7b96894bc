package core

import "time"

// KnowledgeSearchHit is one retrieved unit of indexed text. Score is a
// similarity where higher is better.
type KnowledgeSearchHit struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// KnowledgeSearchResponse carries ranked hits for a query plus the explicit
// degradation signal. Consumers must check EmbeddingAvailable before
// interpreting an empty hit list as "nothing relevant".
type KnowledgeSearchResponse struct {
	Hits               []KnowledgeSearchHit `json:"hits"`
	Query              string               `json:"query"`
	EmbeddingAvailable bool                 `json:"embedding_available"`
}

// DocumentSource describes one uploaded document whose chunks were (or will
// be) ingested into the knowledge index.
type DocumentSource struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Category         string    `json:"category"`
	OwnerID          string    `json:"owner_id,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
	SizeBytes        int64     `json:"size_bytes"`
	ContentType      string    `json:"content_type"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	Checksum         string    `json:"checksum,omitempty"`
	Status           string    `json:"status"`
}

// Map flattens the source into metadata attachable to each indexed chunk.
func (s DocumentSource) Map() map[string]any {
	return map[string]any{
		"source_id":    s.ID,
		"title":        s.Title,
		"category":     s.Category,
		"owner_id":     s.OwnerID,
		"content_type": s.ContentType,
		"checksum":     s.Checksum,
	}
}
