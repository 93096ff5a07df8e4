package model

// Payload is the data stored next to a vector. DocID and ChunkIndex tie
// every point back to the document it came from, so a document can be
// rebuilt from the store alone.
type Payload struct {
	DocID      string                 `json:"doc_id"`
	ChunkIndex int                    `json:"chunk_index"`
	Text       string                 `json:"text"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Point is the storage unit of a vector store backend.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// SearchResult is one ranked hit, score descending by cosine similarity.
type SearchResult struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
