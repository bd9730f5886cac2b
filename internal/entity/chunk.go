package entity

// EmbeddingDimension is the vector size of sentence-transformers/all-MiniLM-L6-v2.
// An index built with one embedding model must never be queried with another.
const EmbeddingDimension = 384

// MetadataSource is the only metadata key kept on a chunk after ingestion.
const MetadataSource = "source"

// Chunk is a bounded span of document text stored as a retrievable unit.
type Chunk struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

type EmbeddedChunk struct {
	Chunk
	Vector []float32
}

// ScoredChunk is a search hit; Score is the cosine similarity to the query.
type ScoredChunk struct {
	Chunk
	Score float32
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Files    int `json:"files"`
	Pages    int `json:"pages"`
	Chunks   int `json:"chunks"`
	Upserted int `json:"upserted"`
	DryRun   bool `json:"dry_run"`
}
