package domain

import (
	"context"
	"io"
)

// Chunker splits extracted pages into bounded, overlapping text segments.
type Chunker interface {
	Split(pages []Page) []SplitChunk
}

// SplitChunk is the chunker's output before ids and vectors are attached.
type SplitChunk struct {
	Text string
	Page int
}

// Embedder maps text to fixed-dimension vectors via an external model.
// EmbedBatch is order-preserving: output[i] corresponds to texts[i]. A
// failure anywhere in the batch fails the whole batch; callers never see
// partial or misaligned results.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Entry is one (id, vector, chunk) triple stored in the vector index.
type Entry struct {
	ID     string
	Vector []float32
	Chunk  Chunk
}

// Filter restricts vector index reads and deletes to one document batch,
// optionally narrowed to a single file within it.
type Filter struct {
	DocID    string
	Filename string
}

// VectorIndex stores embeddings with chunk payloads and serves filtered
// similarity search. Query must never return entries outside the filter
// scope; that guarantee is what keeps one patient's chunks out of another
// patient's answers.
type VectorIndex interface {
	Upsert(ctx context.Context, entries []Entry) error
	Query(ctx context.Context, vector []float32, topK int, f Filter) ([]ScoredChunk, error)
	DeleteByDoc(ctx context.Context, f Filter) error
}

// Generator produces free text from a grounded prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ReportStore owns Document metadata rows.
type ReportStore interface {
	InsertDocument(ctx context.Context, d Document) error
	FindDocument(ctx context.Context, docID string) (Document, error)
	FindByUploader(ctx context.Context, uploader string) ([]Document, error)
}

// DiagnosisStore is the append-only log of question/answer transactions.
type DiagnosisStore interface {
	Insert(ctx context.Context, r DiagnosisRecord) error
	FindByRequester(ctx context.Context, requester string) ([]DiagnosisRecord, error)
}

// FileStore persists raw upload bytes, keyed by doc id and filename.
type FileStore interface {
	Save(ctx context.Context, docID, filename string, r io.Reader) (string, error)
}

// Authenticator resolves credentials to a Principal. Credential storage
// and hashing are outside this core.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (Principal, error)
}
