package domain

import "time"

// Role is the closed set of principal roles known to the access policy.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Principal identifies an authenticated caller for the duration of a request.
type Principal struct {
	Username string
	Role     Role
}

// Document is the metadata row recorded for one uploaded file. All files in
// a single upload batch share the same DocID.
type Document struct {
	DocID      string    `bson:"doc_id" json:"doc_id"`
	Filename   string    `bson:"filename" json:"filename"`
	Uploader   string    `bson:"uploader" json:"uploader"`
	UploadedAt time.Time `bson:"uploaded_at" json:"uploaded_at"`
	ChunkCount int       `bson:"chunk_count" json:"chunk_count"`
}

// MaxChunkDisplayLength bounds the chunk text retained in index payloads.
const MaxChunkDisplayLength = 2000

// Chunk is a contiguous slice of a document's text. Its ID is derived from
// the DocID and ordinal so re-ingesting an unchanged file overwrites the
// same entries instead of duplicating them.
type Chunk struct {
	ID       string
	DocID    string
	Ordinal  int
	Text     string
	Filename string
	Page     int
	Uploader string
}

// Ref returns the provenance reference for the chunk.
func (c Chunk) Ref() ChunkRef {
	return ChunkRef{Filename: c.Filename, Page: c.Page, Ordinal: c.Ordinal}
}

// ChunkRef is the provenance of one chunk as recorded in a DiagnosisRecord.
type ChunkRef struct {
	Filename string `bson:"filename" json:"filename"`
	Page     int    `bson:"page" json:"page"`
	Ordinal  int    `bson:"ordinal" json:"ordinal"`
}

// ScoredChunk is a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// DiagnosisRecord captures one question/answer transaction. Records are
// append-only: written exactly once per successful patient query and never
// mutated.
type DiagnosisRecord struct {
	DocID     string     `bson:"doc_id" json:"doc_id"`
	Requester string     `bson:"requester" json:"requester"`
	Question  string     `bson:"question" json:"question"`
	Answer    string     `bson:"answer" json:"answer"`
	Sources   []ChunkRef `bson:"sources" json:"sources"`
	Timestamp time.Time  `bson:"timestamp" json:"timestamp"`
}

// Page is one unit of extracted document text. Plain text files produce a
// single page; form-feed separated documents produce one page per section.
type Page struct {
	Number int
	Text   string
}
