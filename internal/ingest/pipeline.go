// Package ingest orchestrates the upload pipeline: persist raw bytes,
// extract text, chunk, embed, index, then record metadata.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"medreport/internal/access"
	"medreport/internal/domain"
)

// Upload is one named file in an ingestion batch.
type Upload struct {
	Filename string
	Content  io.Reader
}

// FileResult reports the outcome for one file. Err is nil on success; a
// zero ChunkCount with nil Err means the file held no indexable content.
type FileResult struct {
	Filename   string
	ChunkCount int
	Err        error
}

// Result reports the outcome of one batch under a single doc id.
type Result struct {
	DocID string
	Files []FileResult
}

// Failed returns the per-file ingestion errors, if any.
func (r Result) Failed() []error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// Pipeline ingests upload batches. Within one file the stages run in
// order; the Document metadata row is written only after every chunk of
// that file is indexed, so a metadata row never points at incomplete
// vector content. The reverse window (vectors indexed, row not yet
// written) exists when a file fails at the metadata stage and the
// compensating delete also fails; both events are logged.
type Pipeline struct {
	chunker  domain.Chunker
	embedder domain.Embedder
	index    domain.VectorIndex
	files    domain.FileStore
	reports  domain.ReportStore
	log      zerolog.Logger
}

func NewPipeline(chunker domain.Chunker, embedder domain.Embedder, index domain.VectorIndex, files domain.FileStore, reports domain.ReportStore, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		files:    files,
		reports:  reports,
		log:      log.With().Str("component", "ingest").Logger(),
	}
}

// Ingest processes the batch for the caller-minted doc id. The policy
// check runs before any I/O. A failing file is reported in its FileResult
// and does not stop the rest of the batch. The returned error is non-nil
// only for batch-level refusals (authorization, cancellation).
func (p *Pipeline) Ingest(ctx context.Context, principal domain.Principal, docID string, uploads []Upload) (Result, error) {
	if err := access.Decide(principal, access.ActionIngest, principal.Username); err != nil {
		return Result{}, err
	}
	result := Result{DocID: docID}
	for _, up := range uploads {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		fr := p.ingestFile(ctx, principal, docID, up)
		result.Files = append(result.Files, fr)
		if fr.Err != nil {
			p.log.Error().Err(fr.Err).Str("doc_id", docID).Str("filename", up.Filename).Msg("file ingestion failed")
		} else {
			p.log.Info().Str("doc_id", docID).Str("filename", up.Filename).Int("chunks", fr.ChunkCount).Msg("file ingested")
		}
	}
	return result, nil
}

func (p *Pipeline) ingestFile(ctx context.Context, principal domain.Principal, docID string, up Upload) FileResult {
	fr := FileResult{Filename: up.Filename}
	fail := func(stage domain.Stage, err error) FileResult {
		fr.Err = &domain.IngestionError{Filename: up.Filename, Stage: stage, Err: err}
		return fr
	}

	path, err := p.files.Save(ctx, docID, up.Filename, up.Content)
	if err != nil {
		return fail(domain.StageSave, err)
	}

	pages, err := extractPages(path)
	if err != nil {
		return fail(domain.StageExtract, err)
	}

	split := p.chunker.Split(pages)
	if len(split) == 0 {
		// No content is a reportable outcome, not a failure: the metadata
		// row still records the file with chunk_count 0.
		if err := p.writeMetadata(ctx, principal, docID, up.Filename, 0); err != nil {
			return fail(domain.StageMetadata, err)
		}
		return fr
	}

	chunks := make([]domain.Chunk, len(split))
	texts := make([]string, len(split))
	for i, sc := range split {
		chunks[i] = domain.Chunk{
			ID:       chunkID(docID, up.Filename, i),
			DocID:    docID,
			Ordinal:  i,
			Text:     sc.Text,
			Filename: up.Filename,
			Page:     sc.Page,
			Uploader: principal.Username,
		}
		texts[i] = sc.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fail(domain.StageEmbed, err)
	}

	entries := make([]domain.Entry, len(chunks))
	for i := range chunks {
		entries[i] = domain.Entry{ID: chunks[i].ID, Vector: vectors[i], Chunk: chunks[i]}
	}
	if err := p.index.Upsert(ctx, entries); err != nil {
		p.rollback(docID, up.Filename)
		return fail(domain.StageIndex, err)
	}

	if err := p.writeMetadata(ctx, principal, docID, up.Filename, len(chunks)); err != nil {
		p.rollback(docID, up.Filename)
		return fail(domain.StageMetadata, err)
	}
	fr.ChunkCount = len(chunks)
	return fr
}

func (p *Pipeline) writeMetadata(ctx context.Context, principal domain.Principal, docID, filename string, chunkCount int) error {
	// A cancelled ingestion must not leave a Document row behind.
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.reports.InsertDocument(ctx, domain.Document{
		DocID:      docID,
		Filename:   filename,
		Uploader:   principal.Username,
		UploadedAt: time.Now().UTC(),
		ChunkCount: chunkCount,
	})
}

// rollback is the best-effort compensating delete for a file that failed
// after some of its vectors were upserted. It runs detached from the
// request context so a cancelled request can still clean up.
func (p *Pipeline) rollback(docID, filename string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.index.DeleteByDoc(ctx, domain.Filter{DocID: docID, Filename: filename}); err != nil {
		p.log.Warn().Err(err).Str("doc_id", docID).Str("filename", filename).Msg("vector rollback failed; index holds orphaned chunks")
	}
}

func chunkID(docID, filename string, ordinal int) string {
	return fmt.Sprintf("%s-%s-%d", docID, filename, ordinal)
}

// extractPages reads the stored file as UTF-8 text. Form feeds delimit
// pages; files without them are a single page.
func extractPages(path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(data)
	var pages []domain.Page
	for i, section := range strings.Split(text, "\f") {
		if strings.TrimSpace(section) == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: i + 1, Text: section})
	}
	return pages, nil
}
