// Package answer implements the retrieval-augmented answering flow: an
// authorized question is embedded, matched against one document's chunks,
// grounded into a prompt, generated, attributed and persisted.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"medreport/internal/access"
	"medreport/internal/domain"
)

// DefaultQuestion is used when the caller submits an empty question.
const DefaultQuestion = "Please provide a diagnosis based on my report"

// InsufficientGroundingAnswer is returned when retrieval finds no chunks
// for the document. It is a valid outcome, not an error.
const InsufficientGroundingAnswer = "No relevant content was found in the uploaded report to ground a diagnosis. Please verify that the report was uploaded and contains readable text."

// Diagnosis is the outcome of one answered question.
type Diagnosis struct {
	DocID    string            `json:"doc_id"`
	Question string            `json:"question"`
	Answer   string            `json:"diagnosis"`
	Sources  []domain.ChunkRef `json:"sources"`
}

// Answerer runs the per-question state machine. Authorization and
// existence are checked before any external call so a doomed request
// never spends an embedding or generation.
type Answerer struct {
	embedder  domain.Embedder
	index     domain.VectorIndex
	generator domain.Generator
	reports   domain.ReportStore
	diagnoses domain.DiagnosisStore
	topK      int
	log       zerolog.Logger
}

func NewAnswerer(embedder domain.Embedder, index domain.VectorIndex, generator domain.Generator, reports domain.ReportStore, diagnoses domain.DiagnosisStore, topK int, log zerolog.Logger) *Answerer {
	if topK <= 0 {
		topK = 5
	}
	return &Answerer{
		embedder:  embedder,
		index:     index,
		generator: generator,
		reports:   reports,
		diagnoses: diagnoses,
		topK:      topK,
		log:       log.With().Str("component", "answer").Logger(),
	}
}

// Answer resolves one question against one document. On success exactly
// one DiagnosisRecord is appended. Generation failures persist nothing.
func (a *Answerer) Answer(ctx context.Context, principal domain.Principal, docID, question string) (Diagnosis, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		question = DefaultQuestion
	}

	doc, err := a.reports.FindDocument(ctx, docID)
	if err != nil {
		return Diagnosis{}, err
	}
	if err := access.Decide(principal, access.ActionQueryOwn, doc.Uploader); err != nil {
		return Diagnosis{}, err
	}

	vectors, err := a.embedder.EmbedBatch(ctx, []string{question})
	if err != nil {
		return Diagnosis{}, err
	}

	matches, err := a.index.Query(ctx, vectors[0], a.topK, domain.Filter{DocID: docID})
	if err != nil {
		return Diagnosis{}, err
	}

	var answer string
	var sources []domain.ChunkRef
	if len(matches) == 0 {
		answer = InsufficientGroundingAnswer
		sources = []domain.ChunkRef{}
	} else {
		answer, err = a.generator.Generate(ctx, groundedPrompt(matches, question))
		if err != nil {
			return Diagnosis{}, err
		}
		sources = make([]domain.ChunkRef, len(matches))
		for i, m := range matches {
			sources[i] = m.Chunk.Ref()
		}
	}

	record := domain.DiagnosisRecord{
		DocID:     docID,
		Requester: principal.Username,
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		Timestamp: time.Now().UTC(),
	}
	if err := a.diagnoses.Insert(ctx, record); err != nil {
		return Diagnosis{}, err
	}
	a.log.Info().Str("doc_id", docID).Str("requester", principal.Username).Int("sources", len(sources)).Msg("diagnosis recorded")

	return Diagnosis{
		DocID:    docID,
		Question: question,
		Answer:   answer,
		Sources:  sources,
	}, nil
}

// History returns a patient's diagnosis records for a doctor, newest
// first. An empty history is reported as not found.
func (a *Answerer) History(ctx context.Context, principal domain.Principal, patientName string) ([]domain.DiagnosisRecord, error) {
	if err := access.Decide(principal, access.ActionBrowseHistory, patientName); err != nil {
		return nil, err
	}
	records, err := a.diagnoses.FindByRequester(ctx, patientName)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no diagnosis found for patient %s", domain.ErrNotFound, patientName)
	}
	return records, nil
}

// groundedPrompt interleaves the retrieved chunk texts, each tagged with
// its provenance, so the model answers from cited material only.
func groundedPrompt(matches []domain.ScoredChunk, question string) string {
	var b strings.Builder
	b.WriteString("You are a medical assistant. Answer the patient's question using only the report excerpts below. If the excerpts do not contain the answer, say so.\n\n")
	for _, m := range matches {
		fmt.Fprintf(&b, "[source: %s, page %d]\n%s\n\n", m.Chunk.Filename, m.Chunk.Page, m.Chunk.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
