package answer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medreport/internal/domain"
	"medreport/internal/store/memstore"
	"medreport/internal/vectorindex/memory"
)

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (fakeEmbedder) Dimension() int { return 2 }

type fakeGenerator struct {
	prompt string
	fail   bool
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	if g.fail {
		return "", domain.ErrGenerationFailed
	}
	return "Findings are consistent with mild anemia.", nil
}

var (
	alice   = domain.Principal{Username: "alice", Role: domain.RolePatient}
	bob     = domain.Principal{Username: "bob", Role: domain.RolePatient}
	drsmith = domain.Principal{Username: "drsmith", Role: domain.RoleDoctor}
)

func seed(t *testing.T, idx *memory.Index, store *memstore.Store, docID, uploader string, chunks int) {
	t.Helper()
	ctx := context.Background()
	entries := make([]domain.Entry, chunks)
	for i := 0; i < chunks; i++ {
		entries[i] = domain.Entry{
			ID:     docID + "-report.pdf-" + string(rune('0'+i)),
			Vector: []float32{1, float32(i)},
			Chunk: domain.Chunk{
				DocID:    docID,
				Ordinal:  i,
				Page:     i + 1,
				Filename: "report.pdf",
				Uploader: uploader,
				Text:     "hemoglobin 10.2 g/dL",
			},
		}
	}
	require.NoError(t, idx.Upsert(ctx, entries))
	require.NoError(t, store.InsertDocument(ctx, domain.Document{
		DocID:      docID,
		Filename:   "report.pdf",
		Uploader:   uploader,
		UploadedAt: time.Now().UTC(),
		ChunkCount: chunks,
	}))
}

func newTestAnswerer(idx *memory.Index, store *memstore.Store, gen domain.Generator) *Answerer {
	return NewAnswerer(fakeEmbedder{}, idx, gen, store, store, 5, zerolog.Nop())
}

func TestAnswerHappyPath(t *testing.T) {
	idx := memory.NewIndex()
	store := memstore.NewStore()
	gen := &fakeGenerator{}
	seed(t, idx, store, "doc-1", "alice", 3)

	a := newTestAnswerer(idx, store, gen)
	d, err := a.Answer(context.Background(), alice, "doc-1", "What do my lab values mean?")
	require.NoError(t, err)

	assert.NotEmpty(t, d.Answer)
	require.NotEmpty(t, d.Sources)
	for _, src := range d.Sources {
		assert.Equal(t, "report.pdf", src.Filename)
	}

	// The prompt contains the retrieved text and provenance tags.
	assert.Contains(t, gen.prompt, "hemoglobin 10.2 g/dL")
	assert.Contains(t, gen.prompt, "[source: report.pdf")
	assert.True(t, strings.HasSuffix(gen.prompt, "What do my lab values mean?"))

	// Exactly one record was appended.
	assert.Equal(t, 1, store.DiagnosisCount())
	records, err := store.FindByRequester(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, d.Answer, records[0].Answer)
	assert.Equal(t, d.Sources, records[0].Sources)
}

func TestAnswerDefaultQuestion(t *testing.T) {
	idx := memory.NewIndex()
	store := memstore.NewStore()
	seed(t, idx, store, "doc-1", "alice", 1)

	a := newTestAnswerer(idx, store, &fakeGenerator{})
	d, err := a.Answer(context.Background(), alice, "doc-1", "   ")
	require.NoError(t, err)
	assert.Equal(t, DefaultQuestion, d.Question)
}

func TestAnswerUnknownDocument(t *testing.T) {
	a := newTestAnswerer(memory.NewIndex(), memstore.NewStore(), &fakeGenerator{})
	_, err := a.Answer(context.Background(), alice, "missing", "question")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnswerForbiddenForOtherPatient(t *testing.T) {
	idx := memory.NewIndex()
	store := memstore.NewStore()
	seed(t, idx, store, "doc-1", "alice", 1)

	a := newTestAnswerer(idx, store, &fakeGenerator{})
	_, err := a.Answer(context.Background(), bob, "doc-1", "question")
	require.ErrorIs(t, err, domain.ErrForbidden)

	// No record is written for a refused query.
	assert.Equal(t, 0, store.DiagnosisCount())
}

func TestAnswerZeroMatchesStillResponds(t *testing.T) {
	idx := memory.NewIndex()
	store := memstore.NewStore()
	// Document exists but its file produced no chunks.
	require.NoError(t, store.InsertDocument(context.Background(), domain.Document{
		DocID: "doc-1", Filename: "empty.txt", Uploader: "alice",
	}))

	gen := &fakeGenerator{}
	a := newTestAnswerer(idx, store, gen)
	d, err := a.Answer(context.Background(), alice, "doc-1", "question")
	require.NoError(t, err)

	assert.Equal(t, InsufficientGroundingAnswer, d.Answer)
	assert.Empty(t, d.Sources)
	// The generative model is never invoked without grounding.
	assert.Empty(t, gen.prompt)
	// The transaction is still recorded.
	assert.Equal(t, 1, store.DiagnosisCount())
}

func TestAnswerGenerationFailureWritesNothing(t *testing.T) {
	idx := memory.NewIndex()
	store := memstore.NewStore()
	seed(t, idx, store, "doc-1", "alice", 2)

	a := newTestAnswerer(idx, store, &fakeGenerator{fail: true})
	_, err := a.Answer(context.Background(), alice, "doc-1", "question")
	require.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.Equal(t, 0, store.DiagnosisCount())
}

func TestAnswerAppendOnlyHistory(t *testing.T) {
	idx := memory.NewIndex()
	store := memstore.NewStore()
	seed(t, idx, store, "doc-1", "alice", 2)

	a := newTestAnswerer(idx, store, &fakeGenerator{})
	const n = 4
	for i := 0; i < n; i++ {
		_, err := a.Answer(context.Background(), alice, "doc-1", "question")
		require.NoError(t, err)
	}
	assert.Equal(t, n, store.DiagnosisCount())

	records, err := store.FindByRequester(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, records, n)
	for _, r := range records {
		assert.Equal(t, "doc-1", r.DocID)
	}
}

func TestHistoryDoctorOnly(t *testing.T) {
	idx := memory.NewIndex()
	store := memstore.NewStore()
	seed(t, idx, store, "doc-1", "alice", 1)

	a := newTestAnswerer(idx, store, &fakeGenerator{})
	_, err := a.Answer(context.Background(), alice, "doc-1", "question")
	require.NoError(t, err)

	records, err := a.History(context.Background(), drsmith, "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].Requester)

	_, err = a.History(context.Background(), alice, "alice")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestHistoryEmptyIsNotFound(t *testing.T) {
	a := newTestAnswerer(memory.NewIndex(), memstore.NewStore(), &fakeGenerator{})
	_, err := a.History(context.Background(), drsmith, "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
