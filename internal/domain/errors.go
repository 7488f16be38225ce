package domain

import (
	"errors"
	"fmt"
)

// Error kinds form a closed taxonomy. Callers branch with errors.Is and
// errors.As; no error is inspected by string.
var (
	// ErrUnauthenticated means the credentials were missing or wrong.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the caller is authenticated but not entitled to
	// the action or resource. Never retried.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means an unknown doc id or an empty record set.
	ErrNotFound = errors.New("not found")

	// ErrGenerationFailed means the generative model call errored or
	// returned unusable output. No DiagnosisRecord is written.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrServiceUnavailable means a required external collaborator is
	// unreachable.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Stage names the ingestion step a file failed at.
type Stage string

const (
	StageSave     Stage = "save"
	StageExtract  Stage = "extract"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageIndex    Stage = "index"
	StageMetadata Stage = "metadata"
)

// IngestionError reports which file failed during ingestion and at which
// stage. Other files in the same batch are unaffected.
type IngestionError struct {
	Filename string
	Stage    Stage
	Err      error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion of %q failed at stage %s: %v", e.Filename, e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Forbiddenf wraps ErrForbidden with the violated rule.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}
