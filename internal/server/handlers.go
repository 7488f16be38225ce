package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"medreport/internal/ingest"
)

type uploadedFile struct {
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
}

type uploadResponse struct {
	Message string         `json:"message"`
	DocID   string         `json:"doc_id"`
	Files   []uploadedFile `json:"files"`
}

// handleUpload accepts a multipart batch of report files, mints a fresh
// doc id for the batch and runs the ingestion pipeline.
func (s *Server) handleUpload(c echo.Context) error {
	principal := principalFrom(c)

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one file is required")
	}

	docID := uuid.NewString()
	uploads := make([]ingest.Upload, 0, len(headers))
	closers := make([]func() error, 0, len(headers))
	defer func() {
		for _, cl := range closers {
			_ = cl()
		}
	}()
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable file "+h.Filename)
		}
		closers = append(closers, f.Close)
		uploads = append(uploads, ingest.Upload{Filename: h.Filename, Content: f})
	}

	result, err := s.pipeline.Ingest(c.Request().Context(), principal, docID, uploads)
	if err != nil {
		return respondError(c, err)
	}

	resp := uploadResponse{DocID: docID, Message: "Uploaded and indexed"}
	for _, fr := range result.Files {
		uf := uploadedFile{Filename: fr.Filename, ChunkCount: fr.ChunkCount}
		if fr.Err != nil {
			uf.Error = fr.Err.Error()
		}
		resp.Files = append(resp.Files, uf)
	}
	if failed := result.Failed(); len(failed) > 0 {
		// Per-file failures do not undo sibling files, but the caller
		// must see that the batch was not fully indexed.
		resp.Message = "Upload completed with errors"
		return c.JSON(http.StatusInternalServerError, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleDiagnosis answers a patient's question against one of their
// uploaded documents.
func (s *Server) handleDiagnosis(c echo.Context) error {
	principal := principalFrom(c)

	docID := c.FormValue("doc_id")
	if docID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "doc_id is required")
	}
	question := c.FormValue("question")

	d, err := s.answerer.Answer(c.Request().Context(), principal, docID, question)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// handleHistory lets a doctor browse one patient's diagnosis records,
// newest first.
func (s *Server) handleHistory(c echo.Context) error {
	principal := principalFrom(c)

	patient := c.QueryParam("patient_name")
	if patient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_name is required")
	}

	records, err := s.answerer.History(c.Request().Context(), principal, patient)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, records)
}
