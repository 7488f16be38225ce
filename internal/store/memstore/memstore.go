// Package memstore keeps report metadata and diagnosis records in memory.
// It serves tests and the dev backend with the same contract as the
// MongoDB store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"medreport/internal/domain"
)

// Store implements ReportStore and DiagnosisStore in memory.
type Store struct {
	mu        sync.RWMutex
	documents []domain.Document
	records   []domain.DiagnosisRecord
}

func NewStore() *Store { return &Store{} }

func (s *Store) InsertDocument(_ context.Context, d domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append(s.documents, d)
	return nil
}

func (s *Store) FindDocument(_ context.Context, docID string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.documents {
		if d.DocID == docID {
			return d, nil
		}
	}
	return domain.Document{}, fmt.Errorf("%w: doc %s", domain.ErrNotFound, docID)
}

func (s *Store) FindByUploader(_ context.Context, uploader string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.Document
	for _, d := range s.documents {
		if d.Uploader == uploader {
			docs = append(docs, d)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	return docs, nil
}

func (s *Store) Insert(_ context.Context, r domain.DiagnosisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *Store) FindByRequester(_ context.Context, requester string) ([]domain.DiagnosisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []domain.DiagnosisRecord
	for _, r := range s.records {
		if r.Requester == requester {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

// DiagnosisCount reports the number of stored records for assertions in
// tests.
func (s *Store) DiagnosisCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
