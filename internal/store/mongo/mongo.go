// Package mongo persists report metadata and diagnosis records in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"medreport/internal/domain"
)

const (
	reportsCollection   = "reports"
	diagnosisCollection = "diagnoses"
)

// Store provides the ReportStore and DiagnosisStore contracts over one
// MongoDB database.
type Store struct {
	reports   *mongo.Collection
	diagnoses *mongo.Collection
	client    *mongo.Client
}

// Config contains connection details for the metadata database.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "medreport"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, t)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: mongo connect: %v", domain.ErrServiceUnavailable, err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("%w: mongo ping: %v", domain.ErrServiceUnavailable, err)
	}
	db := client.Database(cfg.Database)
	return &Store{
		reports:   db.Collection(reportsCollection),
		diagnoses: db.Collection(diagnosisCollection),
		client:    client,
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// InsertDocument records one metadata row per ingested file.
func (s *Store) InsertDocument(ctx context.Context, d domain.Document) error {
	if _, err := s.reports.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("%w: insert document: %v", domain.ErrServiceUnavailable, err)
	}
	return nil
}

// FindDocument returns the first metadata row for the doc id.
func (s *Store) FindDocument(ctx context.Context, docID string) (domain.Document, error) {
	var d domain.Document
	err := s.reports.FindOne(ctx, bson.M{"doc_id": docID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Document{}, fmt.Errorf("%w: doc %s", domain.ErrNotFound, docID)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: find document: %v", domain.ErrServiceUnavailable, err)
	}
	return d, nil
}

// FindByUploader lists an uploader's documents, newest first.
func (s *Store) FindByUploader(ctx context.Context, uploader string) ([]domain.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}})
	cur, err := s.reports.Find(ctx, bson.M{"uploader": uploader}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find documents: %v", domain.ErrServiceUnavailable, err)
	}
	var docs []domain.Document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode documents: %v", domain.ErrServiceUnavailable, err)
	}
	return docs, nil
}

// Insert appends one diagnosis record. Records are never updated.
func (s *Store) Insert(ctx context.Context, r domain.DiagnosisRecord) error {
	if _, err := s.diagnoses.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("%w: insert diagnosis: %v", domain.ErrServiceUnavailable, err)
	}
	return nil
}

// FindByRequester lists a patient's diagnosis history, newest first.
func (s *Store) FindByRequester(ctx context.Context, requester string) ([]domain.DiagnosisRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cur, err := s.diagnoses.Find(ctx, bson.M{"requester": requester}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find diagnoses: %v", domain.ErrServiceUnavailable, err)
	}
	var records []domain.DiagnosisRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("%w: decode diagnoses: %v", domain.ErrServiceUnavailable, err)
	}
	return records, nil
}
