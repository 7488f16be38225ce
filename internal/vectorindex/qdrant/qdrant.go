// Package qdrant implements the domain VectorIndex against a Qdrant
// server over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"medreport/internal/domain"
)

const (
	payloadDocID    = "doc_id"
	payloadSource   = "source"
	payloadUploader = "uploader"
	payloadPage     = "page"
	payloadOrdinal  = "ordinal"
	payloadText     = "text"
)

// Index is a VectorIndex adapter over the Qdrant gRPC API.
type Index struct {
	collections pb.CollectionsClient
	points      pb.PointsClient
	collection  string
	conn        *grpc.ClientConn
}

// Config contains connection details for a Qdrant index.
type Config struct {
	Addr       string
	Collection string
}

func NewIndex(cfg Config) (*Index, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6334"
	}
	if cfg.Collection == "" {
		cfg.Collection = "medical-reports"
	}
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant at %s: %w", cfg.Addr, err)
	}
	return &Index{
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		collection:  cfg.Collection,
		conn:        conn,
	}, nil
}

func (x *Index) Close() error { return x.conn.Close() }

// EnsureCollection provisions the collection if missing and polls until it
// reports ready, once per process at startup. Exhausting the retry budget
// is a fatal startup condition for the caller, not a per-request error.
func (x *Index) EnsureCollection(ctx context.Context, dimension int, maxPolls int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	list, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: list collections: %v", domain.ErrServiceUnavailable, err)
	}
	exists := false
	for _, col := range list.GetCollections() {
		if col.GetName() == x.collection {
			exists = true
			break
		}
	}
	if !exists {
		_, err = x.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: x.collection,
			VectorsConfig: &pb.VectorsConfig{
				Config: &pb.VectorsConfig_Params{
					Params: &pb.VectorParams{
						Size:     uint64(dimension),
						Distance: pb.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("create collection %q: %w", x.collection, err)
		}
	}
	if maxPolls <= 0 {
		maxPolls = 30
	}
	for i := 0; i < maxPolls; i++ {
		info, err := x.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: x.collection})
		if err == nil && info.GetResult().GetStatus() == pb.CollectionStatus_Green {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("collection %q not ready after %d polls", x.collection, maxPolls)
}

// Upsert writes entries with ids derived deterministically from the chunk
// id, so re-ingesting a file replaces its points instead of duplicating
// them.
func (x *Index) Upsert(ctx context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	wait := true
	points := make([]*pb.PointStruct, len(entries))
	for i, e := range entries {
		points[i] = &pb.PointStruct{
			Id: pointID(e.ID),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Vector}},
			},
			Payload: map[string]*pb.Value{
				payloadDocID:    stringValue(e.Chunk.DocID),
				payloadSource:   stringValue(e.Chunk.Filename),
				payloadUploader: stringValue(e.Chunk.Uploader),
				payloadPage:     intValue(e.Chunk.Page),
				payloadOrdinal:  intValue(e.Chunk.Ordinal),
				payloadText:     stringValue(truncate(e.Chunk.Text, domain.MaxChunkDisplayLength)),
			},
		}
	}
	_, err := x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant upsert: %v", domain.ErrServiceUnavailable, err)
	}
	return nil
}

// Query returns up to topK entries matching the filter, ranked by
// similarity. The doc id condition is always applied server-side; no
// entry outside the filter scope can appear in the result.
func (x *Index) Query(ctx context.Context, vector []float32, topK int, f domain.Filter) ([]domain.ScoredChunk, error) {
	if f.DocID == "" {
		return nil, errors.New("query filter requires a doc id")
	}
	if topK <= 0 {
		topK = 5
	}
	resp, err := x.points.Search(ctx, &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         matchFilter(f),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant search: %v", domain.ErrServiceUnavailable, err)
	}
	results := make([]domain.ScoredChunk, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		payload := point.GetPayload()
		results = append(results, domain.ScoredChunk{
			Chunk: domain.Chunk{
				DocID:    payload[payloadDocID].GetStringValue(),
				Filename: payload[payloadSource].GetStringValue(),
				Uploader: payload[payloadUploader].GetStringValue(),
				Page:     int(payload[payloadPage].GetIntegerValue()),
				Ordinal:  int(payload[payloadOrdinal].GetIntegerValue()),
				Text:     payload[payloadText].GetStringValue(),
			},
			Score: point.GetScore(),
		})
	}
	return results, nil
}

// DeleteByDoc removes every point matching the filter. Used as the
// best-effort compensating delete when a file fails mid-ingestion.
func (x *Index) DeleteByDoc(ctx context.Context, f domain.Filter) error {
	if f.DocID == "" {
		return errors.New("delete filter requires a doc id")
	}
	wait := true
	_, err := x.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: matchFilter(f)},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant delete: %v", domain.ErrServiceUnavailable, err)
	}
	return nil
}

func matchFilter(f domain.Filter) *pb.Filter {
	must := []*pb.Condition{keywordCondition(payloadDocID, f.DocID)}
	if f.Filename != "" {
		must = append(must, keywordCondition(payloadSource, f.Filename))
	}
	return &pb.Filter{Must: must}
}

func keywordCondition(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

// pointID maps a deterministic chunk id onto the UUID space Qdrant
// accepts for point ids.
func pointID(chunkID string) *pb.PointId {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id.String()}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(i int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(i)}}
}

// truncate caps s at max runes so the stored payload stays valid UTF-8.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
