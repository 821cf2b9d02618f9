package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/qdrant/go-client/qdrant"

	"zeb-assist-backend/internal/config"
)

type fakePoints struct {
	points     []*qdrant.ScoredPoint
	queryReqs  []*qdrant.QueryPoints
	upsertReqs []*qdrant.UpsertPoints
	deleteReqs []*qdrant.DeletePoints
	count      uint64
	err        error
}

func (f *fakePoints) Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.queryReqs = append(f.queryReqs, req)
	return f.points, f.err
}

func (f *fakePoints) Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.upsertReqs = append(f.upsertReqs, req)
	return &qdrant.UpdateResult{}, f.err
}

func (f *fakePoints) Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	f.deleteReqs = append(f.deleteReqs, req)
	return &qdrant.UpdateResult{}, f.err
}

func (f *fakePoints) Count(ctx context.Context, req *qdrant.CountPoints) (uint64, error) {
	return f.count, f.err
}

func (f *fakePoints) Close() error { return nil }

func scored(id string, score float32, text string) *qdrant.ScoredPoint {
	return &qdrant.ScoredPoint{
		Id:    &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}},
		Score: score,
		Payload: map[string]*qdrant.Value{
			"text":     {Kind: &qdrant.Value_StringValue{StringValue: text}},
			"source":   {Kind: &qdrant.Value_StringValue{StringValue: "FAQ.xlsx"}},
			"language": {Kind: &qdrant.Value_StringValue{StringValue: "en"}},
		},
	}
}

func newTestStore(fake *fakePoints, minScore float64) *Store {
	cfgStore := config.NewStore(config.Config{
		QdrantURL:        "https://qdrant.example:6334",
		QdrantCollection: "zeb-faq",
		Namespace:        "production",
		TopK:             5,
		MinScore:         minScore,
	})
	s := NewStore(cfgStore)
	s.newClient = func(config.Config) (pointsAPI, error) { return fake, nil }
	return s
}

func TestQueryVectorsThresholdPath(t *testing.T) {
	fake := &fakePoints{points: []*qdrant.ScoredPoint{
		scored("a", 0.72, "top"),
		scored("b", 0.65, "mid"),
		scored("c", 0.41, "low"),
	}}
	s := newTestStore(fake, 0.70)

	matches, fallback, err := s.QueryVectors(context.Background(), []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fallback {
		t.Fatal("threshold path must not report fallback")
	}
	if len(matches) != 1 || matches[0].ID != "a" {
		t.Fatalf("expected only the 0.72 candidate, got %+v", matches)
	}
	if matches[0].Score != 0.72 {
		t.Fatalf("expected rounded score 0.72, got %v", matches[0].Score)
	}
}

func TestQueryVectorsOverFetchesAndFilters(t *testing.T) {
	fake := &fakePoints{points: []*qdrant.ScoredPoint{}}
	s := newTestStore(fake, 0.70)

	if _, _, err := s.QueryVectors(context.Background(), []float32{0.1}, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := fake.queryReqs[0]
	if req.Limit == nil || *req.Limit != 15 {
		t.Fatalf("expected 3x over-fetch limit 15, got %v", req.Limit)
	}
	if req.Filter == nil || len(req.Filter.Must) != 1 {
		t.Fatal("expected a namespace filter")
	}
}

func TestQueryVectorsFallbackPath(t *testing.T) {
	fake := &fakePoints{points: []*qdrant.ScoredPoint{
		scored("a", 0.55, "one"),
		scored("b", 0.52, "two"),
		scored("c", 0.48, "three"),
		scored("d", 0.45, "four"),
		scored("e", 0.39, "below floor"),
	}}
	s := newTestStore(fake, 0.70)

	matches, fallback, err := s.QueryVectors(context.Background(), []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fallback {
		t.Fatal("expected fallback path to be reported")
	}
	if len(matches) != 3 {
		t.Fatalf("fallback keeps at most 3, got %d", len(matches))
	}
	for _, m := range matches {
		if m.Score < 0.40 {
			t.Fatalf("fallback returned a below-floor match: %+v", m)
		}
	}
}

func TestQueryVectorsAllBelowFloor(t *testing.T) {
	fake := &fakePoints{points: []*qdrant.ScoredPoint{
		scored("a", 0.30, "noise"),
		scored("b", 0.12, "noise"),
	}}
	s := newTestStore(fake, 0.70)

	matches, fallback, err := s.QueryVectors(context.Background(), []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fallback || len(matches) != 0 {
		t.Fatalf("expected empty result below floor, got %d (fallback=%v)", len(matches), fallback)
	}
}

func TestUpsertVectorsBatchesAndStampsNamespace(t *testing.T) {
	fake := &fakePoints{}
	s := newTestStore(fake, 0.70)

	vectors := make([]Vector, 150)
	for i := range vectors {
		vectors[i] = Vector{
			ID:      fmt.Sprintf("00000000-0000-0000-0000-%012d", i),
			Values:  []float32{0.1, 0.2},
			Payload: map[string]string{"text": "chunk"},
		}
	}
	n, err := s.UpsertVectors(context.Background(), vectors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 150 {
		t.Fatalf("expected 150 upserted, got %d", n)
	}
	if len(fake.upsertReqs) != 2 {
		t.Fatalf("expected 2 batches of 100, got %d", len(fake.upsertReqs))
	}
	if len(fake.upsertReqs[0].Points) != 100 || len(fake.upsertReqs[1].Points) != 50 {
		t.Fatalf("unexpected batch sizes: %d, %d", len(fake.upsertReqs[0].Points), len(fake.upsertReqs[1].Points))
	}
	ns := fake.upsertReqs[0].Points[0].Payload["namespace"]
	if ns.GetStringValue() != "production" {
		t.Fatalf("expected namespace stamped on payload, got %q", ns.GetStringValue())
	}
}

func TestDeleteNamespaceUsesFilter(t *testing.T) {
	fake := &fakePoints{}
	s := newTestStore(fake, 0.70)

	if err := s.DeleteNamespace(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.deleteReqs) != 1 {
		t.Fatalf("expected one delete request, got %d", len(fake.deleteReqs))
	}
	sel := fake.deleteReqs[0].Points.GetFilter()
	if sel == nil || len(sel.Must) != 1 {
		t.Fatal("expected delete restricted to the namespace filter")
	}
}

func TestGetStats(t *testing.T) {
	fake := &fakePoints{count: 42}
	s := newTestStore(fake, 0.70)

	stats, err := s.GetStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalVectors != 42 || stats.Namespace != "production" || stats.Collection != "zeb-faq" || stats.Dimension != Dimension {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestStoreRequiresURL(t *testing.T) {
	cfgStore := config.NewStore(config.Config{})
	s := NewStore(cfgStore)
	if _, _, err := s.QueryVectors(context.Background(), []float32{0.1}, 5); err == nil {
		t.Fatal("expected error without a configured vector store URL")
	}
}
