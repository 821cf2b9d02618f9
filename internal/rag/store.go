package rag

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"zeb-assist-backend/internal/config"
)

const (
	// overFetchFactor leaves the threshold filter room to discard.
	overFetchFactor = 3
	// fallbackFloor is the relaxed similarity floor used when nothing
	// passes the configured threshold.
	fallbackFloor = 0.40
	// fallbackKeep caps how many matches the fallback path returns.
	fallbackKeep = 3
	// upsertBatchSize bounds one upsert request.
	upsertBatchSize = 100
)

// Match is one retrieved passage with provenance.
type Match struct {
	ID       string
	Score    float64
	Text     string
	Source   string
	Category string
	Language string
	Title    string
}

// Vector is one point to upsert.
type Vector struct {
	ID      string
	Values  []float32
	Payload map[string]string
}

// Stats describes the state of the active namespace.
type Stats struct {
	TotalVectors uint64 `json:"totalVectors"`
	Namespace    string `json:"namespace"`
	Collection   string `json:"collection"`
	Dimension    int    `json:"dimension"`
}

// pointsAPI is the slice of the Qdrant client the store needs.
type pointsAPI interface {
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, req *qdrant.CountPoints) (uint64, error)
	Close() error
}

// Store wraps the vector service. Namespaces are modeled as a payload
// field on a single collection: queries filter on it, delete-all
// removes by it. The client is cached per credential set and torn down
// on config invalidation.
type Store struct {
	cfg *config.Store

	mu        sync.Mutex
	client    pointsAPI
	newClient func(config.Config) (pointsAPI, error)
}

func NewStore(cfg *config.Store) *Store {
	s := &Store{cfg: cfg, newClient: dialQdrant}
	cfg.OnInvalidate(s.invalidate)
	return s
}

func (s *Store) invalidate() {
	s.mu.Lock()
	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
	s.mu.Unlock()
}

func (s *Store) getClient() (pointsAPI, config.Config, error) {
	cfg := s.cfg.Snapshot()
	if cfg.QdrantURL == "" {
		return nil, cfg, fmt.Errorf("QDRANT_URL not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		c, err := s.newClient(cfg)
		if err != nil {
			return nil, cfg, err
		}
		s.client = c
	}
	return s.client, cfg, nil
}

func dialQdrant(cfg config.Config) (pointsAPI, error) {
	raw := cfg.QdrantURL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse qdrant url: %w", err)
	}
	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.QdrantKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return client, nil
}

// QueryVectors runs a namespaced similarity search with the adaptive
// threshold strategy: over-fetch 3×topK, keep candidates at or above
// the configured threshold capped to topK; when none pass but
// candidates exist, relax to the fixed floor and keep at most three.
// The second return reports whether the fallback path was taken.
func (s *Store) QueryVectors(ctx context.Context, vector []float32, topK int) ([]Match, bool, error) {
	client, cfg, err := s.getClient()
	if err != nil {
		return nil, false, err
	}
	limit := uint64(topK * overFetchFactor)
	points, err := client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: cfg.QdrantCollection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         namespaceFilter(cfg.Namespace),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("vector query failed: %w", err)
	}
	if len(points) == 0 {
		log.Printf("[rag] 0 candidates (namespace %q)", cfg.Namespace)
		return nil, false, nil
	}

	var kept []Match
	for _, p := range points {
		if float64(p.Score) >= cfg.MinScore && len(kept) < topK {
			kept = append(kept, toMatch(p))
		}
	}
	if len(kept) > 0 {
		return kept, false, nil
	}

	for _, p := range points {
		if float64(p.Score) >= fallbackFloor && len(kept) < fallbackKeep {
			kept = append(kept, toMatch(p))
		}
	}
	if len(kept) > 0 {
		log.Printf("[rag] no results above %.2f, using %d fallback results (score >= %.2f)", cfg.MinScore, len(kept), fallbackFloor)
	}
	return kept, len(kept) > 0, nil
}

// UpsertVectors writes points in fixed-size batches, stamping each
// payload with the active namespace. Returns the number upserted.
func (s *Store) UpsertVectors(ctx context.Context, vectors []Vector) (int, error) {
	client, cfg, err := s.getClient()
	if err != nil {
		return 0, err
	}
	upserted := 0
	for i := 0; i < len(vectors); i += upsertBatchSize {
		end := i + upsertBatchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		points := make([]*qdrant.PointStruct, 0, end-i)
		for _, v := range vectors[i:end] {
			payload := make(map[string]*qdrant.Value, len(v.Payload)+1)
			for k, val := range v.Payload {
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
			}
			payload["namespace"] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: cfg.Namespace}}
			points = append(points, &qdrant.PointStruct{
				Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: v.ID}},
				Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: v.Values}}},
				Payload: payload,
			})
		}
		if _, err := client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: cfg.QdrantCollection,
			Points:         points,
		}); err != nil {
			return upserted, fmt.Errorf("upsert batch failed at %d: %w", i, err)
		}
		upserted += len(points)
		log.Printf("[rag] upserted %d/%d", upserted, len(vectors))
	}
	return upserted, nil
}

// DeleteNamespace removes every vector in the active namespace.
func (s *Store) DeleteNamespace(ctx context.Context) error {
	client, cfg, err := s.getClient()
	if err != nil {
		return err
	}
	_, err = client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: cfg.QdrantCollection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: namespaceFilter(cfg.Namespace)},
		},
	})
	if err != nil {
		return fmt.Errorf("namespace delete failed: %w", err)
	}
	return nil
}

// GetStats counts vectors in the active namespace.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	client, cfg, err := s.getClient()
	if err != nil {
		return Stats{}, err
	}
	count, err := client.Count(ctx, &qdrant.CountPoints{
		CollectionName: cfg.QdrantCollection,
		Filter:         namespaceFilter(cfg.Namespace),
	})
	if err != nil {
		return Stats{}, fmt.Errorf("stats count failed: %w", err)
	}
	return Stats{
		TotalVectors: count,
		Namespace:    cfg.Namespace,
		Collection:   cfg.QdrantCollection,
		Dimension:    Dimension,
	}, nil
}

func namespaceFilter(ns string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   "namespace",
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: ns}},
				},
			},
		}},
	}
}

func toMatch(p *qdrant.ScoredPoint) Match {
	m := Match{Score: math.Round(float64(p.Score)*1000) / 1000}
	if p.Id != nil {
		if u := p.Id.GetUuid(); u != "" {
			m.ID = u
		} else if n := p.Id.GetNum(); n != 0 {
			m.ID = fmt.Sprintf("%d", n)
		}
	}
	for k, v := range p.Payload {
		switch k {
		case "text":
			m.Text = v.GetStringValue()
		case "source":
			m.Source = v.GetStringValue()
		case "category":
			m.Category = v.GetStringValue()
		case "language":
			m.Language = v.GetStringValue()
		case "title":
			m.Title = v.GetStringValue()
		}
	}
	if m.Language == "" {
		m.Language = "en"
	}
	return m
}
