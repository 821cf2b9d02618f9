package reindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"zeb-assist-backend/internal/rag"
)

// Event is one progress report. A run emits an ordered sequence of
// events terminated by exactly one "done" or "error".
type Event struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Total   int    `json:"total,omitempty"`
	Count   int    `json:"count,omitempty"`
}

const (
	StepStart     = "start"
	StepChunks    = "chunks"
	StepEmbedding = "embedding"
	StepEmbedded  = "embedded"
	StepClearing  = "clearing"
	StepUpserting = "upserting"
	StepDone      = "done"
	StepError     = "error"
)

// Embedder is the batch embedding dependency (shared with retrieval).
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the write side of the vector service.
type VectorStore interface {
	DeleteNamespace(ctx context.Context) error
	UpsertVectors(ctx context.Context, vectors []rag.Vector) (int, error)
}

// Runner rebuilds the vector namespace from the source corpora. The
// job is not transactional: a failure after the clearing phase leaves
// the namespace partially empty, surfaced through the error event.
type Runner struct {
	dataDir  string
	embedder Embedder
	store    VectorStore
	running  sync.Mutex
}

func NewRunner(dataDir string, embedder Embedder, store VectorStore) *Runner {
	return &Runner{dataDir: dataDir, embedder: embedder, store: store}
}

// Run starts the job and returns its event stream. The channel is
// closed after the terminal event. Concurrent runs against the same
// process are rejected with a terminal error event, since two runs
// would race on the delete/upsert phases.
func (r *Runner) Run(ctx context.Context) <-chan Event {
	events := make(chan Event, 8)
	if !r.running.TryLock() {
		events <- Event{Step: StepError, Message: "a reindex run is already in progress"}
		close(events)
		return events
	}
	go func() {
		defer r.running.Unlock()
		defer close(events)
		r.run(ctx, events)
	}()
	return events
}

func (r *Runner) run(ctx context.Context, events chan<- Event) {
	fail := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		log.Printf("[reindex] %s", msg)
		events <- Event{Step: StepError, Message: msg}
	}

	events <- Event{Step: StepStart, Message: "Starting re-index..."}

	var posts []FAQPost
	if err := readJSON(filepath.Join(r.dataDir, "faq_posts.json"), &posts); err != nil {
		fail("could not load faq_posts.json: %v", err)
		return
	}
	var siteLines []string
	if err := readJSON(filepath.Join(r.dataDir, "site_faq.json"), &siteLines); err != nil {
		fail("could not load site_faq.json: %v", err)
		return
	}

	chunks := BuildChunks(posts, siteLines)
	events <- Event{Step: StepChunks, Message: fmt.Sprintf("Built %d chunks", len(chunks)), Total: len(chunks)}

	events <- Event{Step: StepEmbedding, Message: "Generating embeddings..."}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		fail("embedding failed: %v", err)
		return
	}
	events <- Event{Step: StepEmbedded, Message: fmt.Sprintf("Embedded %d vectors", len(embeddings))}

	events <- Event{Step: StepClearing, Message: "Clearing existing index..."}
	if err := r.store.DeleteNamespace(ctx); err != nil {
		fail("clearing failed: %v", err)
		return
	}

	events <- Event{Step: StepUpserting, Message: "Upserting vectors..."}
	vectors := make([]rag.Vector, len(chunks))
	for i, c := range chunks {
		vectors[i] = rag.Vector{
			ID:     chunkID(i, c),
			Values: embeddings[i],
			Payload: map[string]string{
				"text":     c.Text,
				"source":   c.Source,
				"category": c.Category,
				"language": c.Language,
				"title":    c.Title,
			},
		}
	}
	count, err := r.store.UpsertVectors(ctx, vectors)
	if err != nil {
		fail("upserting failed after %d vectors: %v", count, err)
		return
	}

	log.Printf("[reindex] indexed %d vectors", count)
	events <- Event{Step: StepDone, Message: fmt.Sprintf("Indexed %d vectors successfully", count), Count: count}
}

// chunkID derives a stable UUID from the chunk position and source,
// so re-runs over identical corpora produce identical point IDs.
func chunkID(i int, c Chunk) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s_%d", c.Source, i))).String()
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
