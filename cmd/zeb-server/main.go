package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/redis/go-redis/v9"

	"zeb-assist-backend/internal/config"
	"zeb-assist-backend/internal/db"
	"zeb-assist-backend/internal/llm"
	"zeb-assist-backend/internal/orchestrator"
	"zeb-assist-backend/internal/orders"
	"zeb-assist-backend/internal/rag"
	"zeb-assist-backend/internal/reindex"
	"zeb-assist-backend/internal/server"
	"zeb-assist-backend/internal/store"
)

func main() {
	boot, seed := config.Load()
	cfgStore := config.NewStore(seed).WithOverrides(config.NewOverrideFile(boot.OverridesFile))

	index, err := loadOrderIndex(boot)
	if err != nil {
		log.Fatalf("failed to build order index: %v", err)
	}

	prompts, err := llm.LoadPromptSpec(boot.PromptSpec)
	if err != nil {
		log.Fatalf("failed to load prompt spec: %v", err)
	}

	llmSvc := llm.New(cfgStore, prompts)
	embedder := rag.NewEmbedder(cfgStore)
	vectors := rag.NewStore(cfgStore)
	retriever := rag.NewRetriever(embedder, vectors, func() int { return cfgStore.Snapshot().TopK })
	orch := orchestrator.New(llmSvc, retriever, index)
	reindexer := reindex.NewRunner(boot.DataDir, embedder, vectors)

	history, err := newHistoryStore(boot)
	if err != nil {
		log.Fatalf("failed to create history store: %v", err)
	}

	s := server.New(boot, cfgStore, orch, history, vectors, reindexer)
	addr := ":" + boot.Port
	fmt.Printf("ZEB assist API listening on %s\n", addr)
	log.Fatal(http.ListenAndServe(addr, s.Router()))
}

func loadOrderIndex(boot config.Bootstrap) (*orders.Index, error) {
	if boot.DatabaseURL == "" {
		return orders.LoadIndex(boot.DataDir)
	}
	database, err := db.New(boot.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer database.Close()
	if err := database.EnsureSchema(); err != nil {
		return nil, err
	}
	byNumber, byEmail, err := database.LoadOrderIndex()
	if err != nil {
		return nil, err
	}
	log.Printf("[orders] loaded %d orders, %d emails from database", len(byNumber), len(byEmail))
	return orders.NewIndex(byNumber, byEmail), nil
}

func newHistoryStore(boot config.Bootstrap) (store.Store, error) {
	const maxHistory = 40
	switch store.Type(boot.SessionStore) {
	case store.TypeRedis:
		client := redis.NewClient(&redis.Options{Addr: boot.RedisAddr})
		return store.New(store.TypeRedis, maxHistory, store.WithRedisClient(client))
	default:
		return store.New(store.TypeMemory, maxHistory)
	}
}
