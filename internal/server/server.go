package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"zeb-assist-backend/internal/config"
	"zeb-assist-backend/internal/rag"
	"zeb-assist-backend/internal/reindex"
	"zeb-assist-backend/internal/store"
	"zeb-assist-backend/internal/types"
)

// ChatHandler runs the conversation pipeline for one message.
type ChatHandler interface {
	Handle(ctx context.Context, message string, history []types.Message) types.ChatResponse
}

// StatsProvider reports vector index state for the admin console.
type StatsProvider interface {
	GetStats(ctx context.Context) (rag.Stats, error)
}

// ReindexRunner starts a reindex run and streams its progress.
type ReindexRunner interface {
	Run(ctx context.Context) <-chan reindex.Event
}

type Server struct {
	router    *chi.Mux
	boot      config.Bootstrap
	cfg       *config.Store
	orch      ChatHandler
	history   store.Store
	vectors   StatsProvider
	reindexer ReindexRunner
	limiter   *ipRateLimiter
}

func New(boot config.Bootstrap, cfg *config.Store, orch ChatHandler, history store.Store, vectors StatsProvider, reindexer ReindexRunner) *Server {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{boot.ClientOrigin, boot.AdminOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Admin-Secret", "X-Session-Id"},
		ExposedHeaders:   []string{"X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		router:    r,
		boot:      boot,
		cfg:       cfg,
		orch:      orch,
		history:   history,
		vectors:   vectors,
		reindexer: reindexer,
		limiter:   newIPRateLimiter(1, 5),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.With(s.limiter.middleware).Post("/api/chat", s.handleChat)
	s.router.Route("/api/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/config", s.handleGetConfig)
		r.Post("/config", s.handlePatchConfig)
		r.Get("/stats", s.handleStats)
		r.Post("/reindex", s.handleReindex)
	})
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	sid := s.getOrCreateSessionID(r, w, req.SessionID)

	// The client may carry its own history; otherwise use what the
	// session store remembers.
	history := req.History
	if history == nil && s.history != nil {
		var err error
		history, err = s.history.History(r.Context(), sid)
		if err != nil {
			log.Printf("[chat] history load failed for %s: %v", sid, err)
			history = nil
		}
	}

	resp := s.orch.Handle(r.Context(), message, history)
	resp.SessionID = sid

	if s.history != nil {
		if err := s.history.Append(r.Context(), sid,
			types.Message{Role: "user", Content: message},
			types.Message{Role: "assistant", Content: resp.Reply},
		); err != nil {
			log.Printf("[chat] history append failed for %s: %v", sid, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Session-Id", sid)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg.Snapshot()
	checks := map[string]bool{
		"chatKey":    len(cfg.ChatKey) > 10,
		"embedKey":   len(cfg.EmbedKey) > 10,
		"qdrantKey":  len(cfg.QdrantKey) > 10,
		"qdrantUrl":  cfg.QdrantURL != "",
		"collection": cfg.QdrantCollection != "",
	}
	status := "ok"
	code := http.StatusOK
	for _, ok := range checks {
		if !ok {
			status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     status,
		"checks":     checks,
		"model":      cfg.ChatModel,
		"collection": cfg.QdrantCollection,
		"namespace":  cfg.Namespace,
	})
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg})
}

// getOrCreateSessionID resolves the session from the request body,
// cookie or header, creating a fresh one when absent.
func (s *Server) getOrCreateSessionID(r *http.Request, w http.ResponseWriter, bodySID string) string {
	sid := strings.TrimSpace(bodySID)
	if sid == "" {
		if c, err := GetSessionCookie(r); err == nil && c != "" {
			sid = c
		}
	}
	if sid == "" {
		sid = r.Header.Get("X-Session-Id")
	}
	if sid == "" {
		sid = uuid.NewString()
		SetSessionCookie(w, sid)
	}
	return sid
}

// requestTimeout bounds admin calls that hit the vector service.
const requestTimeout = 10 * time.Second
