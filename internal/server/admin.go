package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"zeb-assist-backend/internal/config"
)

// requireAdmin rejects requests lacking the shared admin secret before
// any work is done.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := r.Header.Get("X-Admin-Secret")
		if secret == "" || secret != s.cfg.Snapshot().AdminSecret {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

const keyPrefixLen = 8

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"chatModel":        cfg.ChatModel,
		"chatBaseUrl":      cfg.ChatBaseURL,
		"embedModel":       cfg.EmbedModel,
		"qdrantUrl":        cfg.QdrantURL,
		"qdrantCollection": cfg.QdrantCollection,
		"namespace":        cfg.Namespace,
		"topK":             cfg.TopK,
		"minScore":         cfg.MinScore,
		// Keys are masked; a patch echoing the mask leaves them unchanged
		"chatKey":   config.Masked(cfg.ChatKey, keyPrefixLen),
		"embedKey":  config.Masked(cfg.EmbedKey, keyPrefixLen),
		"qdrantKey": config.Masked(cfg.QdrantKey, keyPrefixLen),
	})
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var patch config.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.cfg.Apply(patch)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "Configuration updated. New API clients will be created on next request.",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	stats, err := s.vectors.GetStats(ctx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// handleReindex streams the job's progress as one JSON object per
// line, flushed per event; the connection closes after the terminal
// event.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")

	enc := json.NewEncoder(w)
	for ev := range s.reindexer.Run(r.Context()) {
		if err := enc.Encode(ev); err != nil {
			log.Printf("[reindex] client went away: %v", err)
			return
		}
		flusher.Flush()
	}
}
