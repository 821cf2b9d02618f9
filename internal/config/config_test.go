package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func seedConfig() Config {
	return Config{
		ChatKey:          "sk-chat-abcdef123456",
		ChatModel:        "gpt-4o-mini",
		EmbedKey:         "sk-embed-abcdef123456",
		EmbedModel:       "text-embedding-3-large",
		QdrantURL:        "https://qdrant.example:6334",
		QdrantKey:        "qd-abcdef123456",
		QdrantCollection: "zeb-faq",
		Namespace:        "production",
		TopK:             5,
		MinScore:         0.55,
		AdminSecret:      "s3cret",
	}
}

func TestPatchSkipsMaskedCredential(t *testing.T) {
	s := NewStore(seedConfig())
	masked := Masked(seedConfig().ChatKey, 8)
	if !strings.Contains(masked, Mask) {
		t.Fatalf("expected mask marker in %q", masked)
	}
	s.Apply(Patch{ChatKey: strPtr(masked)})
	if got := s.Snapshot().ChatKey; got != seedConfig().ChatKey {
		t.Fatalf("masked patch must not change the credential, got %q", got)
	}
}

func TestPatchAppliesFullCredentialAndInvalidates(t *testing.T) {
	s := NewStore(seedConfig())
	calls := 0
	s.OnInvalidate(func() { calls++ })
	s.OnInvalidate(func() { calls++ })

	s.Apply(Patch{ChatKey: strPtr("sk-chat-newkey999999")})
	if got := s.Snapshot().ChatKey; got != "sk-chat-newkey999999" {
		t.Fatalf("expected new key applied, got %q", got)
	}
	if calls != 2 {
		t.Fatalf("expected both invalidation callbacks fired, got %d", calls)
	}
}

func TestPatchTunables(t *testing.T) {
	s := NewStore(seedConfig())
	topK := 8
	minScore := 0.7
	s.Apply(Patch{TopK: &topK, MinScore: &minScore, Namespace: strPtr("staging")})
	cfg := s.Snapshot()
	if cfg.TopK != 8 || cfg.MinScore != 0.7 || cfg.Namespace != "staging" {
		t.Fatalf("unexpected config after patch: %+v", cfg)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore(seedConfig())
	snap := s.Snapshot()
	snap.ChatKey = "mutated"
	if s.Snapshot().ChatKey == "mutated" {
		t.Fatal("snapshot mutation leaked into the store")
	}
}

func TestMasked(t *testing.T) {
	if got := Masked("", 8); got != "" {
		t.Fatalf("expected empty mask for empty key, got %q", got)
	}
	if got := Masked("sk-chat-abcdef123456", 8); got != "sk-chat-"+Mask {
		t.Fatalf("unexpected masked value %q", got)
	}
	if got := Masked("ab", 8); got != "a"+Mask {
		t.Fatalf("short keys must still be elided, got %q", got)
	}
}

func TestOverridesPersistAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")
	f := NewOverrideFile(path)

	s := NewStore(seedConfig()).WithOverrides(f)
	topK := 9
	s.Apply(Patch{TopK: &topK})

	s2 := NewStore(seedConfig()).WithOverrides(f)
	cfg := s2.Snapshot()
	if cfg.TopK != 9 {
		t.Fatalf("expected persisted topK 9, got %d", cfg.TopK)
	}
	if cfg.AdminSecret != "s3cret" {
		t.Fatalf("admin secret must come from the seed, got %q", cfg.AdminSecret)
	}
}
