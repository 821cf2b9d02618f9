package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Mask is the elision marker appended to credential prefixes on admin
// reads. A patched value still containing it means "do not change".
const Mask = "…"

// Bootstrap holds process-level settings that never change at runtime.
type Bootstrap struct {
	Port          string
	ClientOrigin  string
	AdminOrigin   string
	DataDir       string
	DatabaseURL   string
	SessionStore  string
	RedisAddr     string
	PromptSpec    string
	OverridesFile string
}

// Config holds the tunable fields and credentials read on every
// pipeline stage. Obtain copies via Store.Snapshot, never share one.
type Config struct {
	ChatKey          string  `json:"chatKey"`
	ChatModel        string  `json:"chatModel"`
	ChatBaseURL      string  `json:"chatBaseUrl"`
	EmbedKey         string  `json:"embedKey"`
	EmbedModel       string  `json:"embedModel"`
	QdrantURL        string  `json:"qdrantUrl"`
	QdrantKey        string  `json:"qdrantKey"`
	QdrantCollection string  `json:"qdrantCollection"`
	Namespace        string  `json:"namespace"`
	TopK             int     `json:"topK"`
	MinScore         float64 `json:"minScore"`
	AdminSecret      string  `json:"-"`
}

// Load reads bootstrap settings and the initial runtime config from
// the environment (.env honored when present).
func Load() (Bootstrap, Config) {
	_ = godotenv.Load()
	boot := Bootstrap{
		Port:          getEnvDefault("PORT", "5000"),
		ClientOrigin:  getEnvDefault("CLIENT_ORIGIN", "http://localhost:5173"),
		AdminOrigin:   getEnvDefault("ADMIN_ORIGIN", "http://localhost:5174"),
		DataDir:       getEnvDefault("DATA_DIR", "data"),
		DatabaseURL:   os.Getenv("DB_URL"),
		SessionStore:  getEnvDefault("SESSION_STORE", "memory"),
		RedisAddr:     getEnvDefault("REDIS_ADDR", "localhost:6379"),
		PromptSpec:    getEnvDefault("PROMPT_SPEC_FILE", "prompts/prompts.yaml"),
		OverridesFile: getEnvDefault("CONFIG_OVERRIDES_FILE", "data/config_overrides.json"),
	}
	cfg := Config{
		ChatKey:          os.Getenv("CHAT_API_KEY"),
		ChatModel:        getEnvDefault("CHAT_MODEL", "gpt-4o-mini"),
		ChatBaseURL:      os.Getenv("CHAT_BASE_URL"),
		EmbedKey:         os.Getenv("EMBED_API_KEY"),
		EmbedModel:       getEnvDefault("EMBED_MODEL", "text-embedding-3-large"),
		QdrantURL:        os.Getenv("QDRANT_URL"),
		QdrantKey:        os.Getenv("QDRANT_API_KEY"),
		QdrantCollection: getEnvDefault("QDRANT_COLLECTION", "zeb-faq"),
		Namespace:        getEnvDefault("QDRANT_NAMESPACE", "production"),
		TopK:             getEnvIntDefault("RAG_TOP_K", 5),
		MinScore:         getEnvFloatDefault("RAG_MIN_SCORE", 0.55),
		AdminSecret:      getEnvDefault("ADMIN_SECRET", "changeme"),
	}
	if cfg.ChatKey == "" {
		log.Println("warning: CHAT_API_KEY is not set; completion calls will fail until provided")
	}
	return boot, cfg
}

// Store is the process-wide runtime configuration. Patches and the
// invalidation callbacks they trigger run under one critical section,
// so dependents never observe swapped credentials with stale clients.
type Store struct {
	mu           sync.Mutex
	cfg          Config
	invalidators []func()
	overrides    *OverrideFile
}

func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// WithOverrides attaches a persistence file: previously saved admin
// overrides are layered over the seed config now, and future patches
// are written back.
func (s *Store) WithOverrides(f *OverrideFile) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = f
	saved, err := f.Read()
	if err != nil {
		log.Printf("[config] could not read overrides: %v", err)
		return s
	}
	if saved != nil {
		secret := s.cfg.AdminSecret
		s.cfg = *saved
		s.cfg.AdminSecret = secret
		log.Println("[config] loaded saved overrides")
	}
	return s
}

// Snapshot returns a copy of the current config.
func (s *Store) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// OnInvalidate registers a callback invoked synchronously after every
// applied patch. One registration per external-client owner.
func (s *Store) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidators = append(s.invalidators, fn)
}

// Patch is a partial update; nil fields are left untouched. The admin
// secret is deliberately not patchable.
type Patch struct {
	ChatKey          *string  `json:"chatKey"`
	ChatModel        *string  `json:"chatModel"`
	ChatBaseURL      *string  `json:"chatBaseUrl"`
	EmbedKey         *string  `json:"embedKey"`
	EmbedModel       *string  `json:"embedModel"`
	QdrantURL        *string  `json:"qdrantUrl"`
	QdrantKey        *string  `json:"qdrantKey"`
	QdrantCollection *string  `json:"qdrantCollection"`
	Namespace        *string  `json:"namespace"`
	TopK             *int     `json:"topK"`
	MinScore         *float64 `json:"minScore"`
}

// Apply merges the patch and fires invalidation callbacks. Credential
// fields whose value still carries the mask marker are skipped — the
// admin UI echoes masked values back on save.
func (s *Store) Apply(p Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	setKey(&s.cfg.ChatKey, p.ChatKey)
	setKey(&s.cfg.EmbedKey, p.EmbedKey)
	setKey(&s.cfg.QdrantKey, p.QdrantKey)
	setStr(&s.cfg.ChatModel, p.ChatModel)
	setStr(&s.cfg.ChatBaseURL, p.ChatBaseURL)
	setStr(&s.cfg.EmbedModel, p.EmbedModel)
	setStr(&s.cfg.QdrantURL, p.QdrantURL)
	setStr(&s.cfg.QdrantCollection, p.QdrantCollection)
	setStr(&s.cfg.Namespace, p.Namespace)
	if p.TopK != nil && *p.TopK > 0 {
		s.cfg.TopK = *p.TopK
	}
	if p.MinScore != nil && *p.MinScore >= 0 {
		s.cfg.MinScore = *p.MinScore
	}

	if s.overrides != nil {
		if err := s.overrides.Write(s.cfg); err != nil {
			log.Printf("[config] could not persist overrides: %v", err)
		}
	}
	for _, fn := range s.invalidators {
		fn()
	}
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// setKey applies a credential field unless the incoming value is the
// masked display form.
func setKey(dst *string, v *string) {
	if v == nil || strings.Contains(*v, Mask) {
		return
	}
	*dst = *v
}

// Masked renders a credential for display: a short prefix plus the
// elision marker, or empty when unset.
func Masked(key string, prefix int) string {
	if key == "" {
		return ""
	}
	if len(key) <= prefix {
		return key[:1] + Mask
	}
	return key[:prefix] + Mask
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloatDefault(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}
