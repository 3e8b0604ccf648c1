package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/loader"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/data/db"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/observability"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/envutil"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/neo4jdb"
)

const (
	BackendNeo4j    = "neo4j"
	BackendPostgres = db.DriverPostgres
	BackendSQLite   = db.DriverSQLite
	BackendNone     = "none"
)

type Config struct {
	TriplesPath    string
	ParsePolicy    loader.ParsePolicy
	VocabularyPath string

	StoreBackend string
	StoreDSN     string
	StoreTimeout time.Duration
	Neo4j        neo4jdb.Config

	RedisAddr      string
	SearchCacheTTL time.Duration

	LogMode     string
	HTTPAddr    string
	CORSOrigins []string
	Version     string
	Otel        observability.OtelConfig
}

func LoadConfig(log *logger.Logger) Config {
	return LoadConfigFrom(envutil.FromEnv(), log)
}

// LoadConfigFrom reads settings from src. An unknown parse policy falls back
// to collect with a warning; everything else is checked by Validate.
func LoadConfigFrom(src envutil.Source, log *logger.Logger) Config {
	if log == nil {
		log = logger.Nop()
	}
	policy, err := loader.ParsePolicyFrom(src.String("TKG_PARSE_POLICY", ""))
	if err != nil {
		log.Warn("unknown parse policy; using collect", "error", err)
		policy = loader.PolicyCollect
	}
	cfg := Config{
		TriplesPath:    src.String("TKG_TRIPLES_PATH", "data/catalogue.nt"),
		ParsePolicy:    policy,
		VocabularyPath: src.String("TKG_VOCABULARY_YAML", ""),
		StoreBackend:   strings.ToLower(src.String("TKG_STORE_BACKEND", BackendNeo4j)),
		StoreDSN:       src.String("TKG_STORE_DSN", ""),
		StoreTimeout:   src.Seconds("TKG_STORE_TIMEOUT_SECONDS", 3*time.Second),
		Neo4j:          neo4jdb.ConfigFrom(src),
		RedisAddr:      src.String("REDIS_ADDR", ""),
		SearchCacheTTL: src.Seconds("TKG_SEARCH_CACHE_TTL_SECONDS", 10*time.Minute),
		LogMode:        src.String("LOG_MODE", "development"),
		HTTPAddr:       src.String("TKG_HTTP_ADDR", ":8080"),
		CORSOrigins:    src.List("TKG_CORS_ORIGINS", nil),
		Version:        src.String("TKG_VERSION", ""),
		Otel:           observability.OtelConfigFrom(src),
	}
	cfg.Otel.Version = cfg.Version
	return cfg
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.TriplesPath) == "" {
		return fmt.Errorf("config: TKG_TRIPLES_PATH is required")
	}
	switch c.StoreBackend {
	case BackendNeo4j:
		if strings.TrimSpace(c.Neo4j.URI) == "" {
			return fmt.Errorf("config: NEO4J_URI is required for the neo4j backend")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.StoreDSN) == "" {
			return fmt.Errorf("config: TKG_STORE_DSN is required for the postgres backend")
		}
	case BackendSQLite, BackendNone:
	default:
		return fmt.Errorf("config: unknown store backend %q (want neo4j, postgres, sqlite or none)", c.StoreBackend)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("config: store timeout must be positive")
	}
	return nil
}
