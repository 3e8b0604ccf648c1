package app

import (
	"fmt"
	"strings"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/data/db"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/data/graph"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/data/repos"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/neo4jdb"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/rediscache"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/services"
)

var (
	_ services.Store = (*graph.AuthoringStore)(nil)
	_ services.Store = (*repos.Store)(nil)
)

type Clients struct {
	// Backend is nil when the store is switched off.
	Backend services.Store
	// Cache is nil when REDIS_ADDR is unset or Redis did not answer.
	Cache *rediscache.Cache
}

// wireClients builds the store backend and the search cache. Neither dials
// in a way that can fail startup: the adapter pings the store later
// and a dead Redis only disables caching.
func wireClients(cfg Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...", "store_backend", cfg.StoreBackend)

	var out Clients
	switch cfg.StoreBackend {
	case BackendNeo4j:
		client, err := neo4jdb.New(cfg.Neo4j, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init neo4j client: %w", err)
		}
		out.Backend = graph.NewAuthoringStore(client, log)
	case BackendPostgres, BackendSQLite:
		database, err := db.Open(cfg.StoreBackend, cfg.StoreDSN, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init %s database: %w", cfg.StoreBackend, err)
		}
		out.Backend = repos.NewStore(database, log)
	case BackendNone:
	default:
		return Clients{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if strings.TrimSpace(cfg.RedisAddr) != "" {
		cache, err := rediscache.New(cfg.RedisAddr, cfg.SearchCacheTTL, log)
		if err != nil {
			log.Warn("redis unavailable; search cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			out.Cache = cache
		}
	}
	return out, nil
}

// Close releases the cache. The backend belongs to the GraphStore wrapping it.
func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
}
