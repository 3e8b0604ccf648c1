package neo4jdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/envutil"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
)

type Config struct {
	URI         string
	User        string
	Password    string
	Database    string
	Timeout     time.Duration
	MaxPoolSize int
}

// ConfigFrom reads the NEO4J_* settings.
func ConfigFrom(src envutil.Source) Config {
	return Config{
		URI:         src.String("NEO4J_URI", "bolt://localhost:7687"),
		User:        src.String("NEO4J_USER", "neo4j"),
		Password:    src.String("NEO4J_PASSWORD", ""),
		Database:    src.String("NEO4J_DATABASE", ""),
		Timeout:     src.Seconds("NEO4J_TIMEOUT_SECONDS", 3*time.Second),
		MaxPoolSize: src.Int("NEO4J_MAX_POOL_SIZE", 50),
	}
}

type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	timeout  time.Duration
	log      *logger.Logger
}

// New builds a driver without contacting the server. Connectivity is checked
// separately with Verify so a down database never fails process start.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4jdb: logger required")
	}
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, fmt.Errorf("neo4jdb: missing uri")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	maxPool := cfg.MaxPoolSize
	if maxPool <= 0 {
		maxPool = 50
	}

	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(uri, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = maxPool
		c.SocketConnectTimeout = timeout
		c.ConnectionAcquisitionTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: init driver: %w", err)
	}

	return &Client{
		Driver:   driver,
		Database: strings.TrimSpace(cfg.Database),
		timeout:  timeout,
		log:      log.With("client", "Neo4jDB"),
	}, nil
}

// Verify checks connectivity within the configured timeout (or ctx's
// deadline, whichever is sooner).
func (c *Client) Verify(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return fmt.Errorf("neo4jdb: client closed")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.Driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4jdb: verify connectivity: %w", err)
	}
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}
