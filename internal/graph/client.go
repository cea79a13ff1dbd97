package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrNotConnected is returned when an operation is attempted before Start.
var ErrNotConnected = errors.New("not connected to graph database")

// Record is one result row keyed by the RETURN aliases of the query.
type Record = map[string]any

// Statement pairs a Cypher query with its parameters for batched writes.
type Statement struct {
	Query  string
	Params map[string]any
}

// Summary reports write counters for a statement or batch.
type Summary struct {
	NodesCreated     int
	NodesDeleted     int
	RelationsCreated int
	RelationsDeleted int
	PropertiesSet    int
}

// Client is the interface to the graph store. Queries are parameterised
// Cypher; batch writes use UNWIND over parameter lists. Implementations must
// be safe for concurrent use; the driver enforces its own connection ceiling.
type Client interface {
	// Start opens the connection and verifies connectivity.
	Start(ctx context.Context) error

	// Stop closes the connection.
	Stop(ctx context.Context) error

	// Run executes a read query and returns all rows.
	Run(ctx context.Context, query string, params map[string]any) ([]Record, error)

	// Write executes a single write statement in a managed transaction.
	Write(ctx context.Context, query string, params map[string]any) (Summary, error)

	// WriteBatch executes all statements in one managed transaction. Either
	// every statement commits or none does.
	WriteBatch(ctx context.Context, stmts []Statement) (Summary, error)

	// EnsureVectorIndex provisions a cosine vector index for (label, property).
	EnsureVectorIndex(ctx context.Context, label, property string, dimension int) error
}

// Config contains graph connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
	Timeout  time.Duration
	MaxPool  int
}

// DefaultConfig returns sensible defaults for a local instance.
func DefaultConfig() Config {
	return Config{
		URI:      "bolt://localhost:7687",
		Username: "neo4j",
		Timeout:  10 * time.Second,
		MaxPool:  50,
	}
}

// Neo4jClient implements Client on neo4j-go-driver.
type Neo4jClient struct {
	config Config
	logger *slog.Logger
	driver neo4j.DriverWithContext
}

// Option configures the Neo4j client.
type Option func(*Neo4jClient)

// WithConfig sets the connection configuration.
func WithConfig(cfg Config) Option {
	return func(c *Neo4jClient) {
		c.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Neo4jClient) {
		c.logger = logger
	}
}

// NewNeo4jClient creates an unconnected client; call Start before use.
func NewNeo4jClient(opts ...Option) *Neo4jClient {
	c := &Neo4jClient{
		config: DefaultConfig(),
		logger: slog.Default().With("component", "graph"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the driver and verifies connectivity.
func (c *Neo4jClient) Start(ctx context.Context) error {
	if c.driver != nil {
		return nil
	}

	auth := neo4j.BasicAuth(c.config.Username, c.config.Password, "")
	driver, err := neo4j.NewDriverWithContext(c.config.URI, auth, func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = c.config.MaxPool
		cfg.SocketConnectTimeout = c.config.Timeout
	})
	if err != nil {
		return fmt.Errorf("failed to create driver; %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return fmt.Errorf("failed to verify connectivity to %s; %w", c.config.URI, err)
	}

	c.driver = driver
	c.logger.Info("connected to graph store", "uri", c.config.URI, "database", c.config.Database)
	return nil
}

// Stop closes the driver.
func (c *Neo4jClient) Stop(ctx context.Context) error {
	if c.driver == nil {
		return nil
	}
	err := c.driver.Close(ctx)
	c.driver = nil
	return err
}

func (c *Neo4jClient) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: c.config.Database,
	})
}

// Run executes a read query and returns all rows keyed by RETURN alias.
func (c *Neo4jClient) Run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	if c.driver == nil {
		return nil, ErrNotConnected
	}

	session := c.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		var out []Record
		for res.Next(ctx) {
			rec := res.Record()
			row := make(Record, len(rec.Keys))
			for i, key := range rec.Keys {
				row[key] = rec.Values[i]
			}
			out = append(out, row)
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("read query failed; %w", err)
	}
	return rows.([]Record), nil
}

// Write executes a single write statement in a managed transaction.
func (c *Neo4jClient) Write(ctx context.Context, query string, params map[string]any) (Summary, error) {
	return c.WriteBatch(ctx, []Statement{{Query: query, Params: params}})
}

// WriteBatch executes every statement in one write transaction.
func (c *Neo4jClient) WriteBatch(ctx context.Context, stmts []Statement) (Summary, error) {
	if c.driver == nil {
		return Summary{}, ErrNotConnected
	}
	if len(stmts) == 0 {
		return Summary{}, nil
	}

	session := c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	summary, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		var total Summary
		for _, stmt := range stmts {
			res, err := tx.Run(ctx, stmt.Query, stmt.Params)
			if err != nil {
				return nil, err
			}
			sum, err := res.Consume(ctx)
			if err != nil {
				return nil, err
			}
			counters := sum.Counters()
			total.NodesCreated += counters.NodesCreated()
			total.NodesDeleted += counters.NodesDeleted()
			total.RelationsCreated += counters.RelationshipsCreated()
			total.RelationsDeleted += counters.RelationshipsDeleted()
			total.PropertiesSet += counters.PropertiesSet()
		}
		return total, nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("write failed; %w", err)
	}
	return summary.(Summary), nil
}
