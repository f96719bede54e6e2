package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	"github.com/CaliLuke/go-ogm/ogm"
)

// Driver represents an open connection pool to a Neo4j server.
// It is used to open transactions and manage databases.
type Driver struct {
	drv      neo4j.DriverWithContext
	database string
	logger   *slog.Logger
	txOpts   *TransactionOptions

	mu     sync.Mutex
	closed bool
}

var _ ogm.Conn = (*Driver)(nil)

// Open creates a driver for the server described by cfg. No network traffic
// happens until the first transaction; call Verify to check connectivity
// up front.
func Open(cfg ogm.Neo4jConfig, opts ...Option) (*Driver, error) {
	if cfg.URI == "" {
		return nil, &DriverError{Message: "neo4j uri is required"}
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}
	drv, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *config.Config) {
		if cfg.MaxPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
		}
		if cfg.ConnectTimeout > 0 {
			c.SocketConnectTimeout = cfg.ConnectTimeout
		}
		for _, fn := range o.configurers {
			fn(c)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.URI, wrapError(err))
	}

	o.logger.Info("neo4j driver opened", slog.String("uri", cfg.URI), slog.String("database", cfg.Database))
	return &Driver{drv: drv, database: cfg.Database, logger: o.logger, txOpts: o.txOpts}, nil
}

// Verify checks that the server is reachable and the credentials are valid.
func (d *Driver) Verify(ctx context.Context) error {
	if !d.IsOpen() {
		return ErrNotConnected
	}
	return wrapError(d.drv.VerifyConnectivity(ctx))
}

// IsOpen checks if the driver has not been closed.
func (d *Driver) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed
}

// Close closes every pooled connection.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return wrapError(d.drv.Close(ctx))
}

// Begin opens a transaction on the configured database. The transaction
// owns its own driver session, released by Transaction.Close.
func (d *Driver) Begin(ctx context.Context, mode ogm.AccessMode) (ogm.Tx, error) {
	return d.BeginWithOptions(ctx, mode, d.txOpts)
}

// BeginWithOptions opens a transaction with the given options.
func (d *Driver) BeginWithOptions(ctx context.Context, mode ogm.AccessMode, opts *TransactionOptions) (*Transaction, error) {
	if !d.IsOpen() {
		return nil, ErrNotConnected
	}
	access := neo4j.AccessModeRead
	if mode == ogm.WriteAccess {
		access = neo4j.AccessModeWrite
	}
	sess := d.drv.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   access,
		DatabaseName: d.database,
	})
	tx, err := sess.BeginTransaction(ctx, opts.configurers()...)
	if err != nil {
		if cerr := sess.Close(ctx); cerr != nil {
			d.logger.Warn("closing session", slog.Any("error", cerr))
		}
		return nil, wrapError(err)
	}
	return &Transaction{sess: sess, tx: tx, mode: mode, logger: d.logger}, nil
}

// Databases returns a DatabaseManager for this connection.
func (d *Driver) Databases() *DatabaseManager {
	return &DatabaseManager{driver: d}
}
