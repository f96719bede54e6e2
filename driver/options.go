package driver

import (
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
)

// Option configures a Driver.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	configurers []func(*config.Config)
	txOpts      *TransactionOptions
}

// WithLogger sets the driver logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithConfig adjusts the underlying neo4j driver configuration after the
// connection settings have been applied.
func WithConfig(fn func(*config.Config)) Option {
	return func(o *options) { o.configurers = append(o.configurers, fn) }
}

// WithTransactionOptions sets the options of transactions opened by Begin.
func WithTransactionOptions(opts *TransactionOptions) Option {
	return func(o *options) { o.txOpts = opts }
}

// TransactionOptions provides configuration for tuning transaction behavior,
// such as timeouts and metadata visible to server monitoring.
type TransactionOptions struct {
	timeout  time.Duration
	metadata map[string]any
}

// NewTransactionOptions creates a new set of transaction options with default values.
func NewTransactionOptions() *TransactionOptions {
	return &TransactionOptions{}
}

// SetTimeout sets the overall transaction timeout.
// If the transaction exceeds this duration, the server rolls it back.
func (o *TransactionOptions) SetTimeout(d time.Duration) *TransactionOptions {
	o.timeout = d
	return o
}

// SetMetadata attaches metadata to the transaction.
func (o *TransactionOptions) SetMetadata(md map[string]any) *TransactionOptions {
	o.metadata = md
	return o
}

func (o *TransactionOptions) configurers() []func(*neo4j.TransactionConfig) {
	if o == nil {
		return nil
	}
	var out []func(*neo4j.TransactionConfig)
	if o.timeout > 0 {
		out = append(out, neo4j.WithTxTimeout(o.timeout))
	}
	if len(o.metadata) > 0 {
		out = append(out, neo4j.WithTxMetadata(o.metadata))
	}
	return out
}
