package ogm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
)

// AccessMode tells the connection whether a transaction may write.
type AccessMode int

const (
	// ReadAccess is for data retrieval only.
	ReadAccess AccessMode = iota
	// WriteAccess allows for data modification.
	WriteAccess
)

// String returns the mode name.
func (m AccessMode) String() string {
	if m == WriteAccess {
		return "write"
	}
	return "read"
}

// Row is one result row keyed by column name. Values are NodeRecord,
// RelRecord, scalars, or []any of those.
type Row map[string]any

// Executor runs one Cypher statement with its parameters.
type Executor interface {
	Execute(ctx context.Context, stmt string, params map[string]any) ([]Row, error)
}

// Tx is an explicit database transaction.
type Tx interface {
	Executor
	// Commit persists changes made in the transaction.
	Commit(ctx context.Context) error
	// Rollback discards changes made in the transaction.
	Rollback(ctx context.Context) error
	// Close releases resources associated with the transaction.
	Close(ctx context.Context) error
}

// Conn opens transactions against one database.
type Conn interface {
	Begin(ctx context.Context, mode AccessMode) (Tx, error)
	Close(ctx context.Context) error
}

// Session binds a connection to a registry and runs the statements built by
// proxies. A Session may be shared by goroutines; the Session handed to an
// Atomic callback is bound to one transaction and must not be.
type Session struct {
	conn     Conn
	tx       Tx
	reg      *Registry
	resolver *Resolver
	logger   *slog.Logger
	cache    bool

	// committed collects the AfterCommit callbacks of the bound transaction.
	committed *[]func()
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithRegistry resolves models against reg instead of the default registry.
func WithRegistry(reg *Registry) SessionOption {
	return func(s *Session) { s.reg = reg }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithCache enables or disables association caching. It is enabled by default.
func WithCache(enabled bool) SessionOption {
	return func(s *Session) { s.cache = enabled }
}

// NewSession creates a session over conn.
func NewSession(conn Conn, opts ...SessionOption) *Session {
	s := &Session{conn: conn, reg: globalRegistry, cache: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger()
	}
	s.resolver = NewResolver(s.reg)
	return s
}

// Registry returns the registry the session resolves models against.
func (s *Session) Registry() *Registry { return s.reg }

// Resolver returns the session's result resolver.
func (s *Session) Resolver() *Resolver { return s.resolver }

// InTransaction reports whether the session is bound to an Atomic block.
func (s *Session) InTransaction() bool { return s.tx != nil }

// Close closes the underlying connection.
func (s *Session) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

// Execute runs a statement in the session's transaction, or in a new write
// transaction committed on success.
func (s *Session) Execute(ctx context.Context, stmt string, params map[string]any) ([]Row, error) {
	return s.execute(ctx, WriteAccess, stmt, params)
}

// ExecuteRead runs a statement in the session's transaction, or in a new
// read transaction.
func (s *Session) ExecuteRead(ctx context.Context, stmt string, params map[string]any) ([]Row, error) {
	return s.execute(ctx, ReadAccess, stmt, params)
}

func (s *Session) execute(ctx context.Context, mode AccessMode, stmt string, params map[string]any) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: context cancelled: %w", mode, err)
	}
	if s.tx != nil {
		return s.tx.Execute(ctx, stmt, params)
	}

	tx, err := s.conn.Begin(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s transaction: %w", mode, err)
	}
	defer func() {
		if cerr := tx.Close(ctx); cerr != nil {
			s.logger.Warn("closing transaction", "error", cerr)
		}
	}()

	rows, err := tx.Execute(ctx, stmt, params)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return nil, multierror.Append(err, rbErr)
		}
		return nil, err
	}
	if mode == WriteAccess {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
	}
	return rows, nil
}

// run executes a compiled statement, recording metrics and wrapping executor
// failures in an ExecutionError.
func (s *Session) run(ctx context.Context, mode AccessMode, stmt *Statement, association string) ([]Row, error) {
	s.logger.Debug("executing statement",
		slog.String("association", association),
		slog.String("shape", string(stmt.Shape)),
		slog.String("statement", stmt.Text))

	start := time.Now()
	rows, err := s.execute(ctx, mode, stmt.Text, stmt.ParamMap())
	statementDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		statementsTotal.WithLabelValues(string(stmt.Shape), "error").Inc()
		return nil, &ExecutionError{Statement: stmt.Text, Association: association, Cause: err}
	}
	statementsTotal.WithLabelValues(string(stmt.Shape), "ok").Inc()
	return rows, nil
}

// Atomic runs fn in a transaction, committing when fn returns nil and rolling
// back otherwise. Inside an Atomic block the session passed to fn joins the
// enclosing transaction instead of starting another one.
//
// Association caches are bypassed inside Atomic so that rolled back reads
// never outlive the transaction.
func (s *Session) Atomic(ctx context.Context, fn func(tx *Session) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.conn.Begin(ctx, WriteAccess)
	if err != nil {
		return fmt.Errorf("unable to start transaction: %w", err)
	}
	defer func() {
		if cerr := tx.Close(ctx); cerr != nil {
			s.logger.Warn("closing transaction", "error", cerr)
		}
	}()

	var hooks []func()
	inner := *s
	inner.tx = tx
	inner.committed = &hooks

	if err := fn(&inner); err != nil {
		s.logger.Warn("rolling back transaction", "error", err)
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return multierror.Append(err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	for _, h := range hooks {
		h()
	}
	return nil
}

// AfterCommit runs fn once the session's transaction commits. Callbacks
// registered inside an Atomic block that rolls back are dropped. Outside a
// transaction fn runs immediately.
func (s *Session) AfterCommit(fn func()) {
	if s.committed == nil {
		fn()
		return
	}
	*s.committed = append(*s.committed, fn)
}
