// Package postgres persists the clinic document to Postgres, one JSONB row per
// collection in the state table, while reusing the in-memory store for
// transactions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/rs/zerolog"

	"clinicdesk/internal/infra/persistence/memory"
	"clinicdesk/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/clinicdesk?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Option configures a Store.
type Option func(*options)

type options struct {
	log    zerolog.Logger
	memory []memory.Option
}

// WithLogger sets the logger used for load fallbacks.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMemoryOptions forwards options to the wrapped in-memory store.
func WithMemoryOptions(opts ...memory.Option) Option {
	return func(o *options) { o.memory = append(o.memory, opts...) }
}

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db  *sql.DB
	log zerolog.Logger
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// DefaultDSN), ensures the state table exists and hydrates the in-memory store.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine, opts ...Option) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &Store{
		Store: memory.NewStore(engine, o.memory...),
		db:    db,
		log:   o.log.With().Str("component", "postgres").Logger(),
	}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.SetCommitHook(s.persist)
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, s.db); err != nil {
		return err
	}
	payloads, err := loadBuckets(ctx, s.db)
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		s.log.Info().Msg("no document found, starting empty")
		return nil
	}
	doc, err := memory.DecodeBuckets(payloads)
	if err != nil {
		return s.quarantine(ctx, err)
	}
	return s.ImportDocument(doc)
}

// Close marks the store closed and releases the connection pool.
func (s *Store) Close() error {
	_ = s.Store.Close()
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

func loadBuckets(ctx context.Context, db *sql.DB) (map[string][]byte, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	payloads := make(map[string][]byte)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		payloads[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}
	return payloads, nil
}

// quarantine copies the unreadable rows aside so the next commit cannot
// overwrite them, then lets the store start empty.
func (s *Store) quarantine(ctx context.Context, cause error) error {
	table := memory.CorruptTable(s.NowFunc()())
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+table+` AS SELECT bucket, payload FROM state`); err != nil {
		return fmt.Errorf("quarantine unreadable state (%v): %w", cause, err)
	}
	s.log.Warn().Err(cause).Str("quarantined_to", table).Msg("stored document unreadable, starting empty")
	return nil
}

func (s *Store) persist(ctx context.Context, doc memory.Document) error {
	payloads, err := memory.EncodeBuckets(doc)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range memory.Buckets {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, payloads[bucket]); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
