// Package sqlite persists the clinic document to a SQLite database, one row
// per collection in the state table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"clinicdesk/internal/infra/persistence/memory"
	"clinicdesk/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "clinicdesk.db"

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

// Store keeps the document in memory and upserts every bucket in a single
// SQLite transaction before a commit becomes visible.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
	log  zerolog.Logger
}

// NewStore opens (creating when needed) the database at path and loads the
// stored document. Rows that cannot be decoded are copied to a
// state_corrupt_<stamp> table and the store starts empty.
func NewStore(ctx context.Context, path string, engine *domain.RulesEngine, opts ...Option) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{
		Store: memory.NewStore(engine, o.memory...),
		db:    db,
		path:  path,
		log:   o.log.With().Str("component", "sqlite").Str("path", path).Logger(),
	}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.SetCommitHook(s.persist)
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	payloads := make(map[string][]byte)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		payloads[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
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

func (s *Store) persist(ctx context.Context, doc memory.Document) (retErr error) {
	payloads, err := memory.EncodeBuckets(doc)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range memory.Buckets {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, payloads[bucket]); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	return tx.Commit()
}

// Close marks the store closed and releases the database handle.
func (s *Store) Close() error {
	_ = s.Store.Close()
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
