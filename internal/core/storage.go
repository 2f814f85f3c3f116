package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"clinicdesk/internal/blob"
	"clinicdesk/internal/infra/persistence/document"
	"clinicdesk/internal/infra/persistence/postgres"
	"clinicdesk/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageFile     StorageDriver = "file"     // JSON document on the local filesystem
	StorageS3       StorageDriver = "s3"       // JSON document in an S3 bucket
	StorageMemory   StorageDriver = "memory"   // in-process only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and configures the backend opened by OpenPersistentStore.
type StorageConfig struct {
	Driver      StorageDriver
	Dir         string
	Document    string
	SQLitePath  string
	PostgresDSN string
	S3          blob.S3Config
	Log         zerolog.Logger
}

// OpenPersistentStore opens the backend named by cfg.Driver (default file)
// and loads the stored document.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	if engine == nil {
		engine = DefaultRulesEngine()
	}
	driver := cfg.Driver
	if driver == "" {
		driver = StorageFile
	}
	var (
		store PersistentStore
		err   error
	)
	switch driver {
	case StorageFile, StorageS3, StorageMemory:
		blobs, berr := openBlobs(ctx, driver, cfg)
		if berr != nil {
			return nil, berr
		}
		store, err = nonNil(document.NewStore(ctx, blobs, cfg.Document, engine, document.WithLogger(cfg.Log)))
	case StorageSQLite:
		store, err = nonNil(sqlite.NewStore(ctx, cfg.SQLitePath, engine, sqlite.WithLogger(cfg.Log)))
	case StoragePostgres:
		store, err = nonNil(postgres.NewStore(ctx, cfg.PostgresDSN, engine, postgres.WithLogger(cfg.Log)))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", driver, err)
	}
	return store, nil
}

// nonNil avoids wrapping a typed nil pointer in the interface.
func nonNil[T PersistentStore](store T, err error) (PersistentStore, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openBlobs(ctx context.Context, driver StorageDriver, cfg StorageConfig) (blob.Store, error) {
	switch driver {
	case StorageS3:
		return blob.Open(ctx, blob.Config{Driver: blob.DriverS3, S3: cfg.S3})
	case StorageMemory:
		return blob.Open(ctx, blob.Config{Driver: blob.DriverMemory})
	default:
		return blob.Open(ctx, blob.Config{Driver: blob.DriverFilesystem, FSRoot: cfg.Dir})
	}
}

// ErrBackupUnsupported is returned when the store cannot write backups.
var ErrBackupUnsupported = errors.New("storage backend does not support backups")

// BackupStore is implemented by backends that keep timestamped document copies.
type BackupStore interface {
	Backup(ctx context.Context) (blob.Info, error)
	Backups(ctx context.Context) ([]blob.Info, error)
	PruneBackups(ctx context.Context, keep int) ([]string, error)
}

// Backup copies the current document to a timestamped key.
func (s *Service) Backup(ctx context.Context) (blob.Info, error) {
	b, ok := s.store.(BackupStore)
	if !ok {
		return blob.Info{}, ErrBackupUnsupported
	}
	var info blob.Info
	err := s.timed(ctx, "backup", func() error {
		var err error
		info, err = b.Backup(ctx)
		return err
	})
	return info, err
}

// Backups lists the stored document copies, oldest first.
func (s *Service) Backups(ctx context.Context) ([]blob.Info, error) {
	b, ok := s.store.(BackupStore)
	if !ok {
		return nil, ErrBackupUnsupported
	}
	var infos []blob.Info
	err := s.timed(ctx, "list_backups", func() error {
		var err error
		infos, err = b.Backups(ctx)
		return err
	})
	return infos, err
}

// PruneBackups keeps the newest keep document copies and deletes the rest.
func (s *Service) PruneBackups(ctx context.Context, keep int) ([]string, error) {
	b, ok := s.store.(BackupStore)
	if !ok {
		return nil, ErrBackupUnsupported
	}
	var removed []string
	err := s.timed(ctx, "prune_backups", func() error {
		var err error
		removed, err = b.PruneBackups(ctx, keep)
		return err
	})
	return removed, err
}
