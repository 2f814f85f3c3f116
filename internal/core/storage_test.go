package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"clinicdesk/internal/infra/persistence/document"
)

func TestOpenPersistentStoreFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := StorageConfig{Dir: dir}

	store, err := OpenPersistentStore(ctx, cfg, nil)
	require.NoError(t, err)
	svc := NewService(store)
	p := mustPatient(t, svc, "Ann", "Lee")
	require.NoError(t, svc.Close())

	_, err = os.Stat(filepath.Join(dir, document.DefaultKey))
	require.NoError(t, err)

	reopened, err := OpenPersistentStore(ctx, cfg, nil)
	require.NoError(t, err)
	svc = NewService(reopened)
	t.Cleanup(func() { _ = svc.Close() })
	got, ok := svc.GetPatient(ctx, p.ID)
	require.True(t, ok)
	require.Equal(t, "Lee", got.LastName)
}

func TestOpenPersistentStoreSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "clinic.db")
	store, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageSQLite, SQLitePath: path}, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	svc := NewService(store)
	t.Cleanup(func() { _ = svc.Close() })
	mustPatient(t, svc, "Ann", "Lee")
	_, err = svc.Backup(ctx)
	require.ErrorIs(t, err, ErrBackupUnsupported)
}

func TestOpenPersistentStoreRejectsUnknownDriver(t *testing.T) {
	_, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: "floppy"}, nil)
	require.ErrorContains(t, err, "unknown storage driver floppy")
}

func TestServiceBackups(t *testing.T) {
	ctx := context.Background()
	store, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageMemory}, nil)
	require.NoError(t, err)
	svc := NewService(store)
	t.Cleanup(func() { _ = svc.Close() })
	mustPatient(t, svc, "Ann", "Lee")

	info, err := svc.Backup(ctx)
	require.NoError(t, err)
	require.Contains(t, info.Key, document.BackupPrefix)

	backups, err := svc.Backups(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	require.Equal(t, info.Key, backups[0].Key)

	removed, err := svc.PruneBackups(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{info.Key}, removed)

	_, err = NewInMemoryService(nil).Backups(ctx)
	require.ErrorIs(t, err, ErrBackupUnsupported)
}
