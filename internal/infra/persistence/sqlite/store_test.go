package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"clinicdesk/internal/infra/persistence/memory"
	"clinicdesk/pkg/domain"
)

func createPatient(ctx context.Context, store domain.PersistentStore, first string) (domain.Patient, error) {
	var created domain.Patient
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreatePatient(domain.Patient{FirstName: first, LastName: "Lee", DateOfBirth: "1990-02-03", Gender: "F", Phone: "555-0100"})
		return err
	})
	return created, err
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "clinic.db")
	store, err := NewStore(ctx, path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	patient, err := createPatient(ctx, store, "Persist")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(ctx, path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	doc := reloaded.ExportDocument()
	if len(doc.Patients) != 1 || doc.Patients[0].ID != patient.ID {
		t.Fatalf("expected reloaded patient %s, got %+v", patient.ID, doc.Patients)
	}
	if doc.SchemaVersion != memory.CurrentSchemaVersion {
		t.Fatalf("expected schema version %d, got %d", memory.CurrentSchemaVersion, doc.SchemaVersion)
	}

	var buckets int
	if err := reloaded.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&buckets); err != nil {
		t.Fatalf("count buckets: %v", err)
	}
	if buckets != len(memory.Buckets) {
		t.Fatalf("expected %d bucket rows, got %d", len(memory.Buckets), buckets)
	}
}

func TestSQLiteStoreQuarantinesUnreadableRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "clinic.db")
	store, err := NewStore(ctx, path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.DB().Exec(`INSERT INTO state(bucket,payload) VALUES('patients', '{broken')`); err != nil {
		t.Fatalf("seed garbage: %v", err)
	}
	_ = store.Close()

	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	reopened, err := NewStore(ctx, path, nil, WithMemoryOptions(memory.WithClock(func() time.Time { return now })))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	if n := len(reopened.ExportDocument().Patients); n != 0 {
		t.Fatalf("expected empty store, got %d patients", n)
	}
	if _, err := createPatient(ctx, reopened, "Fresh"); err != nil {
		t.Fatalf("create after fallback: %v", err)
	}

	var kept string
	err = reopened.DB().QueryRow(`SELECT payload FROM state_corrupt_20240115t090000z WHERE bucket = 'patients'`).Scan(&kept)
	if err != nil {
		t.Fatalf("read quarantined rows: %v", err)
	}
	if kept != "{broken" {
		t.Fatalf("expected the unreadable payload to survive the next commit, got %q", kept)
	}
}

func TestSQLiteStorePersistFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, filepath.Join(t.TempDir(), "clinic.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := createPatient(ctx, store, "Kept"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.DB().Exec(`DROP TABLE state`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	_, err = createPatient(ctx, store, "Lost")
	if !errors.Is(err, domain.ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if n := len(store.ExportDocument().Patients); n != 1 {
		t.Fatalf("expected 1 patient after failed persist, got %d", n)
	}
	_ = store.Close()
}
