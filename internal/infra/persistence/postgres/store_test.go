package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"clinicdesk/internal/infra/persistence/memory"
	"clinicdesk/pkg/domain"
)

const (
	createStateSQL = `CREATE TABLE IF NOT EXISTS state`
	selectStateSQL = `SELECT bucket, payload FROM state`
	upsertStateSQL = `INSERT INTO state\(bucket,payload\)`
)

var fixedNow = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func openMock(t *testing.T, rows *sqlmock.Rows, expect ...func(sqlmock.Sqlmock)) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	restore := OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		require.Equal(t, defaultDriver, driver)
		require.Equal(t, DefaultDSN, dsn)
		return db, nil
	})
	t.Cleanup(restore)

	mock.ExpectExec(createStateSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectStateSQL).WillReturnRows(rows)
	for _, e := range expect {
		e(mock)
	}

	store, err := NewStore(context.Background(), "", domain.NewRulesEngine(),
		WithMemoryOptions(memory.WithClock(func() time.Time { return fixedNow })))
	require.NoError(t, err)
	return store, mock
}

func emptyRows() *sqlmock.Rows { return sqlmock.NewRows([]string{"bucket", "payload"}) }

func createPatient(store domain.PersistentStore) error {
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreatePatient(domain.Patient{FirstName: "Ann", LastName: "Lee", DateOfBirth: "1990-02-03", Gender: "F", Phone: "555-0100"})
		return err
	})
	return err
}

func TestNewStoreStartsEmptyAndUpsertsEveryBucket(t *testing.T) {
	store, mock := openMock(t, emptyRows())
	require.Empty(t, store.ExportDocument().Patients)

	mock.ExpectBegin()
	for _, bucket := range memory.Buckets {
		mock.ExpectExec(upsertStateSQL).WithArgs(bucket, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()
	require.NoError(t, createPatient(store))

	mock.ExpectClose()
	require.NoError(t, store.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStoreLoadsBuckets(t *testing.T) {
	rows := emptyRows().
		AddRow(memory.BucketPatients, []byte(`[{"id":"p1","first_name":"Ann","last_name":"Lee","dob":"1990-02-03","gender":"F","phone":"1","created_at":"2024-01-15T09:00:00Z"}]`)).
		AddRow(memory.BucketUsers, []byte(`{"admin":{"role":"Admin"}}`)).
		AddRow(memory.BucketMeta, []byte(`{"schema_version":1}`)).
		AddRow("legacy_bucket", []byte(`[1,2,3]`))
	store, mock := openMock(t, rows)

	doc := store.ExportDocument()
	require.Len(t, doc.Patients, 1)
	require.Equal(t, "p1", doc.Patients[0].ID)
	require.Contains(t, doc.Users, "admin")
	require.NotNil(t, doc.Appointments)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStoreQuarantinesUndecodableRows(t *testing.T) {
	rows := emptyRows().AddRow(memory.BucketPatients, []byte(`{broken`))
	store, mock := openMock(t, rows, func(m sqlmock.Sqlmock) {
		m.ExpectExec(`CREATE TABLE IF NOT EXISTS state_corrupt_20240115t090000z AS SELECT bucket, payload FROM state`).
			WillReturnResult(sqlmock.NewResult(0, 0))
	})
	require.Empty(t, store.ExportDocument().Patients)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStoreFailsWhenQuarantineFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()

	mock.ExpectExec(createStateSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectStateSQL).WillReturnRows(emptyRows().AddRow(memory.BucketPatients, []byte(`{broken`)))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS state_corrupt_`).WillReturnError(errors.New("permission denied"))
	mock.ExpectClose()

	_, err = NewStore(context.Background(), "", nil)
	require.ErrorContains(t, err, "quarantine unreadable state")
	require.ErrorContains(t, err, "permission denied")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistFailureRollsBackAndKeepsState(t *testing.T) {
	store, mock := openMock(t, emptyRows())

	mock.ExpectBegin()
	mock.ExpectExec(upsertStateSQL).WithArgs(memory.BucketPatients, sqlmock.AnyArg()).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := createPatient(store)
	require.ErrorIs(t, err, domain.ErrPersist)
	require.ErrorContains(t, err, "upsert patients")
	require.Empty(t, store.ExportDocument().Patients)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStoreSurfacesSetupErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("no driver") })
	_, err := NewStore(context.Background(), "postgres://example", nil)
	restore()
	require.ErrorContains(t, err, "open postgres")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	mock.ExpectExec(createStateSQL).WillReturnError(errors.New("permission denied"))
	mock.ExpectClose()
	_, err = NewStore(context.Background(), "", nil)
	require.ErrorContains(t, err, "ensure state table")
	require.NoError(t, mock.ExpectationsWereMet())
}
