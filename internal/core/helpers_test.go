package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clinicdesk/internal/infra/persistence/memory"
	"clinicdesk/pkg/domain"
)

var baseTime = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

// tickingClock advances one minute per call so created_at values differ.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	current := baseTime
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Minute)
		return current
	}
}

type saveCounter struct {
	mu    sync.Mutex
	saves int
	last  memory.Document
}

func (c *saveCounter) hook(_ context.Context, doc memory.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	c.last = doc
	return nil
}

func (c *saveCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func newTestService(t *testing.T, opts ...Option) (*Service, *saveCounter) {
	t.Helper()
	counter := &saveCounter{}
	store := memory.NewStore(DefaultRulesEngine(),
		memory.WithClock(tickingClock()),
		memory.WithCommitHook(counter.hook),
	)
	opts = append([]Option{WithClock(func() time.Time { return baseTime })}, opts...)
	svc := NewService(store, opts...)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, counter
}

func mustPatient(t *testing.T, svc *Service, first, last string) Patient {
	t.Helper()
	p, err := svc.CreatePatient(context.Background(), Patient{
		FirstName: first, LastName: last, DateOfBirth: "1990-02-03", Gender: "F", Phone: "555-0100",
	})
	require.NoError(t, err)
	return p
}

func mustDoctor(t *testing.T, svc *Service, name, specialty string) Doctor {
	t.Helper()
	d, err := svc.CreateDoctor(context.Background(), Doctor{Name: name, Specialty: specialty, Phone: "555-0200"})
	require.NoError(t, err)
	return d
}

func mustAppointment(t *testing.T, svc *Service, patientID, doctorID, date, at string) Appointment {
	t.Helper()
	a, err := svc.CreateAppointment(context.Background(), Appointment{
		PatientID: patientID, DoctorID: &doctorID, Date: date, Time: at, Reason: "checkup",
	})
	require.NoError(t, err)
	return a
}

func completed(t *testing.T, svc *Service, appt Appointment) Appointment {
	t.Helper()
	a, err := svc.UpdateAppointmentStatus(context.Background(), appt.ID, string(domain.AppointmentCompleted))
	require.NoError(t, err)
	return a
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
