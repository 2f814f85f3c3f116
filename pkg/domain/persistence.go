package domain

import (
	"context"
	"time"
)

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Deletes apply the cascade rules and
// report what they touched; a missing id yields ErrNotFound.
type Transaction interface {
	Snapshot() TransactionView
	Now() time.Time
	Actor() string

	CreatePatient(Patient) (Patient, error)
	UpdatePatient(id string, mutator func(*Patient) error) (Patient, error)
	DeletePatient(id string) (Cascade, error)
	FindPatient(id string) (Patient, bool)

	CreateDoctor(Doctor) (Doctor, error)
	UpdateDoctor(id string, mutator func(*Doctor) error) (Doctor, error)
	DeleteDoctor(id string) (Cascade, error)
	FindDoctor(id string) (Doctor, bool)

	CreateAppointment(Appointment) (Appointment, error)
	UpdateAppointment(id string, mutator func(*Appointment) error) (Appointment, error)
	DeleteAppointment(id string) (Cascade, error)
	FindAppointment(id string) (Appointment, bool)

	CreateNote(Note) (Note, error)
	UpdateNote(id string, mutator func(*Note) error) (Note, error)
	DeleteNote(id string) error

	CreatePrescription(Prescription) (Prescription, error)
	UpdatePrescription(id string, mutator func(*Prescription) error) (Prescription, error)
	DeletePrescription(id string) error
	FindPrescriptionForAppointment(appointmentID string) (Prescription, bool)

	CreateInvoice(Invoice) (Invoice, error)
	UpdateInvoice(id string, mutator func(*Invoice) error) (Invoice, error)
	DeleteInvoice(id string) error
	FindInvoiceForAppointment(appointmentID string) (Invoice, bool)
}

// TransactionView provides read-only access to a consistent copy of the data.
type TransactionView interface {
	ListPatients() []Patient
	ListDoctors() []Doctor
	ListAppointments() []Appointment
	ListNotes() []Note
	ListPrescriptions() []Prescription
	ListInvoices() []Invoice
	FindPatient(id string) (Patient, bool)
	FindDoctor(id string) (Doctor, bool)
	FindAppointment(id string) (Appointment, bool)
	FindNote(id string) (Note, bool)
	FindPrescriptionForAppointment(appointmentID string) (Prescription, bool)
	FindInvoiceForAppointment(appointmentID string) (Invoice, bool)
}

// PersistentStore is the abstraction the service layer works against. Every
// backend keeps the data in memory and flushes the whole document on commit.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	Close() error
}

// Cascade summarises the records a delete removed or detached.
type Cascade struct {
	Root     EntityType
	RootID   string
	Removed  map[EntityType][]string
	Detached []string
}

// Count returns how many records of the given type the cascade removed.
func (c Cascade) Count(entity EntityType) int { return len(c.Removed[entity]) }

// Total returns the number of dependent records removed, excluding the root.
func (c Cascade) Total() int {
	total := 0
	for entity, ids := range c.Removed {
		if entity == c.Root {
			continue
		}
		total += len(ids)
	}
	return total
}
