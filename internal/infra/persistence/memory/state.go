package memory

import (
	"encoding/json"
	"fmt"

	"clinicdesk/pkg/domain"
)

// CurrentSchemaVersion is the document layout written by this package.
const CurrentSchemaVersion = 1

// Document is the complete persisted clinic dataset. Its top-level keys are
// the on-disk contract shared by every backend.
type Document struct {
	SchemaVersion int                        `json:"schema_version"`
	Patients      []domain.Patient           `json:"patients"`
	Doctors       []domain.Doctor            `json:"doctors"`
	Appointments  []domain.Appointment       `json:"appointments"`
	Notes         []domain.Note              `json:"medical_notes"`
	Prescriptions []domain.Prescription      `json:"prescriptions"`
	Invoices      []domain.Invoice           `json:"invoices"`
	Users         map[string]json.RawMessage `json:"users"`
}

// EmptyDocument returns a fresh document with every collection present.
func EmptyDocument() Document {
	doc, _ := MigrateDocument(Document{})
	return doc
}

// migration upgrades a document from version From to From+1.
type migration struct {
	From  int
	Apply func(*Document)
}

var migrations = []migration{
	// v0 documents predate schema_version and may omit whole collections.
	{From: 0, Apply: backfillCollections},
}

// MigrateDocument runs the versioned migrations once and backfills any
// collection missing from the document. Documents written by a newer schema
// are rejected so they are never overwritten with a lossy copy.
func MigrateDocument(doc Document) (Document, error) {
	if doc.SchemaVersion > CurrentSchemaVersion {
		return Document{}, fmt.Errorf("document schema version %d is newer than supported version %d", doc.SchemaVersion, CurrentSchemaVersion)
	}
	for _, m := range migrations {
		if doc.SchemaVersion == m.From {
			m.Apply(&doc)
			doc.SchemaVersion = m.From + 1
		}
	}
	backfillCollections(&doc)
	return doc, nil
}

func backfillCollections(doc *Document) {
	if doc.Patients == nil {
		doc.Patients = []domain.Patient{}
	}
	if doc.Doctors == nil {
		doc.Doctors = []domain.Doctor{}
	}
	if doc.Appointments == nil {
		doc.Appointments = []domain.Appointment{}
	}
	if doc.Notes == nil {
		doc.Notes = []domain.Note{}
	}
	if doc.Prescriptions == nil {
		doc.Prescriptions = []domain.Prescription{}
	}
	if doc.Invoices == nil {
		doc.Invoices = []domain.Invoice{}
	}
	if doc.Users == nil {
		doc.Users = map[string]json.RawMessage{}
	}
}

type memoryState struct {
	patients      []domain.Patient
	doctors       []domain.Doctor
	appointments  []domain.Appointment
	notes         []domain.Note
	prescriptions []domain.Prescription
	invoices      []domain.Invoice
	users         map[string]json.RawMessage
}

func newMemoryState() memoryState {
	return memoryStateFromDocument(EmptyDocument())
}

func memoryStateFromDocument(doc Document) memoryState {
	return memoryState{
		patients:      cloneSlice(doc.Patients, clonePatient),
		doctors:       cloneSlice(doc.Doctors, cloneDoctor),
		appointments:  cloneSlice(doc.Appointments, cloneAppointment),
		notes:         cloneSlice(doc.Notes, cloneNote),
		prescriptions: cloneSlice(doc.Prescriptions, clonePrescription),
		invoices:      cloneSlice(doc.Invoices, cloneInvoice),
		users:         cloneUsers(doc.Users),
	}
}

func documentFromMemoryState(state memoryState) Document {
	return Document{
		SchemaVersion: CurrentSchemaVersion,
		Patients:      cloneSlice(state.patients, clonePatient),
		Doctors:       cloneSlice(state.doctors, cloneDoctor),
		Appointments:  cloneSlice(state.appointments, cloneAppointment),
		Notes:         cloneSlice(state.notes, cloneNote),
		Prescriptions: cloneSlice(state.prescriptions, clonePrescription),
		Invoices:      cloneSlice(state.invoices, cloneInvoice),
		Users:         cloneUsers(state.users),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		patients:      cloneSlice(s.patients, clonePatient),
		doctors:       cloneSlice(s.doctors, cloneDoctor),
		appointments:  cloneSlice(s.appointments, cloneAppointment),
		notes:         cloneSlice(s.notes, cloneNote),
		prescriptions: cloneSlice(s.prescriptions, clonePrescription),
		invoices:      cloneSlice(s.invoices, cloneInvoice),
		users:         cloneUsers(s.users),
	}
}

func cloneSlice[T any](items []T, cloneFn func(T) T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, cloneFn(item))
	}
	return out
}

func cloneUsers(users map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(users))
	for k, v := range users {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func cloneBase(b domain.Base) domain.Base {
	if b.UpdatedAt != nil {
		b.UpdatedAt = b.UpdatedAt.Ptr()
	}
	return b
}

func cloneStringPtr(v *string) *string {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func clonePatient(p domain.Patient) domain.Patient {
	p.Base = cloneBase(p.Base)
	return p
}

func cloneDoctor(d domain.Doctor) domain.Doctor {
	d.Base = cloneBase(d.Base)
	return d
}

func cloneAppointment(a domain.Appointment) domain.Appointment {
	a.Base = cloneBase(a.Base)
	a.DoctorID = cloneStringPtr(a.DoctorID)
	return a
}

func cloneNote(n domain.Note) domain.Note {
	n.Base = cloneBase(n.Base)
	return n
}

func clonePrescription(p domain.Prescription) domain.Prescription {
	p.Base = cloneBase(p.Base)
	p.DoctorID = cloneStringPtr(p.DoctorID)
	return p
}

func cloneInvoice(i domain.Invoice) domain.Invoice {
	i.Base = cloneBase(i.Base)
	i.DoctorID = cloneStringPtr(i.DoctorID)
	return i
}

type record interface {
	RecordID() string
}

func indexOf[T record](items []T, id string) int {
	for i, item := range items {
		if item.RecordID() == id {
			return i
		}
	}
	return -1
}

// removeWhere splits items into the kept and the matching ones, reusing the
// backing array for the kept items.
func removeWhere[T record](items []T, match func(T) bool) ([]T, []T) {
	kept := items[:0]
	var removed []T
	for _, item := range items {
		if match(item) {
			removed = append(removed, item)
			continue
		}
		kept = append(kept, item)
	}
	return kept, removed
}
