package memory

import (
	"errors"
	"testing"

	"clinicdesk/pkg/domain"
)

// populate adds a second appointment, notes on both owners and the charges
// for the completed appointment.
func populate(t *testing.T, store *Store, patient domain.Patient, doctor domain.Doctor, completed domain.Appointment) domain.Appointment {
	t.Helper()
	var other domain.Appointment
	err := run(t, store, func(tx domain.Transaction) error {
		var err error
		other, err = tx.CreateAppointment(domain.Appointment{PatientID: patient.ID, DoctorID: strPtr(doctor.ID), Date: "2024-03-01", Time: "11:00"})
		if err != nil {
			return err
		}
		for _, owner := range []domain.Owner{domain.PatientOwner(patient.ID), domain.AppointmentOwner(completed.ID), domain.AppointmentOwner(other.ID)} {
			if _, err := tx.CreateNote(domain.Note{Owner: owner, Text: "note for " + owner.String()}); err != nil {
				return err
			}
		}
		if _, err := tx.CreatePrescription(domain.Prescription{AppointmentID: completed.ID, Medications: "Ibuprofen"}); err != nil {
			return err
		}
		_, err = tx.CreateInvoice(domain.Invoice{AppointmentID: completed.ID, Amount: 120})
		return err
	})
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	return other
}

func TestDeletePatientCascades(t *testing.T) {
	store := newTestStore()
	patient, doctor, completed := seed(t, store)
	populate(t, store, patient, doctor, completed)

	// An unrelated patient keeps their records.
	var bystander domain.Patient
	if err := run(t, store, func(tx domain.Transaction) error {
		var err error
		bystander, err = tx.CreatePatient(domain.Patient{FirstName: "Bo", LastName: "Kim", DateOfBirth: "1980-01-01", Gender: "M", Phone: "2"})
		if err != nil {
			return err
		}
		_, err = tx.CreateNote(domain.Note{Owner: domain.PatientOwner(bystander.ID), Text: "keep"})
		return err
	}); err != nil {
		t.Fatalf("bystander: %v", err)
	}

	var result domain.Cascade
	err := run(t, store, func(tx domain.Transaction) error {
		var err error
		result, err = tx.DeletePatient(patient.ID)
		return err
	})
	if err != nil {
		t.Fatalf("delete patient: %v", err)
	}
	if result.Count(domain.EntityAppointment) != 2 || result.Count(domain.EntityNote) != 3 ||
		result.Count(domain.EntityPrescription) != 1 || result.Count(domain.EntityInvoice) != 1 {
		t.Fatalf("unexpected cascade %+v", result.Removed)
	}

	doc := store.ExportDocument()
	for _, a := range doc.Appointments {
		if a.PatientID == patient.ID {
			t.Fatalf("appointment %s still references deleted patient", a.ID)
		}
	}
	for _, n := range doc.Notes {
		if n.Owner.Is(domain.PatientOwner(patient.ID)) || n.Owner.Kind() == domain.OwnerAppointment {
			t.Fatalf("note %s survived the cascade", n.ID)
		}
	}
	if len(doc.Prescriptions) != 0 || len(doc.Invoices) != 0 {
		t.Fatalf("charges survived the cascade: %+v %+v", doc.Prescriptions, doc.Invoices)
	}
	if len(doc.Patients) != 1 || doc.Patients[0].ID != bystander.ID || len(doc.Notes) != 1 {
		t.Fatalf("unrelated records must be kept: %+v", doc)
	}
	if len(doc.Doctors) != 1 {
		t.Fatalf("doctor must not be removed by a patient cascade")
	}
}

func TestDeleteAppointmentCascades(t *testing.T) {
	store := newTestStore()
	patient, doctor, completed := seed(t, store)
	other := populate(t, store, patient, doctor, completed)

	err := run(t, store, func(tx domain.Transaction) error {
		result, err := tx.DeleteAppointment(completed.ID)
		if err != nil {
			return err
		}
		if result.Total() != 3 {
			t.Fatalf("expected note, prescription and invoice removed, got %+v", result.Removed)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("delete appointment: %v", err)
	}
	doc := store.ExportDocument()
	if len(doc.Appointments) != 1 || doc.Appointments[0].ID != other.ID {
		t.Fatalf("unexpected appointments %+v", doc.Appointments)
	}
	if _, ok := newTransactionView(&store.state).FindPrescriptionForAppointment(completed.ID); ok {
		t.Fatalf("prescription survived")
	}
	if len(doc.Notes) != 2 || len(doc.Patients) != 1 {
		t.Fatalf("patient and sibling notes must remain: %+v", doc.Notes)
	}
}

func TestDeleteDoctorDetachesAppointments(t *testing.T) {
	store := newTestStore()
	patient, doctor, completed := seed(t, store)
	populate(t, store, patient, doctor, completed)

	err := run(t, store, func(tx domain.Transaction) error {
		result, err := tx.DeleteDoctor(doctor.ID)
		if err != nil {
			return err
		}
		if len(result.Detached) != 2 || result.Total() != 0 {
			t.Fatalf("unexpected doctor cascade %+v", result)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("delete doctor: %v", err)
	}
	doc := store.ExportDocument()
	if len(doc.Doctors) != 0 || len(doc.Appointments) != 2 {
		t.Fatalf("expected doctor removed and appointments kept: %+v", doc)
	}
	for _, a := range doc.Appointments {
		if a.DoctorID != nil || a.DoctorNameAtBooking != "Dr. Roe" {
			t.Fatalf("expected detached appointment with name snapshot, got %+v", a)
		}
	}
	if doc.Invoices[0].DoctorID == nil || *doc.Invoices[0].DoctorID != doctor.ID {
		t.Fatalf("invoice keeps the doctor it was raised under")
	}
}

func TestDeleteMissingRecords(t *testing.T) {
	store := newTestStore()
	err := run(t, store, func(tx domain.Transaction) error {
		if _, err := tx.DeletePatient("ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("patient: %v", err)
		}
		if _, err := tx.DeleteDoctor("ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("doctor: %v", err)
		}
		if _, err := tx.DeleteAppointment("ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("appointment: %v", err)
		}
		if err := tx.DeleteNote("ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("note: %v", err)
		}
		if err := tx.DeletePrescription("ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("prescription: %v", err)
		}
		if err := tx.DeleteInvoice("ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("invoice: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}
