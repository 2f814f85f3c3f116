package memory

import "clinicdesk/pkg/domain"

// transactionView exposes a read-only snapshot of a state to rules and readers.
type transactionView struct {
	state *memoryState
}

var _ domain.TransactionView = transactionView{}

func newTransactionView(state *memoryState) domain.TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListPatients() []domain.Patient {
	return cloneSlice(v.state.patients, clonePatient)
}

func (v transactionView) ListDoctors() []domain.Doctor {
	return cloneSlice(v.state.doctors, cloneDoctor)
}

func (v transactionView) ListAppointments() []domain.Appointment {
	return cloneSlice(v.state.appointments, cloneAppointment)
}

func (v transactionView) ListNotes() []domain.Note {
	return cloneSlice(v.state.notes, cloneNote)
}

func (v transactionView) ListPrescriptions() []domain.Prescription {
	return cloneSlice(v.state.prescriptions, clonePrescription)
}

func (v transactionView) ListInvoices() []domain.Invoice {
	return cloneSlice(v.state.invoices, cloneInvoice)
}

func (v transactionView) FindPatient(id string) (domain.Patient, bool) {
	return v.state.findPatient(id)
}

func (v transactionView) FindDoctor(id string) (domain.Doctor, bool) {
	return v.state.findDoctor(id)
}

func (v transactionView) FindAppointment(id string) (domain.Appointment, bool) {
	return v.state.findAppointment(id)
}

func (v transactionView) FindNote(id string) (domain.Note, bool) {
	return v.state.findNote(id)
}

func (v transactionView) FindPrescriptionForAppointment(appointmentID string) (domain.Prescription, bool) {
	return v.state.prescriptionFor(appointmentID)
}

func (v transactionView) FindInvoiceForAppointment(appointmentID string) (domain.Invoice, bool) {
	return v.state.invoiceFor(appointmentID)
}

func (s *memoryState) findPatient(id string) (domain.Patient, bool) {
	if i := indexOf(s.patients, id); i >= 0 {
		return clonePatient(s.patients[i]), true
	}
	return domain.Patient{}, false
}

func (s *memoryState) findDoctor(id string) (domain.Doctor, bool) {
	if i := indexOf(s.doctors, id); i >= 0 {
		return cloneDoctor(s.doctors[i]), true
	}
	return domain.Doctor{}, false
}

func (s *memoryState) findAppointment(id string) (domain.Appointment, bool) {
	if i := indexOf(s.appointments, id); i >= 0 {
		return cloneAppointment(s.appointments[i]), true
	}
	return domain.Appointment{}, false
}

func (s *memoryState) findNote(id string) (domain.Note, bool) {
	if i := indexOf(s.notes, id); i >= 0 {
		return cloneNote(s.notes[i]), true
	}
	return domain.Note{}, false
}

func (s *memoryState) prescriptionFor(appointmentID string) (domain.Prescription, bool) {
	for _, p := range s.prescriptions {
		if p.AppointmentID == appointmentID {
			return clonePrescription(p), true
		}
	}
	return domain.Prescription{}, false
}

func (s *memoryState) invoiceFor(appointmentID string) (domain.Invoice, bool) {
	for _, inv := range s.invoices {
		if inv.AppointmentID == appointmentID {
			return cloneInvoice(inv), true
		}
	}
	return domain.Invoice{}, false
}
