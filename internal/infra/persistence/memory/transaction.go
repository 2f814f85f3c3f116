package memory

import (
	"fmt"
	"time"

	"clinicdesk/pkg/domain"
)

// transaction represents a mutation set applied to a cloned store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []domain.Change
	now     time.Time
	actor   string
}

var _ domain.Transaction = (*transaction)(nil)

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() domain.TransactionView {
	return newTransactionView(&tx.state)
}

// Now returns the timestamp applied to records written by the transaction.
func (tx *transaction) Now() time.Time { return tx.now }

// Actor returns the user the transaction writes on behalf of.
func (tx *transaction) Actor() string { return tx.actor }

func (tx *transaction) stamp() domain.Timestamp { return domain.NewTimestamp(tx.now) }

func (tx *transaction) assignID(entity domain.EntityType, id string, exists func(string) bool) (string, error) {
	if id == "" {
		id = tx.store.idFn()
	}
	if exists(id) {
		return "", fmt.Errorf("%s %q already exists", entity, id)
	}
	return id, nil
}

func (tx *transaction) FindPatient(id string) (domain.Patient, bool) { return tx.state.findPatient(id) }

func (tx *transaction) FindDoctor(id string) (domain.Doctor, bool) { return tx.state.findDoctor(id) }

func (tx *transaction) FindAppointment(id string) (domain.Appointment, bool) {
	return tx.state.findAppointment(id)
}

func (tx *transaction) FindPrescriptionForAppointment(appointmentID string) (domain.Prescription, bool) {
	return tx.state.prescriptionFor(appointmentID)
}

func (tx *transaction) FindInvoiceForAppointment(appointmentID string) (domain.Invoice, bool) {
	return tx.state.invoiceFor(appointmentID)
}

// CreatePatient stores a new patient.
func (tx *transaction) CreatePatient(p domain.Patient) (domain.Patient, error) {
	id, err := tx.assignID(domain.EntityPatient, p.ID, func(id string) bool { return indexOf(tx.state.patients, id) >= 0 })
	if err != nil {
		return domain.Patient{}, err
	}
	p.Base = domain.Base{ID: id, CreatedAt: tx.stamp()}
	if err := p.Validate(); err != nil {
		return domain.Patient{}, err
	}
	tx.state.patients = append(tx.state.patients, clonePatient(p))
	tx.recordChange(domain.Change{Entity: domain.EntityPatient, Action: domain.ActionCreate, After: clonePatient(p)})
	return clonePatient(p), nil
}

// UpdatePatient mutates a patient using the provided mutator function.
func (tx *transaction) UpdatePatient(id string, mutator func(*domain.Patient) error) (domain.Patient, error) {
	i := indexOf(tx.state.patients, id)
	if i < 0 {
		return domain.Patient{}, domain.NotFound(domain.EntityPatient, id)
	}
	before := clonePatient(tx.state.patients[i])
	current := clonePatient(before)
	if err := mutator(&current); err != nil {
		return domain.Patient{}, err
	}
	current.Base = tx.touched(before.Base)
	if err := current.Validate(); err != nil {
		return domain.Patient{}, err
	}
	tx.state.patients[i] = clonePatient(current)
	tx.recordChange(domain.Change{Entity: domain.EntityPatient, Action: domain.ActionUpdate, Before: before, After: clonePatient(current)})
	return current, nil
}

// CreateDoctor stores a new doctor.
func (tx *transaction) CreateDoctor(d domain.Doctor) (domain.Doctor, error) {
	id, err := tx.assignID(domain.EntityDoctor, d.ID, func(id string) bool { return indexOf(tx.state.doctors, id) >= 0 })
	if err != nil {
		return domain.Doctor{}, err
	}
	d.Base = domain.Base{ID: id, CreatedAt: tx.stamp()}
	if err := d.Validate(); err != nil {
		return domain.Doctor{}, err
	}
	tx.state.doctors = append(tx.state.doctors, cloneDoctor(d))
	tx.recordChange(domain.Change{Entity: domain.EntityDoctor, Action: domain.ActionCreate, After: cloneDoctor(d)})
	return cloneDoctor(d), nil
}

// UpdateDoctor mutates a doctor using the provided mutator function.
func (tx *transaction) UpdateDoctor(id string, mutator func(*domain.Doctor) error) (domain.Doctor, error) {
	i := indexOf(tx.state.doctors, id)
	if i < 0 {
		return domain.Doctor{}, domain.NotFound(domain.EntityDoctor, id)
	}
	before := cloneDoctor(tx.state.doctors[i])
	current := cloneDoctor(before)
	if err := mutator(&current); err != nil {
		return domain.Doctor{}, err
	}
	current.Base = tx.touched(before.Base)
	if err := current.Validate(); err != nil {
		return domain.Doctor{}, err
	}
	tx.state.doctors[i] = cloneDoctor(current)
	tx.recordChange(domain.Change{Entity: domain.EntityDoctor, Action: domain.ActionUpdate, Before: before, After: cloneDoctor(current)})
	return current, nil
}

// CreateAppointment books an appointment. New appointments always start
// Scheduled and must reference an existing patient and doctor.
func (tx *transaction) CreateAppointment(a domain.Appointment) (domain.Appointment, error) {
	id, err := tx.assignID(domain.EntityAppointment, a.ID, func(id string) bool { return indexOf(tx.state.appointments, id) >= 0 })
	if err != nil {
		return domain.Appointment{}, err
	}
	a.Base = domain.Base{ID: id, CreatedAt: tx.stamp()}
	a.Status = domain.AppointmentScheduled
	a.DoctorNameAtBooking = ""
	if err := a.Validate(); err != nil {
		return domain.Appointment{}, err
	}
	if !a.HasDoctor() {
		return domain.Appointment{}, domain.Required(domain.EntityAppointment, "doctor_id")
	}
	if err := tx.checkAppointmentRefs(a); err != nil {
		return domain.Appointment{}, err
	}
	tx.state.appointments = append(tx.state.appointments, cloneAppointment(a))
	tx.recordChange(domain.Change{Entity: domain.EntityAppointment, Action: domain.ActionCreate, After: cloneAppointment(a)})
	return cloneAppointment(a), nil
}

// UpdateAppointment mutates an appointment. Status changes must follow the
// appointment state machine; reference changes must point at live records.
func (tx *transaction) UpdateAppointment(id string, mutator func(*domain.Appointment) error) (domain.Appointment, error) {
	i := indexOf(tx.state.appointments, id)
	if i < 0 {
		return domain.Appointment{}, domain.NotFound(domain.EntityAppointment, id)
	}
	before := cloneAppointment(tx.state.appointments[i])
	current := cloneAppointment(before)
	if err := mutator(&current); err != nil {
		return domain.Appointment{}, err
	}
	current.Base = tx.touched(before.Base)
	if current.Status != before.Status && !before.Status.CanTransitionTo(current.Status) {
		return domain.Appointment{}, &domain.InvalidStateTransitionError{
			Entity: domain.EntityAppointment, ID: id, From: before.Status, To: current.Status,
		}
	}
	if err := current.Validate(); err != nil {
		return domain.Appointment{}, err
	}
	if current.PatientID != before.PatientID || !sameString(current.DoctorID, before.DoctorID) {
		if err := tx.checkAppointmentRefs(current); err != nil {
			return domain.Appointment{}, err
		}
	}
	tx.state.appointments[i] = cloneAppointment(current)
	tx.recordChange(domain.Change{Entity: domain.EntityAppointment, Action: domain.ActionUpdate, Before: before, After: cloneAppointment(current)})
	return current, nil
}

func (tx *transaction) checkAppointmentRefs(a domain.Appointment) error {
	if indexOf(tx.state.patients, a.PatientID) < 0 {
		return domain.NotFound(domain.EntityPatient, a.PatientID)
	}
	if a.HasDoctor() && indexOf(tx.state.doctors, *a.DoctorID) < 0 {
		return domain.NotFound(domain.EntityDoctor, *a.DoctorID)
	}
	return nil
}

// CreateNote attaches a note to a live patient or appointment.
func (tx *transaction) CreateNote(n domain.Note) (domain.Note, error) {
	id, err := tx.assignID(domain.EntityNote, n.ID, func(id string) bool { return indexOf(tx.state.notes, id) >= 0 })
	if err != nil {
		return domain.Note{}, err
	}
	n.Base = domain.Base{ID: id, CreatedAt: tx.stamp()}
	if n.Author == "" {
		n.Author = tx.actor
	}
	if err := n.Validate(); err != nil {
		return domain.Note{}, err
	}
	if err := tx.checkOwner(n.Owner); err != nil {
		return domain.Note{}, err
	}
	tx.state.notes = append(tx.state.notes, cloneNote(n))
	tx.recordChange(domain.Change{Entity: domain.EntityNote, Action: domain.ActionCreate, After: cloneNote(n)})
	return cloneNote(n), nil
}

// UpdateNote edits a note. The owner cannot change.
func (tx *transaction) UpdateNote(id string, mutator func(*domain.Note) error) (domain.Note, error) {
	i := indexOf(tx.state.notes, id)
	if i < 0 {
		return domain.Note{}, domain.NotFound(domain.EntityNote, id)
	}
	before := cloneNote(tx.state.notes[i])
	current := cloneNote(before)
	if err := mutator(&current); err != nil {
		return domain.Note{}, err
	}
	current.Base = tx.touched(before.Base)
	current.Owner = before.Owner
	if err := current.Validate(); err != nil {
		return domain.Note{}, err
	}
	tx.state.notes[i] = cloneNote(current)
	tx.recordChange(domain.Change{Entity: domain.EntityNote, Action: domain.ActionUpdate, Before: before, After: cloneNote(current)})
	return current, nil
}

func (tx *transaction) checkOwner(owner domain.Owner) error {
	switch owner.Kind() {
	case domain.OwnerPatient:
		if indexOf(tx.state.patients, owner.ID()) < 0 {
			return domain.NotFound(domain.EntityPatient, owner.ID())
		}
	case domain.OwnerAppointment:
		if indexOf(tx.state.appointments, owner.ID()) < 0 {
			return domain.NotFound(domain.EntityAppointment, owner.ID())
		}
	}
	return nil
}

// completedAppointment loads the appointment a prescription or invoice is
// written against and checks it is Completed.
func (tx *transaction) completedAppointment(entity domain.EntityType, appointmentID string) (domain.Appointment, error) {
	appt, ok := tx.state.findAppointment(appointmentID)
	if !ok {
		return domain.Appointment{}, domain.NotFound(domain.EntityAppointment, appointmentID)
	}
	if appt.Status != domain.AppointmentCompleted {
		return domain.Appointment{}, &domain.InvalidStateTransitionError{
			Entity: entity,
			ID:     appointmentID,
			From:   appt.Status,
			Reason: fmt.Sprintf("%s requires a completed appointment", entity),
		}
	}
	return appt, nil
}

// CreatePrescription writes the prescription for a completed appointment.
func (tx *transaction) CreatePrescription(p domain.Prescription) (domain.Prescription, error) {
	if p.AppointmentID == "" {
		return domain.Prescription{}, domain.Required(domain.EntityPrescription, "appointment_id")
	}
	appt, err := tx.completedAppointment(domain.EntityPrescription, p.AppointmentID)
	if err != nil {
		return domain.Prescription{}, err
	}
	if existing, ok := tx.state.prescriptionFor(p.AppointmentID); ok {
		return domain.Prescription{}, &domain.ValidationError{
			Entity: domain.EntityPrescription, Field: "appointment_id",
			Reason: fmt.Sprintf("already has prescription %q", existing.ID),
		}
	}
	id, err := tx.assignID(domain.EntityPrescription, p.ID, func(id string) bool { return indexOf(tx.state.prescriptions, id) >= 0 })
	if err != nil {
		return domain.Prescription{}, err
	}
	p.Base = domain.Base{ID: id, CreatedAt: tx.stamp(), CreatedBy: tx.actor}
	p.PatientID = appt.PatientID
	p.DoctorID = cloneStringPtr(appt.DoctorID)
	if err := p.Validate(); err != nil {
		return domain.Prescription{}, err
	}
	tx.state.prescriptions = append(tx.state.prescriptions, clonePrescription(p))
	tx.recordChange(domain.Change{Entity: domain.EntityPrescription, Action: domain.ActionCreate, After: clonePrescription(p)})
	return clonePrescription(p), nil
}

// UpdatePrescription edits a prescription. The appointment must still be
// Completed at the time of the write.
func (tx *transaction) UpdatePrescription(id string, mutator func(*domain.Prescription) error) (domain.Prescription, error) {
	i := indexOf(tx.state.prescriptions, id)
	if i < 0 {
		return domain.Prescription{}, domain.NotFound(domain.EntityPrescription, id)
	}
	before := clonePrescription(tx.state.prescriptions[i])
	appt, err := tx.completedAppointment(domain.EntityPrescription, before.AppointmentID)
	if err != nil {
		return domain.Prescription{}, err
	}
	current := clonePrescription(before)
	if err := mutator(&current); err != nil {
		return domain.Prescription{}, err
	}
	current.Base = tx.touched(before.Base)
	current.UpdatedBy = tx.actor
	current.AppointmentID = before.AppointmentID
	current.PatientID = appt.PatientID
	current.DoctorID = chargeDoctor(before.DoctorID, appt)
	if err := current.Validate(); err != nil {
		return domain.Prescription{}, err
	}
	tx.state.prescriptions[i] = clonePrescription(current)
	tx.recordChange(domain.Change{Entity: domain.EntityPrescription, Action: domain.ActionUpdate, Before: before, After: clonePrescription(current)})
	return current, nil
}

// CreateInvoice raises the invoice for a completed appointment. Status
// defaults to Unpaid and the invoice date to the transaction day.
func (tx *transaction) CreateInvoice(inv domain.Invoice) (domain.Invoice, error) {
	if inv.AppointmentID == "" {
		return domain.Invoice{}, domain.Required(domain.EntityInvoice, "appointment_id")
	}
	appt, err := tx.completedAppointment(domain.EntityInvoice, inv.AppointmentID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if existing, ok := tx.state.invoiceFor(inv.AppointmentID); ok {
		return domain.Invoice{}, &domain.ValidationError{
			Entity: domain.EntityInvoice, Field: "appointment_id",
			Reason: fmt.Sprintf("already has invoice %q", existing.ID),
		}
	}
	id, err := tx.assignID(domain.EntityInvoice, inv.ID, func(id string) bool { return indexOf(tx.state.invoices, id) >= 0 })
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.Base = domain.Base{ID: id, CreatedAt: tx.stamp(), CreatedBy: tx.actor}
	inv.PatientID = appt.PatientID
	inv.DoctorID = cloneStringPtr(appt.DoctorID)
	if inv.Status == "" {
		inv.Status = domain.InvoiceUnpaid
	}
	if inv.InvoiceDate == "" {
		inv.InvoiceDate = tx.now.Format(domain.DateLayout)
	}
	if err := inv.Validate(); err != nil {
		return domain.Invoice{}, err
	}
	tx.state.invoices = append(tx.state.invoices, cloneInvoice(inv))
	tx.recordChange(domain.Change{Entity: domain.EntityInvoice, Action: domain.ActionCreate, After: cloneInvoice(inv)})
	return cloneInvoice(inv), nil
}

// UpdateInvoice edits an invoice. The appointment must still be Completed at
// the time of the write.
func (tx *transaction) UpdateInvoice(id string, mutator func(*domain.Invoice) error) (domain.Invoice, error) {
	i := indexOf(tx.state.invoices, id)
	if i < 0 {
		return domain.Invoice{}, domain.NotFound(domain.EntityInvoice, id)
	}
	before := cloneInvoice(tx.state.invoices[i])
	appt, err := tx.completedAppointment(domain.EntityInvoice, before.AppointmentID)
	if err != nil {
		return domain.Invoice{}, err
	}
	current := cloneInvoice(before)
	if err := mutator(&current); err != nil {
		return domain.Invoice{}, err
	}
	current.Base = tx.touched(before.Base)
	current.UpdatedBy = tx.actor
	current.AppointmentID = before.AppointmentID
	current.PatientID = appt.PatientID
	current.DoctorID = chargeDoctor(before.DoctorID, appt)
	if err := current.Validate(); err != nil {
		return domain.Invoice{}, err
	}
	tx.state.invoices[i] = cloneInvoice(current)
	tx.recordChange(domain.Change{Entity: domain.EntityInvoice, Action: domain.ActionUpdate, Before: before, After: cloneInvoice(current)})
	return current, nil
}

// touched keeps the identity fields of an existing record and stamps the update.
func (tx *transaction) touched(b domain.Base) domain.Base {
	b.UpdatedAt = tx.stamp().Ptr()
	return b
}

// chargeDoctor keeps the doctor a charge was written under once the
// appointment has lost its doctor.
func chargeDoctor(previous *string, appt domain.Appointment) *string {
	if appt.HasDoctor() {
		return cloneStringPtr(appt.DoctorID)
	}
	return cloneStringPtr(previous)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
