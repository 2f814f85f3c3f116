package memory

import "clinicdesk/pkg/domain"

// cascade accumulates the records removed or detached by one delete.
type cascade struct {
	tx     *transaction
	result domain.Cascade
}

func (tx *transaction) newCascade(root domain.EntityType, id string) *cascade {
	return &cascade{tx: tx, result: domain.Cascade{
		Root:    root,
		RootID:  id,
		Removed: make(map[domain.EntityType][]string),
	}}
}

func (c *cascade) removed(entity domain.EntityType, id string, before any) {
	c.result.Removed[entity] = append(c.result.Removed[entity], id)
	c.tx.recordChange(domain.Change{Entity: entity, Action: domain.ActionDelete, Before: before})
}

// removeAppointmentChildren drops the notes, prescriptions and invoices owned
// by any appointment in ids.
func (c *cascade) removeAppointmentChildren(ids map[string]struct{}) {
	state := &c.tx.state
	var notes []domain.Note
	state.notes, notes = removeWhere(state.notes, func(n domain.Note) bool {
		_, owned := ids[n.Owner.ID()]
		return owned && n.Owner.Kind() == domain.OwnerAppointment
	})
	for _, n := range notes {
		c.removed(domain.EntityNote, n.ID, n)
	}
	var prescriptions []domain.Prescription
	state.prescriptions, prescriptions = removeWhere(state.prescriptions, func(p domain.Prescription) bool {
		_, owned := ids[p.AppointmentID]
		return owned
	})
	for _, p := range prescriptions {
		c.removed(domain.EntityPrescription, p.ID, p)
	}
	var invoices []domain.Invoice
	state.invoices, invoices = removeWhere(state.invoices, func(inv domain.Invoice) bool {
		_, owned := ids[inv.AppointmentID]
		return owned
	})
	for _, inv := range invoices {
		c.removed(domain.EntityInvoice, inv.ID, inv)
	}
}

// DeletePatient removes a patient, their appointments, every note,
// prescription and invoice owned by those appointments, and the patient's own
// notes.
func (tx *transaction) DeletePatient(id string) (domain.Cascade, error) {
	i := indexOf(tx.state.patients, id)
	if i < 0 {
		return domain.Cascade{}, domain.NotFound(domain.EntityPatient, id)
	}
	c := tx.newCascade(domain.EntityPatient, id)

	apptIDs := make(map[string]struct{})
	for _, a := range tx.state.appointments {
		if a.PatientID == id {
			apptIDs[a.ID] = struct{}{}
		}
	}

	var patientNotes []domain.Note
	tx.state.notes, patientNotes = removeWhere(tx.state.notes, func(n domain.Note) bool {
		return n.Owner.Is(domain.PatientOwner(id))
	})
	for _, n := range patientNotes {
		c.removed(domain.EntityNote, n.ID, n)
	}
	c.removeAppointmentChildren(apptIDs)

	var appts []domain.Appointment
	tx.state.appointments, appts = removeWhere(tx.state.appointments, func(a domain.Appointment) bool {
		_, ok := apptIDs[a.ID]
		return ok
	})
	for _, a := range appts {
		c.removed(domain.EntityAppointment, a.ID, a)
	}

	i = indexOf(tx.state.patients, id)
	patient := tx.state.patients[i]
	tx.state.patients = append(tx.state.patients[:i], tx.state.patients[i+1:]...)
	c.removed(domain.EntityPatient, id, patient)
	return c.result, nil
}

// DeleteAppointment removes an appointment with its notes, prescription and
// invoice.
func (tx *transaction) DeleteAppointment(id string) (domain.Cascade, error) {
	i := indexOf(tx.state.appointments, id)
	if i < 0 {
		return domain.Cascade{}, domain.NotFound(domain.EntityAppointment, id)
	}
	c := tx.newCascade(domain.EntityAppointment, id)
	c.removeAppointmentChildren(map[string]struct{}{id: {}})

	i = indexOf(tx.state.appointments, id)
	appt := tx.state.appointments[i]
	tx.state.appointments = append(tx.state.appointments[:i], tx.state.appointments[i+1:]...)
	c.removed(domain.EntityAppointment, id, appt)
	return c.result, nil
}

// DeleteDoctor removes a doctor. Appointments booked with the doctor are kept:
// their doctor reference is cleared and the doctor's name is recorded on them.
func (tx *transaction) DeleteDoctor(id string) (domain.Cascade, error) {
	i := indexOf(tx.state.doctors, id)
	if i < 0 {
		return domain.Cascade{}, domain.NotFound(domain.EntityDoctor, id)
	}
	doctor := tx.state.doctors[i]
	c := tx.newCascade(domain.EntityDoctor, id)

	for j, a := range tx.state.appointments {
		if a.DoctorID == nil || *a.DoctorID != id {
			continue
		}
		before := cloneAppointment(a)
		a.DoctorID = nil
		a.DoctorNameAtBooking = doctor.Name
		a.Base = tx.touched(a.Base)
		tx.state.appointments[j] = a
		c.result.Detached = append(c.result.Detached, a.ID)
		tx.recordChange(domain.Change{Entity: domain.EntityAppointment, Action: domain.ActionUpdate, Before: before, After: cloneAppointment(a)})
	}

	tx.state.doctors = append(tx.state.doctors[:i], tx.state.doctors[i+1:]...)
	c.removed(domain.EntityDoctor, id, doctor)
	return c.result, nil
}

// DeleteNote removes a single note.
func (tx *transaction) DeleteNote(id string) error {
	i := indexOf(tx.state.notes, id)
	if i < 0 {
		return domain.NotFound(domain.EntityNote, id)
	}
	note := tx.state.notes[i]
	tx.state.notes = append(tx.state.notes[:i], tx.state.notes[i+1:]...)
	tx.recordChange(domain.Change{Entity: domain.EntityNote, Action: domain.ActionDelete, Before: note})
	return nil
}

// DeletePrescription removes a prescription.
func (tx *transaction) DeletePrescription(id string) error {
	i := indexOf(tx.state.prescriptions, id)
	if i < 0 {
		return domain.NotFound(domain.EntityPrescription, id)
	}
	p := tx.state.prescriptions[i]
	tx.state.prescriptions = append(tx.state.prescriptions[:i], tx.state.prescriptions[i+1:]...)
	tx.recordChange(domain.Change{Entity: domain.EntityPrescription, Action: domain.ActionDelete, Before: p})
	return nil
}

// DeleteInvoice removes an invoice.
func (tx *transaction) DeleteInvoice(id string) error {
	i := indexOf(tx.state.invoices, id)
	if i < 0 {
		return domain.NotFound(domain.EntityInvoice, id)
	}
	inv := tx.state.invoices[i]
	tx.state.invoices = append(tx.state.invoices[:i], tx.state.invoices[i+1:]...)
	tx.recordChange(domain.Change{Entity: domain.EntityInvoice, Action: domain.ActionDelete, Before: inv})
	return nil
}
