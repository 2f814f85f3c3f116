package core

import (
	"context"
	"fmt"
	"strings"

	"clinicdesk/pkg/domain"
)

// UpsertPrescription creates or updates the prescription of a Completed
// appointment. Creating one requires medications.
func (s *Service) UpsertPrescription(ctx context.Context, appointmentID string, fields domain.PrescriptionFields) (Prescription, error) {
	var saved Prescription
	err := s.mutate(ctx, "upsert_prescription", func(tx Transaction) error {
		if err := requireCompleted(tx, domain.EntityPrescription, appointmentID); err != nil {
			return err
		}
		var err error
		if existing, ok := tx.FindPrescriptionForAppointment(appointmentID); ok {
			saved, err = tx.UpdatePrescription(existing.ID, fields.Apply)
			return err
		}
		p := Prescription{AppointmentID: appointmentID}
		if err := fields.Apply(&p); err != nil {
			return err
		}
		saved, err = tx.CreatePrescription(p)
		return err
	})
	if err != nil {
		return Prescription{}, err
	}
	s.logged(ctx, "upsert_prescription", domain.EntityPrescription, saved.ID)
	return saved, nil
}

// GetPrescriptionForAppointment returns the appointment's prescription, if any.
func (s *Service) GetPrescriptionForAppointment(ctx context.Context, appointmentID string) (Prescription, bool) {
	var (
		p  Prescription
		ok bool
	)
	_ = s.read(ctx, "get_prescription", func(v TransactionView) error {
		p, ok = v.FindPrescriptionForAppointment(appointmentID)
		return nil
	})
	return p, ok
}

// DeletePrescription removes a prescription by id.
func (s *Service) DeletePrescription(ctx context.Context, id string) (bool, error) {
	return s.deleted(ctx, "delete_prescription", func(tx Transaction) (Cascade, error) {
		return single(domain.EntityPrescription, id), tx.DeletePrescription(id)
	})
}

// UpsertInvoice creates or updates the invoice of a Completed appointment.
// Creating one requires an amount; the description defaults to
// DefaultInvoiceItem, the status to Unpaid and the date to today.
func (s *Service) UpsertInvoice(ctx context.Context, appointmentID string, fields domain.InvoiceFields) (Invoice, error) {
	var saved Invoice
	err := s.mutate(ctx, "upsert_invoice", func(tx Transaction) error {
		if err := requireCompleted(tx, domain.EntityInvoice, appointmentID); err != nil {
			return err
		}
		var err error
		if existing, ok := tx.FindInvoiceForAppointment(appointmentID); ok {
			saved, err = tx.UpdateInvoice(existing.ID, fields.Apply)
			return err
		}
		if fields.Amount == nil {
			return domain.Required(domain.EntityInvoice, "amount")
		}
		inv := Invoice{AppointmentID: appointmentID}
		if err := fields.Apply(&inv); err != nil {
			return err
		}
		if strings.TrimSpace(inv.ItemDescription) == "" {
			inv.ItemDescription = DefaultInvoiceItem
		}
		saved, err = tx.CreateInvoice(inv)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	s.logged(ctx, "upsert_invoice", domain.EntityInvoice, saved.ID)
	return saved, nil
}

// GetInvoiceForAppointment returns the appointment's invoice, if any.
func (s *Service) GetInvoiceForAppointment(ctx context.Context, appointmentID string) (Invoice, bool) {
	var (
		inv Invoice
		ok  bool
	)
	_ = s.read(ctx, "get_invoice", func(v TransactionView) error {
		inv, ok = v.FindInvoiceForAppointment(appointmentID)
		return nil
	})
	return inv, ok
}

// DeleteInvoice removes an invoice by id.
func (s *Service) DeleteInvoice(ctx context.Context, id string) (bool, error) {
	return s.deleted(ctx, "delete_invoice", func(tx Transaction) (Cascade, error) {
		return single(domain.EntityInvoice, id), tx.DeleteInvoice(id)
	})
}

// single describes the deletion of one record with no dependents.
func single(entity domain.EntityType, id string) Cascade {
	return Cascade{Root: entity, RootID: id, Removed: map[domain.EntityType][]string{entity: {id}}}
}

// requireCompleted rejects charge writes before any field is looked at, so a
// gated write reports the appointment state rather than a field problem.
func requireCompleted(tx Transaction, entity domain.EntityType, appointmentID string) error {
	appt, ok := tx.FindAppointment(appointmentID)
	if !ok {
		return domain.NotFound(domain.EntityAppointment, appointmentID)
	}
	if appt.Status != domain.AppointmentCompleted {
		return &domain.InvalidStateTransitionError{
			Entity: entity,
			ID:     appointmentID,
			From:   appt.Status,
			Reason: fmt.Sprintf("%s requires a completed appointment", entity),
		}
	}
	return nil
}
