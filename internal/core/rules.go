package core

import (
	"context"
	"fmt"

	"clinicdesk/pkg/domain"
)

// DefaultRulesEngine returns an engine with the clinic's integrity rules registered.
func DefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(ReferentialIntegrityRule())
	engine.Register(SingleChargeRule())
	return engine
}

// ReferentialIntegrityRule blocks commits that leave an appointment without
// its patient, a note without its owner, or a prescription or invoice
// without its appointment. Only records touched by the transaction, or
// pointing at a record it deleted, are checked.
func ReferentialIntegrityRule() domain.Rule { return referentialIntegrityRule{} }

type referentialIntegrityRule struct{}

func (referentialIntegrityRule) Name() string { return "referential_integrity" }

func (r referentialIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := make(map[string]struct{})
	deleted := make(map[string]struct{})
	for _, change := range changes {
		if change.Action == domain.ActionDelete {
			if id := recordID(change.Before); id != "" {
				deleted[id] = struct{}{}
			}
			continue
		}
		if id := recordID(change.After); id != "" {
			touched[id] = struct{}{}
		}
	}
	relevant := func(id, ref string) bool {
		_, t := touched[id]
		_, d := deleted[ref]
		return t || d
	}

	var res domain.Result
	block := func(entity domain.EntityType, id, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule: r.Name(), Severity: domain.SeverityBlock, Message: msg, Entity: entity, EntityID: id,
		})
	}
	for _, a := range view.ListAppointments() {
		if relevant(a.ID, a.PatientID) {
			if _, ok := view.FindPatient(a.PatientID); !ok {
				block(domain.EntityAppointment, a.ID, fmt.Sprintf("patient %s does not exist", a.PatientID))
			}
		}
	}
	for _, n := range view.ListNotes() {
		if !relevant(n.ID, n.Owner.ID()) {
			continue
		}
		var ok bool
		switch n.Owner.Kind() {
		case domain.OwnerPatient:
			_, ok = view.FindPatient(n.Owner.ID())
		case domain.OwnerAppointment:
			_, ok = view.FindAppointment(n.Owner.ID())
		}
		if !ok {
			block(domain.EntityNote, n.ID, fmt.Sprintf("owner %s does not exist", n.Owner))
		}
	}
	for _, p := range view.ListPrescriptions() {
		if relevant(p.ID, p.AppointmentID) {
			if _, ok := view.FindAppointment(p.AppointmentID); !ok {
				block(domain.EntityPrescription, p.ID, fmt.Sprintf("appointment %s does not exist", p.AppointmentID))
			}
		}
	}
	for _, inv := range view.ListInvoices() {
		if relevant(inv.ID, inv.AppointmentID) {
			if _, ok := view.FindAppointment(inv.AppointmentID); !ok {
				block(domain.EntityInvoice, inv.ID, fmt.Sprintf("appointment %s does not exist", inv.AppointmentID))
			}
		}
	}
	return res, nil
}

// SingleChargeRule blocks a second prescription or invoice for one appointment.
func SingleChargeRule() domain.Rule { return singleChargeRule{} }

type singleChargeRule struct{}

func (singleChargeRule) Name() string { return "single_charge" }

func (r singleChargeRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var checkPrescriptions, checkInvoices bool
	for _, change := range changes {
		if change.Action == domain.ActionDelete {
			continue
		}
		switch change.Entity {
		case domain.EntityPrescription:
			checkPrescriptions = true
		case domain.EntityInvoice:
			checkInvoices = true
		}
	}

	var res domain.Result
	if checkPrescriptions {
		counts := make(map[string]int)
		for _, p := range view.ListPrescriptions() {
			counts[p.AppointmentID]++
			if counts[p.AppointmentID] == 2 {
				res.Violations = append(res.Violations, r.violation(domain.EntityPrescription, p.ID, p.AppointmentID))
			}
		}
	}
	if checkInvoices {
		counts := make(map[string]int)
		for _, inv := range view.ListInvoices() {
			counts[inv.AppointmentID]++
			if counts[inv.AppointmentID] == 2 {
				res.Violations = append(res.Violations, r.violation(domain.EntityInvoice, inv.ID, inv.AppointmentID))
			}
		}
	}
	return res, nil
}

func (r singleChargeRule) violation(entity domain.EntityType, id, appointmentID string) domain.Violation {
	return domain.Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityBlock,
		Message:  fmt.Sprintf("appointment %s already has a %s", appointmentID, entity),
		Entity:   entity,
		EntityID: id,
	}
}

func recordID(v any) string {
	if r, ok := v.(interface{ RecordID() string }); ok {
		return r.RecordID()
	}
	return ""
}
