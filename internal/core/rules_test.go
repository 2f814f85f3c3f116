package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"clinicdesk/pkg/domain"
)

type fakeView struct {
	patients      []domain.Patient
	doctors       []domain.Doctor
	appointments  []domain.Appointment
	notes         []domain.Note
	prescriptions []domain.Prescription
	invoices      []domain.Invoice
}

func (v fakeView) ListPatients() []domain.Patient           { return v.patients }
func (v fakeView) ListDoctors() []domain.Doctor             { return v.doctors }
func (v fakeView) ListAppointments() []domain.Appointment   { return v.appointments }
func (v fakeView) ListNotes() []domain.Note                 { return v.notes }
func (v fakeView) ListPrescriptions() []domain.Prescription { return v.prescriptions }
func (v fakeView) ListInvoices() []domain.Invoice           { return v.invoices }

func (v fakeView) FindPatient(id string) (domain.Patient, bool) {
	for _, p := range v.patients {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Patient{}, false
}

func (v fakeView) FindDoctor(id string) (domain.Doctor, bool) {
	for _, d := range v.doctors {
		if d.ID == id {
			return d, true
		}
	}
	return domain.Doctor{}, false
}

func (v fakeView) FindAppointment(id string) (domain.Appointment, bool) {
	for _, a := range v.appointments {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Appointment{}, false
}

func TestDefaultRulesEngineRegistersIntegrityRules(t *testing.T) {
	require.Equal(t, []string{"referential_integrity", "single_charge"}, DefaultRulesEngine().Rules())
}

func TestReferentialIntegrityRule(t *testing.T) {
	orphan := domain.Appointment{Base: domain.Base{ID: "a1"}, PatientID: "p1", Date: "2024-01-20", Time: "10:00"}
	note := domain.Note{Base: domain.Base{ID: "n1"}, Owner: domain.AppointmentOwner("a1"), Text: "x"}
	view := fakeView{
		appointments:  []domain.Appointment{orphan},
		notes:         []domain.Note{note},
		prescriptions: []domain.Prescription{{Base: domain.Base{ID: "rx1"}, AppointmentID: "gone"}},
		invoices:      []domain.Invoice{{Base: domain.Base{ID: "inv1"}, AppointmentID: "a1"}},
	}
	rule := ReferentialIntegrityRule()

	res, err := rule.Evaluate(context.Background(), view, nil)
	require.NoError(t, err)
	require.Empty(t, res.Violations, "untouched records are not checked")

	res, err = rule.Evaluate(context.Background(), view, []domain.Change{
		{Entity: domain.EntityPatient, Action: domain.ActionDelete, Before: domain.Patient{Base: domain.Base{ID: "p1"}}},
		{Entity: domain.EntityAppointment, Action: domain.ActionDelete, Before: domain.Appointment{Base: domain.Base{ID: "gone"}}},
	})
	require.NoError(t, err)
	require.True(t, res.HasBlocking())
	require.Len(t, res.Violations, 2)
	require.Equal(t, "a1", res.Violations[0].EntityID)
	require.Equal(t, "rx1", res.Violations[1].EntityID)

	res, err = rule.Evaluate(context.Background(), view, []domain.Change{
		{Entity: domain.EntityNote, Action: domain.ActionCreate, After: note},
	})
	require.NoError(t, err)
	require.Empty(t, res.Violations, "note owner a1 exists")

	view.notes = append(view.notes, domain.Note{Base: domain.Base{ID: "n2"}, Owner: domain.PatientOwner("ghost"), Text: "x"})
	res, err = rule.Evaluate(context.Background(), view, []domain.Change{
		{Entity: domain.EntityNote, Action: domain.ActionCreate, After: view.notes[1]},
	})
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	require.Equal(t, domain.EntityNote, res.Violations[0].Entity)
}

func TestSingleChargeRule(t *testing.T) {
	view := fakeView{
		prescriptions: []domain.Prescription{
			{Base: domain.Base{ID: "rx1"}, AppointmentID: "a1"},
			{Base: domain.Base{ID: "rx2"}, AppointmentID: "a1"},
		},
		invoices: []domain.Invoice{
			{Base: domain.Base{ID: "inv1"}, AppointmentID: "a1"},
			{Base: domain.Base{ID: "inv2"}, AppointmentID: "a2"},
		},
	}
	rule := SingleChargeRule()

	res, err := rule.Evaluate(context.Background(), view, []domain.Change{{Entity: domain.EntityInvoice, Action: domain.ActionCreate}})
	require.NoError(t, err)
	require.Empty(t, res.Violations)

	res, err = rule.Evaluate(context.Background(), view, []domain.Change{{Entity: domain.EntityPrescription, Action: domain.ActionUpdate}})
	require.NoError(t, err)
	require.True(t, res.HasBlocking())
	require.Equal(t, "rx2", res.Violations[0].EntityID)
	require.Contains(t, domain.RuleViolationError{Result: res}.Error(), "single_charge")
}
