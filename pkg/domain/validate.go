package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Date and time layouts used by appointments and invoices.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type requiredField struct {
	name  string
	value string
}

func requireFields(entity EntityType, fields ...requiredField) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return Required(entity, f.name)
		}
	}
	return nil
}

// ValidateDate checks value is a YYYY-MM-DD calendar date.
func ValidateDate(entity EntityType, field, value string) error {
	if _, err := time.Parse(DateLayout, value); err != nil {
		return &ValidationError{Entity: entity, Field: field, Reason: fmt.Sprintf("must be YYYY-MM-DD, got %q", value)}
	}
	return nil
}

// Validate checks the required patient fields.
func (p Patient) Validate() error {
	return requireFields(EntityPatient,
		requiredField{"first_name", p.FirstName},
		requiredField{"last_name", p.LastName},
		requiredField{"dob", p.DateOfBirth},
		requiredField{"gender", p.Gender},
		requiredField{"phone", p.Phone},
	)
}

// Validate checks the required doctor fields.
func (d Doctor) Validate() error {
	return requireFields(EntityDoctor,
		requiredField{"name", d.Name},
		requiredField{"specialty", d.Specialty},
		requiredField{"phone", d.Phone},
	)
}

// Validate checks the required appointment fields and formats. A nil doctor
// is accepted here; booking requires one, deletion of the doctor clears it.
func (a Appointment) Validate() error {
	if err := requireFields(EntityAppointment,
		requiredField{"patient_id", a.PatientID},
		requiredField{"date", a.Date},
		requiredField{"time", a.Time},
	); err != nil {
		return err
	}
	if err := ValidateDate(EntityAppointment, "date", a.Date); err != nil {
		return err
	}
	if _, err := time.Parse(TimeLayout, a.Time); err != nil {
		return &ValidationError{Entity: EntityAppointment, Field: "time", Reason: fmt.Sprintf("must be HH:MM, got %q", a.Time)}
	}
	if !a.Status.Valid() {
		return &ValidationError{Entity: EntityAppointment, Field: "status", Reason: fmt.Sprintf("unknown status %q", a.Status)}
	}
	return nil
}

// Validate checks the note owner and text.
func (n Note) Validate() error {
	if n.Owner.IsZero() {
		return Required(EntityNote, "entity_type")
	}
	if _, err := ParseOwner(string(n.Owner.Kind()), n.Owner.ID()); err != nil {
		return err
	}
	return requireFields(EntityNote, requiredField{"text", n.Text})
}

// Validate checks the prescription references its appointment and lists medications.
func (p Prescription) Validate() error {
	return requireFields(EntityPrescription,
		requiredField{"appointment_id", p.AppointmentID},
		requiredField{"medications", p.Medications},
	)
}

// Validate checks the invoice amount and status.
func (i Invoice) Validate() error {
	if err := requireFields(EntityInvoice, requiredField{"appointment_id", i.AppointmentID}); err != nil {
		return err
	}
	if err := ValidateAmount(i.Amount); err != nil {
		return err
	}
	if !i.Status.Valid() {
		return &ValidationError{Entity: EntityInvoice, Field: "status", Reason: fmt.Sprintf("unknown status %q", i.Status)}
	}
	return nil
}

// ValidateAmount rejects negative and non-finite invoice amounts.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return &ValidationError{Entity: EntityInvoice, Field: "amount", Reason: "must be a finite number"}
	}
	if amount < 0 {
		return &ValidationError{Entity: EntityInvoice, Field: "amount", Reason: fmt.Sprintf("must not be negative, got %.2f", amount)}
	}
	return nil
}
