// Package domain defines the clinic records, note ownership, error kinds and
// the transactional contracts shared by the store and its persistence backends.
package domain

import (
	"fmt"
	"strings"
)

// EntityType identifies the type of record stored in the clinic document.
type EntityType string

// Supported entity type identifiers used in Change records and error messages.
const (
	// EntityPatient identifies a registered patient.
	EntityPatient EntityType = "patient"
	// EntityDoctor identifies a doctor record.
	EntityDoctor EntityType = "doctor"
	// EntityAppointment identifies a booked appointment.
	EntityAppointment EntityType = "appointment"
	// EntityNote identifies a free-text medical note.
	EntityNote EntityType = "medical_note"
	// EntityPrescription identifies the prescription issued for an appointment.
	EntityPrescription EntityType = "prescription"
	// EntityInvoice identifies the invoice raised for an appointment.
	EntityInvoice EntityType = "invoice"
)

// AppointmentStatus captures where an appointment is in its lifecycle.
type AppointmentStatus string

// Appointment lifecycle states. Completed and Cancelled are terminal.
const (
	AppointmentScheduled AppointmentStatus = "Scheduled"
	AppointmentCompleted AppointmentStatus = "Completed"
	AppointmentCancelled AppointmentStatus = "Cancelled"
)

// Valid reports whether s is a known appointment status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentCompleted, AppointmentCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an appointment may move from s to next.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	return s == AppointmentScheduled && (next == AppointmentCompleted || next == AppointmentCancelled)
}

// ParseAppointmentStatus validates raw as an appointment status.
func ParseAppointmentStatus(raw string) (AppointmentStatus, error) {
	status := AppointmentStatus(strings.TrimSpace(raw))
	if !status.Valid() {
		return "", &ValidationError{Entity: EntityAppointment, Field: "status", Reason: fmt.Sprintf("unknown status %q", raw)}
	}
	return status, nil
}

// InvoiceStatus captures whether an invoice has been settled.
type InvoiceStatus string

// Invoice payment states.
const (
	InvoiceUnpaid InvoiceStatus = "Unpaid"
	InvoicePaid   InvoiceStatus = "Paid"
)

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	return s == InvoiceUnpaid || s == InvoicePaid
}

// ParseInvoiceStatus validates raw as an invoice status.
func ParseInvoiceStatus(raw string) (InvoiceStatus, error) {
	status := InvoiceStatus(strings.TrimSpace(raw))
	if !status.Valid() {
		return "", &ValidationError{Entity: EntityInvoice, Field: "status", Reason: fmt.Sprintf("unknown status %q", raw)}
	}
	return status, nil
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn reports a problem but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string     `json:"id"`
	CreatedAt Timestamp  `json:"created_at"`
	UpdatedAt *Timestamp `json:"updated_at,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`
	UpdatedBy string     `json:"updated_by,omitempty"`
}

// RecordID returns the record identifier.
func (b Base) RecordID() string { return b.ID }

// Patient is a person registered with the clinic.
type Patient struct {
	Base
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"dob"`
	Gender      string `json:"gender"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	Allergies   string `json:"allergies"`
	History     string `json:"history"`
}

// FullName joins first and last name for display.
func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Doctor is a practitioner appointments can be booked with.
type Doctor struct {
	Base
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// Appointment books a patient with a doctor at a date and time.
// DoctorID becomes nil when the doctor is deleted; DoctorNameAtBooking then
// keeps the name that was on record.
type Appointment struct {
	Base
	PatientID           string            `json:"patient_id"`
	DoctorID            *string           `json:"doctor_id"`
	DoctorNameAtBooking string            `json:"doctor_name_at_booking,omitempty"`
	Date                string            `json:"date"`
	Time                string            `json:"time"`
	Reason              string            `json:"reason"`
	Status              AppointmentStatus `json:"status"`
}

// HasDoctor reports whether the appointment still references a live doctor.
func (a Appointment) HasDoctor() bool { return a.DoctorID != nil && *a.DoctorID != "" }

// Prescription is the single prescription written for a completed appointment.
type Prescription struct {
	Base
	AppointmentID string  `json:"appointment_id"`
	PatientID     string  `json:"patient_id"`
	DoctorID      *string `json:"doctor_id"`
	Medications   string  `json:"medications"`
	Instructions  string  `json:"instructions"`
}

// Invoice is the single bill raised for a completed appointment.
type Invoice struct {
	Base
	AppointmentID   string        `json:"appointment_id"`
	PatientID       string        `json:"patient_id"`
	DoctorID        *string       `json:"doctor_id"`
	ItemDescription string        `json:"item_description"`
	Amount          float64       `json:"amount"`
	Status          InvoiceStatus `json:"status"`
	InvoiceDate     string        `json:"invoice_date"`
}

// Change describes a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	// ActionDelete indicates an entity was removed.
	ActionDelete Action = "delete"
)

// Violation reports a rule failure.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return fmt.Sprintf("transaction blocked by rule %s: %s", v.Rule, v.Message)
		}
	}
	return "transaction blocked by rules"
}
