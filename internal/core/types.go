package core

import "clinicdesk/pkg/domain"

// Aliases keep callers of the service on a single import.
type (
	Patient         = domain.Patient
	Doctor          = domain.Doctor
	Appointment     = domain.Appointment
	Note            = domain.Note
	Prescription    = domain.Prescription
	Invoice         = domain.Invoice
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
	RulesEngine     = domain.RulesEngine
	Result          = domain.Result
	Cascade         = domain.Cascade
)

// StatusAll disables status filtering in AppointmentFilter.
const StatusAll = "All"

// DefaultInvoiceItem is used when an invoice is created without a description.
const DefaultInvoiceItem = "Consultation & Services"
