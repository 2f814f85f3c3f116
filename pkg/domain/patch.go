package domain

// Patches carry partial updates: nil fields keep the stored value.

// PatientPatch updates selected patient fields.
type PatientPatch struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	DateOfBirth *string `json:"dob,omitempty"`
	Gender      *string `json:"gender,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
	Address     *string `json:"address,omitempty"`
	Allergies   *string `json:"allergies,omitempty"`
	History     *string `json:"history,omitempty"`
}

// Apply merges the patch into p.
func (pp PatientPatch) Apply(p *Patient) error {
	setString(&p.FirstName, pp.FirstName)
	setString(&p.LastName, pp.LastName)
	setString(&p.DateOfBirth, pp.DateOfBirth)
	setString(&p.Gender, pp.Gender)
	setString(&p.Phone, pp.Phone)
	setString(&p.Email, pp.Email)
	setString(&p.Address, pp.Address)
	setString(&p.Allergies, pp.Allergies)
	setString(&p.History, pp.History)
	return nil
}

// DoctorPatch updates selected doctor fields.
type DoctorPatch struct {
	Name      *string `json:"name,omitempty"`
	Specialty *string `json:"specialty,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Email     *string `json:"email,omitempty"`
}

// Apply merges the patch into d.
func (dp DoctorPatch) Apply(d *Doctor) error {
	setString(&d.Name, dp.Name)
	setString(&d.Specialty, dp.Specialty)
	setString(&d.Phone, dp.Phone)
	setString(&d.Email, dp.Email)
	return nil
}

// AppointmentPatch reschedules an appointment or edits its reason.
type AppointmentPatch struct {
	Date   *string `json:"date,omitempty"`
	Time   *string `json:"time,omitempty"`
	Reason *string `json:"reason,omitempty"`
}

// Apply merges the patch into a.
func (ap AppointmentPatch) Apply(a *Appointment) error {
	setString(&a.Date, ap.Date)
	setString(&a.Time, ap.Time)
	setString(&a.Reason, ap.Reason)
	return nil
}

// NotePatch edits the text of a note.
type NotePatch struct {
	Text *string `json:"text,omitempty"`
}

// Apply merges the patch into n.
func (np NotePatch) Apply(n *Note) error {
	setString(&n.Text, np.Text)
	return nil
}

// PrescriptionFields are the writable prescription fields for an upsert.
type PrescriptionFields struct {
	Medications  *string `json:"medications,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
}

// Apply merges the fields into p.
func (pf PrescriptionFields) Apply(p *Prescription) error {
	setString(&p.Medications, pf.Medications)
	setString(&p.Instructions, pf.Instructions)
	return nil
}

// InvoiceFields are the writable invoice fields for an upsert.
type InvoiceFields struct {
	ItemDescription *string        `json:"item_description,omitempty"`
	Amount          *float64       `json:"amount,omitempty"`
	Status          *InvoiceStatus `json:"status,omitempty"`
}

// Apply merges the fields into i, rejecting a negative amount or unknown status
// before anything is written.
func (inf InvoiceFields) Apply(i *Invoice) error {
	if inf.Amount != nil {
		if err := ValidateAmount(*inf.Amount); err != nil {
			return err
		}
		i.Amount = *inf.Amount
	}
	if inf.Status != nil {
		status, err := ParseInvoiceStatus(string(*inf.Status))
		if err != nil {
			return err
		}
		i.Status = status
	}
	setString(&i.ItemDescription, inf.ItemDescription)
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
