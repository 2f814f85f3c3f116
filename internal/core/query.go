package core

import (
	"context"
	"sort"
	"strings"

	"clinicdesk/pkg/domain"
)

// AppointmentFilter narrows ListAppointments. Empty fields match everything;
// set fields combine with AND. Dates are inclusive YYYY-MM-DD bounds and
// Status is an appointment status or StatusAll.
type AppointmentFilter struct {
	DateFrom  string
	DateTo    string
	Status    string
	PatientID string
}

func (f AppointmentFilter) compile() (func(Appointment) bool, error) {
	from := strings.TrimSpace(f.DateFrom)
	to := strings.TrimSpace(f.DateTo)
	if from != "" {
		if err := domain.ValidateDate(domain.EntityAppointment, "date_from", from); err != nil {
			return nil, err
		}
	}
	if to != "" {
		if err := domain.ValidateDate(domain.EntityAppointment, "date_to", to); err != nil {
			return nil, err
		}
	}
	var status domain.AppointmentStatus
	if raw := strings.TrimSpace(f.Status); raw != "" && !strings.EqualFold(raw, StatusAll) {
		parsed, err := domain.ParseAppointmentStatus(raw)
		if err != nil {
			return nil, err
		}
		status = parsed
	}
	patientID := strings.TrimSpace(f.PatientID)
	return func(a Appointment) bool {
		switch {
		case from != "" && a.Date < from:
			return false
		case to != "" && a.Date > to:
			return false
		case status != "" && a.Status != status:
			return false
		case patientID != "" && a.PatientID != patientID:
			return false
		}
		return true
	}, nil
}

// SearchResult holds the two independent result sets of a search.
type SearchResult struct {
	Patients []Patient `json:"patients"`
	Doctors  []Doctor  `json:"doctors"`
}

// SearchPatientsAndDoctors matches query case-insensitively against patient
// first and last names and doctor names and specialties. An empty query
// matches every record.
func (s *Service) SearchPatientsAndDoctors(ctx context.Context, query string) SearchResult {
	needle := strings.ToLower(strings.TrimSpace(query))
	result := SearchResult{Patients: []Patient{}, Doctors: []Doctor{}}
	_ = s.read(ctx, "search", func(v TransactionView) error {
		for _, p := range v.ListPatients() {
			if containsFold(p.FirstName, needle) || containsFold(p.LastName, needle) {
				result.Patients = append(result.Patients, p)
			}
		}
		for _, d := range v.ListDoctors() {
			if containsFold(d.Name, needle) || containsFold(d.Specialty, needle) {
				result.Doctors = append(result.Doctors, d)
			}
		}
		return nil
	})
	sortPatients(result.Patients)
	sortDoctors(result.Doctors)
	return result
}

func containsFold(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}

// DashboardAppointment is a schedule entry with display names resolved.
type DashboardAppointment struct {
	Appointment
	PatientName string `json:"patient_name"`
	DoctorName  string `json:"doctor_name"`
}

// Dashboard summarises one day at the clinic.
type Dashboard struct {
	Day            string                 `json:"day"`
	Appointments   []DashboardAppointment `json:"appointments"`
	UnpaidInvoices int                    `json:"unpaid_invoices"`
	RecentPatients []Patient              `json:"recent_patients"`
}

const recentPatientLimit = 3

// Dashboard reports the Scheduled appointments of day (today when empty) by
// time, the number of unpaid invoices and the most recently registered patients.
func (s *Service) Dashboard(ctx context.Context, day string) (Dashboard, error) {
	day = strings.TrimSpace(day)
	if day == "" {
		day = s.today()
	} else if err := domain.ValidateDate(domain.EntityAppointment, "day", day); err != nil {
		return Dashboard{}, err
	}
	dash := Dashboard{Day: day, Appointments: []DashboardAppointment{}, RecentPatients: []Patient{}}
	err := s.read(ctx, "dashboard", func(v TransactionView) error {
		for _, a := range v.ListAppointments() {
			if a.Date == day && a.Status == domain.AppointmentScheduled {
				dash.Appointments = append(dash.Appointments, DashboardAppointment{
					Appointment: a,
					PatientName: patientName(v, a.PatientID),
					DoctorName:  doctorName(v, a),
				})
			}
		}
		for _, inv := range v.ListInvoices() {
			if inv.Status == domain.InvoiceUnpaid {
				dash.UnpaidInvoices++
			}
		}
		patients := v.ListPatients()
		sort.SliceStable(patients, func(i, j int) bool {
			return patients[i].CreatedAt.After(patients[j].CreatedAt.Time)
		})
		if len(patients) > recentPatientLimit {
			patients = patients[:recentPatientLimit]
		}
		dash.RecentPatients = append(dash.RecentPatients, patients...)
		return nil
	})
	if err != nil {
		return Dashboard{}, err
	}
	sort.SliceStable(dash.Appointments, func(i, j int) bool {
		return dash.Appointments[i].Time < dash.Appointments[j].Time
	})
	return dash, nil
}

// UnknownName is shown for references that no longer resolve.
const UnknownName = "N/A"

func patientName(v TransactionView, id string) string {
	if p, ok := v.FindPatient(id); ok {
		return p.FullName()
	}
	return UnknownName
}

func doctorName(v TransactionView, a Appointment) string {
	if a.HasDoctor() {
		if d, ok := v.FindDoctor(*a.DoctorID); ok {
			return d.Name
		}
	}
	if a.DoctorNameAtBooking != "" {
		return a.DoctorNameAtBooking
	}
	return UnknownName
}

func sortPatients(patients []Patient) {
	sort.SliceStable(patients, func(i, j int) bool {
		li, lj := strings.ToLower(patients[i].LastName), strings.ToLower(patients[j].LastName)
		if li != lj {
			return li < lj
		}
		return strings.ToLower(patients[i].FirstName) < strings.ToLower(patients[j].FirstName)
	})
}

func sortDoctors(doctors []Doctor) {
	sort.SliceStable(doctors, func(i, j int) bool {
		return strings.ToLower(doctors[i].Name) < strings.ToLower(doctors[j].Name)
	})
}

// sortSchedule orders by (date, time) ascending.
func sortSchedule(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		return appts[i].Time < appts[j].Time
	})
}

// sortHistory orders by date descending.
func sortHistory(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		return appts[i].Date > appts[j].Date
	})
}

func sortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt.Time)
	})
}
