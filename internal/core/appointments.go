package core

import (
	"context"

	"clinicdesk/pkg/domain"
)

// CreateAppointment books an appointment. It always starts Scheduled.
func (s *Service) CreateAppointment(ctx context.Context, appt Appointment) (Appointment, error) {
	var created Appointment
	err := s.mutate(ctx, "create_appointment", func(tx Transaction) error {
		var err error
		created, err = tx.CreateAppointment(appt)
		return err
	})
	if err != nil {
		return Appointment{}, err
	}
	s.logged(ctx, "create_appointment", domain.EntityAppointment, created.ID)
	return created, nil
}

// UpdateAppointmentStatus moves a Scheduled appointment to Completed or
// Cancelled. Any other target is an invalid transition; repeating the
// terminal status an appointment already has is a no-op.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, id, status string) (Appointment, error) {
	next, err := domain.ParseAppointmentStatus(status)
	if err != nil {
		return Appointment{}, err
	}
	var updated Appointment
	err = s.mutate(ctx, "update_appointment_status", func(tx Transaction) error {
		current, ok := tx.FindAppointment(id)
		if !ok {
			return domain.NotFound(domain.EntityAppointment, id)
		}
		if next != domain.AppointmentCompleted && next != domain.AppointmentCancelled {
			return &domain.InvalidStateTransitionError{
				Entity: domain.EntityAppointment, ID: id, From: current.Status, To: next,
			}
		}
		if current.Status == next {
			updated = current
			return nil
		}
		var err error
		updated, err = tx.UpdateAppointment(id, func(a *Appointment) error {
			a.Status = next
			return nil
		})
		return err
	})
	if err != nil {
		return Appointment{}, err
	}
	s.logged(ctx, "update_appointment_status", domain.EntityAppointment, id)
	return updated, nil
}

// UpdateAppointment reschedules a Scheduled appointment or edits its reason.
func (s *Service) UpdateAppointment(ctx context.Context, id string, patch domain.AppointmentPatch) (Appointment, error) {
	var updated Appointment
	err := s.mutate(ctx, "update_appointment", func(tx Transaction) error {
		current, ok := tx.FindAppointment(id)
		if !ok {
			return domain.NotFound(domain.EntityAppointment, id)
		}
		if current.Status != domain.AppointmentScheduled {
			return &domain.InvalidStateTransitionError{
				Entity: domain.EntityAppointment,
				ID:     id,
				From:   current.Status,
				Reason: "only scheduled appointments can be changed",
			}
		}
		var err error
		updated, err = tx.UpdateAppointment(id, patch.Apply)
		return err
	})
	if err != nil {
		return Appointment{}, err
	}
	s.logged(ctx, "update_appointment", domain.EntityAppointment, id)
	return updated, nil
}

// DeleteAppointment removes the appointment with its notes, prescription and invoice.
func (s *Service) DeleteAppointment(ctx context.Context, id string) (bool, error) {
	return s.deleted(ctx, "delete_appointment", func(tx Transaction) (Cascade, error) {
		return tx.DeleteAppointment(id)
	})
}

// GetAppointment looks up an appointment by id.
func (s *Service) GetAppointment(ctx context.Context, id string) (Appointment, bool) {
	var (
		appt Appointment
		ok   bool
	)
	_ = s.read(ctx, "get_appointment", func(v TransactionView) error {
		appt, ok = v.FindAppointment(id)
		return nil
	})
	return appt, ok
}

// ListAppointments returns the appointments matching filter in (date, time) order.
func (s *Service) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	match, err := filter.compile()
	if err != nil {
		return nil, err
	}
	var out []Appointment
	err = s.read(ctx, "list_appointments", func(v TransactionView) error {
		for _, a := range v.ListAppointments() {
			if match(a) {
				out = append(out, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSchedule(out)
	return out, nil
}

// ListPatientAppointments returns a patient's appointments, most recent date first.
func (s *Service) ListPatientAppointments(ctx context.Context, patientID string) []Appointment {
	var out []Appointment
	_ = s.read(ctx, "list_patient_appointments", func(v TransactionView) error {
		for _, a := range v.ListAppointments() {
			if a.PatientID == patientID {
				out = append(out, a)
			}
		}
		return nil
	})
	sortHistory(out)
	return out
}

// DoctorSchedule returns the doctor's Scheduled appointments in (date, time) order.
func (s *Service) DoctorSchedule(ctx context.Context, doctorID string) []Appointment {
	var out []Appointment
	_ = s.read(ctx, "doctor_schedule", func(v TransactionView) error {
		for _, a := range v.ListAppointments() {
			if a.Status == domain.AppointmentScheduled && a.HasDoctor() && *a.DoctorID == doctorID {
				out = append(out, a)
			}
		}
		return nil
	})
	sortSchedule(out)
	return out
}
