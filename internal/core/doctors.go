package core

import (
	"context"
	"strings"

	"clinicdesk/pkg/domain"
)

// CreateDoctor adds a doctor.
func (s *Service) CreateDoctor(ctx context.Context, doctor Doctor) (Doctor, error) {
	var created Doctor
	err := s.mutate(ctx, "create_doctor", func(tx Transaction) error {
		var err error
		created, err = tx.CreateDoctor(doctor)
		return err
	})
	if err != nil {
		return Doctor{}, err
	}
	s.logged(ctx, "create_doctor", domain.EntityDoctor, created.ID)
	return created, nil
}

// UpdateDoctor merges the non-nil patch fields into the doctor.
func (s *Service) UpdateDoctor(ctx context.Context, id string, patch domain.DoctorPatch) (Doctor, error) {
	var updated Doctor
	err := s.mutate(ctx, "update_doctor", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateDoctor(id, patch.Apply)
		return err
	})
	if err != nil {
		return Doctor{}, err
	}
	s.logged(ctx, "update_doctor", domain.EntityDoctor, id)
	return updated, nil
}

// DeleteDoctor removes the doctor. Their appointments are kept with the
// doctor reference cleared and the name recorded on the appointment.
func (s *Service) DeleteDoctor(ctx context.Context, id string) (bool, error) {
	return s.deleted(ctx, "delete_doctor", func(tx Transaction) (Cascade, error) {
		return tx.DeleteDoctor(id)
	})
}

// GetDoctor looks up a doctor by id.
func (s *Service) GetDoctor(ctx context.Context, id string) (Doctor, bool) {
	var (
		doctor Doctor
		ok     bool
	)
	_ = s.read(ctx, "get_doctor", func(v TransactionView) error {
		doctor, ok = v.FindDoctor(id)
		return nil
	})
	return doctor, ok
}

// ListDoctors returns every doctor ordered by name.
func (s *Service) ListDoctors(ctx context.Context) []Doctor {
	var doctors []Doctor
	_ = s.read(ctx, "list_doctors", func(v TransactionView) error {
		doctors = v.ListDoctors()
		return nil
	})
	sortDoctors(doctors)
	return doctors
}

// DoctorProfile finds the doctor whose name matches username, ignoring case.
// Staff accounts named after a doctor use it to reach their own schedule.
func (s *Service) DoctorProfile(ctx context.Context, username string) (Doctor, bool) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Doctor{}, false
	}
	for _, d := range s.ListDoctors(ctx) {
		if strings.EqualFold(d.Name, username) {
			return d, true
		}
	}
	return Doctor{}, false
}
