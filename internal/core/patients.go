package core

import (
	"context"

	"clinicdesk/pkg/domain"
)

// CreatePatient registers a patient.
func (s *Service) CreatePatient(ctx context.Context, patient Patient) (Patient, error) {
	var created Patient
	err := s.mutate(ctx, "create_patient", func(tx Transaction) error {
		var err error
		created, err = tx.CreatePatient(patient)
		return err
	})
	if err != nil {
		return Patient{}, err
	}
	s.logged(ctx, "create_patient", domain.EntityPatient, created.ID)
	return created, nil
}

// UpdatePatient merges the non-nil patch fields into the patient.
func (s *Service) UpdatePatient(ctx context.Context, id string, patch domain.PatientPatch) (Patient, error) {
	var updated Patient
	err := s.mutate(ctx, "update_patient", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdatePatient(id, patch.Apply)
		return err
	})
	if err != nil {
		return Patient{}, err
	}
	s.logged(ctx, "update_patient", domain.EntityPatient, id)
	return updated, nil
}

// DeletePatient removes the patient together with their notes, appointments
// and everything attached to those appointments.
func (s *Service) DeletePatient(ctx context.Context, id string) (bool, error) {
	return s.deleted(ctx, "delete_patient", func(tx Transaction) (Cascade, error) {
		return tx.DeletePatient(id)
	})
}

// GetPatient looks up a patient by id.
func (s *Service) GetPatient(ctx context.Context, id string) (Patient, bool) {
	var (
		patient Patient
		ok      bool
	)
	_ = s.read(ctx, "get_patient", func(v TransactionView) error {
		patient, ok = v.FindPatient(id)
		return nil
	})
	return patient, ok
}

// ListPatients returns every patient ordered by last then first name.
func (s *Service) ListPatients(ctx context.Context) []Patient {
	var patients []Patient
	_ = s.read(ctx, "list_patients", func(v TransactionView) error {
		patients = v.ListPatients()
		return nil
	})
	sortPatients(patients)
	return patients
}
