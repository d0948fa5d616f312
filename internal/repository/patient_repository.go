package repository

import (
	"database/sql"

	"github.com/clinicdesk/notify-backend/internal/model"
)

// PatientRepositoryInterface defines methods used by the campaign runner
type PatientRepositoryInterface interface {
	GetByID(id string) (*model.Patient, error)
	// ListBySegment resolves a campaign segment: a nil tag targets every
	// patient in the clinic, a tag targets patients holding that tag.
	ListBySegment(clinicID string, tag *string) ([]model.Patient, error)
}

// PatientRepository is the concrete implementation
type PatientRepository struct {
	DB *sql.DB
}

// GetByID fetches a patient by ID
func (r *PatientRepository) GetByID(id string) (*model.Patient, error) {
	query := `
        SELECT id, clinic_id, first_name, last_name, phone
        FROM patients
        WHERE id = $1
    `
	row := r.DB.QueryRow(query, id)

	var p model.Patient
	if err := row.Scan(&p.ID, &p.ClinicID, &p.FirstName, &p.LastName, &p.Phone); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &p, nil
}

func (r *PatientRepository) ListBySegment(clinicID string, tag *string) ([]model.Patient, error) {
	query := `
        SELECT id, clinic_id, first_name, last_name, phone
        FROM patients
        WHERE clinic_id = $1
    `
	args := []interface{}{clinicID}

	if tag != nil {
		query = `
        SELECT p.id, p.clinic_id, p.first_name, p.last_name, p.phone
        FROM patients p
        JOIN patient_tags t ON t.patient_id = p.id
        WHERE p.clinic_id = $1 AND t.tag = $2
    `
		args = append(args, *tag)
	}

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	patients := []model.Patient{}
	for rows.Next() {
		var p model.Patient
		if err := rows.Scan(&p.ID, &p.ClinicID, &p.FirstName, &p.LastName, &p.Phone); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

var _ PatientRepositoryInterface = (*PatientRepository)(nil)
