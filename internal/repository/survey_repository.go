package repository

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/clinicdesk/notify-backend/internal/model"
)

type SurveyRepositoryInterface interface {
	// Claim inserts the survey row for the appointment if none exists.
	// The UNIQUE constraint on appointment_id makes this the atomic
	// idempotency guard for the survey trigger: exactly one caller wins.
	Claim(appointmentID, clinicID string) (*model.SatisfactionSurvey, bool, error)
	// Release deletes a claimed survey after a failed delivery so the
	// appointment stays eligible.
	Release(surveyID string) error
	SetProviderMessageID(surveyID, providerMessageID string) error
}

type SurveyRepository struct {
	DB *sql.DB
}

func (r *SurveyRepository) Claim(appointmentID, clinicID string) (*model.SatisfactionSurvey, bool, error) {
	query := `
        INSERT INTO satisfaction_surveys (id, appointment_id, clinic_id, status, sent_at)
        VALUES ($1, $2, $3, 'sent', NOW())
        ON CONFLICT (appointment_id) DO NOTHING
        RETURNING id, appointment_id, clinic_id, status, provider_message_id, sent_at, responded_at
    `
	var s model.SatisfactionSurvey
	var providerID sql.NullString
	err := r.DB.QueryRow(query, uuid.New().String(), appointmentID, clinicID).Scan(
		&s.ID, &s.AppointmentID, &s.ClinicID, &s.Status, &providerID, &s.SentAt, &s.RespondedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// conflict: a survey already exists for this appointment
			return nil, false, nil
		}
		return nil, false, err
	}
	s.ProviderMessageID = providerID.String
	return &s, true, nil
}

func (r *SurveyRepository) Release(surveyID string) error {
	_, err := r.DB.Exec(`DELETE FROM satisfaction_surveys WHERE id = $1`, surveyID)
	return err
}

func (r *SurveyRepository) SetProviderMessageID(surveyID, providerMessageID string) error {
	query := `UPDATE satisfaction_surveys SET provider_message_id = $1 WHERE id = $2`
	_, err := r.DB.Exec(query, providerMessageID, surveyID)
	return err
}

var _ SurveyRepositoryInterface = (*SurveyRepository)(nil)
