// internal/model/survey.go
package model

import "time"

const (
	SurveySent      = "sent"
	SurveyResponded = "responded"
)

// SatisfactionSurvey is created by the dispatch pipeline on first send.
// The UNIQUE constraint on appointment_id is the idempotency anchor for
// the survey trigger: at most one survey ever exists per appointment.
type SatisfactionSurvey struct {
	ID                string     `db:"id" json:"id"`
	AppointmentID     string     `db:"appointment_id" json:"appointment_id"`
	ClinicID          string     `db:"clinic_id" json:"clinic_id"`
	Status            string     `db:"status" json:"status"`
	ProviderMessageID string     `db:"provider_message_id" json:"provider_message_id"`
	SentAt            time.Time  `db:"sent_at" json:"sent_at"`
	RespondedAt       *time.Time `db:"responded_at" json:"responded_at,omitempty"`
}
