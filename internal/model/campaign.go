// internal/model/campaign.go
package model

import "time"

// Campaign statuses. A launched campaign always reaches a terminal
// status: completed on a finished run, failed on a run-fatal error.
const (
	CampaignDraft     = "draft"
	CampaignSending   = "sending"
	CampaignCompleted = "completed"
	CampaignFailed    = "failed"
)

type Campaign struct {
	ID          string     `db:"id" json:"id"`
	ClinicID    string     `db:"clinic_id" json:"clinic_id"`
	Name        string     `db:"name" json:"name"`
	SegmentTag  *string    `db:"segment_tag" json:"segment_tag,omitempty"`
	Template    string     `db:"template" json:"template"`
	Status      string     `db:"status" json:"status"`
	TargetCount int        `db:"target_count" json:"target_count"`
	SentCount   int        `db:"sent_count" json:"sent_count"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignMessage is the per-recipient claim row for a campaign run.
// UNIQUE (campaign_id, patient_id) makes re-launching an interrupted
// campaign target only patients that were never claimed.
type CampaignMessage struct {
	ID                string    `db:"id" json:"id"`
	CampaignID        string    `db:"campaign_id" json:"campaign_id"`
	PatientID         string    `db:"patient_id" json:"patient_id"`
	Status            string    `db:"status" json:"status"` // pending, sent, failed
	LastError         string    `db:"last_error" json:"last_error,omitempty"`
	ProviderMessageID string    `db:"provider_message_id" json:"provider_message_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
