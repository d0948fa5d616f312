// internal/model/message_log.go
package model

import "time"

// MessageLog records every outbound WhatsApp message for correlation with
// the provider's delivery reports.
type MessageLog struct {
	ID                string    `db:"id" json:"id"`
	ClinicID          string    `db:"clinic_id" json:"clinic_id"`
	Phone             string    `db:"phone" json:"phone"`
	Direction         string    `db:"direction" json:"direction"` // always "outbound" here
	Content           string    `db:"content" json:"content"`
	ProviderMessageID string    `db:"provider_message_id" json:"provider_message_id"`
	Status            string    `db:"status" json:"status"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
