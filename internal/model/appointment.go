// internal/model/appointment.go
package model

import "time"

// Appointment lifecycle statuses.
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
	AppointmentCompleted = "completed"
)

// Appointment is owned by the scheduling subsystem. The dispatch pipeline
// only ever writes the marker fields (reminder_sent, reminder_sent_at,
// upsell_sent_at); a marker is set iff a send was recorded for it and is
// never cleared outside a failed-delivery rollback.
type Appointment struct {
	ID             string     `db:"id" json:"id"`
	ClinicID       string     `db:"clinic_id" json:"clinic_id"`
	PatientID      string     `db:"patient_id" json:"patient_id"`
	ServiceID      string     `db:"service_id" json:"service_id"`
	StartsAt       time.Time  `db:"starts_at" json:"starts_at"`
	Status         string     `db:"status" json:"status"`
	ReminderSent   bool       `db:"reminder_sent" json:"reminder_sent"`
	ReminderSentAt *time.Time `db:"reminder_sent_at" json:"reminder_sent_at,omitempty"`
	UpsellSentAt   *time.Time `db:"upsell_sent_at" json:"upsell_sent_at,omitempty"`

	// Joined patient fields, populated by the eligibility queries so the
	// dispatch loop does not have to fetch each patient separately.
	PatientName  string `db:"patient_name" json:"patient_name"`
	PatientPhone string `db:"patient_phone" json:"patient_phone"`
}

// ClinicService holds per-service upsell configuration.
type ClinicService struct {
	ID               string `db:"id" json:"id"`
	ClinicID         string `db:"clinic_id" json:"clinic_id"`
	Name             string `db:"name" json:"name"`
	UpsellEnabled    bool   `db:"upsell_enabled" json:"upsell_enabled"`
	UpsellOffsetDays int    `db:"upsell_offset_days" json:"upsell_offset_days"`
	UpsellMessage    string `db:"upsell_message" json:"upsell_message"`
}
