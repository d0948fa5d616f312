package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrAppointmentNotFound is returned by the one-shot manual triggers.
type ErrAppointmentNotFound struct {
	AppointmentID string
}

func (e *ErrAppointmentNotFound) Error() string {
	return fmt.Sprintf("appointment with ID %s not found", e.AppointmentID)
}

func NewAppointmentNotFound(id string) error {
	return &ErrAppointmentNotFound{AppointmentID: id}
}

// ErrInvalidCampaignStatus is returned when a campaign cannot be launched
// from its current status.
type ErrInvalidCampaignStatus struct {
	CampaignID string
	Status     string
}

func (e *ErrInvalidCampaignStatus) Error() string {
	return fmt.Sprintf("campaign %s cannot be launched in status: %s", e.CampaignID, e.Status)
}

func NewInvalidCampaignStatus(id, status string) error {
	return &ErrInvalidCampaignStatus{CampaignID: id, Status: status}
}
