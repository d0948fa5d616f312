package repository

import (
	"database/sql"

	"github.com/clinicdesk/notify-backend/internal/model"
)

// ClinicRepositoryInterface defines methods used by the trigger runners
type ClinicRepositoryInterface interface {
	GetByID(id string) (*model.Clinic, error)
	ListAll() ([]model.Clinic, error)
	ListWithRemindersEnabled() ([]model.Clinic, error)
}

// ClinicRepository is the concrete implementation
type ClinicRepository struct {
	DB *sql.DB
}

const clinicColumns = `id, name, timezone, whatsapp_api_key, whatsapp_sender, reminders_enabled, reminder_lead_hours`

func scanClinic(scanner interface{ Scan(...interface{}) error }) (*model.Clinic, error) {
	var c model.Clinic
	var apiKey, sender sql.NullString
	err := scanner.Scan(&c.ID, &c.Name, &c.Timezone, &apiKey, &sender, &c.RemindersEnabled, &c.ReminderLeadHrs)
	if err != nil {
		return nil, err
	}
	c.WhatsAppAPIKey = apiKey.String
	c.WhatsAppSender = sender.String
	return &c, nil
}

// GetByID fetches a clinic by ID
func (r *ClinicRepository) GetByID(id string) (*model.Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE id = $1`
	c, err := scanClinic(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return c, nil
}

// ListAll fetches all clinics
func (r *ClinicRepository) ListAll() ([]model.Clinic, error) {
	return r.list(`SELECT ` + clinicColumns + ` FROM clinics ORDER BY name`)
}

// ListWithRemindersEnabled fetches clinics that opted into reminders
func (r *ClinicRepository) ListWithRemindersEnabled() ([]model.Clinic, error) {
	return r.list(`SELECT ` + clinicColumns + ` FROM clinics WHERE reminders_enabled = TRUE ORDER BY name`)
}

func (r *ClinicRepository) list(query string) ([]model.Clinic, error) {
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clinics := []model.Clinic{}
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, err
		}
		clinics = append(clinics, *c)
	}
	return clinics, rows.Err()
}

var _ ClinicRepositoryInterface = (*ClinicRepository)(nil)
