package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/clinicdesk/notify-backend/internal/errors"
	"github.com/clinicdesk/notify-backend/internal/model"
)

// UpsellCandidate is an appointment joined with the service upsell config
// that made it eligible.
type UpsellCandidate struct {
	model.Appointment
	UpsellMessage    string
	UpsellOffsetDays int
}

type AppointmentRepositoryInterface interface {
	GetByID(id string) (*model.Appointment, error)

	// Eligibility selectors. Window bounds are computed by the caller so
	// the window strategy stays an explicit, testable choice.
	ListDueForReminder(clinicID string, from, to time.Time) ([]*model.Appointment, error)
	ListDueForSurvey(clinicID string, olderThan, newerThan time.Time) ([]*model.Appointment, error)
	ListDueForUpsell(clinicID string, now, staleBefore time.Time) ([]*UpsellCandidate, error)

	// Atomic idempotency claims. A claim succeeds for exactly one caller;
	// Release undoes it when the delivery afterwards fails, so the marker
	// is set iff a send was recorded.
	ClaimReminder(id string) (bool, error)
	ReleaseReminder(id string) error
	ClaimUpsell(id string) (bool, error)
	ReleaseUpsell(id string) error
}

type AppointmentRepository struct {
	DB *sql.DB
}

const appointmentColumns = `
    a.id, a.clinic_id, a.patient_id, a.service_id, a.starts_at, a.status,
    a.reminder_sent, a.reminder_sent_at, a.upsell_sent_at,
    p.first_name || ' ' || p.last_name AS patient_name,
    p.phone AS patient_phone`

func scanAppointment(scanner interface{ Scan(...interface{}) error }) (*model.Appointment, error) {
	var a model.Appointment
	err := scanner.Scan(
		&a.ID, &a.ClinicID, &a.PatientID, &a.ServiceID, &a.StartsAt, &a.Status,
		&a.ReminderSent, &a.ReminderSentAt, &a.UpsellSentAt,
		&a.PatientName, &a.PatientPhone,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AppointmentRepository) GetByID(id string) (*model.Appointment, error) {
	query := `
        SELECT` + appointmentColumns + `
        FROM appointments a
        JOIN patients p ON p.id = a.patient_id
        WHERE a.id = $1
    `
	apt, err := scanAppointment(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewAppointmentNotFound(id)
		}
		return nil, err
	}
	return apt, nil
}

// ListDueForReminder returns unreminded pending/confirmed appointments
// starting inside [from, to), ordered by schedule time.
func (r *AppointmentRepository) ListDueForReminder(clinicID string, from, to time.Time) ([]*model.Appointment, error) {
	query := `
        SELECT` + appointmentColumns + `
        FROM appointments a
        JOIN patients p ON p.id = a.patient_id
        WHERE a.clinic_id = $1
          AND a.status IN ('pending', 'confirmed')
          AND a.reminder_sent = FALSE
          AND a.starts_at >= $2
          AND a.starts_at < $3
        ORDER BY a.starts_at
    `
	return r.queryAppointments(query, clinicID, from, to)
}

// ListDueForSurvey returns completed appointments strictly inside the
// (newerThan, olderThan) window with no survey row yet. Both bounds are
// exclusive: an appointment exactly 24h or 48h old is not selected.
func (r *AppointmentRepository) ListDueForSurvey(clinicID string, olderThan, newerThan time.Time) ([]*model.Appointment, error) {
	query := `
        SELECT` + appointmentColumns + `
        FROM appointments a
        JOIN patients p ON p.id = a.patient_id
        WHERE a.clinic_id = $1
          AND a.status = 'completed'
          AND a.starts_at < $2
          AND a.starts_at > $3
          AND NOT EXISTS (
              SELECT 1 FROM satisfaction_surveys s WHERE s.appointment_id = a.id
          )
        ORDER BY a.starts_at
    `
	return r.queryAppointments(query, clinicID, olderThan, newerThan)
}

// ListDueForUpsell returns completed appointments whose service has
// upselling enabled and whose target date (start + offset days) has
// passed but by no more than the staleness bound.
func (r *AppointmentRepository) ListDueForUpsell(clinicID string, now, staleBefore time.Time) ([]*UpsellCandidate, error) {
	query := `
        SELECT` + appointmentColumns + `,
            s.upsell_message, s.upsell_offset_days
        FROM appointments a
        JOIN patients p ON p.id = a.patient_id
        JOIN clinic_services s ON s.id = a.service_id
        WHERE a.clinic_id = $1
          AND a.status = 'completed'
          AND a.upsell_sent_at IS NULL
          AND s.upsell_enabled = TRUE
          AND a.starts_at + make_interval(days => s.upsell_offset_days) <= $2
          AND a.starts_at + make_interval(days => s.upsell_offset_days) >= $3
        ORDER BY a.starts_at
    `
	rows, err := r.DB.Query(query, clinicID, now, staleBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := []*UpsellCandidate{}
	for rows.Next() {
		c := &UpsellCandidate{}
		err := rows.Scan(
			&c.ID, &c.ClinicID, &c.PatientID, &c.ServiceID, &c.StartsAt, &c.Status,
			&c.ReminderSent, &c.ReminderSentAt, &c.UpsellSentAt,
			&c.PatientName, &c.PatientPhone,
			&c.UpsellMessage, &c.UpsellOffsetDays,
		)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (r *AppointmentRepository) queryAppointments(query string, args ...interface{}) ([]*model.Appointment, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := []*model.Appointment{}
	for rows.Next() {
		apt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, apt)
	}
	return appointments, rows.Err()
}

// ====================== Idempotency claims ======================

// ClaimReminder atomically sets the reminder marker. It returns false if
// another run already holds it, which closes the select-then-send race.
func (r *AppointmentRepository) ClaimReminder(id string) (bool, error) {
	query := `
        UPDATE appointments
        SET reminder_sent = TRUE, reminder_sent_at = NOW()
        WHERE id = $1 AND reminder_sent = FALSE
    `
	res, err := r.DB.Exec(query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *AppointmentRepository) ReleaseReminder(id string) error {
	query := `UPDATE appointments SET reminder_sent = FALSE, reminder_sent_at = NULL WHERE id = $1`
	_, err := r.DB.Exec(query, id)
	return err
}

func (r *AppointmentRepository) ClaimUpsell(id string) (bool, error) {
	query := `
        UPDATE appointments
        SET upsell_sent_at = NOW()
        WHERE id = $1 AND upsell_sent_at IS NULL
    `
	res, err := r.DB.Exec(query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *AppointmentRepository) ReleaseUpsell(id string) error {
	query := `UPDATE appointments SET upsell_sent_at = NULL WHERE id = $1`
	_, err := r.DB.Exec(query, id)
	return err
}

var _ AppointmentRepositoryInterface = (*AppointmentRepository)(nil)
