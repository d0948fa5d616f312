package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/notify-backend/internal/model"
)

type MessageLogRepositoryInterface interface {
	Create(log *model.MessageLog) error
}

type MessageLogRepository struct {
	DB *sql.DB
}

// Create inserts a new outbound message log row
func (r *MessageLogRepository) Create(log *model.MessageLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Direction == "" {
		log.Direction = "outbound"
	}
	log.CreatedAt = time.Now()

	query := `
        INSERT INTO message_logs
        (id, clinic_id, phone, direction, content, provider_message_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := r.DB.Exec(
		query,
		log.ID,
		log.ClinicID,
		log.Phone,
		log.Direction,
		log.Content,
		log.ProviderMessageID,
		log.Status,
		log.CreatedAt,
	)
	return err
}

var _ MessageLogRepositoryInterface = (*MessageLogRepository)(nil)
