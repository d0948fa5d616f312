package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/clinicdesk/notify-backend/internal/errors"
	"github.com/clinicdesk/notify-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	ListCampaigns(offset, limit int, clinicID, status string) ([]*model.Campaign, int, error)
	GetByID(id string) (*model.Campaign, error)
	UpdateStatus(campaignID, status string) error
	UpdateCounts(campaignID string, targetCount, sentCount int) error
	Create(c *model.Campaign) error

	// Campaign messages (per-recipient claim rows)
	ClaimMessage(campaignID, patientID string) (*model.CampaignMessage, bool, error)
	UpdateMessageStatus(id, status, lastError, providerMessageID string) error
	GetCampaignStats(campaignID string) (map[string]int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(c *model.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (id, clinic_id, name, segment_tag, template, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.DB.Exec(query, c.ID, c.ClinicID, c.Name, c.SegmentTag, c.Template, c.Status, c.CreatedAt)
	return err
}

func (r *CampaignRepository) UpdateStatus(campaignID, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

func (r *CampaignRepository) UpdateCounts(campaignID string, targetCount, sentCount int) error {
	query := `UPDATE campaigns SET target_count=$1, sent_count=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.Exec(query, targetCount, sentCount, campaignID)
	return err
}

func (r *CampaignRepository) GetByID(id string) (*model.Campaign, error) {
	query := `
        SELECT id, clinic_id, name, segment_tag, template, status, target_count, sent_count, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.ClinicID, &c.Name, &c.SegmentTag, &c.Template, &c.Status,
		&c.TargetCount, &c.SentCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, clinicID, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT id, clinic_id, name, segment_tag, template, status, target_count, sent_count, created_at, updated_at FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if clinicID != "" {
		query += fmt.Sprintf(" AND clinic_id=$%d", argPos)
		args = append(args, clinicID)
		argPos++
	}
	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(
			&c.ID, &c.ClinicID, &c.Name, &c.SegmentTag, &c.Template, &c.Status,
			&c.TargetCount, &c.SentCount, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	// Count total
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	argPosCount := 1
	if clinicID != "" {
		countQuery += fmt.Sprintf(" AND clinic_id=$%d", argPosCount)
		argsCount = append(argsCount, clinicID)
		argPosCount++
	}
	if status != "" {
		countQuery += fmt.Sprintf(" AND status=$%d", argPosCount)
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// ====================== Campaign messages ======================

// ClaimMessage inserts the per-recipient row if none exists. The UNIQUE
// (campaign_id, patient_id) key makes the insert the atomic claim: a
// re-launched campaign only claims patients no previous run touched.
func (r *CampaignRepository) ClaimMessage(campaignID, patientID string) (*model.CampaignMessage, bool, error) {
	query := `
        INSERT INTO campaign_messages (id, campaign_id, patient_id, status, created_at, updated_at)
        VALUES ($1, $2, $3, 'pending', NOW(), NOW())
        ON CONFLICT (campaign_id, patient_id) DO NOTHING
        RETURNING id, campaign_id, patient_id, status, created_at, updated_at
    `
	var msg model.CampaignMessage
	err := r.DB.QueryRow(query, uuid.New().String(), campaignID, patientID).Scan(
		&msg.ID, &msg.CampaignID, &msg.PatientID, &msg.Status, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// conflict: this patient was already claimed by an earlier run
			return nil, false, nil
		}
		return nil, false, err
	}
	return &msg, true, nil
}

func (r *CampaignRepository) UpdateMessageStatus(id, status, lastError, providerMessageID string) error {
	query := `
        UPDATE campaign_messages
        SET status=$1, last_error=$2, provider_message_id=$3, updated_at=NOW()
        WHERE id=$4
    `
	_, err := r.DB.Exec(query, status, lastError, providerMessageID, id)
	return err
}

func (r *CampaignRepository) GetCampaignStats(campaignID string) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM campaign_messages WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"pending": 0, "sent": 0, "failed": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
