// internal/service/campaign_service.go
package service

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/clinicdesk/notify-backend/internal/errors"
	"github.com/clinicdesk/notify-backend/internal/model"
	"github.com/clinicdesk/notify-backend/internal/repository"
	"github.com/clinicdesk/notify-backend/internal/whatsapp"
	"github.com/clinicdesk/notify-backend/pkg/logger"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	PatientRepo  repository.PatientRepositoryInterface
	Engine       *DispatchEngine
	Logger       *logger.Logger
}

type CampaignDetails struct {
	ID          string         `json:"id"`
	ClinicID    string         `json:"clinic_id"`
	Name        string         `json:"name"`
	SegmentTag  *string        `json:"segment_tag,omitempty"`
	Template    string         `json:"template"`
	Status      string         `json:"status"`
	TargetCount int            `json:"target_count"`
	SentCount   int            `json:"sent_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at"`
	Stats       map[string]int `json:"stats"`
}

func (s *CampaignService) CreateCampaign(clinicID, name, template string, segmentTag *string) (*model.Campaign, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("campaign name cannot be empty")
	}
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("campaign template cannot be empty")
	}

	c := &model.Campaign{
		ClinicID:   clinicID,
		Name:       name,
		Template:   template,
		SegmentTag: segmentTag,
		Status:     model.CampaignDraft,
	}

	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}

	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, clinicID, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, clinicID, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetailsWithStats fetches a campaign together with its
// per-status message counts.
func (s *CampaignService) GetCampaignDetailsWithStats(campaignID string) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	stats, err := s.CampaignRepo.GetCampaignStats(campaignID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range stats {
		total += n
	}
	stats["total"] = total

	return &CampaignDetails{
		ID:          campaign.ID,
		ClinicID:    campaign.ClinicID,
		Name:        campaign.Name,
		SegmentTag:  campaign.SegmentTag,
		Template:    campaign.Template,
		Status:      campaign.Status,
		TargetCount: campaign.TargetCount,
		SentCount:   campaign.SentCount,
		CreatedAt:   campaign.CreatedAt,
		UpdatedAt:   campaign.UpdatedAt,
		Stats:       stats,
	}, nil
}

// LaunchCampaign runs a campaign to completion. Segment resolution or a
// bad status is run-fatal before any state changes; once the campaign is
// in "sending" any later fatal error forces the "failed" terminal status
// so a campaign can never be left stuck in "sending".
//
// Re-launching is allowed from "sending" and "failed": the per-recipient
// claim rows make the retry target only patients no earlier run claimed.
func (s *CampaignService) LaunchCampaign(campaignID string) (*RunSummary, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	switch campaign.Status {
	case model.CampaignDraft, model.CampaignSending, model.CampaignFailed:
	default:
		return nil, appErrors.NewInvalidCampaignStatus(campaign.ID, campaign.Status)
	}

	patients, err := s.PatientRepo.ListBySegment(campaign.ClinicID, campaign.SegmentTag)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve campaign segment: %w", err)
	}

	if err := s.CampaignRepo.UpdateStatus(campaign.ID, model.CampaignSending); err != nil {
		return nil, err
	}

	summary, err := s.runCampaign(campaign, patients)
	if err != nil {
		if stErr := s.CampaignRepo.UpdateStatus(campaign.ID, model.CampaignFailed); stErr != nil {
			s.Logger.WithComponent("campaign").WithField("campaign_id", campaign.ID).
				WithError(stErr).Error("failed to mark campaign as failed")
		}
		return nil, err
	}

	if err := s.CampaignRepo.UpdateStatus(campaign.ID, model.CampaignCompleted); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *CampaignService) runCampaign(campaign *model.Campaign, patients []model.Patient) (*RunSummary, error) {
	candidates := make([]Candidate, 0, len(patients))
	for i := range patients {
		candidates = append(candidates, s.campaignCandidate(campaign, &patients[i]))
	}

	summary := s.Engine.Run(KindCampaign, candidates)

	stats, err := s.CampaignRepo.GetCampaignStats(campaign.ID)
	if err != nil {
		return summary, fmt.Errorf("failed to fetch campaign stats: %w", err)
	}
	if err := s.CampaignRepo.UpdateCounts(campaign.ID, len(patients), stats["sent"]); err != nil {
		return summary, fmt.Errorf("failed to update campaign counts: %w", err)
	}
	return summary, nil
}

func (s *CampaignService) campaignCandidate(campaign *model.Campaign, patient *model.Patient) Candidate {
	body := RenderTemplate(campaign.Template, map[string]string{
		"first_name": patient.FirstName,
		"last_name":  patient.LastName,
	})

	var messageID string
	return Candidate{
		ID:       patient.ID,
		ClinicID: campaign.ClinicID,
		Phone:    patient.Phone,
		Message:  whatsapp.TextMessage(body),
		Claim: func() (bool, error) {
			msg, claimed, err := s.CampaignRepo.ClaimMessage(campaign.ID, patient.ID)
			if err != nil {
				return false, err
			}
			if claimed {
				messageID = msg.ID
			}
			return claimed, nil
		},
		Release: func(cause error) error {
			// Campaign claims are kept, marked failed: a failed recipient
			// is recorded progress, not a candidate for silent retries.
			return s.CampaignRepo.UpdateMessageStatus(messageID, "failed", cause.Error(), "")
		},
		OnSent: func(providerMessageID string) error {
			return s.CampaignRepo.UpdateMessageStatus(messageID, "sent", "", providerMessageID)
		},
	}
}
