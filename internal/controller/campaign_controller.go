// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/clinicdesk/notify-backend/internal/errors"
	"github.com/clinicdesk/notify-backend/internal/queue"
	"github.com/clinicdesk/notify-backend/internal/service"
	"github.com/clinicdesk/notify-backend/pkg/logger"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Queue           queue.Queue
	Logger          *logger.Logger
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClinicID   string  `json:"clinic_id"`
		Name       string  `json:"name"`
		Template   string  `json:"template"`
		SegmentTag *string `json:"segment_tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if body.ClinicID == "" {
		writeError(w, http.StatusBadRequest, "clinic_id is required")
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(body.ClinicID, body.Name, body.Template, body.SegmentTag)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	clinicID := r.URL.Query().Get("clinic_id")
	status := r.URL.Query().Get("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, clinicID, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	details, err := c.CampaignService.GetCampaignDetailsWithStats(id)
	if err != nil {
		var notFound *appErrors.ErrCampaignNotFound
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// LaunchCampaign starts a campaign run. With {"async": true} the run is
// handed to the worker over the trigger queue instead of blocking the
// request.
func (c *CampaignController) LaunchCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Async bool `json:"async"`
	}
	// Body is optional
	_ = json.NewDecoder(r.Body).Decode(&body)

	if body.Async {
		job := queue.TriggerJob{Trigger: service.KindCampaign, CampaignID: id}
		if err := c.Queue.Publish(queue.TriggersQueue, job); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to enqueue campaign run: "+err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"success":     true,
			"campaign_id": id,
			"queued":      true,
		})
		return
	}

	summary, err := c.CampaignService.LaunchCampaign(id)
	if err != nil {
		status := http.StatusInternalServerError
		var notFound *appErrors.ErrCampaignNotFound
		var badStatus *appErrors.ErrInvalidCampaignStatus
		if errors.As(err, &notFound) {
			status = http.StatusNotFound
		} else if errors.As(err, &badStatus) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"processed": summary.Processed,
		"sent":      summary.Sent,
		"skipped":   summary.Skipped,
		"errored":   summary.Errored,
		"details":   summary.Details,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
