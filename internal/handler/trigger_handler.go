// internal/handler/trigger_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/clinicdesk/notify-backend/internal/errors"
	"github.com/clinicdesk/notify-backend/internal/metrics"
	"github.com/clinicdesk/notify-backend/internal/service"
	"github.com/clinicdesk/notify-backend/pkg/logger"
)

// TriggerHandler exposes the trigger runners over HTTP. The scheduled
// endpoints take no body; the campaign trigger requires a campaign_id.
type TriggerHandler struct {
	Notifications *service.NotificationService
	Campaigns     *service.CampaignService
	Logger        *logger.Logger
}

func (h *TriggerHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	h.respond(w, service.KindReminder, func() (*service.RunSummary, error) {
		return h.Notifications.RunReminders(time.Now())
	})
}

func (h *TriggerHandler) RunSurveys(w http.ResponseWriter, r *http.Request) {
	h.respond(w, service.KindSurvey, func() (*service.RunSummary, error) {
		return h.Notifications.RunSurveys(time.Now())
	})
}

func (h *TriggerHandler) RunUpsells(w http.ResponseWriter, r *http.Request) {
	h.respond(w, service.KindUpsell, func() (*service.RunSummary, error) {
		return h.Notifications.RunUpsells(time.Now())
	})
}

// RunCampaign is the trigger-style campaign entry point. A missing
// campaign_id is a run-fatal error, not a skip.
func (h *TriggerHandler) RunCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CampaignID string `json:"campaign_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.CampaignID == "" {
		metrics.RunsTotal.WithLabelValues(service.KindCampaign, "fatal").Inc()
		writeError(w, http.StatusBadRequest, "campaign_id is required")
		return
	}

	h.respond(w, service.KindCampaign, func() (*service.RunSummary, error) {
		return h.Campaigns.LaunchCampaign(body.CampaignID)
	})
}

// ReminderForAppointment is the operator-facing one-shot reminder.
func (h *TriggerHandler) ReminderForAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.respond(w, service.KindReminder, func() (*service.RunSummary, error) {
		return h.Notifications.RunReminderForAppointment(id)
	})
}

// SurveyForAppointment is the operator-facing one-shot survey send.
func (h *TriggerHandler) SurveyForAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.respond(w, service.KindSurvey, func() (*service.RunSummary, error) {
		return h.Notifications.RunSurveyForAppointment(id)
	})
}

func (h *TriggerHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *TriggerHandler) respond(w http.ResponseWriter, kind string, run func() (*service.RunSummary, error)) {
	summary, err := run()
	if err != nil {
		metrics.RunsTotal.WithLabelValues(kind, "fatal").Inc()
		h.Logger.WithTrigger(kind).WithError(err).Error("trigger run failed")

		status := http.StatusInternalServerError
		var aptNotFound *appErrors.ErrAppointmentNotFound
		var cmpNotFound *appErrors.ErrCampaignNotFound
		var badStatus *appErrors.ErrInvalidCampaignStatus
		switch {
		case errors.As(err, &aptNotFound), errors.As(err, &cmpNotFound):
			status = http.StatusNotFound
		case errors.As(err, &badStatus):
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}

	metrics.RunsTotal.WithLabelValues(kind, "ok").Inc()
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
