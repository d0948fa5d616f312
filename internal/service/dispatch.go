// internal/service/dispatch.go
package service

import (
	"time"

	"github.com/clinicdesk/notify-backend/internal/metrics"
	"github.com/clinicdesk/notify-backend/internal/model"
	"github.com/clinicdesk/notify-backend/internal/repository"
	"github.com/clinicdesk/notify-backend/internal/whatsapp"
	"github.com/clinicdesk/notify-backend/pkg/logger"
)

// Per-candidate outcome statuses and skip reasons.
const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusError   = "error"

	ReasonNoAPIKey    = "no_api_key"
	ReasonAlreadySent = "already_sent"
)

// Candidate is one record potentially due for a notification, packaged
// with the trigger-specific claim/record hooks so the engine stays
// identical across reminder, survey, upsell and campaign runs.
type Candidate struct {
	ID       string
	ClinicID string
	Phone    string
	Message  whatsapp.Message

	// Claim acquires the idempotency marker atomically. false means a
	// prior run already sent this notification.
	Claim func() (bool, error)
	// Release undoes the claim after a failed delivery so the marker
	// stays "set iff a send was recorded". Receives the delivery error.
	// Optional.
	Release func(cause error) error
	// OnSent records trigger-specific state after a successful send.
	// Optional.
	OnSent func(providerMessageID string) error
}

// Outcome is the per-candidate entry of a run summary.
type Outcome struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	Reason            string `json:"reason,omitempty"`
	Error             string `json:"error,omitempty"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
}

// RunSummary aggregates one trigger run.
type RunSummary struct {
	Processed int       `json:"processed"`
	Sent      int       `json:"sent"`
	Skipped   int       `json:"skipped"`
	Errored   int       `json:"errored"`
	Details   []Outcome `json:"details"`
}

// DispatchEngine is the shared per-run orchestration loop: claim, render,
// send, log, record. Candidates are processed sequentially with a fixed
// delay between sends for provider rate-limit compliance.
type DispatchEngine struct {
	Gateway   whatsapp.Sender
	Clinics   repository.ClinicRepositoryInterface
	Logs      repository.MessageLogRepositoryInterface
	Logger    *logger.Logger
	SendDelay time.Duration
}

// Run processes the candidate set to completion. Per-candidate failures
// are recorded and never abort the run.
func (e *DispatchEngine) Run(kind string, candidates []Candidate) *RunSummary {
	summary := &RunSummary{Details: []Outcome{}}
	creds := map[string]*model.Clinic{}
	log := e.Logger.WithTrigger(kind)

	for _, cand := range candidates {
		summary.Processed++
		outcome := e.dispatch(kind, cand, creds)
		summary.Details = append(summary.Details, outcome)

		switch outcome.Status {
		case StatusSent:
			summary.Sent++
		case StatusSkipped:
			summary.Skipped++
		case StatusError:
			summary.Errored++
			log.WithField("candidate_id", cand.ID).Error(outcome.Error)
		}
		metrics.NotificationsProcessed.WithLabelValues(kind, outcome.Status).Inc()
	}

	log.WithFields(map[string]interface{}{
		"processed": summary.Processed,
		"sent":      summary.Sent,
		"skipped":   summary.Skipped,
		"errored":   summary.Errored,
	}).Info("dispatch run finished")

	return summary
}

func (e *DispatchEngine) dispatch(kind string, cand Candidate, clinicCache map[string]*model.Clinic) Outcome {
	clinic, ok := clinicCache[cand.ClinicID]
	if !ok {
		var err error
		clinic, err = e.Clinics.GetByID(cand.ClinicID)
		if err != nil {
			return Outcome{ID: cand.ID, Status: StatusError, Error: err.Error()}
		}
		clinicCache[cand.ClinicID] = clinic
	}

	// Missing credentials are a skip condition, not an error; the run
	// continues to candidates of other clinics.
	if clinic == nil || !clinic.HasCredentials() {
		return Outcome{ID: cand.ID, Status: StatusSkipped, Reason: ReasonNoAPIKey}
	}

	claimed, err := cand.Claim()
	if err != nil {
		return Outcome{ID: cand.ID, Status: StatusError, Error: err.Error()}
	}
	if !claimed {
		return Outcome{ID: cand.ID, Status: StatusSkipped, Reason: ReasonAlreadySent}
	}

	providerID, err := e.Gateway.Send(whatsapp.Credentials{
		APIKey: clinic.WhatsAppAPIKey,
		Sender: clinic.WhatsAppSender,
	}, cand.Phone, cand.Message)

	e.pause()

	if err != nil {
		// The claim must not survive a failed delivery.
		if cand.Release != nil {
			if relErr := cand.Release(err); relErr != nil {
				e.Logger.WithTrigger(kind).WithField("candidate_id", cand.ID).
					WithError(relErr).Warn("failed to release claim after delivery failure")
			}
		}
		return Outcome{ID: cand.ID, Status: StatusError, Error: err.Error()}
	}

	content := cand.Message.Body
	if cand.Message.Type == "template" {
		content = cand.Message.Template
	}
	if err := e.Logs.Create(&model.MessageLog{
		ClinicID:          cand.ClinicID,
		Phone:             cand.Phone,
		Content:           content,
		ProviderMessageID: providerID,
		Status:            StatusSent,
	}); err != nil {
		e.Logger.WithTrigger(kind).WithField("candidate_id", cand.ID).
			WithError(err).Warn("failed to write message log")
	}

	if cand.OnSent != nil {
		if err := cand.OnSent(providerID); err != nil {
			// The message left the building: report sent, surface the
			// bookkeeping failure in the detail.
			return Outcome{ID: cand.ID, Status: StatusSent, ProviderMessageID: providerID, Error: err.Error()}
		}
	}

	return Outcome{ID: cand.ID, Status: StatusSent, ProviderMessageID: providerID}
}

func (e *DispatchEngine) pause() {
	if e.SendDelay > 0 {
		time.Sleep(e.SendDelay)
	}
}
