// internal/service/trigger_runner.go
package service

import (
	"fmt"
	"time"

	"github.com/clinicdesk/notify-backend/internal/metrics"
	"github.com/clinicdesk/notify-backend/internal/queue"
	"github.com/clinicdesk/notify-backend/pkg/logger"
)

// TriggerRunner executes queued trigger jobs. It is the non-HTTP entry
// point shared by the worker binary and the in-process queue subscriber.
type TriggerRunner struct {
	Notifications *NotificationService
	Campaigns     *CampaignService
	Logger        *logger.Logger
}

// Run executes one trigger job to completion and logs its summary.
func (t *TriggerRunner) Run(job queue.TriggerJob) error {
	var summary *RunSummary
	var err error

	switch job.Trigger {
	case KindReminder:
		summary, err = t.Notifications.RunReminders(time.Now())
	case KindSurvey:
		summary, err = t.Notifications.RunSurveys(time.Now())
	case KindUpsell:
		summary, err = t.Notifications.RunUpsells(time.Now())
	case KindCampaign:
		if job.CampaignID == "" {
			err = fmt.Errorf("campaign trigger job without campaign_id")
		} else {
			summary, err = t.Campaigns.LaunchCampaign(job.CampaignID)
		}
	default:
		err = fmt.Errorf("unknown trigger kind: %q", job.Trigger)
	}

	if err != nil {
		metrics.RunsTotal.WithLabelValues(job.Trigger, "fatal").Inc()
		t.Logger.WithTrigger(job.Trigger).WithError(err).Error("queued trigger run failed")
		return err
	}

	metrics.RunsTotal.WithLabelValues(job.Trigger, "ok").Inc()
	t.Logger.WithTrigger(job.Trigger).WithFields(map[string]interface{}{
		"processed": summary.Processed,
		"sent":      summary.Sent,
		"skipped":   summary.Skipped,
		"errored":   summary.Errored,
	}).Info("queued trigger run finished")
	return nil
}
