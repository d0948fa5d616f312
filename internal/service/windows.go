// internal/service/windows.go
package service

import (
	"time"

	"github.com/clinicdesk/notify-backend/internal/config"
	"github.com/clinicdesk/notify-backend/internal/model"
)

// Temporal eligibility bounds shared by the survey and upsell triggers.
// Surveys fire once an appointment has aged past 24h and stop past 48h;
// upsells tolerate at most 48h of catch-up after the target date so a
// cold start cannot blast stale appointments.
const (
	surveyMinAge   = 24 * time.Hour
	surveyMaxAge   = 48 * time.Hour
	upsellMaxDrift = 48 * time.Hour
)

// ReminderWindow computes the [from, to) eligibility window for the
// reminder trigger. The strategy is explicit configuration:
//
//   - next_day: the clinic's whole next calendar day in its timezone,
//     regardless of the configured lead hours (daily-batch semantics).
//   - rolling: now .. now + the clinic's lead hours.
func ReminderWindow(strategy string, now time.Time, clinic *model.Clinic) (time.Time, time.Time) {
	if strategy == config.WindowRolling {
		lead := clinic.ReminderLeadHrs
		if lead <= 0 {
			lead = 24
		}
		return now, now.Add(time.Duration(lead) * time.Hour)
	}

	loc, err := time.LoadLocation(clinic.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	tomorrow := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return tomorrow, tomorrow.AddDate(0, 0, 1)
}

// SurveyWindow returns the exclusive bounds for survey eligibility:
// appointments strictly older than 24h and strictly newer than 48h.
// The first return value is the upper bound on starts_at (olderThan),
// the second the lower bound (newerThan).
func SurveyWindow(now time.Time) (olderThan, newerThan time.Time) {
	return now.Add(-surveyMinAge), now.Add(-surveyMaxAge)
}

// UpsellWindow returns the bounds for the upsell target date: it must
// have passed (<= now) but not by more than the staleness allowance.
func UpsellWindow(now time.Time) (latest, staleBefore time.Time) {
	return now, now.Add(-upsellMaxDrift)
}
