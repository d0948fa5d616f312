// internal/service/notification_service.go
package service

import (
	"fmt"
	"time"

	"github.com/clinicdesk/notify-backend/internal/model"
	"github.com/clinicdesk/notify-backend/internal/repository"
	"github.com/clinicdesk/notify-backend/internal/whatsapp"
)

// Trigger kinds.
const (
	KindReminder = "reminder"
	KindSurvey   = "survey"
	KindUpsell   = "upsell"
	KindCampaign = "campaign"
)

// NotificationService owns the reminder, survey and upsell trigger
// runners. Each runner selects its candidate set, wires the trigger's
// idempotency claim into the candidates and hands them to the shared
// dispatch engine. Runners share no state and may run concurrently; all
// queries are clinic-scoped.
type NotificationService struct {
	AppointmentRepo repository.AppointmentRepositoryInterface
	SurveyRepo      repository.SurveyRepositoryInterface
	ClinicRepo      repository.ClinicRepositoryInterface
	Engine          *DispatchEngine

	// ReminderWindowStrategy picks between next_day and rolling window
	// semantics, see windows.go.
	ReminderWindowStrategy string
}

// RunReminders processes the reminder trigger for every clinic that has
// reminders enabled. A selector failure is run-fatal.
func (s *NotificationService) RunReminders(now time.Time) (*RunSummary, error) {
	clinics, err := s.ClinicRepo.ListWithRemindersEnabled()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clinics: %w", err)
	}

	candidates := []Candidate{}
	for i := range clinics {
		clinic := &clinics[i]
		from, to := ReminderWindow(s.ReminderWindowStrategy, now, clinic)
		appointments, err := s.AppointmentRepo.ListDueForReminder(clinic.ID, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch reminder candidates for clinic %s: %w", clinic.ID, err)
		}
		for _, apt := range appointments {
			candidates = append(candidates, s.reminderCandidate(apt))
		}
	}

	return s.Engine.Run(KindReminder, candidates), nil
}

// RunSurveys processes the satisfaction survey trigger for all clinics.
func (s *NotificationService) RunSurveys(now time.Time) (*RunSummary, error) {
	clinics, err := s.ClinicRepo.ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clinics: %w", err)
	}

	olderThan, newerThan := SurveyWindow(now)
	candidates := []Candidate{}
	for i := range clinics {
		appointments, err := s.AppointmentRepo.ListDueForSurvey(clinics[i].ID, olderThan, newerThan)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch survey candidates for clinic %s: %w", clinics[i].ID, err)
		}
		for _, apt := range appointments {
			candidates = append(candidates, s.surveyCandidate(apt))
		}
	}

	return s.Engine.Run(KindSurvey, candidates), nil
}

// RunUpsells processes the upsell follow-up trigger for all clinics.
func (s *NotificationService) RunUpsells(now time.Time) (*RunSummary, error) {
	clinics, err := s.ClinicRepo.ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clinics: %w", err)
	}

	latest, staleBefore := UpsellWindow(now)
	candidates := []Candidate{}
	for i := range clinics {
		due, err := s.AppointmentRepo.ListDueForUpsell(clinics[i].ID, latest, staleBefore)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch upsell candidates for clinic %s: %w", clinics[i].ID, err)
		}
		for _, c := range due {
			candidates = append(candidates, s.upsellCandidate(c))
		}
	}

	return s.Engine.Run(KindUpsell, candidates), nil
}

// RunReminderForAppointment is the manual one-shot trigger for a single
// appointment. The temporal window is not applied; the idempotency claim
// still is, so repeating the action cannot double-send.
func (s *NotificationService) RunReminderForAppointment(appointmentID string) (*RunSummary, error) {
	apt, err := s.AppointmentRepo.GetByID(appointmentID)
	if err != nil {
		return nil, err
	}
	if apt.Status != model.AppointmentPending && apt.Status != model.AppointmentConfirmed {
		return nil, fmt.Errorf("appointment %s is %s, reminders only apply to pending or confirmed appointments", apt.ID, apt.Status)
	}
	return s.Engine.Run(KindReminder, []Candidate{s.reminderCandidate(apt)}), nil
}

// RunSurveyForAppointment is the manual one-shot survey trigger.
func (s *NotificationService) RunSurveyForAppointment(appointmentID string) (*RunSummary, error) {
	apt, err := s.AppointmentRepo.GetByID(appointmentID)
	if err != nil {
		return nil, err
	}
	if apt.Status != model.AppointmentCompleted {
		return nil, fmt.Errorf("appointment %s is %s, surveys only apply to completed appointments", apt.ID, apt.Status)
	}
	return s.Engine.Run(KindSurvey, []Candidate{s.surveyCandidate(apt)}), nil
}

func (s *NotificationService) reminderCandidate(apt *model.Appointment) Candidate {
	return Candidate{
		ID:       apt.ID,
		ClinicID: apt.ClinicID,
		Phone:    apt.PatientPhone,
		Message: whatsapp.TemplateMessage(
			"appointment_reminder",
			apt.PatientName,
			apt.StartsAt.Format("02.01.2006"),
			apt.StartsAt.Format("15:04"),
		),
		Claim: func() (bool, error) {
			return s.AppointmentRepo.ClaimReminder(apt.ID)
		},
		Release: func(error) error {
			return s.AppointmentRepo.ReleaseReminder(apt.ID)
		},
	}
}

func (s *NotificationService) surveyCandidate(apt *model.Appointment) Candidate {
	var surveyID string
	return Candidate{
		ID:       apt.ID,
		ClinicID: apt.ClinicID,
		Phone:    apt.PatientPhone,
		Message:  whatsapp.TemplateMessage("satisfaction_survey", apt.PatientName),
		Claim: func() (bool, error) {
			survey, claimed, err := s.SurveyRepo.Claim(apt.ID, apt.ClinicID)
			if err != nil {
				return false, err
			}
			if claimed {
				surveyID = survey.ID
			}
			return claimed, nil
		},
		Release: func(error) error {
			return s.SurveyRepo.Release(surveyID)
		},
		OnSent: func(providerMessageID string) error {
			return s.SurveyRepo.SetProviderMessageID(surveyID, providerMessageID)
		},
	}
}

func (s *NotificationService) upsellCandidate(c *repository.UpsellCandidate) Candidate {
	apt := c.Appointment
	body := RenderTemplate(c.UpsellMessage, map[string]string{
		"patient_name": apt.PatientName,
	})
	return Candidate{
		ID:       apt.ID,
		ClinicID: apt.ClinicID,
		Phone:    apt.PatientPhone,
		Message:  whatsapp.TextMessage(body),
		Claim: func() (bool, error) {
			return s.AppointmentRepo.ClaimUpsell(apt.ID)
		},
		Release: func(error) error {
			return s.AppointmentRepo.ReleaseUpsell(apt.ID)
		},
	}
}
