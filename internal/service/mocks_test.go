package service_test

import (
	"fmt"
	"sort"
	"time"

	appErrors "github.com/clinicdesk/notify-backend/internal/errors"
	"github.com/clinicdesk/notify-backend/internal/model"
	"github.com/clinicdesk/notify-backend/internal/repository"
	"github.com/clinicdesk/notify-backend/internal/whatsapp"
)

// --- Fake sender ---

type sentRecord struct {
	Creds whatsapp.Credentials
	To    string
	Msg   whatsapp.Message
}

type fakeSender struct {
	sends   []sentRecord
	failFor map[string]bool // phone -> fail delivery
	nextID  int
}

func (s *fakeSender) Send(creds whatsapp.Credentials, to string, msg whatsapp.Message) (string, error) {
	if s.failFor[to] {
		return "", &whatsapp.DeliveryError{StatusCode: 500, Body: "provider rejected"}
	}
	s.sends = append(s.sends, sentRecord{Creds: creds, To: to, Msg: msg})
	s.nextID++
	return fmt.Sprintf("wamid-%d", s.nextID), nil
}

// --- Fake clinic repository ---

type fakeClinicRepo struct {
	clinics map[string]*model.Clinic
}

func (r *fakeClinicRepo) GetByID(id string) (*model.Clinic, error) {
	return r.clinics[id], nil
}

func (r *fakeClinicRepo) ListAll() ([]model.Clinic, error) {
	out := []model.Clinic{}
	for _, c := range r.clinics {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeClinicRepo) ListWithRemindersEnabled() ([]model.Clinic, error) {
	all, _ := r.ListAll()
	out := []model.Clinic{}
	for _, c := range all {
		if c.RemindersEnabled {
			out = append(out, c)
		}
	}
	return out, nil
}

// --- Fake survey repository ---

type fakeSurveyRepo struct {
	byAppointment map[string]*model.SatisfactionSurvey
	nextID        int
}

func newFakeSurveyRepo() *fakeSurveyRepo {
	return &fakeSurveyRepo{byAppointment: map[string]*model.SatisfactionSurvey{}}
}

func (r *fakeSurveyRepo) Claim(appointmentID, clinicID string) (*model.SatisfactionSurvey, bool, error) {
	if _, exists := r.byAppointment[appointmentID]; exists {
		return nil, false, nil
	}
	r.nextID++
	s := &model.SatisfactionSurvey{
		ID:            fmt.Sprintf("survey-%d", r.nextID),
		AppointmentID: appointmentID,
		ClinicID:      clinicID,
		Status:        model.SurveySent,
		SentAt:        time.Now(),
	}
	r.byAppointment[appointmentID] = s
	return s, true, nil
}

func (r *fakeSurveyRepo) Release(surveyID string) error {
	for aptID, s := range r.byAppointment {
		if s.ID == surveyID {
			delete(r.byAppointment, aptID)
			return nil
		}
	}
	return nil
}

func (r *fakeSurveyRepo) SetProviderMessageID(surveyID, providerMessageID string) error {
	for _, s := range r.byAppointment {
		if s.ID == surveyID {
			s.ProviderMessageID = providerMessageID
			return nil
		}
	}
	return fmt.Errorf("survey %s not found", surveyID)
}

func (r *fakeSurveyRepo) GetByAppointmentID(appointmentID string) (*model.SatisfactionSurvey, error) {
	return r.byAppointment[appointmentID], nil
}

// --- Fake appointment repository ---

type fakeAppointmentRepo struct {
	appointments map[string]*model.Appointment
	services     map[string]*model.ClinicService
	surveys      *fakeSurveyRepo
}

func newFakeAppointmentRepo(surveys *fakeSurveyRepo) *fakeAppointmentRepo {
	return &fakeAppointmentRepo{
		appointments: map[string]*model.Appointment{},
		services:     map[string]*model.ClinicService{},
		surveys:      surveys,
	}
}

func (r *fakeAppointmentRepo) GetByID(id string) (*model.Appointment, error) {
	apt, ok := r.appointments[id]
	if !ok {
		return nil, appErrors.NewAppointmentNotFound(id)
	}
	return apt, nil
}

func (r *fakeAppointmentRepo) sorted() []*model.Appointment {
	out := []*model.Appointment{}
	for _, a := range r.appointments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out
}

func (r *fakeAppointmentRepo) ListDueForReminder(clinicID string, from, to time.Time) ([]*model.Appointment, error) {
	out := []*model.Appointment{}
	for _, a := range r.sorted() {
		if a.ClinicID != clinicID || a.ReminderSent {
			continue
		}
		if a.Status != model.AppointmentPending && a.Status != model.AppointmentConfirmed {
			continue
		}
		if a.StartsAt.Before(from) || !a.StartsAt.Before(to) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeAppointmentRepo) ListDueForSurvey(clinicID string, olderThan, newerThan time.Time) ([]*model.Appointment, error) {
	out := []*model.Appointment{}
	for _, a := range r.sorted() {
		if a.ClinicID != clinicID || a.Status != model.AppointmentCompleted {
			continue
		}
		if !a.StartsAt.Before(olderThan) || !a.StartsAt.After(newerThan) {
			continue
		}
		if r.surveys != nil {
			if s, _ := r.surveys.GetByAppointmentID(a.ID); s != nil {
				continue
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeAppointmentRepo) ListDueForUpsell(clinicID string, now, staleBefore time.Time) ([]*repository.UpsellCandidate, error) {
	out := []*repository.UpsellCandidate{}
	for _, a := range r.sorted() {
		if a.ClinicID != clinicID || a.Status != model.AppointmentCompleted || a.UpsellSentAt != nil {
			continue
		}
		svc := r.services[a.ServiceID]
		if svc == nil || !svc.UpsellEnabled {
			continue
		}
		target := a.StartsAt.AddDate(0, 0, svc.UpsellOffsetDays)
		if target.After(now) || target.Before(staleBefore) {
			continue
		}
		out = append(out, &repository.UpsellCandidate{
			Appointment:      *a,
			UpsellMessage:    svc.UpsellMessage,
			UpsellOffsetDays: svc.UpsellOffsetDays,
		})
	}
	return out, nil
}

func (r *fakeAppointmentRepo) ClaimReminder(id string) (bool, error) {
	apt, ok := r.appointments[id]
	if !ok || apt.ReminderSent {
		return false, nil
	}
	now := time.Now()
	apt.ReminderSent = true
	apt.ReminderSentAt = &now
	return true, nil
}

func (r *fakeAppointmentRepo) ReleaseReminder(id string) error {
	if apt, ok := r.appointments[id]; ok {
		apt.ReminderSent = false
		apt.ReminderSentAt = nil
	}
	return nil
}

func (r *fakeAppointmentRepo) ClaimUpsell(id string) (bool, error) {
	apt, ok := r.appointments[id]
	if !ok || apt.UpsellSentAt != nil {
		return false, nil
	}
	now := time.Now()
	apt.UpsellSentAt = &now
	return true, nil
}

func (r *fakeAppointmentRepo) ReleaseUpsell(id string) error {
	if apt, ok := r.appointments[id]; ok {
		apt.UpsellSentAt = nil
	}
	return nil
}

// --- Fake patient repository ---

type fakePatientRepo struct {
	patients []model.Patient
	tags     map[string][]string // patient id -> tags
}

func (r *fakePatientRepo) GetByID(id string) (*model.Patient, error) {
	for i := range r.patients {
		if r.patients[i].ID == id {
			return &r.patients[i], nil
		}
	}
	return nil, nil
}

func (r *fakePatientRepo) ListBySegment(clinicID string, tag *string) ([]model.Patient, error) {
	out := []model.Patient{}
	for _, p := range r.patients {
		if p.ClinicID != clinicID {
			continue
		}
		if tag != nil {
			found := false
			for _, t := range r.tags[p.ID] {
				if t == *tag {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// --- Fake campaign repository ---

type fakeCampaignRepo struct {
	campaigns map[string]*model.Campaign
	messages  map[string]*model.CampaignMessage // campaignID+"/"+patientID
	nextID    int

	statsErr  error
	countsErr error
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{
		campaigns: map[string]*model.Campaign{},
		messages:  map[string]*model.CampaignMessage{},
	}
}

func (r *fakeCampaignRepo) Create(c *model.Campaign) error {
	r.nextID++
	if c.ID == "" {
		c.ID = fmt.Sprintf("campaign-%d", r.nextID)
	}
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	c.CreatedAt = time.Now()
	r.campaigns[c.ID] = c
	return nil
}

func (r *fakeCampaignRepo) GetByID(id string) (*model.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return c, nil
}

func (r *fakeCampaignRepo) ListCampaigns(offset, limit int, clinicID, status string) ([]*model.Campaign, int, error) {
	out := []*model.Campaign{}
	for _, c := range r.campaigns {
		if clinicID != "" && c.ClinicID != clinicID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (r *fakeCampaignRepo) UpdateStatus(campaignID, status string) error {
	c, ok := r.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Status = status
	return nil
}

func (r *fakeCampaignRepo) UpdateCounts(campaignID string, targetCount, sentCount int) error {
	if r.countsErr != nil {
		return r.countsErr
	}
	c, ok := r.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.TargetCount = targetCount
	c.SentCount = sentCount
	return nil
}

func (r *fakeCampaignRepo) ClaimMessage(campaignID, patientID string) (*model.CampaignMessage, bool, error) {
	key := campaignID + "/" + patientID
	if _, exists := r.messages[key]; exists {
		return nil, false, nil
	}
	r.nextID++
	msg := &model.CampaignMessage{
		ID:         fmt.Sprintf("cm-%d", r.nextID),
		CampaignID: campaignID,
		PatientID:  patientID,
		Status:     "pending",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	r.messages[key] = msg
	return msg, true, nil
}

func (r *fakeCampaignRepo) UpdateMessageStatus(id, status, lastError, providerMessageID string) error {
	for _, msg := range r.messages {
		if msg.ID == id {
			msg.Status = status
			msg.LastError = lastError
			msg.ProviderMessageID = providerMessageID
			return nil
		}
	}
	return fmt.Errorf("campaign message %s not found", id)
}

func (r *fakeCampaignRepo) GetCampaignStats(campaignID string) (map[string]int, error) {
	if r.statsErr != nil {
		return nil, r.statsErr
	}
	stats := map[string]int{"pending": 0, "sent": 0, "failed": 0}
	for _, msg := range r.messages {
		if msg.CampaignID == campaignID {
			stats[msg.Status]++
		}
	}
	return stats, nil
}

// --- Fake message log repository ---

type fakeMessageLogRepo struct {
	logs []model.MessageLog
}

func (r *fakeMessageLogRepo) Create(log *model.MessageLog) error {
	if log.Direction == "" {
		log.Direction = "outbound"
	}
	r.logs = append(r.logs, *log)
	return nil
}
