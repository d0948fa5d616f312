package controller_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/notify-backend/internal/controller"
	appErrors "github.com/clinicdesk/notify-backend/internal/errors"
	"github.com/clinicdesk/notify-backend/internal/model"
	"github.com/clinicdesk/notify-backend/internal/queue"
	"github.com/clinicdesk/notify-backend/internal/service"
	"github.com/clinicdesk/notify-backend/internal/whatsapp"
	"github.com/clinicdesk/notify-backend/pkg/logger"
)

type memCampaignRepo struct {
	campaigns map[string]*model.Campaign
	nextID    int
}

func (r *memCampaignRepo) Create(c *model.Campaign) error {
	r.nextID++
	c.ID = fmt.Sprintf("campaign-%d", r.nextID)
	r.campaigns[c.ID] = c
	return nil
}

func (r *memCampaignRepo) GetByID(id string) (*model.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return c, nil
}

func (r *memCampaignRepo) ListCampaigns(offset, limit int, clinicID, status string) ([]*model.Campaign, int, error) {
	out := []*model.Campaign{}
	for _, c := range r.campaigns {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *memCampaignRepo) UpdateStatus(id, status string) error {
	r.campaigns[id].Status = status
	return nil
}

func (r *memCampaignRepo) UpdateCounts(string, int, int) error { return nil }

func (r *memCampaignRepo) ClaimMessage(campaignID, patientID string) (*model.CampaignMessage, bool, error) {
	return &model.CampaignMessage{ID: "cm-1"}, true, nil
}

func (r *memCampaignRepo) UpdateMessageStatus(string, string, string, string) error { return nil }

func (r *memCampaignRepo) GetCampaignStats(string) (map[string]int, error) {
	return map[string]int{"sent": 0}, nil
}

type memPatientRepo struct{}

func (memPatientRepo) GetByID(string) (*model.Patient, error) { return nil, nil }
func (memPatientRepo) ListBySegment(string, *string) ([]model.Patient, error) {
	return nil, nil
}

type memClinicRepo struct{}

func (memClinicRepo) GetByID(string) (*model.Clinic, error) { return nil, nil }
func (memClinicRepo) ListAll() ([]model.Clinic, error)      { return nil, nil }
func (memClinicRepo) ListWithRemindersEnabled() ([]model.Clinic, error) {
	return nil, nil
}

type memLogRepo struct{}

func (memLogRepo) Create(*model.MessageLog) error { return nil }

type nopSender struct{}

func (nopSender) Send(whatsapp.Credentials, string, whatsapp.Message) (string, error) {
	return "wamid-1", nil
}

type recordingQueue struct {
	published []queue.TriggerJob
}

func (q *recordingQueue) Publish(topic string, job queue.TriggerJob) error {
	q.published = append(q.published, job)
	return nil
}

func (q *recordingQueue) Subscribe(string, func(queue.TriggerJob) error) error { return nil }

func newCampaignRouter() (chi.Router, *memCampaignRepo, *recordingQueue) {
	log := logger.New("error")
	repo := &memCampaignRepo{campaigns: map[string]*model.Campaign{}}
	q := &recordingQueue{}

	ctrl := &controller.CampaignController{
		CampaignService: &service.CampaignService{
			CampaignRepo: repo,
			PatientRepo:  memPatientRepo{},
			Engine: &service.DispatchEngine{
				Gateway: nopSender{},
				Clinics: memClinicRepo{},
				Logs:    memLogRepo{},
				Logger:  log,
			},
			Logger: log,
		},
		Queue:  q,
		Logger: log,
	}

	r := chi.NewRouter()
	r.Post("/campaigns", ctrl.CreateCampaign)
	r.Get("/campaigns", ctrl.ListCampaigns)
	r.Get("/campaigns/{id}", ctrl.GetCampaignDetails)
	r.Post("/campaigns/{id}/launch", ctrl.LaunchCampaign)
	return r, repo, q
}

func do(t *testing.T, router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateCampaign(t *testing.T) {
	router, repo, _ := newCampaignRouter()

	rec := do(t, router, http.MethodPost, "/campaigns",
		`{"clinic_id":"clinic-1","name":"Recall","template":"Hi {first_name}","segment_tag":"vip"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, model.CampaignDraft, created.Status)
	require.NotNil(t, created.SegmentTag)
	assert.Equal(t, "vip", *created.SegmentTag)
	assert.Len(t, repo.campaigns, 1)
}

func TestCreateCampaignMissingClinic(t *testing.T) {
	router, _, _ := newCampaignRouter()

	rec := do(t, router, http.MethodPost, "/campaigns", `{"name":"x","template":"y"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCampaignEmptyName(t *testing.T) {
	router, _, _ := newCampaignRouter()

	rec := do(t, router, http.MethodPost, "/campaigns", `{"clinic_id":"c","name":" ","template":"y"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCampaignDetailsNotFound(t *testing.T) {
	router, _, _ := newCampaignRouter()

	rec := do(t, router, http.MethodGet, "/campaigns/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLaunchCampaignSync(t *testing.T) {
	router, repo, _ := newCampaignRouter()
	repo.campaigns["c-1"] = &model.Campaign{ID: "c-1", ClinicID: "clinic-1", Status: model.CampaignDraft}

	rec := do(t, router, http.MethodPost, "/campaigns/c-1/launch", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, model.CampaignCompleted, repo.campaigns["c-1"].Status)
}

func TestLaunchCampaignAsyncQueuesJob(t *testing.T) {
	router, repo, q := newCampaignRouter()
	repo.campaigns["c-1"] = &model.Campaign{ID: "c-1", ClinicID: "clinic-1", Status: model.CampaignDraft}

	rec := do(t, router, http.MethodPost, "/campaigns/c-1/launch", `{"async":true}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.published, 1)
	assert.Equal(t, service.KindCampaign, q.published[0].Trigger)
	assert.Equal(t, "c-1", q.published[0].CampaignID)
	// The synchronous path was not taken.
	assert.Equal(t, model.CampaignDraft, repo.campaigns["c-1"].Status)
}

func TestLaunchCompletedCampaignConflict(t *testing.T) {
	router, repo, _ := newCampaignRouter()
	repo.campaigns["c-1"] = &model.Campaign{ID: "c-1", Status: model.CampaignCompleted}

	rec := do(t, router, http.MethodPost, "/campaigns/c-1/launch", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListCampaignsEnvelope(t *testing.T) {
	router, repo, _ := newCampaignRouter()
	repo.campaigns["c-1"] = &model.Campaign{ID: "c-1", Status: model.CampaignDraft}

	rec := do(t, router, http.MethodGet, "/campaigns?page=1&page_size=10", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "data")
	assert.Contains(t, resp, "pagination")
}
