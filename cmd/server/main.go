// cmd/server/main.go
package main

import (
	stdlog "log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/clinicdesk/notify-backend/internal/config"
	"github.com/clinicdesk/notify-backend/internal/controller"
	"github.com/clinicdesk/notify-backend/internal/db"
	"github.com/clinicdesk/notify-backend/internal/handler"
	"github.com/clinicdesk/notify-backend/internal/queue"
	"github.com/clinicdesk/notify-backend/internal/repository"
	"github.com/clinicdesk/notify-backend/internal/service"
	"github.com/clinicdesk/notify-backend/internal/whatsapp"
	"github.com/clinicdesk/notify-backend/pkg/logger"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		stdlog.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer conn.Close()

	appointmentRepo := &repository.AppointmentRepository{DB: conn}
	surveyRepo := &repository.SurveyRepository{DB: conn}
	clinicRepo := &repository.ClinicRepository{DB: conn}
	patientRepo := &repository.PatientRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	messageLogRepo := &repository.MessageLogRepository{DB: conn}

	gateway, err := whatsapp.NewClient(cfg.WhatsAppBaseURL)
	if err != nil {
		log.WithError(err).Fatal("whatsapp client setup failed")
	}

	engine := &service.DispatchEngine{
		Gateway:   gateway,
		Clinics:   clinicRepo,
		Logs:      messageLogRepo,
		Logger:    log,
		SendDelay: cfg.SendDelay,
	}

	notificationService := &service.NotificationService{
		AppointmentRepo:        appointmentRepo,
		SurveyRepo:             surveyRepo,
		ClinicRepo:             clinicRepo,
		Engine:                 engine,
		ReminderWindowStrategy: cfg.ReminderWindowStrategy,
	}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		PatientRepo:  patientRepo,
		Engine:       engine,
		Logger:       log,
	}

	// Prefer RabbitMQ for async campaign runs; fall back to the
	// in-process queue when no broker is reachable.
	var q queue.Queue
	if amqpConn, err := amqp.Dial(cfg.AMQPURL); err == nil {
		q, err = queue.NewAMQPQueue(amqpConn)
		if err != nil {
			log.WithError(err).Fatal("queue setup failed")
		}
		defer amqpConn.Close()
		log.Info("using RabbitMQ trigger queue")
	} else {
		log.WithError(err).Warn("RabbitMQ unreachable, using in-process trigger queue")
		inMem := queue.NewInMemoryQueue(log)
		runner := &service.TriggerRunner{
			Notifications: notificationService,
			Campaigns:     campaignService,
			Logger:        log,
		}
		inMem.Subscribe(queue.TriggersQueue, runner.Run)
		q = inMem
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		Queue:           q,
		Logger:          log,
	}

	triggerHandler := &handler.TriggerHandler{
		Notifications: notificationService,
		Campaigns:     campaignService,
		Logger:        log,
	}

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaignDetails)
	r.Post("/campaigns/{id}/launch", campaignController.LaunchCampaign)

	// Trigger routes (scheduled + manual)
	r.Post("/triggers/reminders", triggerHandler.RunReminders)
	r.Post("/triggers/surveys", triggerHandler.RunSurveys)
	r.Post("/triggers/upsells", triggerHandler.RunUpsells)
	r.Post("/triggers/campaign", triggerHandler.RunCampaign)
	r.Post("/appointments/{id}/reminder", triggerHandler.ReminderForAppointment)
	r.Post("/appointments/{id}/survey", triggerHandler.SurveyForAppointment)

	r.Get("/health", triggerHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	log.WithField("addr", cfg.HTTPAddr).Info("server running")
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
