package main

import (
	"encoding/json"
	stdlog "log"
	"os"

	"github.com/joho/godotenv"
	"github.com/streadway/amqp"

	"github.com/clinicdesk/notify-backend/internal/config"
	"github.com/clinicdesk/notify-backend/internal/db"
	"github.com/clinicdesk/notify-backend/internal/queue"
	"github.com/clinicdesk/notify-backend/internal/repository"
	"github.com/clinicdesk/notify-backend/internal/service"
	"github.com/clinicdesk/notify-backend/internal/whatsapp"
	"github.com/clinicdesk/notify-backend/pkg/logger"
)

const maxDeliveryRetries = 3

func main() {
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

	gateway, err := whatsapp.NewClient(cfg.WhatsAppBaseURL)
	if err != nil {
		log.WithError(err).Fatal("whatsapp client setup failed")
	}

	appointmentRepo := &repository.AppointmentRepository{DB: conn}
	surveyRepo := &repository.SurveyRepository{DB: conn}
	clinicRepo := &repository.ClinicRepository{DB: conn}
	patientRepo := &repository.PatientRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	messageLogRepo := &repository.MessageLogRepository{DB: conn}

	engine := &service.DispatchEngine{
		Gateway:   gateway,
		Clinics:   clinicRepo,
		Logs:      messageLogRepo,
		Logger:    log,
		SendDelay: cfg.SendDelay,
	}

	runner := &service.TriggerRunner{
		Notifications: &service.NotificationService{
			AppointmentRepo:        appointmentRepo,
			SurveyRepo:             surveyRepo,
			ClinicRepo:             clinicRepo,
			Engine:                 engine,
			ReminderWindowStrategy: cfg.ReminderWindowStrategy,
		},
		Campaigns: &service.CampaignService{
			CampaignRepo: campaignRepo,
			PatientRepo:  patientRepo,
			Engine:       engine,
			Logger:       log,
		},
		Logger: log,
	}

	// Connect to RabbitMQ
	amqpConn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to RabbitMQ")
	}
	defer amqpConn.Close()

	ch, err := amqpConn.Channel()
	if err != nil {
		log.WithError(err).Fatal("failed to open a channel")
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		queue.TriggersQueue, // name
		true,                // durable
		false,               // delete when unused
		false,               // exclusive
		false,               // no-wait
		nil,                 // arguments
	)
	if err != nil {
		log.WithError(err).Fatal("failed to declare queue")
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.WithError(err).Fatal("failed to register consumer")
	}

	log.Info("worker running, waiting for trigger jobs")

	for d := range msgs {
		var job queue.TriggerJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			log.WithError(err).Warn("invalid trigger job, dropping")
			d.Ack(false)
			continue
		}

		if err := runner.Run(job); err != nil {
			// Republish run-fatal failures with the retry count
			// incremented; the idempotency claims make re-running a
			// trigger safe. Nack-requeue would keep the original
			// headers and retry forever.
			if queue.DeliveryRetryCount(d.Headers) >= maxDeliveryRetries {
				log.WithTrigger(job.Trigger).Error("trigger job dropped after retries")
			} else if pubErr := ch.Publish("", q.Name, false, false, queue.RetryPublishing(d)); pubErr != nil {
				log.WithTrigger(job.Trigger).WithError(pubErr).Error("failed to republish trigger job")
				d.Nack(false, true)
				continue
			}
		}

		d.Ack(false)
	}
}
