package main

import (
	"os"

	"mentorly/internal/reservations/handler"
	"mentorly/internal/reservations/repository"
	"mentorly/internal/reservations/service"
	"mentorly/internal/reservations/validator"
	"mentorly/pkg/app"
	"mentorly/pkg/config"
	"mentorly/pkg/kafka"
	kafka_config "mentorly/pkg/kafka/config"
	kafka_middleware "mentorly/pkg/kafka/middleware"
	"mentorly/pkg/notify"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Reservations service")
	reservationService := initServices(cfg)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewReservationHandler(reservationService, cfg, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.ReservationService {
	reservationValidator := validator.NewReservationValidator(cfg.Log, cfg.MaxPeriodSecs)
	reservationRepo := repository.NewMongoReservationRepository(cfg)
	lockRepo := repository.NewReservationLockRepository(cfg)

	reservationService := service.NewReservationService(
		reservationRepo,
		lockRepo,
		reservationValidator,
		initNotifier(cfg),
		cfg,
	)

	cfg.Log.Info("Reservation service initialized", "database", cfg.MongoDatabaseName)
	return reservationService
}

// initNotifier wires the Kafka profile notifier when brokers are
// configured. Without brokers the service runs with notifications off.
func initNotifier(cfg *config.Config) notify.ProfileNotifier {
	if os.Getenv(kafka_config.EnvKafkaBrokers) == "" {
		cfg.Log.Warn("KAFKA_BROKERS not set, profile notifications disabled")
		return notify.NopNotifier{}
	}

	kafkaCfg := kafka_config.Load()
	producer, err := kafka.NewProducer(kafkaCfg, cfg.ProfileEventsTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))

	cfg.Log.Info("Kafka profile notifier initialized", "topic", cfg.ProfileEventsTopic)
	return notify.NewKafkaNotifier(producer, ServiceName, cfg.Log)
}
