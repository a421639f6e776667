package main

import (
	"mentorly/internal/schedules/handler"
	"mentorly/internal/schedules/repository"
	"mentorly/internal/schedules/service"
	"mentorly/internal/schedules/validator"
	"mentorly/pkg/app"
	"mentorly/pkg/config"
	"mentorly/pkg/interval"
)

const ServiceName = "schedules"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Schedules service")
	scheduleService := initServices(cfg)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewScheduleHandler(scheduleService, cfg, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.ScheduleService {
	scheduleValidator := validator.NewScheduleValidator(cfg.Log, cfg.MaxPeriodSecs)
	scheduleRepo := repository.NewMongoScheduleRepository(cfg)
	engine := interval.NewEngine(cfg.MaxPeriodSecs)
	scheduleService := service.NewScheduleService(
		scheduleRepo,
		scheduleValidator,
		engine,
		cfg,
	)

	cfg.Log.Info("Schedules service initialized", "database", cfg.MongoDatabaseName)
	return scheduleService
}
