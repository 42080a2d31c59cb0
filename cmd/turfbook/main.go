package main

import (
	accountshandler "turfbook/internal/accounts/handler"
	accountsrepository "turfbook/internal/accounts/repository"
	accountsservice "turfbook/internal/accounts/service"
	accountsvalidator "turfbook/internal/accounts/validator"
	bookingshandler "turfbook/internal/bookings/handler"
	bookingsrepository "turfbook/internal/bookings/repository"
	bookingsservice "turfbook/internal/bookings/service"
	bookingsvalidator "turfbook/internal/bookings/validator"
	turfshandler "turfbook/internal/turfs/handler"
	turfsrepository "turfbook/internal/turfs/repository"
	turfsservice "turfbook/internal/turfs/service"
	turfsvalidator "turfbook/internal/turfs/validator"
	"turfbook/pkg/app"
	"turfbook/pkg/auth"
	"turfbook/pkg/config"
	"turfbook/pkg/contracts"
	"turfbook/pkg/events"
	"turfbook/pkg/middleware"
)

const ServiceName = "turfbook"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting turfbook service")

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	gate := middleware.NewAccessGate(issuer, cfg.Log)
	publisher := initPublisher(cfg)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(initHandlers(cfg, issuer, gate, publisher), publisher)
	serverApp.Run()
}

func initHandlers(
	cfg *config.Config,
	issuer *auth.TokenIssuer,
	gate *middleware.AccessGate,
	publisher events.Publisher,
) contracts.Handler {

	userRepo := accountsrepository.NewMongoUserRepository(cfg)
	accountService := accountsservice.NewAccountService(
		userRepo,
		accountsvalidator.NewAccountValidator(),
		auth.NewPasswordHasher(cfg.BcryptCost),
		issuer,
		cfg,
	)

	turfRepo := turfsrepository.NewMongoTurfRepository(cfg)
	bookingRepo := bookingsrepository.NewMongoBookingRepository(cfg)
	bookingLockRepo := bookingsrepository.NewBookingLockRepository(cfg)

	turfService := turfsservice.NewTurfService(
		turfRepo,
		bookingRepo,
		bookingLockRepo,
		turfsvalidator.NewTurfValidator(),
		cfg,
	)
	bookingService := bookingsservice.NewBookingService(
		bookingRepo,
		bookingLockRepo,
		turfRepo,
		bookingsvalidator.NewBookingValidator(),
		publisher,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	return contracts.Composite{
		accountshandler.NewAccountHandler(accountService, cfg.Log),
		turfshandler.NewTurfHandler(turfService, gate, cfg.Log),
		bookingshandler.NewBookingHandler(bookingService, gate, cfg.Log),
	}
}

func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.EventsEnabled() {
		cfg.Log.Info("Event publishing disabled, no Kafka brokers configured")
		return events.NopPublisher{}
	}

	cfg.Log.Info("Event publishing enabled",
		"brokers", cfg.KafkaBrokers,
		"topic", cfg.KafkaBookingTopic,
	)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaBookingTopic, cfg.Log)
}
