package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/roadrunner-rentals/service-rental/internal/application"
	"github.com/roadrunner-rentals/service-rental/internal/config"
	"github.com/roadrunner-rentals/service-rental/internal/domain/payment"
	rentalEvents "github.com/roadrunner-rentals/service-rental/internal/events"
	"github.com/roadrunner-rentals/service-rental/internal/handler"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/auth"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/database"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/health"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/kafka"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/logger"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/middleware"
	"github.com/roadrunner-rentals/service-rental/internal/repository"
	"go.uber.org/zap"
)

const serviceName = "service-rental"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
		DSN:      cfg.DBConfig.DSN,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations. SQLite stores are created from the models.
	if dbConfig.IsSQLite() {
		if err := db.AutoMigrate(repository.AllModels()...); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (sqlite auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), cfg.MigrationsPath, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, 15*time.Minute)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize repositories
	repos := application.Repositories{
		Vehicles: repository.NewGormVehicleRepository(db),
		Packages: repository.NewGormPackageRepository(db),
		Bookings: repository.NewGormBookingRepository(db),
		Payments: repository.NewGormPaymentRepository(db),
		Offers:   repository.NewGormOfferRepository(db),
	}
	transactor := repository.NewGormTransactor(db)

	// Initialize payment strategies
	registry, err := payment.NewRegistryFor(cfg.PaymentConfig.Methods)
	if err != nil {
		log.Fatal("invalid payment configuration", zap.Error(err))
	}
	log.Info("payment methods enabled", zap.Strings("methods", registry.Methods()))

	// Initialize application services
	opts := []application.Option{application.WithTrustClientTotal(cfg.PricingConfig.TrustClientTotal)}
	bookingService := application.NewBookingService(transactor, repos, registry, kafkaProducer, log, opts...)
	paymentService := application.NewPaymentService(transactor, repos, registry, kafkaProducer, log, opts...)
	fleetService := application.NewFleetService(transactor, repos, log, opts...)
	offerService := application.NewOfferService(repos.Offers, log, opts...)

	// Initialize and start cashier event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "rental-service"
	cashierConsumer := rentalEvents.NewCashierEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		paymentService,
		log,
	)
	defer func() { _ = cashierConsumer.Close() }()

	go func() {
		log.Info("starting cashier event consumer")
		if err := cashierConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("cashier event consumer error", zap.Error(err))
		}
	}()

	// Setup Gin router
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, serviceName)
	healthHandler.RegisterRoutes(router)

	// Register routes
	handler.NewBookingHandler(bookingService, paymentService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewPaymentHandler(paymentService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewFleetHandler(fleetService, bookingService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewOfferHandler(offerService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAdminBookingHandler(bookingService, paymentService).RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}
