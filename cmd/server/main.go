package main

import (
	"context"
	"errors"
	"log"
	netHttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"exam-portal/auth"
	"exam-portal/config"
	"exam-portal/db"
	"exam-portal/http"
	"exam-portal/http/handlers"
	"exam-portal/http/middleware"
	"exam-portal/logger"
	"exam-portal/models"
	"exam-portal/repository"
	"exam-portal/services"
	"exam-portal/services/kafka"
)

func main() {
	// Determine project root by searching upward for go.mod so relative
	// .env lookups work from any subdirectory.
	if cwd, err := os.Getwd(); err == nil {
		if root := findProjectRoot(cwd); root != "" {
			if err := os.Chdir(root); err != nil {
				log.Fatal("Error changing to project root:", err)
			}
		}
	}

	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig

	logger.SetDefault(logger.New(logger.Config{
		Level: logger.ParseLevel(cfg.LogLevel),
		File:  cfg.LogFile,
	}))
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}
	logger.Info("Configuration loaded: %s", cfg)

	// Initialize database
	if err := db.InitDB(); err != nil {
		logger.Fatal("Error initializing database: %v", err)
	}
	registrations := repository.NewRegistrationRepository(db.DB)
	dlqRepo := repository.NewDLQRepository(db.DB)

	gateway, err := services.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	if err != nil {
		logger.Fatal("Error initializing Razorpay client: %v", err)
	}

	// Kafka is optional; with no brokers events are dropped and the admin
	// retry endpoint reports kafka_disabled.
	brokers := cfg.Brokers()
	dlq := kafka.NewDLQ(brokers, cfg.KafkaDLQTopic, dlqRepo)
	producer := kafka.NewProducer(brokers, cfg.KafkaPaymentsTopic, dlq)

	var (
		events      services.EventPublisher = services.NopPublisher{}
		republisher handlers.Republisher
		kafkaProbe  handlers.Probe
	)
	if producer != nil {
		events, republisher = producer, producer
		kafkaProbe = func(ctx context.Context) bool { return kafka.Ping(ctx, brokers) }
		kafka.EnsureTopics(brokers, cfg.KafkaPaymentsTopic, cfg.KafkaDLQTopic)
	}

	consumer := kafka.NewConsumer(brokers, cfg.KafkaPaymentsTopic, cfg.KafkaConsumerGroup, dlq)
	if consumer != nil {
		mailer, err := services.NewSMTPSender(&cfg)
		if err != nil {
			logger.Warn("Receipt emails disabled: %v", err)
		} else {
			notifier := services.NewReceiptNotifier(registrations, mailer)
			consumer.Handle(models.EventPaymentVerified, notifier.HandlePaymentVerified)
			consumer.Start()
		}
	}

	payments := services.NewPaymentService(registrations, gateway, services.NewSignatureVerifier(cfg.RazorpayKeySecret), events, services.PaymentOptions{
		Currency:       cfg.PaymentCurrency,
		SignatureDebug: cfg.PaymentSignatureDebug,
		GuardPaid:      cfg.PaymentGuardPaid,
	})
	if cfg.PaymentSignatureDebug {
		logger.Warn("PAYMENT_SIGNATURE_DEBUG is on: signature_mismatch responses include expected signatures")
	}
	if cfg.RazorpayWebhookSecret == "" {
		logger.Warn("RAZORPAY_WEBHOOK_SECRET not set: all webhook deliveries will be rejected")
	}
	webhooks := services.NewWebhookService(registrations, events, cfg.RazorpayWebhookSecret)

	sessions := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	trusted, err := middleware.ParseTrustedProxies(cfg.TrustedProxyList())
	if err != nil {
		logger.Fatal("Invalid TRUSTED_PROXIES: %v", err)
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, trusted...)

	// Setup routes
	mux := netHttp.NewServeMux()
	http.SetupRoutes(mux, http.Deps{
		Payments: handlers.NewPaymentHandler(payments),
		Webhooks: handlers.NewWebhookHandler(webhooks),
		Admin:    handlers.NewAdminHandler(sessions, cfg.AdminUsername, cfg.AdminPassword, registrations, dlqRepo, republisher),
		Health:   handlers.Health(registrations.Ping, kafkaProbe),
		Sessions: sessions,
		Limiter:  limiter,
	})

	server := &netHttp.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if limiter != nil {
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					limiter.Cleanup()
				}
			}
		}()
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, netHttp.ErrServerClosed) {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Shutdown signal received, draining requests...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down server: %v", err)
	}

	if err := consumer.Stop(); err != nil {
		logger.Error("Error stopping Kafka consumer: %v", err)
	}
	if err := producer.Close(); err != nil {
		logger.Error("Error closing Kafka producer: %v", err)
	}
	if err := dlq.Close(); err != nil {
		logger.Error("Error closing Kafka DLQ writer: %v", err)
	}
	if err := db.Close(); err != nil {
		logger.Error("Error closing database: %v", err)
	}

	logger.Info("Server shutdown complete")
}

// findProjectRoot walks up from start and returns the first directory containing go.mod
func findProjectRoot(start string) string {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir || strings.HasSuffix(dir, ":\\") || parent == "" {
			break
		}
		dir = parent
	}
	return ""
}
