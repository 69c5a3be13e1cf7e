package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cljackson1279/SiteRecap/config"
	"github.com/cljackson1279/SiteRecap/database"
	"github.com/cljackson1279/SiteRecap/handlers"
	"github.com/cljackson1279/SiteRecap/metrics"
	"github.com/cljackson1279/SiteRecap/models"
	"github.com/cljackson1279/SiteRecap/pipeline"
	"github.com/cljackson1279/SiteRecap/rabbitmq"
	"github.com/cljackson1279/SiteRecap/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.SetLevelFromString(cfg.LogLevel)

	// Validate required configuration
	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			log.Fatal("GEMINI_API_KEY environment variable is required")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatal("OPENAI_API_KEY environment variable is required")
		}
	case "stub":
		// no credentials needed
	default:
		log.Fatalf("Unknown LLM_PROVIDER %q (expected gemini, openai, or stub)", cfg.LLMProvider)
	}

	metrics.Register()

	// Initialize database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize service
	reportService := service.NewService(cfg, db)
	if err := reportService.Start(); err != nil {
		log.Fatalf("Failed to start report service: %v", err)
	}
	defer reportService.Stop()

	// Initialize handlers
	h := handlers.NewHandlers(db, reportService)

	// Setup HTTP server
	router := gin.Default()
	router.Use(cors.Default())

	// API routes
	api := router.Group("/api/v3")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/stats", h.GetStats)
		api.POST("/reports/generate", h.GenerateReport)
		api.GET("/reports/:project_id/:date", h.GetReport)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Optional RabbitMQ subscriber for queue-driven generation
	var subscriber *rabbitmq.Subscriber
	if cfg.RabbitMQURL != "" {
		subscriber, err = rabbitmq.NewSubscriber(cfg.RabbitMQURL, cfg.RabbitMQExchange, cfg.RabbitMQQueue, cfg.RabbitMQWorkers)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize RabbitMQ subscriber, continuing HTTP-only")
		} else {
			callbacks := map[string]rabbitmq.CallbackFunc{
				cfg.RabbitMQRoutingKey: func(msg *rabbitmq.Message) error {
					var req models.GenerateRequest
					if err := msg.UnmarshalTo(&req); err != nil {
						return rabbitmq.Permanent(err)
					}
					_, err := reportService.GenerateDailyReport(context.Background(), req)
					if errors.Is(err, pipeline.ErrNoPhotos) {
						return rabbitmq.Permanent(err)
					}
					return err
				},
			}
			if err := subscriber.Start(callbacks); err != nil {
				log.WithError(err).Warn("Failed to start RabbitMQ subscriber")
			}
			defer subscriber.Close()
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}
