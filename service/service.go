package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apex/log"

	"github.com/cljackson1279/SiteRecap/aggregator"
	"github.com/cljackson1279/SiteRecap/analyzer"
	"github.com/cljackson1279/SiteRecap/config"
	"github.com/cljackson1279/SiteRecap/database"
	"github.com/cljackson1279/SiteRecap/gemini"
	"github.com/cljackson1279/SiteRecap/llm"
	"github.com/cljackson1279/SiteRecap/models"
	"github.com/cljackson1279/SiteRecap/openai"
	"github.com/cljackson1279/SiteRecap/pipeline"
	"github.com/cljackson1279/SiteRecap/rabbitmq"
	"github.com/cljackson1279/SiteRecap/stubllm"
	"github.com/cljackson1279/SiteRecap/weather"
)

// Service composes the report pipeline with its side-effecting collaborators:
// weather lookup, persistence, and event publishing.
type Service struct {
	config    *config.Config
	db        *database.Database
	llmClient llm.Client
	pipeline  *pipeline.Pipeline
	weather   *weather.Client
	publisher *rabbitmq.Publisher
}

// NewService creates the report generation service.
func NewService(cfg *config.Config, db *database.Database) *Service {
	var client llm.Client
	var selectedModel string
	switch cfg.LLMProvider {
	case "openai":
		client = openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		selectedModel = cfg.OpenAIModel
	case "stub":
		client = stubllm.NewClient()
		selectedModel = "stub"
	default:
		client = gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMRequestsPerSecond)
		selectedModel = cfg.GeminiModel
	}
	log.Infof("Report LLM provider=%s model=%s", client.SourceName(), selectedModel)

	an := analyzer.New(client, cfg.ExtractionTimeout)
	ag := aggregator.New(client, cfg.AggregationTimeout)
	pipe := pipeline.New(an, ag, cfg.MaxConcurrentExtractions, cfg.PhotoFetchTimeout, client.SourceName())

	var publisher *rabbitmq.Publisher
	if cfg.RabbitMQURL != "" {
		var err error
		publisher, err = rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize RabbitMQ publisher, continuing without events")
			publisher = nil
		}
	}

	return &Service{
		config:    cfg,
		db:        db,
		llmClient: client,
		pipeline:  pipe,
		weather:   weather.NewClient(cfg.WeatherTimeout),
		publisher: publisher,
	}
}

// Start prepares storage for the service.
func (s *Service) Start() error {
	log.Info("Starting report generation service...")

	if err := s.db.CreateDailyReportsTable(); err != nil {
		return fmt.Errorf("failed to create daily_reports table: %w", err)
	}
	if err := s.db.MigrateDailyReportsTable(); err != nil {
		return fmt.Errorf("failed to migrate daily_reports table: %w", err)
	}
	return nil
}

// Stop releases the service's connections.
func (s *Service) Stop() {
	log.Info("Stopping report generation service...")
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close RabbitMQ publisher")
		}
	}
}

// reportGeneratedEvent is published after every persisted report.
type reportGeneratedEvent struct {
	ProjectID      string `json:"project_id"`
	ReportDate     string `json:"report_date"`
	PhotosAnalyzed int    `json:"photos_analyzed"`
	Degraded       bool   `json:"degraded"`
	ModelUsed      string `json:"model_used"`
}

// GenerateDailyReport runs the full flow for one project-day: optional
// weather lookup, pipeline run, upsert, event publish. Weather and publish
// failures are logged and absorbed; only pipeline and DB errors surface.
func (s *Service) GenerateDailyReport(ctx context.Context, req models.GenerateRequest) (*models.GeneratedReport, error) {
	if req.Weather == nil && (req.Latitude != 0 || req.Longitude != 0) {
		snap, err := s.weather.Current(ctx, req.Latitude, req.Longitude)
		if err != nil {
			log.WithError(err).WithField("project_id", req.ProjectID).
				Warn("weather lookup failed, generating report without weather")
		} else {
			req.Weather = &models.Weather{
				Temperature: snap.Temperature,
				Description: snap.Description,
			}
		}
	}

	generated, err := s.pipeline.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	degraded := generated.Report.Error
	reportJSON, err := json.Marshal(generated.Report)
	if err != nil {
		// Persist the markdowns anyway; the raw JSON is a convenience column.
		log.WithError(err).Warn("failed to serialize report JSON")
		reportJSON = nil
	}

	stored := &models.StoredReport{
		ProjectID:       req.ProjectID,
		ProjectName:     req.ProjectName,
		ReportDate:      req.Date,
		OwnerMarkdown:   generated.OwnerMarkdown,
		GCMarkdown:      generated.GCMarkdown,
		ReportJSON:      string(reportJSON),
		PhotosAnalyzed:  generated.Debug.PhotosAnalyzed,
		WeatherIncluded: generated.Debug.WeatherIncluded,
		ModelUsed:       generated.Debug.ModelUsed,
		Degraded:        degraded,
	}
	if err := s.db.SaveReport(stored); err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}

	if s.publisher != nil {
		event := reportGeneratedEvent{
			ProjectID:      req.ProjectID,
			ReportDate:     req.Date,
			PhotosAnalyzed: generated.Debug.PhotosAnalyzed,
			Degraded:       degraded,
			ModelUsed:      generated.Debug.ModelUsed,
		}
		if err := s.publisher.PublishJSON(s.config.RabbitMQPublishKey, event); err != nil {
			log.WithError(err).Warn("Failed to publish report generated event")
		}
	}

	log.WithField("project_id", req.ProjectID).
		WithField("report_date", req.Date).
		WithField("photos", generated.Debug.PhotosAnalyzed).
		WithField("degraded", degraded).
		Info("daily report generated")

	return generated, nil
}

// GetReport fetches a stored report.
func (s *Service) GetReport(projectID, date string) (*models.StoredReport, error) {
	return s.db.GetReport(projectID, date)
}

// Geocode resolves a site address to coordinates for weather lookups.
func (s *Service) Geocode(ctx context.Context, city, state, postalCode string) (*weather.Location, error) {
	return s.weather.Geocode(ctx, city, state, postalCode)
}
