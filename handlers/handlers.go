package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cljackson1279/SiteRecap/database"
	"github.com/cljackson1279/SiteRecap/models"
	"github.com/cljackson1279/SiteRecap/pipeline"
	"github.com/cljackson1279/SiteRecap/service"
)

// Handlers represents the HTTP handlers
type Handlers struct {
	db  *database.Database
	svc *service.Service
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *database.Database, svc *service.Service) *Handlers {
	return &Handlers{db: db, svc: svc}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "siterecap-report-pipeline",
	})
}

// GenerateReport runs the daily report pipeline for one project-day.
func (h *Handlers) GenerateReport(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if req.ProjectID == "" || req.Date == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "project_id and date are required",
		})
		return
	}

	generated, err := h.svc.GenerateDailyReport(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoPhotos) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "At least one photo is required",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate report",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"owner_markdown": generated.OwnerMarkdown,
		"gc_markdown":    generated.GCMarkdown,
		"report":         generated.Report,
		"debug":          generated.Debug,
	})
}

// GetReport returns the stored report for a project and date.
func (h *Handlers) GetReport(c *gin.Context) {
	projectID := c.Param("project_id")
	date := c.Param("date")

	report, err := h.svc.GetReport(projectID, date)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Report not found",
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetStats returns statistics about stored reports
func (h *Handlers) GetStats(c *gin.Context) {
	stats, err := h.db.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get report stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
