package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v3")
	api.GET("/health", h.HealthCheck)
	api.POST("/reports/generate", h.GenerateReport)
	return router
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(NewHandlers(nil, nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v3/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestGenerateReportInvalidBody(t *testing.T) {
	router := newTestRouter(NewHandlers(nil, nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v3/reports/generate", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateReportMissingFields(t *testing.T) {
	router := newTestRouter(NewHandlers(nil, nil))

	tests := []struct {
		name string
		body string
	}{
		{"missing project_id", `{"date": "2025-03-14", "photos": [{"url": "http://example.com/1.jpg"}]}`},
		{"missing date", `{"project_id": "p1", "photos": [{"url": "http://example.com/1.jpg"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v3/reports/generate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "required")
		})
	}
}
