// Package pipeline orchestrates the photo-to-report flow: resolve photo
// bytes, extract each photo concurrently, aggregate, render both documents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/cljackson1279/SiteRecap/aggregator"
	"github.com/cljackson1279/SiteRecap/analyzer"
	"github.com/cljackson1279/SiteRecap/image"
	"github.com/cljackson1279/SiteRecap/metrics"
	"github.com/cljackson1279/SiteRecap/models"
	"github.com/cljackson1279/SiteRecap/parser"
	"github.com/cljackson1279/SiteRecap/render"
)

// ErrNoPhotos is returned when a run is requested with an empty photo set.
// Checked before any model or network call.
var ErrNoPhotos = errors.New("no photos provided")

// Pipeline runs the two-stage report generation. One instance is shared
// across requests; per-run state lives on the stack.
type Pipeline struct {
	analyzer     *analyzer.Analyzer
	aggregator   *aggregator.Aggregator
	http         *http.Client
	workers      int
	fetchTimeout time.Duration
	modelLabel   string
}

func New(an *analyzer.Analyzer, ag *aggregator.Aggregator, workers int, fetchTimeout time.Duration, modelLabel string) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		analyzer:     an,
		aggregator:   ag,
		http:         &http.Client{},
		workers:      workers,
		fetchTimeout: fetchTimeout,
		modelLabel:   modelLabel,
	}
}

// Run generates a full daily report for one project-day. Individual photo
// failures degrade; only an empty photo set or context cancellation aborts
// the run.
func (p *Pipeline) Run(ctx context.Context, req models.GenerateRequest) (*models.GeneratedReport, error) {
	if len(req.Photos) == 0 {
		return nil, ErrNoPhotos
	}

	metrics.PhotosPerReport.Observe(float64(len(req.Photos)))

	analyses := p.extractAll(ctx, req.Photos)

	if err := ctx.Err(); err != nil {
		metrics.ReportsGeneratedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("report generation canceled: %w", err)
	}

	report := p.aggregator.Aggregate(ctx, analyses, req.ProjectName, req.Date)

	if err := ctx.Err(); err != nil {
		metrics.ReportsGeneratedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("report generation canceled: %w", err)
	}

	out := &models.GeneratedReport{
		OwnerMarkdown: render.RenderOwner(report, req.Weather, req.ProjectName, req.Date),
		GCMarkdown:    render.RenderGC(report, req.Weather, req.ProjectName, req.Date),
		Report:        report,
		Debug: models.ReportDebug{
			PhotosAnalyzed:  len(req.Photos),
			WeatherIncluded: req.Weather != nil,
			ModelUsed:       p.modelLabel,
		},
	}

	result := "ok"
	if report.Error || anyDegraded(analyses) {
		result = "degraded"
	}
	metrics.ReportsGeneratedTotal.WithLabelValues(result).Inc()

	return out, nil
}

// extractAll fans the photos out over a bounded worker pool. Indices are
// assigned from submission order (1-based) before any work starts, so
// concurrency never changes which photo is which.
func (p *Pipeline) extractAll(ctx context.Context, photos []models.PhotoInput) []models.PhotoAnalysis {
	analyses := make([]models.PhotoAnalysis, len(photos))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				analyses[i] = p.extractOne(ctx, photos[i], i+1)
			}
		}()
	}

	for i := range photos {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return analyses
}

func (p *Pipeline) extractOne(ctx context.Context, photo models.PhotoInput, photoIndex int) models.PhotoAnalysis {
	if ctx.Err() != nil {
		return parser.DegradedPhotoAnalysis(photoIndex)
	}

	data, err := p.resolve(ctx, photo)
	if err != nil {
		log.WithError(err).WithField("photo_index", photoIndex).
			Warn("could not resolve photo, degrading")
		metrics.ExtractionTotal.WithLabelValues("degraded").Inc()
		return parser.DegradedPhotoAnalysis(photoIndex)
	}

	data = image.Normalize(data)

	if taken, ok := image.CaptureTime(data); ok {
		log.WithField("photo_index", photoIndex).
			WithField("captured_at", taken.Format(time.RFC3339)).
			Debug("photo capture time")
	}

	return p.analyzer.AnalyzePhoto(ctx, data, photoIndex)
}

// resolve turns a PhotoInput into raw bytes. Inline bytes win over a URL.
func (p *Pipeline) resolve(ctx context.Context, photo models.PhotoInput) ([]byte, error) {
	if len(photo.Bytes) > 0 {
		return photo.Bytes, nil
	}
	if photo.URL == "" {
		return nil, errors.New("photo has neither bytes nor URL")
	}

	fetchCtx := ctx
	if p.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.fetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(fetchCtx, "GET", photo.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photo fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo body: %w", err)
	}
	return data, nil
}

func anyDegraded(analyses []models.PhotoAnalysis) bool {
	for _, a := range analyses {
		if a.Error {
			return true
		}
	}
	return false
}
