package analyzer

import (
	"context"
	"time"

	"github.com/apex/log"

	"github.com/cljackson1279/SiteRecap/llm"
	"github.com/cljackson1279/SiteRecap/metrics"
	"github.com/cljackson1279/SiteRecap/models"
	"github.com/cljackson1279/SiteRecap/parser"
)

// Analyzer runs single-photo vision extraction. It never surfaces an error:
// any failure becomes a degraded analysis so one bad photo cannot sink a
// whole report.
type Analyzer struct {
	client  llm.Client
	timeout time.Duration
}

func New(client llm.Client, timeout time.Duration) *Analyzer {
	return &Analyzer{
		client:  client,
		timeout: timeout,
	}
}

// AnalyzePhoto extracts structured observations from one photo. photoIndex is
// the photo's 1-based submission position and is stamped onto the result;
// the model never sees or assigns it.
func (a *Analyzer) AnalyzePhoto(ctx context.Context, imageData []byte, photoIndex int) models.PhotoAnalysis {
	start := time.Now()

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	response, err := a.client.AnalyzePhoto(callCtx, imageData)
	if err != nil {
		log.WithError(err).WithField("photo_index", photoIndex).
			Warn("photo extraction failed, degrading")
		metrics.ExtractionTotal.WithLabelValues("degraded").Inc()
		metrics.ExtractionDurationSeconds.Observe(time.Since(start).Seconds())
		return parser.DegradedPhotoAnalysis(photoIndex)
	}

	analysis, err := parser.ParsePhotoAnalysis(response)
	if err != nil {
		log.WithError(err).WithField("photo_index", photoIndex).
			Warn("photo analysis failed validation, degrading")
		metrics.ExtractionTotal.WithLabelValues("degraded").Inc()
		metrics.ExtractionDurationSeconds.Observe(time.Since(start).Seconds())
		return parser.DegradedPhotoAnalysis(photoIndex)
	}

	analysis.PhotoIndex = photoIndex
	metrics.ExtractionTotal.WithLabelValues("ok").Inc()
	metrics.ExtractionDurationSeconds.Observe(time.Since(start).Seconds())
	return *analysis
}
