package aggregator

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/cljackson1279/SiteRecap/llm"
	"github.com/cljackson1279/SiteRecap/metrics"
	"github.com/cljackson1279/SiteRecap/models"
	"github.com/cljackson1279/SiteRecap/parser"
)

// Aggregator merges per-photo analyses into one daily report. Like the
// analyzer it never surfaces an error: any failure yields the fixed fallback
// report so the pipeline always has something to render.
type Aggregator struct {
	client  llm.Client
	timeout time.Duration
}

func New(client llm.Client, timeout time.Duration) *Aggregator {
	return &Aggregator{
		client:  client,
		timeout: timeout,
	}
}

// Aggregate runs the report-level model call and normalizes its output.
func (a *Aggregator) Aggregate(ctx context.Context, analyses []models.PhotoAnalysis, projectName, date string) models.DailyReportData {
	start := time.Now()

	analysesJSON, err := json.Marshal(analyses)
	if err != nil {
		log.WithError(err).Error("failed to serialize analyses, using fallback report")
		metrics.AggregationTotal.WithLabelValues("fallback").Inc()
		return parser.FallbackDailyReport()
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	response, err := a.client.AggregateAnalyses(callCtx, analysesJSON, projectName, date)
	if err != nil {
		log.WithError(err).Warn("aggregation call failed, using fallback report")
		metrics.AggregationTotal.WithLabelValues("fallback").Inc()
		metrics.AggregationDurationSeconds.Observe(time.Since(start).Seconds())
		return parser.FallbackDailyReport()
	}

	report, err := parser.ParseDailyReport(response)
	if err != nil {
		log.WithError(err).Warn("aggregation response failed validation, using fallback report")
		metrics.AggregationTotal.WithLabelValues("fallback").Inc()
		metrics.AggregationDurationSeconds.Observe(time.Since(start).Seconds())
		return parser.FallbackDailyReport()
	}

	Normalize(report)
	metrics.AggregationTotal.WithLabelValues("ok").Inc()
	metrics.AggregationDurationSeconds.Observe(time.Since(start).Seconds())
	return *report
}

// Normalize enforces the report invariants the model is asked for but cannot
// be trusted to keep: section grouping by (space, phase), task merging with
// photo-index union, the confidence boost, and the placeholder section when
// nothing was recognized. Deterministic so the contract is testable.
func Normalize(report *models.DailyReportData) {
	merged := make([]models.ReportSection, 0, len(report.Sections))
	index := make(map[string]int)

	for _, section := range report.Sections {
		key := strings.ToLower(strings.TrimSpace(section.Space)) + "\x00" + strings.ToLower(strings.TrimSpace(section.Phase))
		if at, ok := index[key]; ok {
			merged[at].Tasks = append(merged[at].Tasks, section.Tasks...)
			merged[at].Hazards = append(merged[at].Hazards, section.Hazards...)
			continue
		}
		index[key] = len(merged)
		merged = append(merged, section)
	}

	for i := range merged {
		merged[i].Tasks = mergeTasks(merged[i].Tasks)
		if merged[i].Hazards == nil {
			merged[i].Hazards = []models.ReportHazard{}
		}
	}

	// Drop sections that ended up with nothing to say.
	kept := merged[:0]
	for _, section := range merged {
		if len(section.Tasks) > 0 || len(section.Hazards) > 0 {
			kept = append(kept, section)
		}
	}

	if len(kept) == 0 {
		kept = []models.ReportSection{parser.PlaceholderSection()}
	}
	report.Sections = kept

	if report.ChangesSinceYesterday == nil {
		report.ChangesSinceYesterday = []string{}
	}
	if report.NextDayPlan == nil {
		report.NextDayPlan = []string{}
	}
}

// mergeTasks folds tasks whose trimmed names match case-insensitively into
// one entry. Photo indices are unioned and sorted; confidence becomes
// min(1.0, max(confidences) + 0.05*(n-1)) so corroboration from extra photos
// raises it but never past certainty and never below the best single sighting.
func mergeTasks(tasks []models.ReportTask) []models.ReportTask {
	out := make([]models.ReportTask, 0, len(tasks))
	index := make(map[string]int)
	counts := make(map[string]int)

	for _, task := range tasks {
		name := strings.TrimSpace(task.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		counts[key]++

		at, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, models.ReportTask{
				Name:       name,
				Confidence: task.Confidence,
				Photos:     append([]int{}, task.Photos...),
			})
			continue
		}
		if task.Confidence > out[at].Confidence {
			out[at].Confidence = task.Confidence
		}
		out[at].Photos = append(out[at].Photos, task.Photos...)
	}

	for i := range out {
		key := strings.ToLower(out[i].Name)
		out[i].Photos = uniqueSorted(out[i].Photos)
		n := counts[key]
		if n > 1 {
			out[i].Confidence = math.Min(1.0, out[i].Confidence+0.05*float64(n-1))
		}
	}
	return out
}

func uniqueSorted(xs []int) []int {
	if len(xs) == 0 {
		return []int{}
	}
	seen := make(map[int]bool, len(xs))
	out := make([]int, 0, len(xs))
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	sort.Ints(out)
	return out
}
