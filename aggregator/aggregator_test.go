package aggregator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cljackson1279/SiteRecap/models"
)

func TestNormalizeMergesTasksAcrossSections(t *testing.T) {
	report := &models.DailyReportData{
		SiteSummary: "Cabinet work",
		Sections: []models.ReportSection{
			{
				Space: "Kitchen",
				Phase: "Cabinets",
				Tasks: []models.ReportTask{
					{Name: "install base cabinets", Confidence: 0.8, Photos: []int{3, 1}},
				},
			},
			{
				Space: "Kitchen",
				Phase: "Cabinets",
				Tasks: []models.ReportTask{
					{Name: "Install Base Cabinets", Confidence: 0.7, Photos: []int{2, 1}},
				},
			},
		},
	}

	Normalize(report)

	if len(report.Sections) != 1 {
		t.Fatalf("Sections len = %d, want 1 (same space/phase must merge)", len(report.Sections))
	}
	tasks := report.Sections[0].Tasks
	if len(tasks) != 1 {
		t.Fatalf("Tasks len = %d, want 1 (case-insensitive names must merge)", len(tasks))
	}
	task := tasks[0]
	// union of {3,1} and {2,1}, sorted ascending
	want := []int{1, 2, 3}
	if len(task.Photos) != len(want) {
		t.Fatalf("Photos = %v, want %v", task.Photos, want)
	}
	for i := range want {
		if task.Photos[i] != want[i] {
			t.Fatalf("Photos = %v, want %v", task.Photos, want)
		}
	}
	// boost: min(1.0, 0.8 + 0.05*(2-1)) = 0.85
	if task.Confidence < 0.8 {
		t.Errorf("Confidence = %v, must be >= max single-photo confidence 0.8", task.Confidence)
	}
	if got, wantConf := task.Confidence, 0.85; math.Abs(got-wantConf) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", got, wantConf)
	}
}

func TestNormalizeBoostNeverExceedsOne(t *testing.T) {
	report := &models.DailyReportData{
		Sections: []models.ReportSection{
			{
				Space: "Exterior",
				Phase: "Framing",
				Tasks: []models.ReportTask{
					{Name: "frame wall", Confidence: 0.99, Photos: []int{1}},
					{Name: "frame wall", Confidence: 0.98, Photos: []int{2}},
					{Name: "frame wall", Confidence: 0.97, Photos: []int{3}},
				},
			},
		},
	}

	Normalize(report)

	conf := report.Sections[0].Tasks[0].Confidence
	if conf > 1.0 {
		t.Errorf("Confidence = %v, must be capped at 1.0", conf)
	}
	if conf < 0.99 {
		t.Errorf("Confidence = %v, must not drop below max observation 0.99", conf)
	}
}

func TestNormalizeSynthesizesPlaceholderSection(t *testing.T) {
	report := &models.DailyReportData{
		SiteSummary: "Nothing recognizable",
		Sections:    []models.ReportSection{},
	}

	Normalize(report)

	if len(report.Sections) != 1 {
		t.Fatalf("Sections len = %d, want 1", len(report.Sections))
	}
	section := report.Sections[0]
	if section.Space != "Unspecified" {
		t.Errorf("Space = %q, want Unspecified", section.Space)
	}
	if len(section.Tasks) != 1 || section.Tasks[0].Name != "Progress documented" {
		t.Errorf("Tasks = %+v", section.Tasks)
	}
}

func TestNormalizeDropsEmptySections(t *testing.T) {
	report := &models.DailyReportData{
		Sections: []models.ReportSection{
			{Space: "Hall", Phase: "Paint", Tasks: []models.ReportTask{}, Hazards: []models.ReportHazard{}},
			{
				Space:   "Kitchen",
				Phase:   "Cabinets",
				Tasks:   []models.ReportTask{{Name: "install base cabinets", Confidence: 0.8, Photos: []int{1}}},
				Hazards: []models.ReportHazard{},
			},
		},
	}

	Normalize(report)

	if len(report.Sections) != 1 {
		t.Fatalf("Sections len = %d, want 1 (empty section must be dropped)", len(report.Sections))
	}
	if report.Sections[0].Space != "Kitchen" {
		t.Errorf("kept section = %q", report.Sections[0].Space)
	}
}

// failingClient always errors so Aggregate must fall back.
type failingClient struct{}

func (f *failingClient) AnalyzePhoto(ctx context.Context, imageData []byte) (string, error) {
	return "", errors.New("boom")
}
func (f *failingClient) AggregateAnalyses(ctx context.Context, analysesJSON []byte, projectName, date string) (string, error) {
	return "", errors.New("boom")
}
func (f *failingClient) SourceName() string { return "Failing" }

func TestAggregateNeverFails(t *testing.T) {
	a := New(&failingClient{}, 0)
	report := a.Aggregate(context.Background(), []models.PhotoAnalysis{{PhotoIndex: 1}}, "Maple St Remodel", "2025-03-14")

	if !report.Error {
		t.Error("failed aggregation must set Error on the fallback report")
	}
	if report.SiteSummary != "Daily progress documented" {
		t.Errorf("SiteSummary = %q", report.SiteSummary)
	}
	if len(report.Sections) != 1 || report.Sections[0].Space != "Unspecified" {
		t.Errorf("Sections = %+v", report.Sections)
	}
}

// garbageClient returns non-JSON so the parse step fails.
type garbageClient struct{}

func (g *garbageClient) AnalyzePhoto(ctx context.Context, imageData []byte) (string, error) {
	return "not json", nil
}
func (g *garbageClient) AggregateAnalyses(ctx context.Context, analysesJSON []byte, projectName, date string) (string, error) {
	return "not json", nil
}
func (g *garbageClient) SourceName() string { return "Garbage" }

func TestAggregateFallsBackOnBadJSON(t *testing.T) {
	a := New(&garbageClient{}, 0)
	report := a.Aggregate(context.Background(), nil, "Maple St Remodel", "2025-03-14")
	if !report.Error {
		t.Error("unparseable aggregation must yield the fallback report")
	}
}
