package models

import (
	"time"
)

// PhotoAnalysis is the structured extraction for a single construction photo.
// Produced by the analyzer, consumed by the aggregator. Immutable once created.
type PhotoAnalysis struct {
	PhotoIndex     int                      `json:"photoIndex"`
	Space          string                   `json:"space"`
	Phase          string                   `json:"phase"`
	Caption        string                   `json:"caption"`
	Objects        []string                 `json:"objects"`
	Tasks          []TaskObservation        `json:"tasks"`
	Hazards        []HazardObservation      `json:"hazards"`
	PersonnelCount int                      `json:"personnel_count"`
	Equipment      []EquipmentObservation   `json:"equipment"`
	Materials      []MaterialObservation    `json:"materials"`
	Deliveries     []DeliveryObservation    `json:"deliveries"`
	SafetyIssues   []SafetyIssueObservation `json:"safety_issues"`
	DelayingEvents []DelayObservation       `json:"delaying_events"`
	// Error is set when extraction failed. The other fields then carry safe
	// defaults and mean "unknown", not "nothing observed".
	Error bool `json:"error,omitempty"`
}

// TaskObservation is a task visible in one photo with the model's certainty.
// Confidence is an opaque ranking signal in [0,1], not a calibrated probability.
type TaskObservation struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type HazardObservation struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
}

type EquipmentObservation struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type MaterialObservation struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Quantity string `json:"quantity"`
}

type DeliveryObservation struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type SafetyIssueObservation struct {
	Issue         string `json:"issue"`
	Severity      string `json:"severity"`
	PPECompliance string `json:"ppe_compliance"`
}

type DelayObservation struct {
	Event  string `json:"event"`
	Impact string `json:"impact"`
}

// DailyReportData is the aggregated report for one project-day.
// Produced by the aggregator, consumed by both renderers.
type DailyReportData struct {
	SiteSummary           string             `json:"site_summary"`
	Sections              []ReportSection    `json:"sections"`
	PersonnelSummary      *PersonnelSummary  `json:"personnel_summary,omitempty"`
	EquipmentSummary      []EquipmentSummary `json:"equipment_summary,omitempty"`
	MaterialsSummary      []MaterialSummary  `json:"materials_summary,omitempty"`
	DeliveriesSummary     []DeliverySummary  `json:"deliveries_summary,omitempty"`
	SafetySummary         *SafetySummary     `json:"safety_summary,omitempty"`
	DelaysSummary         []DelaySummary     `json:"delays_summary,omitempty"`
	ChangesSinceYesterday []string           `json:"changes_since_yesterday"`
	NextDayPlan           []string           `json:"next_day_plan"`
	// Error is set only when the aggregation call itself failed; Sections then
	// holds the single placeholder section.
	Error bool `json:"error,omitempty"`
}

// ReportSection groups merged tasks and hazards by (space, phase).
type ReportSection struct {
	Space   string         `json:"space"`
	Phase   string         `json:"phase"`
	Tasks   []ReportTask   `json:"tasks"`
	Hazards []ReportHazard `json:"hazards"`
}

// ReportTask is a merged task with photo-index provenance.
type ReportTask struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Photos     []int   `json:"photos"`
}

type ReportHazard struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Photo    int    `json:"photo,omitempty"`
}

type PersonnelSummary struct {
	TotalCount int    `json:"total_count"`
	Notes      string `json:"notes"`
}

type EquipmentSummary struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Photos   []int  `json:"photos,omitempty"`
}

type MaterialSummary struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Photos []int  `json:"photos,omitempty"`
}

type DeliverySummary struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Time   string `json:"time,omitempty"`
	Photos []int  `json:"photos,omitempty"`
}

type SafetySummary struct {
	Issues     []SafetyIssueSummary `json:"issues,omitempty"`
	Compliance string               `json:"compliance"`
}

type SafetyIssueSummary struct {
	Issue    string `json:"issue"`
	Severity string `json:"severity"`
	Photos   []int  `json:"photos,omitempty"`
}

type DelaySummary struct {
	Event    string `json:"event"`
	Impact   string `json:"impact"`
	Duration string `json:"duration,omitempty"`
}

// Weather is the optional external weather snapshot passed through to
// rendering. Absence never blocks report generation.
type Weather struct {
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
}

// PhotoInput references one photo for a pipeline run: inline bytes or a
// fetchable URL. Bytes win when both are set.
type PhotoInput struct {
	URL   string `json:"url,omitempty"`
	Bytes []byte `json:"bytes,omitempty"`
}

// GenerateRequest is the pipeline entry point payload. Photos are ordered by
// submission; photoIndex is assigned from that order, 1-based.
type GenerateRequest struct {
	ProjectID   string       `json:"project_id"`
	ProjectName string       `json:"project_name"`
	Date        string       `json:"date"`
	Photos      []PhotoInput `json:"photos"`
	Latitude    float64      `json:"latitude,omitempty"`
	Longitude   float64      `json:"longitude,omitempty"`
	Weather     *Weather     `json:"weather,omitempty"`
}

// ReportDebug is provenance metadata returned with every generated report.
type ReportDebug struct {
	PhotosAnalyzed  int    `json:"photos_analyzed"`
	WeatherIncluded bool   `json:"weather_included"`
	ModelUsed       string `json:"model_used"`
}

// GeneratedReport is the pipeline output: both rendered documents plus debug
// metadata.
type GeneratedReport struct {
	OwnerMarkdown string          `json:"owner_markdown"`
	GCMarkdown    string          `json:"gc_markdown"`
	Report        DailyReportData `json:"report"`
	Debug         ReportDebug     `json:"debug"`
}

// StoredReport is one persisted report row, upserted by (project_id, date).
type StoredReport struct {
	ProjectID       string    `json:"project_id"`
	ProjectName     string    `json:"project_name"`
	ReportDate      string    `json:"report_date"`
	OwnerMarkdown   string    `json:"owner_markdown"`
	GCMarkdown      string    `json:"gc_markdown"`
	ReportJSON      string    `json:"report_json,omitempty"`
	PhotosAnalyzed  int       `json:"photos_analyzed"`
	WeatherIncluded bool      `json:"weather_included"`
	ModelUsed       string    `json:"model_used"`
	Degraded        bool      `json:"degraded"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
