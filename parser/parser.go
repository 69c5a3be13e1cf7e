package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cljackson1279/SiteRecap/models"
)

// DegradedCaption is the placeholder caption carried by analyses whose
// extraction failed.
const DegradedCaption = "Analysis temporarily unavailable"

// Enumerated value sets accepted from the extraction model. Anything outside
// these is a schema violation and downgrades the whole photo.
var (
	validSpaces = map[string]bool{
		"": true, "Kitchen": true, "Bathroom": true, "Bedroom": true,
		"Living": true, "Exterior": true, "Garage": true, "Hall": true,
		"Dining": true, "Stair": true, "Basement": true,
	}
	validPhases = map[string]bool{
		"": true, "Demo": true, "Framing": true, "Electrical Rough": true,
		"Plumbing Rough": true, "Drywall": true, "Paint": true,
		"Flooring": true, "Cabinets": true, "Finish": true, "Punch": true,
	}
	validSeverities = map[string]bool{"low": true, "med": true, "high": true}
	validCategories = map[string]bool{
		"hand_tool": true, "power_tool": true, "heavy_machinery": true, "vehicle": true,
	}
)

// ExtractJSONFromMarkdown extracts JSON from markdown code blocks. Models
// sometimes wrap their output in ``` fences despite being told not to.
func ExtractJSONFromMarkdown(response string) string {
	startMarker := "```"
	endMarker := "```"

	startIdx := strings.Index(response, startMarker)
	if startIdx == -1 {
		// No code block found, try to find the JSON object directly
		startIdx = strings.Index(response, "{")
		if startIdx == -1 {
			return response
		}
		endIdx := strings.LastIndex(response, "}")
		if endIdx == -1 {
			return response
		}
		return strings.TrimSpace(response[startIdx : endIdx+1])
	}

	endIdx := strings.Index(response[startIdx+len(startMarker):], endMarker)
	if endIdx == -1 {
		return response
	}
	endIdx += startIdx + len(startMarker)

	content := response[startIdx+len(startMarker) : endIdx]

	// Remove the language identifier if present (e.g., "json")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > 0 && (strings.TrimSpace(lines[0]) == "json" || strings.TrimSpace(lines[0]) == "") {
		content = strings.Join(lines[1:], "\n")
	}

	return strings.TrimSpace(content)
}

// ParsePhotoAnalysis parses an extraction response and validates it against
// the photo-analysis schema. Enum violations and out-of-range values are
// treated the same as malformed JSON: one recoverable failure class.
func ParsePhotoAnalysis(response string) (*models.PhotoAnalysis, error) {
	jsonContent := ExtractJSONFromMarkdown(strings.TrimSpace(response))

	var analysis models.PhotoAnalysis
	if err := json.Unmarshal([]byte(jsonContent), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if !validSpaces[analysis.Space] {
		return nil, fmt.Errorf("invalid space %q", analysis.Space)
	}
	if !validPhases[analysis.Phase] {
		return nil, fmt.Errorf("invalid phase %q", analysis.Phase)
	}
	if analysis.PersonnelCount < 0 {
		return nil, errors.New("personnel_count must be non-negative")
	}
	for _, task := range analysis.Tasks {
		if task.Name == "" {
			return nil, errors.New("task name is required")
		}
		if task.Confidence < 0 || task.Confidence > 1 {
			return nil, fmt.Errorf("task confidence %v out of range", task.Confidence)
		}
	}
	for _, hazard := range analysis.Hazards {
		if !validSeverities[hazard.Severity] {
			return nil, fmt.Errorf("invalid hazard severity %q", hazard.Severity)
		}
	}
	for _, eq := range analysis.Equipment {
		if !validCategories[eq.Category] {
			return nil, fmt.Errorf("invalid equipment category %q", eq.Category)
		}
	}
	for _, issue := range analysis.SafetyIssues {
		if !validSeverities[issue.Severity] {
			return nil, fmt.Errorf("invalid safety issue severity %q", issue.Severity)
		}
	}
	for _, delay := range analysis.DelayingEvents {
		if !validSeverities[delay.Impact] {
			return nil, fmt.Errorf("invalid delay impact %q", delay.Impact)
		}
	}

	normalizePhotoAnalysis(&analysis)
	return &analysis, nil
}

// normalizePhotoAnalysis replaces nil collections with empty ones so the
// aggregator input serializes as [] rather than null.
func normalizePhotoAnalysis(a *models.PhotoAnalysis) {
	if a.Objects == nil {
		a.Objects = []string{}
	}
	if a.Tasks == nil {
		a.Tasks = []models.TaskObservation{}
	}
	if a.Hazards == nil {
		a.Hazards = []models.HazardObservation{}
	}
	if a.Equipment == nil {
		a.Equipment = []models.EquipmentObservation{}
	}
	if a.Materials == nil {
		a.Materials = []models.MaterialObservation{}
	}
	if a.Deliveries == nil {
		a.Deliveries = []models.DeliveryObservation{}
	}
	if a.SafetyIssues == nil {
		a.SafetyIssues = []models.SafetyIssueObservation{}
	}
	if a.DelayingEvents == nil {
		a.DelayingEvents = []models.DelayObservation{}
	}
}

// DegradedPhotoAnalysis builds the safe default analysis for a photo whose
// extraction failed. Downstream must not read its fields as "nothing observed".
func DegradedPhotoAnalysis(photoIndex int) models.PhotoAnalysis {
	analysis := models.PhotoAnalysis{
		PhotoIndex: photoIndex,
		Caption:    DegradedCaption,
		Error:      true,
	}
	normalizePhotoAnalysis(&analysis)
	return analysis
}

// ParseDailyReport parses an aggregation response against the daily-report
// schema. A missing or empty sections list is NOT an error here; the
// aggregator fills in the placeholder section (defense in depth).
func ParseDailyReport(response string) (*models.DailyReportData, error) {
	jsonContent := ExtractJSONFromMarkdown(strings.TrimSpace(response))

	var report models.DailyReportData
	if err := json.Unmarshal([]byte(jsonContent), &report); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	for _, section := range report.Sections {
		for _, task := range section.Tasks {
			if task.Name == "" {
				return nil, errors.New("section task name is required")
			}
			if task.Confidence < 0 || task.Confidence > 1 {
				return nil, fmt.Errorf("section task confidence %v out of range", task.Confidence)
			}
		}
	}
	if report.ChangesSinceYesterday == nil {
		report.ChangesSinceYesterday = []string{}
	}
	if report.NextDayPlan == nil {
		report.NextDayPlan = []string{}
	}

	return &report, nil
}

// PlaceholderSection is the single fallback section synthesized when no
// concrete task was recognized anywhere.
func PlaceholderSection() models.ReportSection {
	return models.ReportSection{
		Space: "Unspecified",
		Phase: "",
		Tasks: []models.ReportTask{
			{Name: "Progress documented", Confidence: 0.5, Photos: []int{}},
		},
		Hazards: []models.ReportHazard{},
	}
}

// FallbackDailyReport builds the fixed degraded report returned when the
// aggregation call itself failed. Renderers handle it without special-casing.
func FallbackDailyReport() models.DailyReportData {
	return models.DailyReportData{
		SiteSummary:           "Daily progress documented",
		Sections:              []models.ReportSection{PlaceholderSection()},
		ChangesSinceYesterday: []string{},
		NextDayPlan:           []string{"Continue work as planned"},
		Error:                 true,
	}
}
