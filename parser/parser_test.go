package parser

import (
	"testing"
)

func TestParsePhotoAnalysis(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  bool
	}{
		{
			name: "valid JSON response",
			response: `{
				"space": "Kitchen",
				"phase": "Cabinets",
				"caption": "Workers installing base cabinets along the north wall",
				"objects": ["cabinets", "drill", "ladder"],
				"tasks": [{"name": "install base cabinets", "confidence": 0.85}],
				"hazards": [{"type": "debris pile", "severity": "low"}],
				"personnel_count": 2,
				"equipment": [{"name": "drill", "category": "power_tool"}],
				"materials": [{"name": "cabinet boxes", "status": "in_use", "quantity": "six units"}],
				"deliveries": [],
				"safety_issues": [],
				"delaying_events": []
			}`,
			wantErr: false,
		},
		{
			name: "JSON wrapped in markdown fences",
			response: "```json\n" + `{
				"space": "Bathroom",
				"phase": "Plumbing Rough",
				"caption": "Supply lines stubbed out",
				"tasks": [{"name": "set supply lines", "confidence": 0.7}]
			}` + "\n```",
			wantErr: false,
		},
		{
			name: "empty space and phase for non-construction photo",
			response: `{
				"space": "",
				"phase": "",
				"caption": "A selfie in front of the site",
				"tasks": []
			}`,
			wantErr: false,
		},
		{
			name: "invalid space enum",
			response: `{
				"space": "Rooftop",
				"phase": "Framing",
				"caption": "x",
				"tasks": []
			}`,
			wantErr: true,
		},
		{
			name: "invalid phase enum",
			response: `{
				"space": "Kitchen",
				"phase": "Landscaping",
				"caption": "x",
				"tasks": []
			}`,
			wantErr: true,
		},
		{
			name: "confidence out of range",
			response: `{
				"space": "Kitchen",
				"phase": "Cabinets",
				"caption": "x",
				"tasks": [{"name": "install base cabinets", "confidence": 1.3}]
			}`,
			wantErr: true,
		},
		{
			name: "negative personnel count",
			response: `{
				"space": "Kitchen",
				"phase": "Cabinets",
				"caption": "x",
				"personnel_count": -1
			}`,
			wantErr: true,
		},
		{
			name: "invalid hazard severity",
			response: `{
				"space": "Kitchen",
				"phase": "Cabinets",
				"caption": "x",
				"hazards": [{"type": "open trench", "severity": "catastrophic"}]
			}`,
			wantErr: true,
		},
		{
			name: "invalid equipment category",
			response: `{
				"space": "Exterior",
				"phase": "Framing",
				"caption": "x",
				"equipment": [{"name": "crane", "category": "flying_machine"}]
			}`,
			wantErr: true,
		},
		{
			name:     "malformed JSON",
			response: `{"space": "Kitchen",`,
			wantErr:  true,
		},
		{
			name:     "no JSON at all",
			response: "I could not analyze this photo.",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis, err := ParsePhotoAnalysis(tt.response)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePhotoAnalysis() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if analysis.Tasks == nil || analysis.Objects == nil || analysis.Hazards == nil {
				t.Error("collections should be normalized to empty, not nil")
			}
		})
	}
}

func TestParsePhotoAnalysisFields(t *testing.T) {
	analysis, err := ParsePhotoAnalysis(`{
		"space": "Kitchen",
		"phase": "Cabinets",
		"caption": "Base cabinets going in",
		"tasks": [{"name": "install base cabinets", "confidence": 0.85}],
		"personnel_count": 3
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analysis.Space != "Kitchen" {
		t.Errorf("Space = %q, want Kitchen", analysis.Space)
	}
	if analysis.Phase != "Cabinets" {
		t.Errorf("Phase = %q, want Cabinets", analysis.Phase)
	}
	if analysis.PersonnelCount != 3 {
		t.Errorf("PersonnelCount = %d, want 3", analysis.PersonnelCount)
	}
	if len(analysis.Tasks) != 1 || analysis.Tasks[0].Confidence != 0.85 {
		t.Errorf("Tasks = %+v", analysis.Tasks)
	}
	if analysis.Error {
		t.Error("Error should be false for a valid analysis")
	}
}

func TestDegradedPhotoAnalysis(t *testing.T) {
	analysis := DegradedPhotoAnalysis(4)
	if !analysis.Error {
		t.Error("degraded analysis must set Error")
	}
	if analysis.PhotoIndex != 4 {
		t.Errorf("PhotoIndex = %d, want 4", analysis.PhotoIndex)
	}
	if analysis.Caption != DegradedCaption {
		t.Errorf("Caption = %q, want %q", analysis.Caption, DegradedCaption)
	}
	if analysis.Space != "" || analysis.Phase != "" {
		t.Error("degraded analysis must have empty space and phase")
	}
	if len(analysis.Tasks) != 0 || analysis.Tasks == nil {
		t.Error("degraded analysis must have empty non-nil tasks")
	}
}

func TestParseDailyReport(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  bool
	}{
		{
			name: "valid report",
			response: `{
				"site_summary": "Cabinet installation progressed in the kitchen",
				"sections": [{
					"space": "Kitchen",
					"phase": "Cabinets",
					"tasks": [{"name": "install base cabinets", "confidence": 0.82, "photos": [1, 3]}],
					"hazards": []
				}],
				"next_day_plan": ["Continue cabinet installation"]
			}`,
			wantErr: false,
		},
		{
			name:     "empty sections is not an error here",
			response: `{"site_summary": "Quiet day", "sections": []}`,
			wantErr:  false,
		},
		{
			name: "section task confidence out of range",
			response: `{
				"site_summary": "x",
				"sections": [{
					"space": "Kitchen",
					"phase": "Cabinets",
					"tasks": [{"name": "install base cabinets", "confidence": -0.1, "photos": []}]
				}]
			}`,
			wantErr: true,
		},
		{
			name:     "malformed JSON",
			response: `not json`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := ParseDailyReport(tt.response)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDailyReport() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if report.NextDayPlan == nil || report.ChangesSinceYesterday == nil {
				t.Error("plan lists should be normalized to empty, not nil")
			}
		})
	}
}

func TestFallbackDailyReport(t *testing.T) {
	report := FallbackDailyReport()
	if !report.Error {
		t.Error("fallback report must set Error")
	}
	if report.SiteSummary != "Daily progress documented" {
		t.Errorf("SiteSummary = %q", report.SiteSummary)
	}
	if len(report.Sections) != 1 {
		t.Fatalf("Sections len = %d, want 1", len(report.Sections))
	}
	section := report.Sections[0]
	if section.Space != "Unspecified" {
		t.Errorf("Space = %q, want Unspecified", section.Space)
	}
	if len(section.Tasks) != 1 || section.Tasks[0].Name != "Progress documented" || section.Tasks[0].Confidence != 0.5 {
		t.Errorf("Tasks = %+v", section.Tasks)
	}
	if len(report.NextDayPlan) != 1 || report.NextDayPlan[0] != "Continue work as planned" {
		t.Errorf("NextDayPlan = %v", report.NextDayPlan)
	}
}

func TestExtractJSONFromMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `{"a": 1}`,
			expected: `{"a": 1}`,
		},
		{
			name:     "fenced with language",
			input:    "```json\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "fenced without language",
			input:    "```\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "prose around JSON object",
			input:    "Here you go: {\"a\": 1} hope that helps",
			expected: `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSONFromMarkdown(tt.input)
			if got != tt.expected {
				t.Errorf("ExtractJSONFromMarkdown() = %q, want %q", got, tt.expected)
			}
		})
	}
}
