// Package render turns aggregated report data into the two audience-specific
// markdown documents. Both renderers are pure: same data in, same text out,
// no I/O and no awareness of whether upstream stages degraded.
package render

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/cljackson1279/SiteRecap/models"
)

// weatherBadge formats the heading weather marker; reports without weather
// show an em dash placeholder.
func weatherBadge(weather *models.Weather) string {
	if weather == nil {
		return "—"
	}
	return fmt.Sprintf("🌤️ %g°F %s", weather.Temperature, weather.Description)
}

func confidencePercent(confidence float64) int {
	return int(math.Round(confidence * 100))
}

func photoCitation(photos []int) string {
	if len(photos) == 0 {
		return ""
	}
	parts := make([]string, len(photos))
	for i, p := range photos {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return fmt.Sprintf(" (Photos: %s)", strings.Join(parts, ", "))
}

var (
	// dimension tokens like 2x4 or 16x20, and unit-bearing measurements
	dimensionRe   = regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s?x\s?\d+(\.\d+)?\b`)
	measurementRe = regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s?(ft|in|inch|inches|lb|lbs|oz|mm|cm|sq\s?ft|psi|gauge)\b\.?`)
	spaceRe       = regexp.MustCompile(`\s{2,}`)
)

// tradeVocab maps contractor shorthand to plain language for the owner view.
var tradeVocab = []struct{ from, to string }{
	{"rough-in", "preparation"},
	{"rough in", "preparation"},
	{"punch list", "final checklist"},
	{"mobilization", "setup"},
	{"demo ", "demolition "},
}

// simplifyForOwner strips measurements and trade jargon from a task or plan
// line. Owners get plain language, not contractor shorthand.
func simplifyForOwner(text string) string {
	out := dimensionRe.ReplaceAllString(text, "")
	out = measurementRe.ReplaceAllString(out, "")
	lower := strings.ToLower(out)
	for _, v := range tradeVocab {
		for {
			i := strings.Index(lower, v.from)
			if i == -1 {
				break
			}
			out = out[:i] + v.to + out[i+len(v.from):]
			lower = strings.ToLower(out)
		}
	}
	out = spaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// RenderOwner produces the homeowner-facing daily update: short, plain
// language, no photo citations, at most six task bullets.
func RenderOwner(data models.DailyReportData, weather *models.Weather, projectName, date string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Daily Update - %s\n**%s** • %s\n\n", projectName, date, weatherBadge(weather))

	if data.SiteSummary != "" {
		fmt.Fprintf(&b, "## Today's Progress\n%s\n\n", data.SiteSummary)
	}

	var tasks []models.ReportTask
	for _, section := range data.Sections {
		tasks = append(tasks, section.Tasks...)
	}
	if len(tasks) > 6 {
		tasks = tasks[:6]
	}
	if len(tasks) > 0 {
		b.WriteString("## Work Completed\n")
		for _, task := range tasks {
			fmt.Fprintf(&b, "• %s (%d%%)\n", simplifyForOwner(task.Name), confidencePercent(task.Confidence))
		}
		b.WriteString("\n")
	}

	if data.PersonnelSummary != nil && data.PersonnelSummary.TotalCount > 0 {
		b.WriteString("## Crew on Site\n")
		fmt.Fprintf(&b, "• %d workers present\n\n", data.PersonnelSummary.TotalCount)
	}

	if len(data.DeliveriesSummary) > 0 {
		b.WriteString("## Deliveries\n")
		for _, delivery := range data.DeliveriesSummary {
			fmt.Fprintf(&b, "• %s - %s\n", delivery.Type, delivery.Status)
		}
		b.WriteString("\n")
	}

	if data.SafetySummary != nil && data.SafetySummary.Compliance != "" {
		b.WriteString("## Safety\n")
		fmt.Fprintf(&b, "• Site safety compliance: %s\n\n", data.SafetySummary.Compliance)
	}

	if len(data.NextDayPlan) > 0 {
		b.WriteString("## What's Next\n")
		for _, item := range data.NextDayPlan {
			fmt.Fprintf(&b, "• %s\n", simplifyForOwner(item))
		}
	}

	return b.String()
}

// RenderGC produces the contractor-facing report: full detail, severities,
// and photo-index citations for every claim that has provenance.
func RenderGC(data models.DailyReportData, weather *models.Weather, projectName, date string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# GC Daily Report - %s\n**%s** • %s\n\n", projectName, date, weatherBadge(weather))

	if data.PersonnelSummary != nil && data.PersonnelSummary.TotalCount > 0 {
		b.WriteString("## Manpower\n")
		fmt.Fprintf(&b, "• Total crew: %d workers\n", data.PersonnelSummary.TotalCount)
		if data.PersonnelSummary.Notes != "" {
			fmt.Fprintf(&b, "• Notes: %s\n", data.PersonnelSummary.Notes)
		}
		b.WriteString("\n")
	}

	if len(data.EquipmentSummary) > 0 {
		b.WriteString("## Equipment on Site\n")
		for _, equipment := range data.EquipmentSummary {
			fmt.Fprintf(&b, "• %s - %s%s\n", equipment.Name, equipment.Category, photoCitation(equipment.Photos))
		}
		b.WriteString("\n")
	}

	if len(data.MaterialsSummary) > 0 {
		b.WriteString("## Materials\n")
		for _, material := range data.MaterialsSummary {
			fmt.Fprintf(&b, "• %s - %s%s\n", material.Name, material.Status, photoCitation(material.Photos))
		}
		b.WriteString("\n")
	}

	if len(data.DeliveriesSummary) > 0 {
		b.WriteString("## Deliveries\n")
		for _, delivery := range data.DeliveriesSummary {
			fmt.Fprintf(&b, "• %s - %s (%s)%s\n", delivery.Type, delivery.Status, delivery.Time, photoCitation(delivery.Photos))
		}
		b.WriteString("\n")
	}

	for _, section := range data.Sections {
		spacePhase := section.Space
		if section.Phase != "" {
			spacePhase += " - " + section.Phase
		}
		fmt.Fprintf(&b, "## %s\n", spacePhase)

		if len(section.Tasks) > 0 {
			b.WriteString("### Tasks Completed\n")
			for _, task := range section.Tasks {
				fmt.Fprintf(&b, "• %s - %d%%%s\n", task.Name, confidencePercent(task.Confidence), photoCitation(task.Photos))
			}
			b.WriteString("\n")
		}

		if len(section.Hazards) > 0 {
			b.WriteString("### Safety Notes\n")
			for _, hazard := range section.Hazards {
				fmt.Fprintf(&b, "• %s - %s\n", hazard.Type, strings.ToUpper(hazard.Severity))
			}
			b.WriteString("\n")
		}
	}

	if data.SafetySummary != nil && len(data.SafetySummary.Issues) > 0 {
		b.WriteString("## Safety Summary\n")
		fmt.Fprintf(&b, "• Overall compliance: %s\n", data.SafetySummary.Compliance)
		for _, issue := range data.SafetySummary.Issues {
			fmt.Fprintf(&b, "• %s - %s%s\n", issue.Issue, strings.ToUpper(issue.Severity), photoCitation(issue.Photos))
		}
		b.WriteString("\n")
	}

	if len(data.DelaysSummary) > 0 {
		b.WriteString("## Delays & Issues\n")
		for _, delay := range data.DelaysSummary {
			fmt.Fprintf(&b, "• %s - %s impact (%s)\n", delay.Event, delay.Impact, delay.Duration)
		}
		b.WriteString("\n")
	}

	if len(data.NextDayPlan) > 0 {
		b.WriteString("## Tomorrow's Plan\n")
		for _, item := range data.NextDayPlan {
			fmt.Fprintf(&b, "• %s\n", item)
		}
	}

	return b.String()
}
