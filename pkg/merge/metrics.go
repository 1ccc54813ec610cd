package merge

import (
	"fmt"
	"strings"
	"time"

	"github.com/jingkaihe/skillsmith/pkg/skilldoc"
	"github.com/jingkaihe/skillsmith/pkg/types/skills"
)

const (
	// MetricsTitle is the engine-owned section regenerated on every merge
	MetricsTitle = "Metrics"

	metricsMarker = "<!-- Auto-generated by skillsmith -->"
)

func metricsLines(m skills.SkillMetrics) []string {
	lastUsed := "Never"
	if m.LastUsed != nil {
		lastUsed = m.LastUsed.UTC().Format(time.RFC3339)
	}

	return []string{
		"",
		metricsMarker,
		"| Metric | Value |",
		"|--------|-------|",
		fmt.Sprintf("| Total Calls | %d |", m.TotalCalls),
		fmt.Sprintf("| Success Rate | %.1f%% |", m.SuccessRate()*100),
		fmt.Sprintf("| Avg Exec Time | %.0fms |", m.AvgExecTimeMs()),
		fmt.Sprintf("| Last Used | %s |", lastUsed),
		"",
	}
}

// MetricsSection builds a fresh Metrics section for m
func MetricsSection(m skills.SkillMetrics) *skilldoc.Section {
	return &skilldoc.Section{Title: MetricsTitle, Lines: metricsLines(m)}
}

// RenderMetrics renders the Metrics block as text, header included
func RenderMetrics(m skills.SkillMetrics) string {
	s := MetricsSection(m)
	return s.Header() + "\n" + strings.Join(s.Lines, "\n") + "\n"
}
