package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"forecast-dashboard/internal/models"
)

// styles renders against the profile of the actual output, so piped or
// redirected output stays plain text.
type styles struct {
	heading lipgloss.Style
	warning lipgloss.Style
	trends  map[models.Trend]lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A")),
		warning: r.NewStyle().Foreground(lipgloss.Color("#FF4D4F")),
		trends: map[models.Trend]lipgloss.Style{
			models.TrendIncrease:      r.NewStyle().Foreground(lipgloss.Color("#52C41A")),
			models.TrendDecline:       r.NewStyle().Foreground(lipgloss.Color("#FF4D4F")),
			models.TrendStable:        r.NewStyle().Foreground(lipgloss.Color("#B0B0B0")),
			models.TrendNotApplicable: r.NewStyle().Foreground(lipgloss.Color("#6E6E6E")),
		},
	}
}

func (s styles) trend(t models.Trend) string {
	if st, ok := s.trends[t]; ok {
		return st.Render(string(t))
	}
	return string(t)
}
