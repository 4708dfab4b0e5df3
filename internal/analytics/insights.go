package analytics

import (
	"fmt"
	"math"
	"time"
)

// PersonalInsights is the condensed view shown next to the timer.
type PersonalInsights struct {
	Summary     string           `json:"summary"`
	Score       int              `json:"score"`
	TotalHours  float64          `json:"totalHours"`
	Trend       string           `json:"trend"`
	BestTime    string           `json:"bestTime"`
	Suggestions []Recommendation `json:"suggestions"`
}

func (s *State) PersonalInsights(now time.Time, totalFocusSeconds float64) PersonalInsights {
	out := PersonalInsights{
		Score:       s.Patterns.FocusScore,
		TotalHours:  math.Round(totalFocusSeconds/3600*10) / 10,
		Trend:       s.DetailedReport(TimeframeWeek, now).Trend.Direction,
		Suggestions: append([]Recommendation{}, s.Insights.Recommendations...),
	}
	if len(s.Insights.BestHours) > 0 {
		h := s.Insights.BestHours[0]
		out.BestTime = fmt.Sprintf("%02d:00-%02d:00", h, (h+1)%24)
	}

	switch {
	case len(s.CompletedWork()) == 0:
		out.Summary = "Complete a focus session to start growing your insights."
	case out.Score >= 80:
		out.Summary = "Excellent focus. Your forest is thriving."
	case out.Score >= 60:
		out.Summary = "Solid focus with room to grow."
	default:
		out.Summary = "Distractions are costing you. Try shorter sessions and block more sites."
	}
	return out
}
