package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// HourStat is the mean focus score of the sessions started in one hour of the day.
type HourStat struct {
	Hour    int     `json:"hour"`
	Average float64 `json:"averageScore"`
	Samples int     `json:"samples"`
}

// RankHours groups records by starting hour and ranks the hours with at
// least minSamples records by mean score, best first. Ties go to the
// earlier hour.
func RankHours(records []SessionRecord, minSamples int) []HourStat {
	var sums [24]float64
	var counts [24]int
	for _, r := range records {
		if r.Hour < 0 || r.Hour > 23 {
			continue
		}
		sums[r.Hour] += float64(r.FocusScore)
		counts[r.Hour]++
	}

	var stats []HourStat
	for h := 0; h < 24; h++ {
		if counts[h] == 0 || counts[h] < minSamples {
			continue
		}
		stats = append(stats, HourStat{Hour: h, Average: sums[h] / float64(counts[h]), Samples: counts[h]})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Average != stats[j].Average {
			return stats[i].Average > stats[j].Average
		}
		return stats[i].Hour < stats[j].Hour
	})
	return stats
}

// BestAndWorstHours takes the top three of the ranking as the best hours
// and the bottom three, weakest first, as the worst hours.
func BestAndWorstHours(ranked []HourStat) (best, worst []int) {
	best = []int{}
	worst = []int{}
	n := min(3, len(ranked))
	for _, s := range ranked[:n] {
		best = append(best, s.Hour)
	}
	for i := len(ranked) - 1; i >= len(ranked)-n; i-- {
		worst = append(worst, ranked[i].Hour)
	}
	return best, worst
}

// PerformDailyAnalysis recomputes the insights from the retained history.
// With fewer than three completed work records it leaves the insights
// untouched and returns false.
func (s *State) PerformDailyAnalysis(now time.Time, defaultWork time.Duration) bool {
	work := s.CompletedWork()
	if len(work) < minAnalysisRecords {
		return false
	}

	best, worst := BestAndWorstHours(RankHours(work, minHourSamples))
	s.Insights.BestHours = best
	s.Insights.WorstHours = worst
	s.Insights.Recommendations = s.buildRecommendations(defaultWork)
	s.Insights.NextOptimalStart = NextOptimalStart(now, best)
	s.Patterns.LastAnalysisDate = now.Format("2006-01-02")
	return true
}

func (s *State) buildRecommendations(defaultWork time.Duration) []Recommendation {
	recs := []Recommendation{}

	if len(s.Insights.BestHours) > 0 {
		labels := make([]string, 0, len(s.Insights.BestHours))
		for _, h := range s.Insights.BestHours {
			labels = append(labels, fmt.Sprintf("%02d:00", h))
		}
		recs = append(recs, Recommendation{
			Type:     "optimal_time",
			Title:    "Your peak focus hours",
			Message:  fmt.Sprintf("You focus best around %s. Plan demanding work for those hours.", strings.Join(labels, ", ")),
			Action:   "schedule_sessions",
			Priority: "high",
		})
	}

	learned := int(math.Round(s.Patterns.OptimalSessionLengthSeconds / 60))
	defaultMinutes := int(math.Round(defaultWork.Minutes()))
	if learned > 0 && learned != defaultMinutes {
		recs = append(recs, Recommendation{
			Type:     "session_length",
			Title:    "Adjust your session length",
			Message:  fmt.Sprintf("Sessions of about %d minutes work best for you (default is %d).", learned, defaultMinutes),
			Action:   "adjust_duration",
			Priority: "medium",
		})
	}

	if s.Patterns.FocusScore < 70 {
		recs = append(recs, Recommendation{
			Type:     "focus_improvement",
			Title:    "Protect your focus",
			Message:  fmt.Sprintf("Your average focus score is %d. Close distracting tabs before you start a session.", s.Patterns.FocusScore),
			Action:   "reduce_distractions",
			Priority: "high",
		})
	}
	return recs
}

// NextOptimalStart is the earliest best hour still ahead today, or the top
// best hour tomorrow. It is nil when no best hours are known.
func NextOptimalStart(now time.Time, bestHours []int) *time.Time {
	if len(bestHours) == 0 {
		return nil
	}
	y, m, d := now.Date()
	var next *time.Time
	for _, h := range bestHours {
		candidate := time.Date(y, m, d, h, 0, 0, 0, now.Location())
		if !candidate.After(now) {
			continue
		}
		if next == nil || candidate.Before(*next) {
			c := candidate
			next = &c
		}
	}
	if next != nil {
		return next
	}
	tomorrow := time.Date(y, m, d+1, bestHours[0], 0, 0, 0, now.Location())
	return &tomorrow
}
