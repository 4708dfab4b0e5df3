package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"focusforest/internal/event"
)

type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeAll   Timeframe = "all"
)

// trendThreshold is the relative change between halves that counts as a trend.
const trendThreshold = 0.05

func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(s); tf {
	case TimeframeDay, TimeframeWeek, TimeframeMonth, TimeframeAll:
		return tf, nil
	case "":
		return TimeframeWeek, nil
	default:
		return "", fmt.Errorf("%w: unknown timeframe %q (use day, week, month or all)", ErrInvalidInput, s)
	}
}

// Cutoff is the earliest start time the timeframe covers. All has no cutoff.
func (tf Timeframe) Cutoff(now time.Time) time.Time {
	switch tf {
	case TimeframeDay:
		return now.Add(-24 * time.Hour)
	case TimeframeWeek:
		return now.AddDate(0, 0, -7)
	case TimeframeMonth:
		return now.AddDate(0, 0, -30)
	default:
		return time.Time{}
	}
}

// SlotSize is the bucket width used by the trend analysis.
func (tf Timeframe) SlotSize() time.Duration {
	switch tf {
	case TimeframeDay:
		return time.Hour
	case TimeframeWeek:
		return 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

type ReportSummary struct {
	TotalSessions         int     `json:"totalSessions"`
	CompletedSessions     int     `json:"completedSessions"`
	BreakSessions         int     `json:"breakSessions"`
	CompletionRate        float64 `json:"completionRate"`
	TotalFocusMinutes     float64 `json:"totalFocusMinutes"`
	AverageScore          float64 `json:"averageScore"`
	AverageSessionMinutes float64 `json:"averageSessionMinutes"`
	TotalInterruptions    int     `json:"totalInterruptions"`
}

type HourlyBreakdown struct {
	Hour         int     `json:"hour"`
	Sessions     int     `json:"sessions"`
	AverageScore float64 `json:"averageScore"`
}

type DailyBreakdown struct {
	DayOfWeek    int     `json:"dayOfWeek"`
	Day          string  `json:"day"`
	Sessions     int     `json:"sessions"`
	AverageScore float64 `json:"averageScore"`
}

type ProjectBreakdown struct {
	ProjectID    string  `json:"projectId"`
	Name         string  `json:"name"`
	Sessions     int     `json:"sessions"`
	FocusMinutes float64 `json:"focusMinutes"`
	AverageScore float64 `json:"averageScore"`
}

type TrendSlot struct {
	Start        time.Time `json:"start"`
	Sessions     int       `json:"sessions"`
	AverageScore float64   `json:"averageScore"`
}

type Trend struct {
	Direction         string      `json:"direction"` // improving, declining or stable
	Strength          float64     `json:"strength"`
	FirstHalfAverage  float64     `json:"firstHalfAverage"`
	SecondHalfAverage float64     `json:"secondHalfAverage"`
	Slots             []TrendSlot `json:"slots"`
}

const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

type ReportInsight struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Report struct {
	Timeframe   Timeframe          `json:"timeframe"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Summary     ReportSummary      `json:"summary"`
	Hourly      []HourlyBreakdown  `json:"hourlyBreakdown"`
	Weekly      []DailyBreakdown   `json:"weeklyBreakdown"`
	Projects    []ProjectBreakdown `json:"projectBreakdown"`
	Trend       Trend              `json:"trend"`
	Insights    []ReportInsight    `json:"insights"`
}

type scoreAcc struct {
	sessions int
	score    float64
	minutes  float64
}

func (a scoreAcc) average() float64 {
	if a.sessions == 0 {
		return 0
	}
	return round1(a.score / float64(a.sessions))
}

// DetailedReport summarizes the work sessions started within the timeframe.
func (s *State) DetailedReport(tf Timeframe, now time.Time) Report {
	cutoff := tf.Cutoff(now)
	var work []SessionRecord
	breaks := 0
	for _, r := range s.Sessions {
		if r.StartTime.Before(cutoff) {
			continue
		}
		if r.Type != event.SessionWork {
			breaks++
			continue
		}
		work = append(work, r)
	}

	report := Report{
		Timeframe:   tf,
		GeneratedAt: now,
		Summary:     summarize(work, breaks),
		Hourly:      hourlyBreakdown(work),
		Weekly:      weeklyBreakdown(work),
		Projects:    s.projectBreakdown(work),
		Trend:       computeTrend(work, tf.SlotSize()),
	}
	report.Insights = reportInsights(report)
	return report
}

func summarize(work []SessionRecord, breaks int) ReportSummary {
	sum := ReportSummary{TotalSessions: len(work), BreakSessions: breaks}
	if len(work) == 0 {
		return sum
	}
	var score, seconds float64
	for _, r := range work {
		score += float64(r.FocusScore)
		seconds += r.DurationSeconds
		sum.TotalInterruptions += r.Interruptions
		if r.Completed {
			sum.CompletedSessions++
			sum.TotalFocusMinutes += r.DurationSeconds / 60
		}
	}
	n := float64(len(work))
	sum.CompletionRate = round1(float64(sum.CompletedSessions) / n * 100)
	sum.TotalFocusMinutes = round1(sum.TotalFocusMinutes)
	sum.AverageScore = round1(score / n)
	sum.AverageSessionMinutes = round1(seconds / n / 60)
	return sum
}

func hourlyBreakdown(work []SessionRecord) []HourlyBreakdown {
	var acc [24]scoreAcc
	for _, r := range work {
		if r.Hour < 0 || r.Hour > 23 {
			continue
		}
		acc[r.Hour].sessions++
		acc[r.Hour].score += float64(r.FocusScore)
	}
	out := []HourlyBreakdown{}
	for h, a := range acc {
		if a.sessions == 0 {
			continue
		}
		out = append(out, HourlyBreakdown{Hour: h, Sessions: a.sessions, AverageScore: a.average()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AverageScore > out[j].AverageScore })
	return out
}

func weeklyBreakdown(work []SessionRecord) []DailyBreakdown {
	var acc [7]scoreAcc
	for _, r := range work {
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			continue
		}
		acc[r.DayOfWeek].sessions++
		acc[r.DayOfWeek].score += float64(r.FocusScore)
	}
	out := []DailyBreakdown{}
	for d, a := range acc {
		if a.sessions == 0 {
			continue
		}
		out = append(out, DailyBreakdown{DayOfWeek: d, Day: time.Weekday(d).String(), Sessions: a.sessions, AverageScore: a.average()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AverageScore > out[j].AverageScore })
	return out
}

func (s *State) projectBreakdown(work []SessionRecord) []ProjectBreakdown {
	acc := map[string]*scoreAcc{}
	var order []string
	for _, r := range work {
		a, ok := acc[r.ProjectID]
		if !ok {
			a = &scoreAcc{}
			acc[r.ProjectID] = a
			order = append(order, r.ProjectID)
		}
		a.sessions++
		a.score += float64(r.FocusScore)
		if r.Completed {
			a.minutes += r.DurationSeconds / 60
		}
	}
	out := []ProjectBreakdown{}
	for _, id := range order {
		a := acc[id]
		name := "No project"
		if p, ok := s.Project(id); ok {
			name = p.Name
		}
		out = append(out, ProjectBreakdown{
			ProjectID:    id,
			Name:         name,
			Sessions:     a.sessions,
			FocusMinutes: round1(a.minutes),
			AverageScore: a.average(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FocusMinutes != out[j].FocusMinutes {
			return out[i].FocusMinutes > out[j].FocusMinutes
		}
		return out[i].Sessions > out[j].Sessions
	})
	return out
}

// computeTrend buckets records into slots of the given width measured from
// the earliest record, then compares the mean of the first half of the
// slots with the mean of the second half.
func computeTrend(work []SessionRecord, slot time.Duration) Trend {
	trend := Trend{Direction: TrendStable, Slots: []TrendSlot{}}
	if len(work) == 0 {
		return trend
	}

	origin := work[0].StartTime
	for _, r := range work {
		if r.StartTime.Before(origin) {
			origin = r.StartTime
		}
	}
	buckets := map[int]*scoreAcc{}
	for _, r := range work {
		idx := int(r.StartTime.Sub(origin) / slot)
		a, ok := buckets[idx]
		if !ok {
			a = &scoreAcc{}
			buckets[idx] = a
		}
		a.sessions++
		a.score += float64(r.FocusScore)
	}
	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		a := buckets[k]
		trend.Slots = append(trend.Slots, TrendSlot{
			Start:        origin.Add(time.Duration(k) * slot),
			Sessions:     a.sessions,
			AverageScore: a.average(),
		})
	}
	if len(trend.Slots) < 2 {
		return trend
	}

	half := len(trend.Slots) / 2
	first := meanSlotScore(trend.Slots[:half])
	second := meanSlotScore(trend.Slots[half:])
	trend.FirstHalfAverage = round1(first)
	trend.SecondHalfAverage = round1(second)

	var change float64
	switch {
	case first > 0:
		change = (second - first) / first
	case second > 0:
		change = 1
	}
	trend.Strength = round2(math.Abs(change))
	switch {
	case change > trendThreshold:
		trend.Direction = TrendImproving
	case change < -trendThreshold:
		trend.Direction = TrendDeclining
	}
	return trend
}

func meanSlotScore(slots []TrendSlot) float64 {
	if len(slots) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range slots {
		total += s.AverageScore
	}
	return total / float64(len(slots))
}

func reportInsights(r Report) []ReportInsight {
	out := []ReportInsight{}
	if r.Summary.TotalSessions == 0 {
		return out
	}

	if len(r.Hourly) >= 2 {
		peak, low := r.Hourly[0], r.Hourly[len(r.Hourly)-1]
		if spread := peak.AverageScore - low.AverageScore; spread > 20 {
			out = append(out, ReportInsight{
				Type:    "peak_hours",
				Message: fmt.Sprintf("You score %.0f points higher at %02d:00 than at %02d:00.", spread, peak.Hour, low.Hour),
			})
		}
	}

	switch r.Trend.Direction {
	case TrendImproving:
		out = append(out, ReportInsight{
			Type:    "trend",
			Message: fmt.Sprintf("Your focus is improving (%+.0f%%). Keep the routine going.", r.Trend.Strength*100),
		})
	case TrendDeclining:
		out = append(out, ReportInsight{
			Type:    "trend",
			Message: fmt.Sprintf("Your focus is slipping (-%.0f%%). Consider shorter sessions or more breaks.", r.Trend.Strength*100),
		})
	}

	switch avg := r.Summary.AverageScore; {
	case avg < 60:
		out = append(out, ReportInsight{
			Type:    "low_score",
			Message: fmt.Sprintf("Average focus score is %.0f. Block more sites or try shorter sessions.", avg),
		})
	case avg > 85:
		out = append(out, ReportInsight{
			Type:    "high_score",
			Message: fmt.Sprintf("Average focus score is %.0f. Your forest is thriving.", avg),
		})
	}
	return out
}
