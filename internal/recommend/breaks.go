// Package recommend derives break suggestions, personal goals and the
// cosmetic forest theme from the analytics history. Nothing here keeps state.
package recommend

import (
	"math/rand"
	"sort"
	"time"

	"focusforest/internal/analytics"
	"focusforest/internal/event"
)

const (
	IntensityLow    = "low"
	IntensityNormal = "normal"
	IntensityHigh   = "high"

	intensityWindow   = 2 * time.Hour
	recentSampleSize  = 5
	scoreDropTrigger  = 10
	interruptTrigger  = 2
	alternativesCount = 3
)

type Suggestion struct {
	Type            string `json:"type"`
	Title           string `json:"title"`
	Message         string `json:"message"`
	DurationMinutes int    `json:"duration"`
	Priority        int    `json:"priority"`
}

type BreakSuggestion struct {
	WorkIntensity   string       `json:"workIntensity"`
	CurrentTime     time.Time    `json:"currentTime"`
	MainSuggestion  *Suggestion  `json:"mainSuggestion"`
	Alternatives    []Suggestion `json:"alternatives"`
	PersonalizedTip string       `json:"personalizedTip"`
}

var tips = []string{
	"Look at something 20 feet away for 20 seconds.",
	"A glass of water now saves a headache later.",
	"Write down the next step before you leave the desk.",
	"Roll your shoulders and unclench your jaw.",
	"Step outside for a minute of daylight.",
	"Leave your phone face down while you rest.",
}

// BreakSuggestions ranks the candidate break activities for now. The
// time-of-day, intensity and personal lists are merged in that order; a
// later candidate of the same type replaces an earlier one in place.
func BreakSuggestions(records []analytics.SessionRecord, now time.Time, rng *rand.Rand) BreakSuggestion {
	intensity := WorkIntensity(records, now)

	merged := mergeByType(
		timeOfDaySuggestions(now.Hour()),
		intensitySuggestions(intensity),
		personalSuggestions(records),
	)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Priority > merged[j].Priority })

	out := BreakSuggestion{
		WorkIntensity: intensity,
		CurrentTime:   now,
		Alternatives:  []Suggestion{},
	}
	if len(merged) > 0 {
		main := merged[0]
		out.MainSuggestion = &main
		rest := merged[1:]
		out.Alternatives = append(out.Alternatives, rest[:min(alternativesCount, len(rest))]...)
	}
	if rng != nil {
		out.PersonalizedTip = tips[rng.Intn(len(tips))]
	} else {
		out.PersonalizedTip = tips[0]
	}
	return out
}

// WorkIntensity buckets the number of work sessions started in the last
// two hours: at most one is low, up to three is normal, more is high.
func WorkIntensity(records []analytics.SessionRecord, now time.Time) string {
	since := now.Add(-intensityWindow)
	n := 0
	for _, r := range records {
		if r.Type == event.SessionWork && !r.StartTime.Before(since) && !r.StartTime.After(now) {
			n++
		}
	}
	switch {
	case n <= 1:
		return IntensityLow
	case n <= 3:
		return IntensityNormal
	default:
		return IntensityHigh
	}
}

func mergeByType(lists ...[]Suggestion) []Suggestion {
	var out []Suggestion
	index := map[string]int{}
	for _, list := range lists {
		for _, s := range list {
			if i, ok := index[s.Type]; ok {
				out[i] = s
				continue
			}
			index[s.Type] = len(out)
			out = append(out, s)
		}
	}
	return out
}

func timeOfDaySuggestions(hour int) []Suggestion {
	switch {
	case hour >= 5 && hour < 12:
		return []Suggestion{
			{Type: "hydrate", Title: "Drink some water", Message: "Mornings run dry. Refill your glass.", DurationMinutes: 2, Priority: 3},
			{Type: "sunlight", Title: "Catch some daylight", Message: "Morning light keeps your rhythm steady.", DurationMinutes: 5, Priority: 2},
		}
	case hour >= 12 && hour < 18:
		return []Suggestion{
			{Type: "walk", Title: "Take a short walk", Message: "A few minutes on your feet beats the afternoon slump.", DurationMinutes: 5, Priority: 3},
			{Type: "snack", Title: "Have a light snack", Message: "Fruit or nuts keep your energy even.", DurationMinutes: 5, Priority: 2},
		}
	case hour >= 18 && hour < 22:
		return []Suggestion{
			{Type: "eye_rest", Title: "Rest your eyes", Message: "Close your eyes or look out of a window.", DurationMinutes: 3, Priority: 3},
			{Type: "stretch", Title: "Stretch", Message: "Loosen your back and neck after a long day.", DurationMinutes: 5, Priority: 2},
		}
	default:
		return []Suggestion{
			{Type: "wind_down", Title: "Start winding down", Message: "It is late. Consider stopping after this break.", DurationMinutes: 10, Priority: 4},
			{Type: "eye_rest", Title: "Rest your eyes", Message: "Dim the screen and close your eyes for a moment.", DurationMinutes: 3, Priority: 3},
		}
	}
}

func intensitySuggestions(intensity string) []Suggestion {
	switch intensity {
	case IntensityHigh:
		return []Suggestion{
			{Type: "long_rest", Title: "Take a proper rest", Message: "You have worked hard for two hours. Step away from the screen.", DurationMinutes: 15, Priority: 5},
			{Type: "eye_rest", Title: "Rest your eyes", Message: "Long stretches of screen time strain your eyes.", DurationMinutes: 5, Priority: 4},
		}
	case IntensityNormal:
		return []Suggestion{
			{Type: "walk", Title: "Take a short walk", Message: "Keep the momentum with a quick walk.", DurationMinutes: 5, Priority: 3},
			{Type: "hydrate", Title: "Drink some water", Message: "Steady work needs steady hydration.", DurationMinutes: 2, Priority: 2},
		}
	default:
		return []Suggestion{
			{Type: "stretch", Title: "Stretch", Message: "A light stretch to warm up for the next session.", DurationMinutes: 3, Priority: 1},
			{Type: "plan_next", Title: "Plan the next session", Message: "Pick one concrete task for the next session.", DurationMinutes: 2, Priority: 2},
		}
	}
}

func personalSuggestions(records []analytics.SessionRecord) []Suggestion {
	var work []analytics.SessionRecord
	for _, r := range records {
		if r.IsCompletedWork() {
			work = append(work, r)
		}
	}
	if len(work) < recentSampleSize {
		return nil
	}

	recent := work[len(work)-recentSampleSize:]
	var overallScore, recentScore, recentInterruptions float64
	for _, r := range work {
		overallScore += float64(r.FocusScore)
	}
	for _, r := range recent {
		recentScore += float64(r.FocusScore)
		recentInterruptions += float64(r.Interruptions)
	}
	overallScore /= float64(len(work))
	recentScore /= float64(len(recent))
	recentInterruptions /= float64(len(recent))

	var out []Suggestion
	if overallScore-recentScore > scoreDropTrigger {
		out = append(out, Suggestion{
			Type: "meditation", Title: "Reset with a short meditation",
			Message:         "Your recent sessions scored below your usual level. Breathe slowly for a few minutes.",
			DurationMinutes: 5, Priority: 5,
		})
	}
	if recentInterruptions > interruptTrigger {
		out = append(out, Suggestion{
			Type: "digital_detox", Title: "Put the phone away",
			Message:         "Distractions keep hitting your trees. Spend this break away from screens.",
			DurationMinutes: 10, Priority: 4,
		})
	}
	return out
}
