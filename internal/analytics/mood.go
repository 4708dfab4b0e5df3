package analytics

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Mood string

const (
	MoodGreat    Mood = "great"
	MoodGood     Mood = "good"
	MoodOkay     Mood = "okay"
	MoodTired    Mood = "tired"
	MoodStressed Mood = "stressed"
)

var validMoods = map[Mood]bool{
	MoodGreat: true, MoodGood: true, MoodOkay: true, MoodTired: true, MoodStressed: true,
}

type MoodEntry struct {
	Mood      Mood      `json:"mood"`
	Energy    int       `json:"energy"`
	Timestamp time.Time `json:"timestamp"`
	Hour      int       `json:"hour"`
}

// NewMoodEntry validates a self-reported mood. Energy is on a 1..5 scale.
func NewMoodEntry(label string, energy int, now time.Time) (MoodEntry, error) {
	mood := Mood(strings.ToLower(strings.TrimSpace(label)))
	if !validMoods[mood] {
		return MoodEntry{}, fmt.Errorf("%w: unknown mood %q (use great, good, okay, tired or stressed)", ErrInvalidInput, label)
	}
	if energy < 1 || energy > 5 {
		return MoodEntry{}, fmt.Errorf("%w: energy must be between 1 and 5, got %d", ErrInvalidInput, energy)
	}
	return MoodEntry{Mood: mood, Energy: energy, Timestamp: now, Hour: now.Hour()}, nil
}

// AddMood stores the entry and drops entries older than now-retention.
func (s *State) AddMood(entry MoodEntry, now time.Time, retention time.Duration) {
	s.Moods = append(s.Moods, entry)
	cutoff := now.Add(-retention)
	kept := s.Moods[:0]
	for _, m := range s.Moods {
		if m.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, m)
	}
	s.Moods = kept
}

type MoodStats struct {
	Sessions      int     `json:"sessions"`
	AverageScore  float64 `json:"averageScore"`
	AverageEnergy float64 `json:"averageEnergy"`
}

// MoodCorrelation pairs each completed work session with the mood reported
// closest to its start, within 30 minutes either side, and averages score
// and energy per mood. Moods matched fewer than twice are left out. It
// returns nil until there are at least five sessions and five mood entries.
func (s *State) MoodCorrelation() map[Mood]MoodStats {
	work := s.CompletedWork()
	if len(work) < minMoodSamples || len(s.Moods) < minMoodSamples {
		return nil
	}

	type acc struct {
		n      int
		score  float64
		energy float64
	}
	groups := map[Mood]*acc{}
	for _, r := range work {
		m, ok := s.nearestMood(r.StartTime)
		if !ok {
			continue
		}
		a, ok := groups[m.Mood]
		if !ok {
			a = &acc{}
			groups[m.Mood] = a
		}
		a.n++
		a.score += float64(r.FocusScore)
		a.energy += float64(m.Energy)
	}

	out := map[Mood]MoodStats{}
	for mood, a := range groups {
		if a.n < minMoodGroup {
			continue
		}
		out[mood] = MoodStats{
			Sessions:      a.n,
			AverageScore:  round1(a.score / float64(a.n)),
			AverageEnergy: round1(a.energy / float64(a.n)),
		}
	}
	return out
}

func (s *State) nearestMood(at time.Time) (MoodEntry, bool) {
	var best MoodEntry
	bestGap := time.Duration(math.MaxInt64)
	found := false
	for _, m := range s.Moods {
		gap := m.Timestamp.Sub(at)
		if gap < 0 {
			gap = -gap
		}
		if gap > moodMatchWindow || gap >= bestGap {
			continue
		}
		best, bestGap, found = m, gap, true
	}
	return best, found
}
