package recommend

import (
	"math/rand"
	"time"
)

type Palette struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Background string `json:"background"`
	Accent     string `json:"accent"`
}

type Theme struct {
	Season     string  `json:"season"`
	TimeOfDay  string  `json:"timeOfDay"`
	Weather    string  `json:"weather"`
	ForestSize string  `json:"forestSize"`
	Palette    Palette `json:"palette"`
}

var seasonWeather = map[string][]string{
	"spring": {"sunny", "rainy", "cloudy", "windy"},
	"summer": {"sunny", "sunny", "stormy", "cloudy"},
	"autumn": {"cloudy", "windy", "rainy", "foggy"},
	"winter": {"snowy", "cloudy", "foggy", "sunny"},
}

var seasonPalette = map[string]Palette{
	"spring": {Primary: "#2d5a27", Secondary: "#8bc34a", Background: "#f1f8e9", Accent: "#f8bbd0"},
	"summer": {Primary: "#1b5e20", Secondary: "#4caf50", Background: "#e8f5e9", Accent: "#ffeb3b"},
	"autumn": {Primary: "#5d4037", Secondary: "#ff9800", Background: "#fff3e0", Accent: "#d84315"},
	"winter": {Primary: "#27455a", Secondary: "#90a4ae", Background: "#eceff1", Accent: "#e1f5fe"},
}

const nightBackground = "#1a2421"

// ForestTheme picks the decorative theme for now. Weather is drawn from
// rng among the season's options.
func ForestTheme(now time.Time, treeCount int, rng *rand.Rand) Theme {
	season := Season(now)
	tod := TimeOfDay(now.Hour())
	palette := seasonPalette[season]
	if tod == "night" {
		palette.Background = nightBackground
	}

	options := seasonWeather[season]
	weather := options[0]
	if rng != nil {
		weather = options[rng.Intn(len(options))]
	}

	return Theme{
		Season:     season,
		TimeOfDay:  tod,
		Weather:    weather,
		ForestSize: forestSize(treeCount),
		Palette:    palette,
	}
}

func Season(t time.Time) string {
	switch t.Month() {
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	case time.September, time.October, time.November:
		return "autumn"
	default:
		return "winter"
	}
}

func TimeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}

func forestSize(trees int) string {
	switch {
	case trees == 0:
		return "empty"
	case trees < 5:
		return "grove"
	case trees < 20:
		return "woodland"
	case trees < 50:
		return "forest"
	default:
		return "ancient_forest"
	}
}
