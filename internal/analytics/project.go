package analytics

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultProjectColor is the forest green used when no color is given.
const DefaultProjectColor = "#2d5a27"

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

type Project struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Color             string    `json:"color"`
	Description       string    `json:"description,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	TotalTimeSeconds  float64   `json:"totalTime"`
	CompletedSessions int       `json:"completedSessions"`
}

type ProjectRequest struct {
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// CreateProject validates req and registers a new project under id.
func (s *State) CreateProject(req ProjectRequest, id string, now time.Time) (Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Project{}, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	color := strings.TrimSpace(req.Color)
	if color == "" {
		color = DefaultProjectColor
	} else if !hexColor.MatchString(color) {
		return Project{}, fmt.Errorf("%w: project color must be a hex color like #2d5a27, got %q", ErrInvalidInput, req.Color)
	}
	p := Project{
		ID:          id,
		Name:        name,
		Color:       color,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
	}
	s.Projects = append(s.Projects, p)
	return p, nil
}

func (s *State) Project(id string) (Project, bool) {
	if id == "" {
		return Project{}, false
	}
	for _, p := range s.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// CreditProject adds a completed work session to the project's totals.
// Unknown ids are ignored.
func (s *State) CreditProject(id string, duration time.Duration) {
	for i := range s.Projects {
		if s.Projects[i].ID == id {
			s.Projects[i].TotalTimeSeconds += duration.Seconds()
			s.Projects[i].CompletedSessions++
			return
		}
	}
}
