// Package ipc defines the newline-delimited JSON protocol spoken over the
// daemon's unix socket.
package ipc

import (
	"encoding/json"
	"fmt"
)

// DefaultSocketPath is used when the configuration does not set one.
const DefaultSocketPath = "/tmp/focusforest.sock"

// Command represents a command sent over the socket
type Command struct {
	Name string      `json:"name"`
	Args interface{} `json:"args,omitempty"`
}

// Response represents a response sent back over the socket
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// --- Command Argument Structs ---

type StartSessionArgs struct {
	ProjectID string `json:"projectId,omitempty"` // id or exact project name
}

type SetMoodArgs struct {
	Mood   string `json:"mood"`
	Energy int    `json:"energy"`
}

type CreateProjectArgs struct {
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

type DetailedReportArgs struct {
	Timeframe string `json:"timeframe"` // day, week, month or all
}

type ReportVisitArgs struct {
	URL string `json:"url"`
}

// --- Command Names (Constants) ---

const (
	CmdGetState             = "getState"
	CmdStartSession         = "startSession"
	CmdEndSession           = "endSession"
	CmdGetOptimalStartTime  = "getOptimalStartTime"
	CmdGetPersonalInsights  = "getPersonalInsights"
	CmdSetMood              = "setMood"
	CmdCreateProject        = "createProject"
	CmdGetForestTheme       = "getForestTheme"
	CmdGetMoodAnalysis      = "getMoodAnalysis"
	CmdGetDetailedReport    = "getDetailedReport"
	CmdGetPersonalizedGoals = "getPersonalizedGoals"
	CmdGetBreakSuggestion   = "getBreakSuggestion"
	CmdReportVisit          = "reportVisit"
	CmdRefreshInsights      = "refreshInsights"
	CmdPing                 = "ping" // Simple health check
)

// DecodeArgs converts the generic Args value (a map after JSON decoding)
// into the typed argument struct.
func DecodeArgs(input interface{}, output interface{}) error {
	if input == nil {
		return nil
	}
	jsonBytes, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal args map: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, output); err != nil {
		return fmt.Errorf("failed to unmarshal args into struct: %w", err)
	}
	return nil
}

// DecodeData converts a response payload into v.
func DecodeData(data interface{}, v interface{}) error {
	if data == nil {
		return nil
	}
	return DecodeArgs(data, v)
}
