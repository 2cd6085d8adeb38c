package weathersync

import "time"

type StartResult struct {
	SessionID        string `json:"session_id"`
	Location         string `json:"location"`
	Replaced         bool   `json:"replaced"`
	PreviousLocation string `json:"previous_location,omitempty"`
}

type StopResult struct {
	WasActive bool   `json:"was_active"`
	SessionID string `json:"session_id,omitempty"`
	Location  string `json:"location,omitempty"`
}

type Status struct {
	Active             bool       `json:"active"`
	SessionID          string     `json:"session_id,omitempty"`
	Location           string     `json:"location,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	IntervalSeconds    int64      `json:"interval_seconds"`
	LastClassification string     `json:"last_classification,omitempty"`
	LastFetchAt        *time.Time `json:"last_fetch_at,omitempty"`
	LastError          string     `json:"last_error,omitempty"`
}
