package models

import "time"

// JobOutcome is the terminal state of a detailed-data job
type JobOutcome string

const (
	OutcomeCompleted JobOutcome = "completed"
	OutcomeFailed    JobOutcome = "failed"
)

// JobNotice describes a finished detailed-data job for notification channels
type JobNotice struct {
	JobID       string     `json:"jobId"`
	SessionID   string     `json:"sessionId"`
	SessionName string     `json:"sessionName"`
	Outcome     JobOutcome `json:"outcome"`
	Detail      string     `json:"detail,omitempty"`
	Keywords    int        `json:"keywords"`
	Posts       int        `json:"posts"`
	FinishedAt  time.Time  `json:"finishedAt"`
}

// AlertType classifies an operational alert
type AlertType string

const (
	AlertServerDown      AlertType = "server_down"
	AlertServerRecovered AlertType = "server_recovered"
)

// Alert is an operational event worth telling an operator about
type Alert struct {
	Type    AlertType `json:"type"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Server  string    `json:"server,omitempty"`
	At      time.Time `json:"at"`
}
