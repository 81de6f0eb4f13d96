package models

import "time"

const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// TaskEvent reports a stage attempt starting or finishing.
type TaskEvent struct {
	TaskID  string    `json:"taskId"`
	Stage   Stage     `json:"stage"`
	State   string    `json:"state"`
	Attempt int       `json:"attempt"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Terminal reports whether no further events follow for the task.
func (e TaskEvent) Terminal() bool {
	return e.State == EventFailed || (e.State == EventCompleted && e.Stage == StageSplit)
}
