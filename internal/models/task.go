package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type TaskStatus string

const (
	TaskStatusInProgress TaskStatus = "InProgress"
	TaskStatusCompleted  TaskStatus = "Completed"
	TaskStatusFailed     TaskStatus = "Failed"
)

// CanTransition reports whether a status may move from s to next.
// Statuses only move forward: unset -> any, InProgress -> Completed|Failed.
// Writing the current value again is allowed.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if next == "" || s == next {
		return true
	}
	switch s {
	case "":
		return true
	case TaskStatusInProgress:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}

func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

type MediaRef struct {
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
}

type OutputSegment struct {
	ID    int      `json:"id"`
	Text  string   `json:"text"`
	Video MediaRef `json:"video"`
	Audio MediaRef `json:"audio"`
}

// OutputSegments is stored as a jsonb column.
type OutputSegments []OutputSegment

func (o OutputSegments) Value() (driver.Value, error) {
	if o == nil {
		return nil, nil
	}
	return json.Marshal(o)
}

func (o *OutputSegments) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*o = nil
		return nil
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	default:
		return fmt.Errorf("unsupported outputs type %T", src)
	}
}

type Task struct {
	ID           string         `json:"id" db:"id"`
	Status       TaskStatus     `json:"status" db:"status"`
	UploadStatus TaskStatus     `json:"uploadStatus,omitempty" db:"upload_status"`
	OriginalFile string         `json:"originalFile" db:"original_file"`
	Outputs      OutputSegments `json:"outputs" db:"outputs"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time      `json:"updatedAt" db:"updated_at"`
}

// TaskUpdate is a partial update; nil fields are left untouched.
type TaskUpdate struct {
	Status       *TaskStatus
	UploadStatus *TaskStatus
	Outputs      OutputSegments
}

func (u *TaskUpdate) Empty() bool {
	return u == nil || (u.Status == nil && u.UploadStatus == nil && u.Outputs == nil)
}

func StatusPtr(s TaskStatus) *TaskStatus {
	return &s
}

// Apply merges u into t. Backward status moves are ignored.
func (t *Task) Apply(u *TaskUpdate, now time.Time) {
	if u == nil {
		return
	}
	if u.Status != nil && t.Status.CanTransition(*u.Status) {
		t.Status = *u.Status
	}
	if u.UploadStatus != nil && t.UploadStatus.CanTransition(*u.UploadStatus) {
		t.UploadStatus = *u.UploadStatus
	}
	if u.Outputs != nil {
		t.Outputs = append(OutputSegments(nil), u.Outputs...)
	}
	t.UpdatedAt = now
}
