package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action classifies an auth event.
type Action string

const (
	ActionLogin   Action = "login"
	ActionRefresh Action = "refresh"
	ActionLogout  Action = "logout"
)

// Event is one recorded authentication event.
type Event struct {
	ID        uuid.UUID `json:"id"`
	SubjectID string    `json:"subjectId"`
	Email     string    `json:"email"`
	Action    Action    `json:"action"`
	RemoteIP  string    `json:"remoteIp"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recorder persists auth events. Recording is best-effort: callers log
// failures but never surface them to the client.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]Event, error)
}

// NopRecorder discards events. Used when no audit database is configured.
type NopRecorder struct{}

// Record implements Recorder
func (NopRecorder) Record(ctx context.Context, event *Event) error {
	return nil
}

// ListBySubject implements Recorder
func (NopRecorder) ListBySubject(ctx context.Context, subjectID string, limit int) ([]Event, error) {
	return []Event{}, nil
}
