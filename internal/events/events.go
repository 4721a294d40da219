package events

import "time"

// Type identifies the kind of event.
type Type string

const (
	TypeHeartbeat Type = "heartbeat"
	TypeState     Type = "state"
	TypeProgress  Type = "progress"
	TypeLog       Type = "log"
	TypeSaved     Type = "recording_saved"
	TypeDeleted   Type = "recording_deleted"
)

// Event is the envelope shared by every event type.
type Event struct {
	Type      Type   `json:"type"`
	TS        string `json:"ts"`
	Component string `json:"component,omitempty"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func envelope(t Type, component string) Event {
	return Event{Type: t, TS: NowTS(), Component: component}
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Recording     bool   `json:"recording"`
}

func NewHeartbeat(state string, uptime time.Duration, recording bool) Heartbeat {
	return Heartbeat{
		Event:         envelope(TypeHeartbeat, "daemon"),
		State:         state,
		UptimeSeconds: int64(uptime.Seconds()),
		Recording:     recording,
	}
}

// StateTransition is emitted whenever a session changes state
// (e.g. CAPTURING -> TRIMMING).
type StateTransition struct {
	Event
	Session string `json:"session"`
	From    string `json:"from"`
	To      string `json:"to"`
}

func NewStateTransition(session, from, to string) StateTransition {
	return StateTransition{
		Event:   envelope(TypeState, "session"),
		Session: session,
		From:    from,
		To:      to,
	}
}

// Progress reports how far a capture is towards its max duration.
type Progress struct {
	Event
	Session string  `json:"session"`
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Detail  string  `json:"detail"`
}

func NewProgress(session, stage string, percent float64, detail string) Progress {
	return Progress{
		Event:   envelope(TypeProgress, "session"),
		Session: session,
		Stage:   stage,
		Percent: percent,
		Detail:  detail,
	}
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

func NewLog(component, level, message string) LogLine {
	return LogLine{
		Event:   envelope(TypeLog, component),
		Level:   level,
		Message: message,
	}
}

// RecordingSaved announces a new file in storage.
type RecordingSaved struct {
	Event
	Session         string  `json:"session"`
	Name            string  `json:"name"`
	Bytes           int     `json:"bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
	ValidSamples    int     `json:"valid_samples"`
	TotalSamples    int     `json:"total_samples"`
}

func NewRecordingSaved(session, name string, bytes int, d time.Duration, valid, total int) RecordingSaved {
	return RecordingSaved{
		Event:           envelope(TypeSaved, "session"),
		Session:         session,
		Name:            name,
		Bytes:           bytes,
		DurationSeconds: d.Seconds(),
		ValidSamples:    valid,
		TotalSamples:    total,
	}
}

// RecordingDeleted announces a file removed from storage.
type RecordingDeleted struct {
	Event
	Name string `json:"name"`
}

func NewRecordingDeleted(name string) RecordingDeleted {
	return RecordingDeleted{Event: envelope(TypeDeleted, "api"), Name: name}
}
