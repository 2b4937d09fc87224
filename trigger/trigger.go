// Package trigger decodes the declarative wake-up files deposited into the
// watched directory. One JSON object per file; the filename is the scheduling
// identity, so rewriting a file replaces its schedule.
package trigger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

type Type string

const (
	TypeImmediate Type = "immediate"
	TypeOneShot   Type = "one-shot"
	TypePeriodic  Type = "periodic"
)

// Event is the decoded trigger file. Stream/Topic/Text are shared; At is
// one-shot only, Schedule/Timezone are periodic only.
type Event struct {
	Type     Type   `json:"type"`
	Stream   string `json:"stream"`
	Topic    string `json:"topic"`
	Text     string `json:"text"`
	At       string `json:"at,omitempty"`
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

func Decode(data []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var ev Event
	if err := dec.Decode(&ev); err != nil {
		return Event{}, fmt.Errorf("invalid trigger json: %w", err)
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		return Event{}, fmt.Errorf("invalid trigger json: trailing data")
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (e Event) Validate() error {
	switch e.Type {
	case TypeImmediate, TypeOneShot, TypePeriodic:
	default:
		return fmt.Errorf("unrecognized trigger type %q", string(e.Type))
	}
	if strings.TrimSpace(e.Stream) == "" {
		return fmt.Errorf("stream is required")
	}
	if strings.TrimSpace(e.Topic) == "" {
		return fmt.Errorf("topic is required")
	}
	if strings.TrimSpace(e.Text) == "" {
		return fmt.Errorf("text is required")
	}
	switch e.Type {
	case TypeOneShot:
		if _, err := e.FiresAt(); err != nil {
			return err
		}
	case TypePeriodic:
		if strings.TrimSpace(e.Schedule) == "" {
			return fmt.Errorf("schedule is required for periodic trigger")
		}
		if strings.TrimSpace(e.Timezone) == "" {
			return fmt.Errorf("timezone is required for periodic trigger")
		}
	}
	return nil
}

// FiresAt parses the one-shot fire time; the timestamp must carry an offset.
func (e Event) FiresAt() (time.Time, error) {
	at := strings.TrimSpace(e.At)
	if at == "" {
		return time.Time{}, fmt.Errorf("at is required for one-shot trigger")
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return time.Time{}, fmt.Errorf("at must be RFC3339 with offset: %w", err)
	}
	return t, nil
}

// ScheduleLabel is the schedule-or-time component of the wake message.
func (e Event) ScheduleLabel() string {
	switch e.Type {
	case TypeOneShot:
		return strings.TrimSpace(e.At)
	case TypePeriodic:
		return strings.TrimSpace(e.Schedule)
	default:
		return "now"
	}
}

// WakeMessage formats the text handed to the turn executor when a trigger
// fires: [EVENT:<filename>:<type>:<schedule-or-time>] <text>.
func WakeMessage(filename string, e Event) string {
	return fmt.Sprintf("[EVENT:%s:%s:%s] %s", filename, e.Type, e.ScheduleLabel(), e.Text)
}
