// Package notify publishes job completion events.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/tts-worker/internal/core"
	"github.com/google/uuid"
)

// ErrSubjectEmpty indicates a notifier without a subject.
var ErrSubjectEmpty = errors.New("completion subject cannot be empty")

// JobCompletedEvent is published once a job's artifacts are uploaded and its
// message acknowledged.
type JobCompletedEvent struct {
	Header     events.EventHeader `json:"header"`
	JobID      string             `json:"job_id"`
	AudioOut   string             `json:"audio_out"`
	SubsOut    string             `json:"subs_out"`
	Aligned    bool               `json:"aligned"`
	DurationMS int64              `json:"duration_ms"`
}

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes JobCompletedEvent messages on a NATS subject.
type NATSNotifier struct {
	publisher Publisher
	subject   string
	now       func() time.Time
}

// NewNATSNotifier creates a notifier for subject.
func NewNATSNotifier(publisher Publisher, subject string) (*NATSNotifier, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	return &NATSNotifier{publisher: publisher, subject: subject, now: time.Now}, nil
}

// NotifyCompleted implements core.CompletionNotifier.
func (n *NATSNotifier) NotifyCompleted(_ context.Context, completed core.JobCompleted) error {
	event := JobCompletedEvent{
		Header: events.EventHeader{
			Timestamp:  n.now().UTC(),
			WorkflowID: completed.JobID,
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		JobID:      completed.JobID,
		AudioOut:   completed.AudioOut,
		SubsOut:    completed.SubsOut,
		Aligned:    completed.Aligned,
		DurationMS: completed.DurationMS,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal completion event: %w", err)
	}

	err = n.publisher.Publish(n.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish completion event on %s: %w", n.subject, err)
	}

	return nil
}
