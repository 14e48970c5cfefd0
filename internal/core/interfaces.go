// Package core defines the interfaces that connect the worker to its queue,
// synthesis, alignment and storage backends.
package core

import (
	"context"

	"github.com/book-expert/tts-worker/internal/subtitle"
)

// Delivery is one received queue message. It stays invisible to other
// consumers until Ack is called or the visibility timeout expires.
type Delivery interface {
	ID() string
	Body() []byte
	// Attempt is the 1-based delivery count as reported by the queue.
	Attempt() int
	Ack(ctx context.Context) error
}

// JobQueue is a long-polling source of job messages.
type JobQueue interface {
	// Receive waits up to the configured poll interval for one message. It
	// returns (nil, nil) when the wait elapses without a message.
	Receive(ctx context.Context) (Delivery, error)
	Close() error
}

// JobSender enqueues job messages.
type JobSender interface {
	Send(ctx context.Context, body []byte) error
}

// ObjectStore uploads artifacts to a location URI such as s3://bucket/key.
type ObjectStore interface {
	Put(ctx context.Context, location string, data []byte, contentType string) error
	Get(ctx context.Context, location string) ([]byte, error)
}

// SynthesisRequest carries the per-job synthesis parameters.
type SynthesisRequest struct {
	Text  string
	Voice string
	Speed float64
}

// Synthesizer converts text into WAV audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}

// Aligner produces subtitle timing for text spoken in the audio file.
type Aligner interface {
	Align(ctx context.Context, audioPath, text string) ([]subtitle.Cue, error)
}

// CompletionNotifier announces finished jobs.
type CompletionNotifier interface {
	NotifyCompleted(ctx context.Context, event JobCompleted) error
}

// JobCompleted summarises a finished job.
type JobCompleted struct {
	JobID      string
	AudioOut   string
	SubsOut    string
	Aligned    bool
	DurationMS int64
}
