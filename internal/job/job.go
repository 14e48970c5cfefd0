// Package job decodes and validates TTS job messages.
package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/tts-worker/internal/objectstore"
)

// DefaultSpeed is used when a message does not set speed.
const DefaultSpeed = 1.0

// Error messages.
const (
	errFmtDecode          = "failed to decode job message: %w"
	errFmtMissingField    = "%w: %s"
	errFmtInvalidSpeed    = "%w: got %f"
	errFmtInvalidLocation = "invalid %s location: %w"
)

var (
	// ErrMissingField indicates that a required field is absent or blank.
	ErrMissingField = errors.New("job is missing required field")
	// ErrInvalidSpeed indicates a non-positive speed multiplier.
	ErrInvalidSpeed = errors.New("speed must be greater than zero")
	// ErrNoVoice indicates that neither the message nor the defaults name a voice.
	ErrNoVoice = errors.New("no voice configured")
)

// Message is the JSON wire form of a job.
type Message struct {
	Text         string   `json:"text"`
	AudioOut     string   `json:"audio_out"`
	SubsOut      string   `json:"subs_out"`
	Voice        string   `json:"voice,omitempty"`
	Speed        *float64 `json:"speed,omitempty"`
	UseAlignment *bool    `json:"use_alignment,omitempty"`
}

// Defaults supplies values for optional message fields.
type Defaults struct {
	Voice string
}

// Job is a validated message with defaults applied.
type Job struct {
	Text         string
	AudioOut     string
	SubsOut      string
	Voice        string
	Speed        float64
	UseAlignment bool
}

// Parse decodes body and validates it.
func Parse(body []byte, defaults Defaults) (*Job, error) {
	var msg Message

	err := json.Unmarshal(body, &msg)
	if err != nil {
		return nil, fmt.Errorf(errFmtDecode, err)
	}

	return msg.Resolve(defaults)
}

// Resolve applies defaults and validates the message.
func (m Message) Resolve(defaults Defaults) (*Job, error) {
	required := []struct {
		name  string
		value string
	}{
		{"text", m.Text},
		{"audio_out", m.AudioOut},
		{"subs_out", m.SubsOut},
	}

	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return nil, fmt.Errorf(errFmtMissingField, ErrMissingField, field.name)
		}
	}

	_, err := objectstore.ParseLocation(m.AudioOut)
	if err != nil {
		return nil, fmt.Errorf(errFmtInvalidLocation, "audio_out", err)
	}

	_, err = objectstore.ParseLocation(m.SubsOut)
	if err != nil {
		return nil, fmt.Errorf(errFmtInvalidLocation, "subs_out", err)
	}

	resolved := &Job{
		Text:         m.Text,
		AudioOut:     m.AudioOut,
		SubsOut:      m.SubsOut,
		Voice:        m.Voice,
		Speed:        DefaultSpeed,
		UseAlignment: true,
	}

	if resolved.Voice == "" {
		resolved.Voice = defaults.Voice
	}

	if resolved.Voice == "" {
		return nil, ErrNoVoice
	}

	if m.Speed != nil {
		if *m.Speed <= 0 {
			return nil, fmt.Errorf(errFmtInvalidSpeed, ErrInvalidSpeed, *m.Speed)
		}

		resolved.Speed = *m.Speed
	}

	if m.UseAlignment != nil {
		resolved.UseAlignment = *m.UseAlignment
	}

	return resolved, nil
}

// Encode marshals the message for sending.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job message: %w", err)
	}

	return data, nil
}
