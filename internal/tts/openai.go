package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/tts-worker/internal/core"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAISynthesizer.
type OpenAIConfig struct {
	// BaseURL is the API root including the version, e.g. http://127.0.0.1:8880/v1.
	BaseURL string
	// APIKey is sent as a bearer token. Local Kokoro servers ignore it.
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAISynthesizer synthesizes speech through an OpenAI-compatible
// /audio/speech endpoint, requesting WAV output.
type OpenAISynthesizer struct {
	client *openai.Client
	model  openai.SpeechModel
}

// NewOpenAISynthesizer creates a synthesizer for cfg.
func NewOpenAISynthesizer(cfg OpenAIConfig) *OpenAISynthesizer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  openai.SpeechModel(cfg.Model),
	}
}

// Synthesize implements core.Synthesizer.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrTextEmpty
	}

	speed := req.Speed
	if speed <= 0 {
		speed = defaultSpeed
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          req.Text,
		Voice:          openai.SpeechVoice(req.Voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
		Speed:          speed,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Close()

	audioData, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}
