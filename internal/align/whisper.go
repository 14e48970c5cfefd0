package align

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/tts-worker/internal/subtitle"
	openai "github.com/sashabaranov/go-openai"
)

// ErrNoSegments indicates a transcription without any timed text.
var ErrNoSegments = errors.New("transcription returned no segments")

// WhisperConfig configures a WhisperAligner.
type WhisperConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// Language is an ISO-639-1 hint such as "en"; empty lets the model detect it.
	Language string
	Timeout  time.Duration
}

// WhisperAligner times subtitles from the segment timestamps of an
// OpenAI-compatible transcription endpoint. Cue text is what the model
// heard, not the job text.
type WhisperAligner struct {
	client   *openai.Client
	model    string
	language string
}

// NewWhisperAligner creates an aligner for cfg. An empty BaseURL uses the
// OpenAI API.
func NewWhisperAligner(cfg WhisperConfig) *WhisperAligner {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &WhisperAligner{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		language: cfg.Language,
	}
}

// Align transcribes audioPath and converts each segment to a cue.
func (a *WhisperAligner) Align(ctx context.Context, audioPath, text string) ([]subtitle.Cue, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	resp, err := a.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    a.model,
		FilePath: audioPath,
		Language: a.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}

	cues := make([]subtitle.Cue, 0, len(resp.Segments))

	for _, segment := range resp.Segments {
		segmentText := strings.TrimSpace(segment.Text)
		if segmentText == "" {
			continue
		}

		start := seconds(segment.Start)

		end := seconds(segment.End)
		if end < start {
			end = start
		}

		cues = append(cues, subtitle.Cue{
			Index: len(cues) + 1,
			Start: start,
			End:   end,
			Text:  segmentText,
		})
	}

	if len(cues) == 0 {
		return nil, ErrNoSegments
	}

	return cues, nil
}

func seconds(value float64) time.Duration {
	if value <= 0 || math.IsNaN(value) {
		return 0
	}

	return time.Duration(math.Round(value * float64(time.Second)))
}
