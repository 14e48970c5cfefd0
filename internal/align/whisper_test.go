package align_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/tts-worker/internal/align"
	"github.com/book-expert/tts-worker/internal/audio/audiotest"
	"github.com/book-expert/tts-worker/internal/subtitle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const verboseTranscription = `{
  "task": "transcribe",
  "language": "english",
  "duration": 2.9,
  "text": "Hello there. How are you?",
  "segments": [
    {"id": 0, "seek": 0, "start": 0.0, "end": 1.24, "text": " Hello there."},
    {"id": 1, "seek": 0, "start": 1.24, "end": 2.9, "text": " How are you?"},
    {"id": 2, "seek": 0, "start": 2.9, "end": 2.9, "text": "  "}
  ]
}`

func writeAudio(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "audio.wav")
	require.NoError(t, os.WriteFile(path, audiotest.SilentWAV(24000, 3*time.Second), 0o600))

	return path
}

func TestWhisperAligner_Align(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "en", r.FormValue("language"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(verboseTranscription))
	}))
	defer server.Close()

	aligner := align.NewWhisperAligner(align.WhisperConfig{
		BaseURL:  server.URL + "/v1",
		Model:    "whisper-1",
		Language: "en",
		Timeout:  5 * time.Second,
	})

	cues, err := aligner.Align(context.Background(), writeAudio(t), "Hello there. How are you?")
	require.NoError(t, err)

	assert.Equal(t, []subtitle.Cue{
		{Index: 1, Start: 0, End: 1240 * time.Millisecond, Text: "Hello there."},
		{Index: 2, Start: 1240 * time.Millisecond, End: 2900 * time.Millisecond, Text: "How are you?"},
	}, cues)
}

func TestWhisperAligner_NoSegments(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task":"transcribe","text":"","segments":[]}`))
	}))
	defer server.Close()

	aligner := align.NewWhisperAligner(align.WhisperConfig{BaseURL: server.URL + "/v1", Timeout: 5 * time.Second})

	_, err := aligner.Align(context.Background(), writeAudio(t), "Hello.")
	require.ErrorIs(t, err, align.ErrNoSegments)
}

func TestWhisperAligner_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"busy","type":"server_error"}}`))
	}))
	defer server.Close()

	aligner := align.NewWhisperAligner(align.WhisperConfig{BaseURL: server.URL + "/v1", Timeout: 5 * time.Second})

	_, err := aligner.Align(context.Background(), writeAudio(t), "Hello.")
	require.Error(t, err)
}
