package tts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/tts-worker/internal/audio/audiotest"
	"github.com/book-expert/tts-worker/internal/core"
	"github.com/book-expert/tts-worker/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

func TestOpenAISynthesizer_Synthesize(t *testing.T) {
	t.Parallel()

	wavData := audiotest.SilentWAV(24000, 500*time.Millisecond)

	var got speechRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer local-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wavData)
	}))
	defer server.Close()

	synth := tts.NewOpenAISynthesizer(tts.OpenAIConfig{
		BaseURL: server.URL + "/v1",
		APIKey:  "local-key",
		Model:   "kokoro",
		Timeout: 5 * time.Second,
	})

	audioData, err := synth.Synthesize(context.Background(), core.SynthesisRequest{
		Text:  "Hello there.",
		Voice: "af_heart",
		Speed: 1.25,
	})
	require.NoError(t, err)
	assert.Equal(t, wavData, audioData)

	assert.Equal(t, "kokoro", got.Model)
	assert.Equal(t, "Hello there.", got.Input)
	assert.Equal(t, "af_heart", got.Voice)
	assert.Equal(t, "wav", got.ResponseFormat)
	assert.InDelta(t, 1.25, got.Speed, 1e-9)
}

func TestOpenAISynthesizer_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model not loaded","type":"server_error"}}`))
	}))
	defer server.Close()

	synth := tts.NewOpenAISynthesizer(tts.OpenAIConfig{BaseURL: server.URL + "/v1", Model: "kokoro", Timeout: 5 * time.Second})

	_, err := synth.Synthesize(context.Background(), core.SynthesisRequest{Text: "Hi.", Voice: "af_heart", Speed: 1})
	require.Error(t, err)
}

func TestOpenAISynthesizer_EmptyText(t *testing.T) {
	t.Parallel()

	synth := tts.NewOpenAISynthesizer(tts.OpenAIConfig{BaseURL: "http://127.0.0.1:1/v1", Model: "kokoro"})

	_, err := synth.Synthesize(context.Background(), core.SynthesisRequest{Text: "   "})
	require.ErrorIs(t, err, tts.ErrTextEmpty)
}
