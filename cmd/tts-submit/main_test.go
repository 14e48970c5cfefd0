package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/tts-worker/internal/job"
	"github.com/book-expert/tts-worker/internal/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAudioOut = "s3://bucket/book/ch1.wav"
	testSubsOut  = "s3://bucket/book/ch1.srt"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	flags, err := parseFlags([]string{
		"--text", "Hello, world!",
		"--audio-out", testAudioOut,
		"--subs-out", testSubsOut,
		"--voice", "bf_emma",
		"--speed", "1.1",
		"--no-align",
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello, world!", flags.text)
	assert.Equal(t, testAudioOut, flags.audioOut)
	assert.Equal(t, testSubsOut, flags.subsOut)
	assert.Equal(t, "bf_emma", flags.voice)
	assert.InDelta(t, 1.1, flags.speed, 1e-9)
	assert.True(t, flags.noAlign)
}

func TestParseFlags_Unknown(t *testing.T) {
	t.Parallel()

	_, err := parseFlags([]string{"--chunks", "x.json"})
	require.Error(t, err)
}

func TestBuildMessage_ArgumentValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		flags   appFlags
		wantErr error
	}{
		{
			name:    "neither text nor file",
			flags:   appFlags{audioOut: testAudioOut, subsOut: testSubsOut},
			wantErr: ErrEitherTextOrFile,
		},
		{
			name:    "both text and file",
			flags:   appFlags{text: "Hi.", textFile: "/tmp/x.txt"},
			wantErr: ErrCannotSpecifyBoth,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := buildMessage(testCase.flags)
			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestBuildMessage_OptionalFieldsStayUnset(t *testing.T) {
	t.Parallel()

	msg, err := buildMessage(appFlags{text: "Hi.", audioOut: testAudioOut, subsOut: testSubsOut})
	require.NoError(t, err)

	assert.Nil(t, msg.Speed)
	assert.Nil(t, msg.UseAlignment)
	assert.Empty(t, msg.Voice)
}

func TestBuildMessage_FromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "chapter.txt")
	require.NoError(t, os.WriteFile(path, []byte("Chapter one. It begins."), 0o600))

	msg, err := buildMessage(appFlags{textFile: path, audioOut: testAudioOut, subsOut: testSubsOut, noAlign: true})
	require.NoError(t, err)

	assert.Equal(t, "Chapter one. It begins.", msg.Text)
	require.NotNil(t, msg.UseAlignment)
	assert.False(t, *msg.UseAlignment)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	speed := 1.2
	body, err := validate(job.Message{Text: "Hi.", AudioOut: testAudioOut, SubsOut: testSubsOut, Speed: &speed}, "af_heart")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(bytes.NewReader(body)).Decode(&decoded))
	assert.Equal(t, "Hi.", decoded["text"])
	assert.InDelta(t, 1.2, decoded["speed"], 1e-9)
	assert.NotContains(t, decoded, "voice")

	_, err = validate(job.Message{Text: "Hi.", AudioOut: "ftp://x/y", SubsOut: testSubsOut}, "af_heart")
	require.ErrorIs(t, err, objectstore.ErrUnsupportedScheme)

	_, err = validate(job.Message{Text: "Hi.", AudioOut: testAudioOut}, "af_heart")
	require.ErrorIs(t, err, job.ErrMissingField)
}
