package align_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/tts-worker/internal/align"
	"github.com/book-expert/tts-worker/internal/subtitle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alignedSRT = `1
00:00:00,000 --> 00:00:01,240
Hello there.

2
00:00:01,240 --> 00:00:02,900
How are you?
`

// writeScript writes an executable shell script standing in for aeneas.
// Its arguments are <audio> <script.txt> <config> <out.srt>.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fake-aeneas.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o700))

	return path
}

func TestAeneasAligner_Align(t *testing.T) {
	t.Parallel()

	capture := t.TempDir()
	srtSource := filepath.Join(capture, "source.srt")
	require.NoError(t, os.WriteFile(srtSource, []byte(alignedSRT), 0o600))

	script := writeScript(t, fmt.Sprintf(
		"cp \"$2\" %q\necho \"$1|$3\" > %q\ncp %q \"$4\"\n",
		filepath.Join(capture, "script.txt"),
		filepath.Join(capture, "args.txt"),
		srtSource,
	))

	aligner, err := align.NewAeneasAligner([]string{"/bin/sh", script}, "")
	require.NoError(t, err)

	cues, err := aligner.Align(context.Background(), "/tmp/audio.wav", "Hello there.  How are you?")
	require.NoError(t, err)

	assert.Equal(t, []subtitle.Cue{
		{Index: 1, Start: 0, End: 1240 * time.Millisecond, Text: "Hello there."},
		{Index: 2, Start: 1240 * time.Millisecond, End: 2900 * time.Millisecond, Text: "How are you?"},
	}, cues)

	scriptText, err := os.ReadFile(filepath.Join(capture, "script.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Hello there.\nHow are you?\n", string(scriptText))

	args, err := os.ReadFile(filepath.Join(capture, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/audio.wav|task_language=eng|is_text_type=plain|os_task_file_format=srt\n", string(args))
}

func TestAeneasAligner_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "non-zero exit", body: "echo boom >&2\nexit 3\n"},
		{name: "no output file", body: "exit 0\n"},
		{name: "empty output", body: ": > \"$4\"\n", wantErr: subtitle.ErrNoCues},
		{name: "garbage output", body: "echo 'not an srt' > \"$4\"\n", wantErr: subtitle.ErrMalformedCue},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			aligner, err := align.NewAeneasAligner([]string{"/bin/sh", writeScript(t, testCase.body)}, "eng")
			require.NoError(t, err)

			_, err = aligner.Align(context.Background(), "/tmp/audio.wav", "Some text.")
			require.Error(t, err)

			if testCase.wantErr != nil {
				require.ErrorIs(t, err, testCase.wantErr)
			}
		})
	}
}

func TestAeneasAligner_Validation(t *testing.T) {
	t.Parallel()

	_, err := align.NewAeneasAligner(nil, "eng")
	require.ErrorIs(t, err, align.ErrNoCommand)

	aligner, err := align.NewAeneasAligner([]string{"/bin/true"}, "deu")
	require.NoError(t, err)
	assert.Equal(t, "task_language=deu|is_text_type=plain|os_task_file_format=srt", aligner.TaskConfig())

	_, err = aligner.Align(context.Background(), "/tmp/audio.wav", "  ")
	require.ErrorIs(t, err, align.ErrEmptyText)
}
