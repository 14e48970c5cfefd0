package subtitle_test

import (
	"testing"
	"time"

	"github.com/book-expert/tts-worker/internal/subtitle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "two sentences",
			input: "Hello world. This is a test.",
			want:  []string{"Hello world.", "This is a test."},
		},
		{
			name:  "mixed terminators and newlines",
			input: "Really?\nYes!  Good.",
			want:  []string{"Really?", "Yes!", "Good."},
		},
		{
			name:  "terminator without whitespace does not split",
			input: "Version 1.5 is out. Try it",
			want:  []string{"Version 1.5 is out.", "Try it"},
		},
		{
			name:  "repeated punctuation",
			input: "Wait!! What?",
			want:  []string{"Wait!!", "What?"},
		},
		{
			name:  "blank input",
			input: "   ",
			want:  nil,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.want, subtitle.SplitSentences(testCase.input))
		})
	}
}

func TestNaive_SpreadsEvenly(t *testing.T) {
	t.Parallel()

	cues := subtitle.Naive("One. Two. Three.", 3*time.Second)
	require.Len(t, cues, 3)

	assert.Equal(t, time.Duration(0), cues[0].Start)
	assert.Equal(t, time.Second, cues[0].End)
	assert.Equal(t, time.Second, cues[1].Start)
	assert.Equal(t, 2*time.Second, cues[1].End)
	assert.Equal(t, 2*time.Second, cues[2].Start)
	assert.Equal(t, 3*time.Second, cues[2].End)
	assert.Equal(t, "Three.", cues[2].Text)
}

func TestNaive_LastCueEndsAtDuration(t *testing.T) {
	t.Parallel()

	duration := 1000*time.Millisecond + 1
	cues := subtitle.Naive("A. B. C.", duration)
	require.Len(t, cues, 3)

	assert.Equal(t, duration, cues[2].End)

	for _, cue := range cues {
		assert.LessOrEqual(t, cue.Start, cue.End)
		assert.LessOrEqual(t, cue.End, duration)
	}
}

func TestNaive_UnknownDuration(t *testing.T) {
	t.Parallel()

	cues := subtitle.Naive("First. Second.", 0)
	require.Len(t, cues, 2)

	assert.Equal(t, subtitle.DefaultCueDuration, cues[0].End)
	assert.Equal(t, 2*subtitle.DefaultCueDuration, cues[1].End)
}

func TestNaive_NoTerminators(t *testing.T) {
	t.Parallel()

	cues := subtitle.Naive("  just words  ", 2*time.Second)
	require.Len(t, cues, 1)

	assert.Equal(t, "just words", cues[0].Text)
	assert.Equal(t, 2*time.Second, cues[0].End)
}

func TestNaive_Deterministic(t *testing.T) {
	t.Parallel()

	text := "The quick brown fox. Jumps over! The lazy dog?"

	first := subtitle.Encode(subtitle.Naive(text, 7*time.Second))
	second := subtitle.Encode(subtitle.Naive(text, 7*time.Second))

	assert.Equal(t, first, second)
}
