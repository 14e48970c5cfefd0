package subtitle

import (
	"strings"
	"time"
	"unicode"
)

// DefaultCueDuration is the per-sentence duration used when the audio
// duration is unknown.
const DefaultCueDuration = time.Second

// SplitSentences splits text after '.', '!' or '?' when the terminator is
// followed by whitespace. Blank fragments are dropped.
func SplitSentences(text string) []string {
	runes := []rune(text)

	var (
		sentences []string
		start     int
	)

	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}

		sentences = appendTrimmed(sentences, string(runes[start:i+1]))

		for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			i++
		}

		start = i + 1
	}

	if start < len(runes) {
		sentences = appendTrimmed(sentences, string(runes[start:]))
	}

	return sentences
}

// Naive spreads the sentences of text evenly over duration. It does not look
// at the audio, so the same text and duration always produce the same cues.
func Naive(text string, duration time.Duration) []Cue {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}

	perCue := DefaultCueDuration
	if duration > 0 {
		perCue = duration / time.Duration(len(sentences))
	}

	cues := make([]Cue, 0, len(sentences))

	var offset time.Duration

	for i, sentence := range sentences {
		end := offset + perCue
		if duration > 0 && (end > duration || i == len(sentences)-1) {
			end = duration
		}

		cues = append(cues, Cue{
			Index: i + 1,
			Start: offset,
			End:   end,
			Text:  sentence,
		})

		offset += perCue
	}

	return cues
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func appendTrimmed(sentences []string, fragment string) []string {
	trimmed := strings.TrimSpace(fragment)
	if trimmed == "" {
		return sentences
	}

	return append(sentences, trimmed)
}
