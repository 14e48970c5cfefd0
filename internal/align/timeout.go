package align

import (
	"context"
	"time"

	"github.com/book-expert/tts-worker/internal/core"
	"github.com/book-expert/tts-worker/internal/subtitle"
)

type timeoutAligner struct {
	next    core.Aligner
	timeout time.Duration
}

// WithTimeout bounds every Align call of next to timeout. A non-positive
// timeout returns next unchanged.
func WithTimeout(next core.Aligner, timeout time.Duration) core.Aligner {
	if timeout <= 0 {
		return next
	}

	return &timeoutAligner{next: next, timeout: timeout}
}

func (a *timeoutAligner) Align(ctx context.Context, audioPath, text string) ([]subtitle.Cue, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	return a.next.Align(ctx, audioPath, text)
}
