// Package worker polls the job queue and turns each job into an audio file
// and a subtitle file.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-worker/internal/audio"
	"github.com/book-expert/tts-worker/internal/core"
	"github.com/book-expert/tts-worker/internal/job"
	"github.com/book-expert/tts-worker/internal/subtitle"
)

const (
	audioFileName     = "audio.wav"
	workDirPattern    = "tts-job-*"
	filePerm          = 0o600
	defaultBackoff    = time.Second
	defaultJobTimeout = 5 * time.Minute
	defaultSampleRate = audio.DefaultSampleRate
)

var (
	// ErrQueueNil indicates a worker without a queue.
	ErrQueueNil = errors.New("job queue cannot be nil")
	// ErrSynthesizerNil indicates a worker without a synthesizer.
	ErrSynthesizerNil = errors.New("synthesizer cannot be nil")
	// ErrStoreNil indicates a worker without an object store.
	ErrStoreNil = errors.New("object store cannot be nil")
	// ErrLoggerNil indicates a worker without a logger.
	ErrLoggerNil = errors.New("logger cannot be nil")
)

// Options tunes a Worker. Zero values select defaults.
type Options struct {
	DefaultVoice string
	// SampleRate is the expected synthesis rate; other rates are logged.
	SampleRate int
	// JobTimeout bounds one job, normally the queue's visibility timeout.
	JobTimeout time.Duration
	// MaxAttempts acknowledges without processing any delivery seen more
	// often than this. 0 redelivers forever.
	MaxAttempts int
	// ErrorBackoff is the pause after a failed receive.
	ErrorBackoff time.Duration
	// TempDir holds per-job work directories; empty uses os.TempDir.
	TempDir string
}

// Result describes the artifacts of one processed job.
type Result struct {
	Duration time.Duration
	Aligned  bool
	Cues     []subtitle.Cue
}

// Worker processes one job at a time. Aligner and Notifier may be nil.
type Worker struct {
	queue    core.JobQueue
	synth    core.Synthesizer
	aligner  core.Aligner
	store    core.ObjectStore
	notifier core.CompletionNotifier
	opts     Options
	log      *logger.Logger
}

// New creates a Worker.
func New(
	queue core.JobQueue,
	synth core.Synthesizer,
	aligner core.Aligner,
	store core.ObjectStore,
	notifier core.CompletionNotifier,
	opts Options,
	log *logger.Logger,
) (*Worker, error) {
	switch {
	case queue == nil:
		return nil, ErrQueueNil
	case synth == nil:
		return nil, ErrSynthesizerNil
	case store == nil:
		return nil, ErrStoreNil
	case log == nil:
		return nil, ErrLoggerNil
	}

	if opts.SampleRate <= 0 {
		opts.SampleRate = defaultSampleRate
	}

	if opts.JobTimeout <= 0 {
		opts.JobTimeout = defaultJobTimeout
	}

	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = defaultBackoff
	}

	return &Worker{
		queue:    queue,
		synth:    synth,
		aligner:  aligner,
		store:    store,
		notifier: notifier,
		opts:     opts,
		log:      log,
	}, nil
}

// Run polls until ctx is cancelled. A job already in progress is finished
// before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Worker started, polling for jobs")

	for {
		if ctx.Err() != nil {
			w.log.Info("Worker stopping")

			return nil
		}

		delivery, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("Worker stopping")

				return nil
			}

			w.log.Error("Failed to receive job: %v", err)
			sleep(ctx, w.opts.ErrorBackoff)

			continue
		}

		if delivery == nil {
			continue
		}

		w.Handle(ctx, delivery)
	}
}

// Handle processes a single delivery and acknowledges it on success. On
// failure the delivery is left for the queue to redeliver.
func (w *Worker) Handle(ctx context.Context, delivery core.Delivery) {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.opts.JobTimeout)
	defer cancel()

	if w.opts.MaxAttempts > 0 && delivery.Attempt() > w.opts.MaxAttempts {
		w.log.Error("Dropping message %s after %d deliveries (limit %d)",
			delivery.ID(), delivery.Attempt(), w.opts.MaxAttempts)

		ackErr := delivery.Ack(jobCtx)
		if ackErr != nil {
			w.log.Error("Failed to acknowledge dropped message %s: %v", delivery.ID(), ackErr)
		}

		return
	}

	parsed, err := job.Parse(delivery.Body(), job.Defaults{Voice: w.opts.DefaultVoice})
	if err != nil {
		w.log.Error("Rejected message %s (attempt %d): %v", delivery.ID(), delivery.Attempt(), err)

		return
	}

	w.log.Info("Processing job %s (attempt %d): %d chars, voice %s, speed %.2f",
		delivery.ID(), delivery.Attempt(), len(parsed.Text), parsed.Voice, parsed.Speed)

	result, err := w.Process(jobCtx, parsed)
	if err != nil {
		w.log.Error("Job %s failed: %v", delivery.ID(), err)

		return
	}

	err = delivery.Ack(jobCtx)
	if err != nil {
		w.log.Error("Job %s finished but could not be acknowledged: %v", delivery.ID(), err)

		return
	}

	w.log.Info("Job %s done: audio=%s subs=%s duration=%s aligned=%t",
		delivery.ID(), parsed.AudioOut, parsed.SubsOut, result.Duration, result.Aligned)

	w.notify(jobCtx, delivery.ID(), parsed, result)
}

// Process synthesizes, times and uploads one job.
func (w *Worker) Process(ctx context.Context, j *job.Job) (*Result, error) {
	workDir, err := os.MkdirTemp(w.opts.TempDir, workDirPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}

	defer func() {
		removeErr := os.RemoveAll(workDir)
		if removeErr != nil {
			w.log.Warn("Failed to remove work dir '%s': %v", workDir, removeErr)
		}
	}()

	audioData, err := w.synth.Synthesize(ctx, core.SynthesisRequest{
		Text:  j.Text,
		Voice: j.Voice,
		Speed: j.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	info, err := audio.Inspect(audioData)
	if err != nil {
		return nil, fmt.Errorf("synthesized audio is unusable: %w", err)
	}

	if info.SampleRate != w.opts.SampleRate {
		w.log.Warn("Synthesized audio is %d Hz, expected %d Hz", info.SampleRate, w.opts.SampleRate)
	}

	audioPath := filepath.Join(workDir, audioFileName)

	err = os.WriteFile(audioPath, audioData, filePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to write audio file: %w", err)
	}

	cues, aligned := w.subtitles(ctx, j, audioPath, info.Duration)

	err = w.store.Put(ctx, j.AudioOut, audioData, audio.ContentType)
	if err != nil {
		return nil, fmt.Errorf("audio upload failed: %w", err)
	}

	err = w.store.Put(ctx, j.SubsOut, subtitle.Encode(cues), subtitle.ContentType)
	if err != nil {
		return nil, fmt.Errorf("subtitle upload failed: %w", err)
	}

	return &Result{Duration: info.Duration, Aligned: aligned, Cues: cues}, nil
}

// subtitles aligns when requested and possible, and otherwise falls back to
// sentence timing. The boolean reports whether alignment was used.
func (w *Worker) subtitles(ctx context.Context, j *job.Job, audioPath string, duration time.Duration) ([]subtitle.Cue, bool) {
	if !j.UseAlignment || w.aligner == nil {
		return subtitle.Naive(j.Text, duration), false
	}

	cues, err := w.aligner.Align(ctx, audioPath, j.Text)
	if err == nil && len(cues) > 0 {
		return cues, true
	}

	if err == nil {
		err = subtitle.ErrNoCues
	}

	w.log.Warn("Alignment failed: %v; falling back to naive timing", err)

	return subtitle.Naive(j.Text, duration), false
}

func (w *Worker) notify(ctx context.Context, jobID string, j *job.Job, result *Result) {
	if w.notifier == nil {
		return
	}

	err := w.notifier.NotifyCompleted(ctx, core.JobCompleted{
		JobID:      jobID,
		AudioOut:   j.AudioOut,
		SubsOut:    j.SubsOut,
		Aligned:    result.Aligned,
		DurationMS: result.Duration.Milliseconds(),
	})
	if err != nil {
		w.log.Warn("Failed to publish completion for job %s: %v", jobID, err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
