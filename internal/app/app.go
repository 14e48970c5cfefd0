// Package app builds the worker's backends from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/book-expert/tts-worker/internal/align"
	"github.com/book-expert/tts-worker/internal/config"
	"github.com/book-expert/tts-worker/internal/core"
	"github.com/book-expert/tts-worker/internal/notify"
	"github.com/book-expert/tts-worker/internal/objectstore"
	"github.com/book-expert/tts-worker/internal/queue"
	"github.com/book-expert/tts-worker/internal/tts"
	"github.com/nats-io/nats.go"
)

const natsClientName = "tts-worker"

// ErrNATSUnavailable indicates a NATS-backed component without a connection.
var ErrNATSUnavailable = errors.New("nats connection is not configured")

// Queue is a job queue that can also enqueue.
type Queue interface {
	core.JobQueue
	core.JobSender
}

// Resources holds the shared clients the backends are built from.
type Resources struct {
	AWS       aws.Config
	NATS      *nats.Conn
	JetStream nats.JetStreamContext
}

// Connect loads the AWS configuration and, when a NATS URL is configured,
// connects to NATS.
func Connect(ctx context.Context, cfg *config.Config) (*Resources, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	if cfg.AWS.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
	}

	res := &Resources{AWS: awsCfg}

	if cfg.NATS.URL == "" {
		return res, nil
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name(natsClientName))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	res.NATS = natsConnection
	res.JetStream = jetstreamContext

	return res, nil
}

// Close drains the NATS connection if there is one.
func (r *Resources) Close() error {
	if r.NATS == nil {
		return nil
	}

	err := r.NATS.Drain()
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}

	return nil
}

// NewQueue builds the configured queue backend.
func NewQueue(cfg *config.Config, res *Resources) (Queue, error) {
	switch cfg.Queue.Backend {
	case config.QueueBackendSQS:
		client := sqs.NewFromConfig(res.AWS)

		return queue.NewSQSQueue(client, cfg.Queue.URL, cfg.PollWait(), cfg.VisibilityTimeout())
	case config.QueueBackendNATS:
		if res.JetStream == nil {
			return nil, ErrNATSUnavailable
		}

		return queue.NewJetStreamQueue(res.JetStream, queue.JetStreamOptions{
			Stream:   cfg.NATS.StreamName,
			Consumer: cfg.NATS.ConsumerName,
			Subject:  cfg.NATS.JobSubject,
			Wait:     cfg.PollWait(),
			AckWait:  cfg.VisibilityTimeout(),
		})
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownQueueBackend, cfg.Queue.Backend)
	}
}

// NewStore registers the file and S3 backends, plus NATS object store
// buckets when connected.
func NewStore(cfg *config.Config, res *Resources) *objectstore.Router {
	router := objectstore.NewRouter()
	router.Register(objectstore.SchemeFile, objectstore.NewFileStore())
	router.Register(objectstore.SchemeS3, objectstore.NewS3Store(s3.NewFromConfig(res.AWS, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWS.Endpoint != ""
	})))

	if res.JetStream != nil {
		router.Register(objectstore.SchemeNATS, objectstore.NewNatsObjectStore(res.JetStream))
	}

	return router
}

// NewSynthesizer builds the configured synthesis client.
func NewSynthesizer(cfg *config.Config) (core.Synthesizer, error) {
	timeout := time.Duration(cfg.TTS.TimeoutSeconds) * time.Second

	switch cfg.TTS.Backend {
	case config.TTSBackendOpenAI:
		return tts.NewOpenAISynthesizer(tts.OpenAIConfig{
			BaseURL: cfg.TTS.BaseURL,
			APIKey:  cfg.TTS.APIKey,
			Model:   cfg.TTS.Model,
			Timeout: timeout,
		}), nil
	case config.TTSBackendHTTP:
		return tts.NewHTTPClient(cfg.TTS.BaseURL, cfg.TTS.Language, timeout), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTTSBackend, cfg.TTS.Backend)
	}
}

// NewAligner builds the configured aligner. It returns nil for the "none"
// backend, which always uses sentence timing.
func NewAligner(cfg *config.Config) (core.Aligner, error) {
	timeout := time.Duration(cfg.Aligner.TimeoutSeconds) * time.Second

	switch cfg.Aligner.Backend {
	case config.AlignerBackendAeneas:
		aligner, err := align.NewAeneasAligner(cfg.Aligner.Command, cfg.Aligner.Language)
		if err != nil {
			return nil, err
		}

		return align.WithTimeout(aligner, timeout), nil
	case config.AlignerBackendWhisper:
		return align.NewWhisperAligner(align.WhisperConfig{
			BaseURL:  cfg.Aligner.WhisperBaseURL,
			APIKey:   cfg.Aligner.WhisperAPIKey,
			Model:    cfg.Aligner.WhisperModel,
			Language: cfg.TTS.Language,
			Timeout:  timeout,
		}), nil
	case config.AlignerBackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownAlignerBackend, cfg.Aligner.Backend)
	}
}

// NewNotifier returns a completion notifier, or nil when no completion
// subject is configured.
func NewNotifier(cfg *config.Config, res *Resources) (core.CompletionNotifier, error) {
	if cfg.NATS.CompletedSubject == "" {
		return nil, nil
	}

	if res.NATS == nil {
		return nil, ErrNATSUnavailable
	}

	return notify.NewNATSNotifier(res.NATS, cfg.NATS.CompletedSubject)
}
