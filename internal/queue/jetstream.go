package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/book-expert/tts-worker/internal/core"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

var (
	// ErrStreamConfig indicates a JetStream queue without stream, consumer or subject.
	ErrStreamConfig = errors.New("jetstream queue requires stream, consumer and subject")
	// ErrNoMessage indicates a fetch that returned no message and no error.
	ErrNoMessage = errors.New("fetch returned no message")
)

// JetStreamOptions configures a JetStreamQueue.
type JetStreamOptions struct {
	Stream   string
	Consumer string
	Subject  string
	// Wait is the longest a single Receive blocks.
	Wait time.Duration
	// AckWait is how long a received message stays with this consumer
	// before JetStream redelivers it.
	AckWait time.Duration
}

// JetStreamQueue is a durable pull consumer on a work-queue stream.
type JetStreamQueue struct {
	jetstreamContext nats.JetStreamContext
	subscription     *nats.Subscription
	subject          string
	wait             time.Duration
}

// NewJetStreamQueue ensures the stream and durable consumer exist and binds
// a pull subscription to them.
func NewJetStreamQueue(jetstreamContext nats.JetStreamContext, opts JetStreamOptions) (*JetStreamQueue, error) {
	if opts.Stream == "" || opts.Consumer == "" || opts.Subject == "" {
		return nil, ErrStreamConfig
	}

	if opts.Wait <= 0 || opts.AckWait <= 0 {
		return nil, fmt.Errorf("%w: wait %s, ack wait %s", ErrInvalidTimeout, opts.Wait, opts.AckWait)
	}

	err := ensureStream(jetstreamContext, opts)
	if err != nil {
		return nil, err
	}

	err = ensureConsumer(jetstreamContext, opts)
	if err != nil {
		return nil, err
	}

	sub, err := jetstreamContext.PullSubscribe(opts.Subject, opts.Consumer, nats.Bind(opts.Stream, opts.Consumer))
	if err != nil {
		return nil, fmt.Errorf("failed to bind pull consumer %s: %w", opts.Consumer, err)
	}

	return &JetStreamQueue{
		jetstreamContext: jetstreamContext,
		subscription:     sub,
		subject:          opts.Subject,
		wait:             opts.Wait,
	}, nil
}

func ensureStream(jetstreamContext nats.JetStreamContext, opts JetStreamOptions) error {
	_, err := jetstreamContext.StreamInfo(opts.Stream)
	if err == nil {
		return nil
	}

	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", opts.Stream, err)
	}

	_, err = jetstreamContext.AddStream(&nats.StreamConfig{
		Name:      opts.Stream,
		Subjects:  []string{opts.Subject},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create stream %s: %w", opts.Stream, err)
	}

	return nil
}

func ensureConsumer(jetstreamContext nats.JetStreamContext, opts JetStreamOptions) error {
	consumerConfig := &nats.ConsumerConfig{
		Durable:       opts.Consumer,
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       opts.AckWait,
		MaxDeliver:    -1,
		FilterSubject: opts.Subject,
	}

	_, err := jetstreamContext.ConsumerInfo(opts.Stream, opts.Consumer)
	if err == nil {
		_, err = jetstreamContext.UpdateConsumer(opts.Stream, consumerConfig)
		if err != nil {
			return fmt.Errorf("failed to update consumer %s: %w", opts.Consumer, err)
		}

		return nil
	}

	if !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("failed to look up consumer %s: %w", opts.Consumer, err)
	}

	_, err = jetstreamContext.AddConsumer(opts.Stream, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", opts.Consumer, err)
	}

	return nil
}

// Receive fetches a single message, waiting at most the configured interval.
func (q *JetStreamQueue) Receive(ctx context.Context) (core.Delivery, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, q.wait)
	defer cancel()

	msgs, err := q.subscription.Fetch(1, nats.Context(fetchCtx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch from %s: %w", q.subject, err)
	}

	if len(msgs) == 0 {
		return nil, ErrNoMessage
	}

	msg := msgs[0]

	delivery := &jetStreamDelivery{msg: msg, id: msg.Header.Get(nats.MsgIdHdr), attempt: 1}

	meta, metaErr := msg.Metadata()
	if metaErr == nil {
		delivery.attempt = int(meta.NumDelivered)
		if delivery.id == "" {
			delivery.id = strconv.FormatUint(meta.Sequence.Stream, 10)
		}
	}

	return delivery, nil
}

// Send publishes body on the job subject with a fresh message id.
func (q *JetStreamQueue) Send(ctx context.Context, body []byte) error {
	_, err := q.jetstreamContext.Publish(q.subject, body, nats.MsgId(uuid.NewString()), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", q.subject, err)
	}

	return nil
}

// Close releases the subscription. The durable consumer is kept.
func (q *JetStreamQueue) Close() error {
	err := q.subscription.Unsubscribe()
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}

	return nil
}

type jetStreamDelivery struct {
	msg     *nats.Msg
	id      string
	attempt int
}

func (d *jetStreamDelivery) ID() string   { return d.id }
func (d *jetStreamDelivery) Body() []byte { return d.msg.Data }
func (d *jetStreamDelivery) Attempt() int { return d.attempt }

// Ack waits for the server to confirm the acknowledgement.
func (d *jetStreamDelivery) Ack(ctx context.Context) error {
	err := d.msg.AckSync(nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to ack message %s: %w", d.id, err)
	}

	return nil
}
