// Package queue provides long-polling job queues backed by Amazon SQS and
// NATS JetStream. Messages are acknowledged only on request; anything left
// unacknowledged becomes visible again after the visibility timeout.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/book-expert/tts-worker/internal/core"
)

const attributeReceiveCount = "ApproximateReceiveCount"

var (
	// ErrQueueURLEmpty indicates an SQS queue without a URL.
	ErrQueueURLEmpty = errors.New("sqs queue url cannot be empty")
	// ErrInvalidTimeout indicates a wait or visibility timeout outside SQS limits.
	ErrInvalidTimeout = errors.New("invalid queue timeout")
)

// SQS limits.
const (
	maxWaitSeconds       = 20
	maxVisibilitySeconds = 12 * 60 * 60
)

// SQSAPI is the subset of the SQS client used by SQSQueue.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSQueue receives one message at a time from an SQS queue.
type SQSQueue struct {
	client            SQSAPI
	queueURL          string
	waitSeconds       int32
	visibilitySeconds int32
}

// NewSQSQueue creates a queue for queueURL. wait is the long-poll interval
// (at most 20s); visibility is how long a received message stays hidden.
func NewSQSQueue(client SQSAPI, queueURL string, wait, visibility time.Duration) (*SQSQueue, error) {
	if queueURL == "" {
		return nil, ErrQueueURLEmpty
	}

	waitSeconds := int(wait / time.Second)
	if waitSeconds < 0 || waitSeconds > maxWaitSeconds {
		return nil, fmt.Errorf("%w: wait %s must be between 0s and %ds", ErrInvalidTimeout, wait, maxWaitSeconds)
	}

	visibilitySeconds := int(visibility / time.Second)
	if visibilitySeconds <= 0 || visibilitySeconds > maxVisibilitySeconds {
		return nil, fmt.Errorf("%w: visibility %s must be between 1s and 12h", ErrInvalidTimeout, visibility)
	}

	return &SQSQueue{
		client:            client,
		queueURL:          queueURL,
		waitSeconds:       int32(waitSeconds),
		visibilitySeconds: int32(visibilitySeconds),
	}, nil
}

// Receive long-polls for a single message.
func (q *SQSQueue) Receive(ctx context.Context) (core.Delivery, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     q.waitSeconds,
		VisibilityTimeout:   q.visibilitySeconds,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive from %s: %w", q.queueURL, err)
	}

	if len(out.Messages) == 0 {
		return nil, nil
	}

	msg := out.Messages[0]

	attempt := 1
	if count, ok := msg.Attributes[attributeReceiveCount]; ok {
		parsed, parseErr := strconv.Atoi(count)
		if parseErr == nil && parsed > 0 {
			attempt = parsed
		}
	}

	return &sqsDelivery{
		queue:         q,
		id:            aws.ToString(msg.MessageId),
		body:          []byte(aws.ToString(msg.Body)),
		receiptHandle: aws.ToString(msg.ReceiptHandle),
		attempt:       attempt,
	}, nil
}

// Send enqueues body.
func (q *SQSQueue) Send(ctx context.Context, body []byte) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send to %s: %w", q.queueURL, err)
	}

	return nil
}

// Close is a no-op; the SQS client holds no per-queue resources.
func (q *SQSQueue) Close() error {
	return nil
}

type sqsDelivery struct {
	queue         *SQSQueue
	id            string
	body          []byte
	receiptHandle string
	attempt       int
}

func (d *sqsDelivery) ID() string   { return d.id }
func (d *sqsDelivery) Body() []byte { return d.body }
func (d *sqsDelivery) Attempt() int { return d.attempt }

// Ack deletes the message by its receipt handle.
func (d *sqsDelivery) Ack(ctx context.Context) error {
	_, err := d.queue.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(d.queue.queueURL),
		ReceiptHandle: aws.String(d.receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message %s: %w", d.id, err)
	}

	return nil
}
