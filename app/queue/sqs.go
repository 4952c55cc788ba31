package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQS caps long polling at 20 seconds.
const maxSQSWait = 20 * time.Second

// SQSAPI is the subset of the SQS client used by SQSQueue.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSQueue struct {
	client   SQSAPI
	queueURL string
}

// NewSQSQueue binds an SQS client to one queue URL.
func NewSQSQueue(client SQSAPI, queueURL string) *SQSQueue {
	return &SQSQueue{client: client, queueURL: queueURL}
}

// NewSQSQueueFromConfig builds an SQS client from cfg and binds it to queueURL.
func NewSQSQueueFromConfig(cfg aws.Config, queueURL string) *SQSQueue {
	return NewSQSQueue(sqs.NewFromConfig(cfg), queueURL)
}

// Receive long-polls for at most one message. SQS counts the wait in whole
// seconds, so a positive wait below one second is rounded up.
func (q *SQSQueue) Receive(ctx context.Context, wait time.Duration) (*Message, error) {
	switch {
	case wait > maxSQSWait:
		wait = maxSQSWait
	case wait > 0 && wait < time.Second:
		wait = time.Second
	}

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     int32(wait / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive from %s: %w", q.queueURL, err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	m := out.Messages[0]
	count, _ := strconv.Atoi(m.Attributes[receiveCountAttrName])
	return &Message{
		ID:            aws.ToString(m.MessageId),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Body:          aws.ToString(m.Body),
		ReceiveCount:  count,
	}, nil
}

// Delete acknowledges the delivery identified by msg.ReceiptHandle.
func (q *SQSQueue) Delete(ctx context.Context, msg Message) error {
	if msg.ReceiptHandle == "" {
		return fmt.Errorf("receipt handle is required")
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete %s: %w", msg.ID, err)
	}
	return nil
}

// Send enqueues body as a new message.
func (q *SQSQueue) Send(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("sqs send to %s: %w", q.queueURL, err)
	}
	return nil
}
