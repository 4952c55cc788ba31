package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStreamQueue maps the work queue onto a Redis stream and consumer group.
// A delivered but unacknowledged entry becomes receivable again once it has
// been idle for visibilityTimeout.
type RedisStreamQueue struct {
	client            *redis.Client
	stream            string
	consumerName      string
	visibilityTimeout time.Duration
}

// NewRedisStreamQueue constructs a Redis stream queue for one consumer.
func NewRedisStreamQueue(client *redis.Client, stream string, consumerName string, visibilityTimeout time.Duration) *RedisStreamQueue {
	return &RedisStreamQueue{
		client:            client,
		stream:            stream,
		consumerName:      consumerName,
		visibilityTimeout: visibilityTimeout,
	}
}

// EnsureGroup creates the stream and consumer group if missing.
func (q *RedisStreamQueue) EnsureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, ConsumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group on %s: %w", q.stream, err)
	}
	return nil
}

// Receive first reclaims one entry whose visibility timeout expired, then
// blocks up to wait for a new one.
func (q *RedisStreamQueue) Receive(ctx context.Context, wait time.Duration) (*Message, error) {
	msg, err := q.reclaim(ctx)
	if err != nil || msg != nil {
		return msg, err
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: q.consumerName,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    wait,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", q.stream, err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}
	return toMessage(streams[0].Messages[0], 1), nil
}

func (q *RedisStreamQueue) reclaim(ctx context.Context) (*Message, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    ConsumerGroup,
		MinIdle:  q.visibilityTimeout,
		Start:    "0-0",
		Count:    1,
		Consumer: q.consumerName,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xautoclaim %s: %w", q.stream, err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	count := 0
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  ConsumerGroup,
		Start:  msgs[0].ID,
		End:    msgs[0].ID,
		Count:  1,
	}).Result()
	if err == nil && len(pending) == 1 {
		count = int(pending[0].RetryCount)
	}
	return toMessage(msgs[0], count), nil
}

// Delete acknowledges the entry and removes it from the stream.
func (q *RedisStreamQueue) Delete(ctx context.Context, msg Message) error {
	if msg.ReceiptHandle == "" {
		return fmt.Errorf("receipt handle is required")
	}
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, q.stream, ConsumerGroup, msg.ReceiptHandle)
		pipe.XDel(ctx, q.stream, msg.ReceiptHandle)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ack %s on %s: %w", msg.ReceiptHandle, q.stream, err)
	}
	return nil
}

// Send appends body to the stream.
func (q *RedisStreamQueue) Send(ctx context.Context, body string) error {
	return NewRedisStreamSender(q.client, q.stream).Send(ctx, body)
}

// RedisStreamSender appends bodies to a stream without consuming it.
type RedisStreamSender struct {
	client *redis.Client
	stream string
}

// NewRedisStreamSender constructs a producer for stream.
func NewRedisStreamSender(client *redis.Client, stream string) *RedisStreamSender {
	return &RedisStreamSender{client: client, stream: stream}
}

// Send pushes body onto the stream.
func (s *RedisStreamSender) Send(ctx context.Context, body string) error {
	_, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			bodyField: body,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd to %s: %w", s.stream, err)
	}
	return nil
}

func toMessage(m redis.XMessage, receiveCount int) *Message {
	body, _ := m.Values[bodyField].(string)
	return &Message{
		ID:            m.ID,
		ReceiptHandle: m.ID,
		Body:          body,
		ReceiveCount:  receiveCount,
	}
}
