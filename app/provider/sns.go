package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-bills-due/app/preparer"
)

// SNSAPI is the subset of the SNS client used by SNSPublisher.
type SNSAPI interface {
	ListTopics(ctx context.Context, params *sns.ListTopicsInput, optFns ...func(*sns.Options)) (*sns.ListTopicsOutput, error)
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSPublisher struct {
	client    SNSAPI
	topicName string
	logger    logrus.FieldLogger
}

// NewSNSPublisher builds a publisher for the topic named (or suffixed) topicName.
func NewSNSPublisher(client SNSAPI, topicName string, logger logrus.FieldLogger) *SNSPublisher {
	return &SNSPublisher{client: client, topicName: topicName, logger: logger}
}

// NewSNSPublisherFromConfig builds an SNS client from cfg and wraps it.
func NewSNSPublisherFromConfig(cfg aws.Config, topicName string, logger logrus.FieldLogger) *SNSPublisher {
	return NewSNSPublisher(sns.NewFromConfig(cfg), topicName, logger)
}

// ListTopics returns every topic visible to the client credentials, in listing order.
func (p *SNSPublisher) ListTopics(ctx context.Context) ([]Topic, error) {
	var topics []Topic
	paginator := sns.NewListTopicsPaginator(p.client, &sns.ListTopicsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("sns list topics: %w", err)
		}
		for _, t := range page.Topics {
			topics = append(topics, TopicFromARN(aws.ToString(t.TopicArn)))
		}
	}
	return topics, nil
}

// Resolve lists the live topics and picks the configured one.
func (p *SNSPublisher) Resolve(ctx context.Context) (Topic, error) {
	topics, err := p.ListTopics(ctx)
	if err != nil {
		return Topic{}, err
	}
	return ResolveTopic(topics, p.topicName)
}

// Publish resolves the topic and sends the notification body as the message.
func (p *SNSPublisher) Publish(ctx context.Context, n preparer.Notification) error {
	if n.Body == "" {
		return fmt.Errorf("notification body is required")
	}

	topic, err := p.Resolve(ctx)
	if err != nil {
		return err
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topic.ARN),
		Message:  aws.String(n.Body),
	})
	if err != nil {
		return fmt.Errorf("sns publish to %s: %w", topic.ARN, err)
	}

	p.logger.WithFields(logrus.Fields{
		"topic_arn":      topic.ARN,
		"sns_message_id": aws.ToString(out.MessageId),
		"bills":          len(n.BillReferences),
	}).Info("Published due-bill notification")
	return nil
}
