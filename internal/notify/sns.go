// Package notify publishes import events to external systems.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/JonMunkholm/orderimport/internal/config"
	"github.com/JonMunkholm/orderimport/internal/core"
	"github.com/JonMunkholm/orderimport/internal/logging"
)

// Publisher is the part of the SNS client the observer needs.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSObserver forwards every import event to an SNS topic as JSON.
type SNSObserver struct {
	client   Publisher
	topicARN string
}

var _ core.Observer = (*SNSObserver)(nil)

// NewSNSObserver wraps an existing client.
func NewSNSObserver(client Publisher, topicARN string) *SNSObserver {
	return &SNSObserver{client: client, topicARN: topicARN}
}

// NewSNSObserverFromConfig builds the client from the default AWS config
// chain. It returns nil, nil when no topic is configured.
func NewSNSObserverFromConfig(ctx context.Context, cfg config.NotifyConfig) (*SNSObserver, error) {
	if cfg.SNSTopicARN == "" {
		return nil, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.SNSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SNSEndpoint)
		}
	})

	return NewSNSObserver(client, cfg.SNSTopicARN), nil
}

func (o *SNSObserver) Name() string { return "sns" }

func (o *SNSObserver) Handle(ctx context.Context, event core.ImportEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal import event: %w", err)
	}

	out, err := o.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(o.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"action": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Action)),
			},
			"tenant_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.TenantID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish failed for topic %s: %w", o.topicARN, err)
	}

	logging.FromContext(ctx).Debug("import event published",
		"topic", o.topicARN,
		"action", event.Action,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}
