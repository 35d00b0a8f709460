package trainer

import (
	"context"
	"encoding/json"
	"fmt"

	"employability-workers/internal/common/aws"
	"employability-workers/internal/common/errors"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Notifier announces finished training runs.
type Notifier interface {
	NotifyTrainingRun(ctx context.Context, result *Result) error
}

// SNSNotifier publishes run summaries to an SNS topic.
type SNSNotifier struct {
	client   aws.SNSService
	topicARN string
}

func NewSNSNotifier(client aws.SNSService, topicARN string) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN}
}

func (n *SNSNotifier) NotifyTrainingRun(ctx context.Context, result *Result) error {
	body, err := json.Marshal(result)
	if err != nil {
		return err
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(n.topicARN),
		Subject:  awssdk.String(fmt.Sprintf("Model %s trained", result.Version)),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"modelKind": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(result.Model),
			},
		},
	})
	if err != nil {
		return errors.NewNotificationSendFailedError(err)
	}
	return nil
}
