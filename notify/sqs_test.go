package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/smithy-go/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock middleware to return specific output or error
func mockSQSMiddleware(output any, err error) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Finalize.Add(
			middleware.FinalizeMiddlewareFunc("MockMiddleware", func(context.Context, middleware.FinalizeInput, middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
				return middleware.FinalizeOutput{
					Result: output,
				}, middleware.Metadata{}, err
			}),
			middleware.Before,
		)
	}
}

// recordingClient captures sent messages
type recordingClient struct {
	inputs []*sqs.SendMessageInput
}

func (r *recordingClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	r.inputs = append(r.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

// TestSQSNotifier_PublishBody verifies the queue URL and JSON body
func TestSQSNotifier_PublishBody(t *testing.T) {
	client := &recordingClient{}
	n := NewSQSNotifier(client, "https://sqs.example.com/123/scrapes")

	err := n.Publish(context.Background(), map[string]any{"source": "Pulse", "articlesCount": 3})
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)
	assert.Equal(t, "https://sqs.example.com/123/scrapes", aws.ToString(client.inputs[0].QueueUrl))
	assert.JSONEq(t, `{"source":"Pulse","articlesCount":3}`, aws.ToString(client.inputs[0].MessageBody))
}

// TestSQSNotifier_RealClient verifies the SDK client through a mocked
// middleware stack
func TestSQSNotifier_RealClient(t *testing.T) {
	client := sqs.NewFromConfig(aws.Config{Region: "ap-south-1"}, func(o *sqs.Options) {
		o.APIOptions = append(o.APIOptions, mockSQSMiddleware(&sqs.SendMessageOutput{}, nil))
	})
	err := NewSQSNotifier(client, "queue-url").Publish(context.Background(), map[string]string{"key": "value"})
	assert.NoError(t, err)

	clientErr := sqs.NewFromConfig(aws.Config{Region: "ap-south-1"}, func(o *sqs.Options) {
		o.APIOptions = append(o.APIOptions, mockSQSMiddleware(nil, errors.New("aws error")))
	})
	err = NewSQSNotifier(clientErr, "queue-url").Publish(context.Background(), map[string]string{"key": "value"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send message")
}

// TestSQSNotifier_MarshalError verifies unencodable messages fail early
func TestSQSNotifier_MarshalError(t *testing.T) {
	client := &recordingClient{}
	err := NewSQSNotifier(client, "queue-url").Publish(context.Background(), make(chan int))
	assert.Error(t, err)
	assert.Empty(t, client.inputs)
}
