// Package aws provides the AWS resource catalog: one resource type and
// handler per supported service, all sharing a client set built from the
// default credential chain.
package aws

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/smithy-go"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// Clients bundles one client per supported service so every handler
// shares the same credentials and region.
type Clients struct {
	Region         string
	S3             *s3.Client
	SSM            *ssm.Client
	DynamoDB       *dynamodb.Client
	SQS            *sqs.Client
	SNS            *sns.Client
	Logs           *cloudwatchlogs.Client
	SecretsManager *secretsmanager.Client
	ECR            *ecr.Client
	IAM            *iam.Client
	Kinesis        *kinesis.Client
	EventBridge    *eventbridge.Client
}

// NewClients loads the default AWS configuration, optionally pinned to a
// region and shared-config profile, and builds the service clients.
func NewClients(ctx context.Context, region, profile string) (*Clients, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Clients{
		Region:         cfg.Region,
		S3:             s3.NewFromConfig(cfg),
		SSM:            ssm.NewFromConfig(cfg),
		DynamoDB:       dynamodb.NewFromConfig(cfg),
		SQS:            sqs.NewFromConfig(cfg),
		SNS:            sns.NewFromConfig(cfg),
		Logs:           cloudwatchlogs.NewFromConfig(cfg),
		SecretsManager: secretsmanager.NewFromConfig(cfg),
		ECR:            ecr.NewFromConfig(cfg),
		IAM:            iam.NewFromConfig(cfg),
		Kinesis:        kinesis.NewFromConfig(cfg),
		EventBridge:    eventbridge.NewFromConfig(cfg),
	}, nil
}

// Register wires the full AWS catalog into reg.
func Register(reg *engine.Registry, c *Clients) error {
	entries := []struct {
		tag     string
		factory func() resource.Resource
		handler engine.Handler
	}{
		{"aws_s3_bucket", func() resource.Resource { return &Bucket{} }, &bucketHandler{client: c.S3, region: c.Region}},
		{"aws_ssm_parameter", func() resource.Resource { return &Parameter{} }, &parameterHandler{client: c.SSM}},
		{"aws_dynamodb_table", func() resource.Resource { return &Table{} }, &tableHandler{client: c.DynamoDB}},
		{"aws_sqs_queue", func() resource.Resource { return &Queue{} }, &queueHandler{client: c.SQS}},
		{"aws_sns_topic", func() resource.Resource { return &Topic{} }, &topicHandler{client: c.SNS}},
		{"aws_cloudwatch_log_group", func() resource.Resource { return &LogGroup{} }, &logGroupHandler{client: c.Logs}},
		{"aws_secretsmanager_secret", func() resource.Resource { return &Secret{} }, &secretHandler{client: c.SecretsManager}},
		{"aws_ecr_repository", func() resource.Resource { return &Repository{} }, &repositoryHandler{client: c.ECR}},
		{"aws_iam_role", func() resource.Resource { return &Role{} }, &roleHandler{client: c.IAM}},
		{"aws_kinesis_stream", func() resource.Resource { return &Stream{} }, &streamHandler{client: c.Kinesis}},
		{"aws_event_bus", func() resource.Resource { return &EventBus{} }, &eventBusHandler{client: c.EventBridge}},
	}
	for _, e := range entries {
		if err := reg.Register(e.tag, e.factory, e.handler); err != nil {
			return err
		}
	}
	return nil
}

// isNotFound reports whether err is an API error carrying one of the
// given codes.
func isNotFound(err error, codes ...string) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	return slices.Contains(codes, ae.ErrorCode())
}

// cloneAttrs copies a prior instance's attributes so reads can overlay
// live values without mutating state in place.
func cloneAttrs(prior *resource.Instance) map[string]any {
	attrs := make(map[string]any, len(prior.Attributes))
	for k, v := range prior.Attributes {
		attrs[k] = v
	}
	return attrs
}

// stringAttr pulls a string field out of stored attributes.
func stringAttr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

// intAttr pulls a numeric field out of stored attributes. Values loaded
// from the state file arrive as float64.
func intAttr(attrs map[string]any, key string) int {
	switch v := attrs[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

// setTags writes live tags into attrs, or clears the key so an untagged
// remote object does not pin a stale tag map.
func setTags(attrs map[string]any, tags map[string]string) {
	if len(tags) > 0 {
		attrs["tags"] = tags
	} else {
		delete(attrs, "tags")
	}
}
