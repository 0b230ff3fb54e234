package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// LogGroup declares a CloudWatch Logs log group. A zero retention means
// logs never expire.
type LogGroup struct {
	resource.Meta
	LogGroupName    string            `json:"log_group_name"`
	RetentionInDays int               `json:"retention_in_days,omitempty"`
	Tags            map[string]string `json:"tags,omitempty"`
}

func (l *LogGroup) ResourceType() string { return "aws_cloudwatch_log_group" }

type logGroupHandler struct {
	client *cloudwatchlogs.Client
}

func (h *logGroupHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	name := stringAttr(prior.Attributes, "log_group_name")
	if name == "" {
		return nil, false, nil
	}

	lg, err := h.describe(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if lg == nil {
		return nil, false, nil
	}

	attrs := cloneAttrs(prior)
	attrs["arn"] = aws.ToString(lg.Arn)
	if lg.RetentionInDays != nil {
		attrs["retention_in_days"] = int(*lg.RetentionInDays)
	} else {
		delete(attrs, "retention_in_days")
	}
	return attrs, true, nil
}

func (h *logGroupHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	l := desired.(*LogGroup)

	input := &cloudwatchlogs.CreateLogGroupInput{LogGroupName: aws.String(l.LogGroupName)}
	if len(l.Tags) > 0 {
		input.Tags = l.Tags
	}
	if _, err := h.client.CreateLogGroup(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to create log group %s: %w", l.LogGroupName, err)
	}

	if err := h.setRetention(ctx, l); err != nil {
		return nil, err
	}

	arn := ""
	if lg, err := h.describe(ctx, l.LogGroupName); err == nil && lg != nil {
		arn = aws.ToString(lg.Arn)
	}
	return h.attrs(l, arn), nil
}

func (h *logGroupHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error) {
	l := desired.(*LogGroup)
	if err := h.setRetention(ctx, l); err != nil {
		return nil, err
	}
	return h.attrs(l, stringAttr(prior.Attributes, "arn")), nil
}

func (h *logGroupHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	name := stringAttr(prior.Attributes, "log_group_name")
	if name == "" {
		return nil
	}
	_, err := h.client.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{LogGroupName: aws.String(name)})
	if err != nil {
		if isNotFound(err, "ResourceNotFoundException") {
			return nil
		}
		return fmt.Errorf("failed to delete log group %s: %w", name, err)
	}
	return nil
}

func (h *logGroupHandler) setRetention(ctx context.Context, l *LogGroup) error {
	if l.RetentionInDays > 0 {
		_, err := h.client.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
			LogGroupName:    aws.String(l.LogGroupName),
			RetentionInDays: aws.Int32(int32(l.RetentionInDays)),
		})
		if err != nil {
			return fmt.Errorf("failed to set retention of log group %s: %w", l.LogGroupName, err)
		}
		return nil
	}
	_, err := h.client.DeleteRetentionPolicy(ctx, &cloudwatchlogs.DeleteRetentionPolicyInput{
		LogGroupName: aws.String(l.LogGroupName),
	})
	if err != nil && !isNotFound(err, "ResourceNotFoundException") {
		return fmt.Errorf("failed to clear retention of log group %s: %w", l.LogGroupName, err)
	}
	return nil
}

func (h *logGroupHandler) describe(ctx context.Context, name string) (*logGroupRecord, error) {
	out, err := h.client.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe log group %s: %w", name, err)
	}
	for _, lg := range out.LogGroups {
		if aws.ToString(lg.LogGroupName) == name {
			return &logGroupRecord{Arn: lg.Arn, RetentionInDays: lg.RetentionInDays}, nil
		}
	}
	return nil, nil
}

// logGroupRecord narrows the DescribeLogGroups result to the fields the
// handler tracks.
type logGroupRecord struct {
	Arn             *string
	RetentionInDays *int32
}

func (h *logGroupHandler) attrs(l *LogGroup, arn string) map[string]any {
	attrs := map[string]any{
		"name":           l.Name,
		"log_group_name": l.LogGroupName,
	}
	if arn != "" {
		attrs["arn"] = arn
	}
	if l.RetentionInDays > 0 {
		attrs["retention_in_days"] = l.RetentionInDays
	}
	setTags(attrs, l.Tags)
	return attrs
}
