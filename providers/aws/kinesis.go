package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	kintypes "github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// Stream declares a Kinesis data stream. ShardCount only applies in
// provisioned mode; AWS defaults retention to 24 hours.
type Stream struct {
	resource.Meta
	StreamName           string            `json:"stream_name"`
	ShardCount           int               `json:"shard_count,omitempty"`
	StreamMode           string            `json:"stream_mode,omitempty"`
	RetentionPeriodHours int               `json:"retention_period_hours,omitempty"`
	Tags                 map[string]string `json:"tags,omitempty"`
}

func (s *Stream) ResourceType() string { return "aws_kinesis_stream" }

type streamHandler struct {
	client *kinesis.Client
}

func (h *streamHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	name := stringAttr(prior.Attributes, "stream_name")
	if name == "" {
		return nil, false, nil
	}

	out, err := h.client.DescribeStreamSummary(ctx, &kinesis.DescribeStreamSummaryInput{
		StreamName: aws.String(name),
	})
	if err != nil {
		if isNotFound(err, "ResourceNotFoundException") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to describe stream %s: %w", name, err)
	}
	summary := out.StreamDescriptionSummary

	attrs := cloneAttrs(prior)
	attrs["arn"] = aws.ToString(summary.StreamARN)
	if _, tracked := attrs["retention_period_hours"]; tracked && summary.RetentionPeriodHours != nil {
		attrs["retention_period_hours"] = int(*summary.RetentionPeriodHours)
	}
	if _, tracked := attrs["shard_count"]; tracked && summary.OpenShardCount != nil {
		attrs["shard_count"] = int(*summary.OpenShardCount)
	}
	if summary.StreamModeDetails != nil {
		if _, tracked := attrs["stream_mode"]; tracked {
			attrs["stream_mode"] = string(summary.StreamModeDetails.StreamMode)
		}
	}
	return attrs, true, nil
}

func (h *streamHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	s := desired.(*Stream)

	input := &kinesis.CreateStreamInput{StreamName: aws.String(s.StreamName)}
	if s.StreamMode != "" {
		input.StreamModeDetails = &kintypes.StreamModeDetails{
			StreamMode: kintypes.StreamMode(s.StreamMode),
		}
	}
	if kintypes.StreamMode(s.StreamMode) != kintypes.StreamModeOnDemand && s.ShardCount > 0 {
		input.ShardCount = aws.Int32(int32(s.ShardCount))
	}
	if _, err := h.client.CreateStream(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to create stream %s: %w", s.StreamName, err)
	}

	if len(s.Tags) > 0 {
		_, err := h.client.AddTagsToStream(ctx, &kinesis.AddTagsToStreamInput{
			StreamName: aws.String(s.StreamName),
			Tags:       s.Tags,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to tag stream %s: %w", s.StreamName, err)
		}
	}
	if err := h.adjustRetention(ctx, s.StreamName, 24, s.RetentionPeriodHours); err != nil {
		return nil, err
	}

	arn := ""
	if out, err := h.client.DescribeStreamSummary(ctx, &kinesis.DescribeStreamSummaryInput{
		StreamName: aws.String(s.StreamName),
	}); err == nil {
		arn = aws.ToString(out.StreamDescriptionSummary.StreamARN)
	}
	return h.attrs(s, arn), nil
}

func (h *streamHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error) {
	s := desired.(*Stream)
	arn := stringAttr(prior.Attributes, "arn")

	priorMode := stringAttr(prior.Attributes, "stream_mode")
	if s.StreamMode != "" && s.StreamMode != priorMode && arn != "" {
		_, err := h.client.UpdateStreamMode(ctx, &kinesis.UpdateStreamModeInput{
			StreamARN: aws.String(arn),
			StreamModeDetails: &kintypes.StreamModeDetails{
				StreamMode: kintypes.StreamMode(s.StreamMode),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update mode of stream %s: %w", s.StreamName, err)
		}
	}

	priorShards := intAttr(prior.Attributes, "shard_count")
	if s.ShardCount > 0 && s.ShardCount != priorShards &&
		kintypes.StreamMode(s.StreamMode) != kintypes.StreamModeOnDemand {
		_, err := h.client.UpdateShardCount(ctx, &kinesis.UpdateShardCountInput{
			StreamName:       aws.String(s.StreamName),
			TargetShardCount: aws.Int32(int32(s.ShardCount)),
			ScalingType:      kintypes.ScalingTypeUniformScaling,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scale stream %s: %w", s.StreamName, err)
		}
	}

	priorRetention := intAttr(prior.Attributes, "retention_period_hours")
	if priorRetention == 0 {
		priorRetention = 24
	}
	if err := h.adjustRetention(ctx, s.StreamName, priorRetention, s.RetentionPeriodHours); err != nil {
		return nil, err
	}

	if len(s.Tags) > 0 {
		_, err := h.client.AddTagsToStream(ctx, &kinesis.AddTagsToStreamInput{
			StreamName: aws.String(s.StreamName),
			Tags:       s.Tags,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to tag stream %s: %w", s.StreamName, err)
		}
	}
	return h.attrs(s, arn), nil
}

func (h *streamHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	name := stringAttr(prior.Attributes, "stream_name")
	if name == "" {
		return nil
	}
	_, err := h.client.DeleteStream(ctx, &kinesis.DeleteStreamInput{
		StreamName:              aws.String(name),
		EnforceConsumerDeletion: aws.Bool(true),
	})
	if err != nil {
		if isNotFound(err, "ResourceNotFoundException") {
			return nil
		}
		return fmt.Errorf("failed to delete stream %s: %w", name, err)
	}
	return nil
}

// adjustRetention moves the retention period from its current value to
// the desired one; Kinesis splits the change across two APIs.
func (h *streamHandler) adjustRetention(ctx context.Context, name string, current, desired int) error {
	if desired <= 0 || desired == current {
		return nil
	}
	hours := aws.Int32(int32(desired))
	if desired > current {
		_, err := h.client.IncreaseStreamRetentionPeriod(ctx, &kinesis.IncreaseStreamRetentionPeriodInput{
			StreamName:           aws.String(name),
			RetentionPeriodHours: hours,
		})
		if err != nil {
			return fmt.Errorf("failed to raise retention of stream %s: %w", name, err)
		}
		return nil
	}
	_, err := h.client.DecreaseStreamRetentionPeriod(ctx, &kinesis.DecreaseStreamRetentionPeriodInput{
		StreamName:           aws.String(name),
		RetentionPeriodHours: hours,
	})
	if err != nil {
		return fmt.Errorf("failed to lower retention of stream %s: %w", name, err)
	}
	return nil
}

func (h *streamHandler) attrs(s *Stream, arn string) map[string]any {
	attrs := map[string]any{
		"name":        s.Name,
		"stream_name": s.StreamName,
	}
	if arn != "" {
		attrs["arn"] = arn
	}
	if s.ShardCount > 0 {
		attrs["shard_count"] = s.ShardCount
	}
	if s.StreamMode != "" {
		attrs["stream_mode"] = s.StreamMode
	}
	if s.RetentionPeriodHours > 0 {
		attrs["retention_period_hours"] = s.RetentionPeriodHours
	}
	setTags(attrs, s.Tags)
	return attrs
}
