package aws

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// Queue declares an SQS queue. FIFO queues must carry the .fifo name
// suffix and cannot change kind in place.
type Queue struct {
	resource.Meta
	QueueName              string            `json:"queue_name"`
	VisibilityTimeout      int               `json:"visibility_timeout,omitempty"`
	MessageRetentionPeriod int               `json:"message_retention_period,omitempty"`
	DelaySeconds           int               `json:"delay_seconds,omitempty"`
	FifoQueue              bool              `json:"fifo_queue,omitempty"`
	Tags                   map[string]string `json:"tags,omitempty"`
}

func (q *Queue) ResourceType() string { return "aws_sqs_queue" }

// Topic declares an SNS topic.
type Topic struct {
	resource.Meta
	TopicName   string            `json:"topic_name"`
	DisplayName string            `json:"display_name,omitempty"`
	FifoTopic   bool              `json:"fifo_topic,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

func (t *Topic) ResourceType() string { return "aws_sns_topic" }

type queueHandler struct {
	client *sqs.Client
}

func (h *queueHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	name := stringAttr(prior.Attributes, "queue_name")
	if name == "" {
		return nil, false, nil
	}

	urlOut, err := h.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		if isNotFound(err, "QueueDoesNotExist", "AWS.SimpleQueueService.NonExistentQueue") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to resolve queue %s: %w", name, err)
	}
	url := aws.ToString(urlOut.QueueUrl)

	attrOut, err := h.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(url),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameAll},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read attributes of queue %s: %w", name, err)
	}

	attrs := cloneAttrs(prior)
	attrs["url"] = url
	if arn, ok := attrOut.Attributes["QueueArn"]; ok {
		attrs["arn"] = arn
	}
	overlayQueueInt(attrs, "visibility_timeout", attrOut.Attributes["VisibilityTimeout"])
	overlayQueueInt(attrs, "message_retention_period", attrOut.Attributes["MessageRetentionPeriod"])
	overlayQueueInt(attrs, "delay_seconds", attrOut.Attributes["DelaySeconds"])

	tagOut, err := h.client.ListQueueTags(ctx, &sqs.ListQueueTagsInput{QueueUrl: aws.String(url)})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read tags of queue %s: %w", name, err)
	}
	setTags(attrs, tagOut.Tags)
	return attrs, true, nil
}

func (h *queueHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	q := desired.(*Queue)

	input := &sqs.CreateQueueInput{
		QueueName:  aws.String(q.QueueName),
		Attributes: queueAttributes(q, true),
	}
	if len(q.Tags) > 0 {
		input.Tags = q.Tags
	}

	out, err := h.client.CreateQueue(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue %s: %w", q.QueueName, err)
	}
	url := aws.ToString(out.QueueUrl)

	arn := ""
	arnOut, err := h.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(url),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	})
	if err == nil {
		arn = arnOut.Attributes["QueueArn"]
	}
	return h.attrs(q, url, arn), nil
}

func (h *queueHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error) {
	q := desired.(*Queue)
	url := stringAttr(prior.Attributes, "url")
	if url == "" {
		return nil, fmt.Errorf("queue %s has no tracked url", q.QueueName)
	}

	if attrs := queueAttributes(q, false); len(attrs) > 0 {
		_, err := h.client.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
			QueueUrl:   aws.String(url),
			Attributes: attrs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update queue %s: %w", q.QueueName, err)
		}
	}
	if len(q.Tags) > 0 {
		_, err := h.client.TagQueue(ctx, &sqs.TagQueueInput{QueueUrl: aws.String(url), Tags: q.Tags})
		if err != nil {
			return nil, fmt.Errorf("failed to tag queue %s: %w", q.QueueName, err)
		}
	}
	return h.attrs(q, url, stringAttr(prior.Attributes, "arn")), nil
}

func (h *queueHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	url := stringAttr(prior.Attributes, "url")
	if url == "" {
		return nil
	}
	if _, err := h.client.DeleteQueue(ctx, &sqs.DeleteQueueInput{QueueUrl: aws.String(url)}); err != nil {
		if isNotFound(err, "QueueDoesNotExist", "AWS.SimpleQueueService.NonExistentQueue") {
			return nil
		}
		return fmt.Errorf("failed to delete queue %s: %w", url, err)
	}
	return nil
}

func (h *queueHandler) attrs(q *Queue, url, arn string) map[string]any {
	attrs := map[string]any{
		"name":       q.Name,
		"queue_name": q.QueueName,
	}
	if url != "" {
		attrs["url"] = url
	}
	if arn != "" {
		attrs["arn"] = arn
	}
	if q.VisibilityTimeout > 0 {
		attrs["visibility_timeout"] = q.VisibilityTimeout
	}
	if q.MessageRetentionPeriod > 0 {
		attrs["message_retention_period"] = q.MessageRetentionPeriod
	}
	if q.DelaySeconds > 0 {
		attrs["delay_seconds"] = q.DelaySeconds
	}
	if q.FifoQueue {
		attrs["fifo_queue"] = true
	}
	setTags(attrs, q.Tags)
	return attrs
}

// queueAttributes builds the SQS attribute map. FifoQueue is only legal
// at creation.
func queueAttributes(q *Queue, create bool) map[string]string {
	attrs := make(map[string]string)
	if q.VisibilityTimeout > 0 {
		attrs["VisibilityTimeout"] = strconv.Itoa(q.VisibilityTimeout)
	}
	if q.MessageRetentionPeriod > 0 {
		attrs["MessageRetentionPeriod"] = strconv.Itoa(q.MessageRetentionPeriod)
	}
	if q.DelaySeconds > 0 {
		attrs["DelaySeconds"] = strconv.Itoa(q.DelaySeconds)
	}
	if create && q.FifoQueue {
		attrs["FifoQueue"] = "true"
	}
	return attrs
}

// overlayQueueInt writes a numeric SQS attribute over the stored value,
// but only when the key is already tracked: untracked attributes would
// otherwise surface AWS defaults as drift.
func overlayQueueInt(attrs map[string]any, key, raw string) {
	if _, tracked := attrs[key]; !tracked || raw == "" {
		return
	}
	if n, err := strconv.Atoi(raw); err == nil {
		attrs[key] = n
	}
}

type topicHandler struct {
	client *sns.Client
}

func (h *topicHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	arn := stringAttr(prior.Attributes, "arn")
	if arn == "" {
		return nil, false, nil
	}

	out, err := h.client.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{TopicArn: aws.String(arn)})
	if err != nil {
		if isNotFound(err, "NotFound", "NotFoundException") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read topic %s: %w", arn, err)
	}

	attrs := cloneAttrs(prior)
	if display, ok := out.Attributes["DisplayName"]; ok && display != "" {
		attrs["display_name"] = display
	} else {
		delete(attrs, "display_name")
	}
	return attrs, true, nil
}

func (h *topicHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	t := desired.(*Topic)

	input := &sns.CreateTopicInput{
		Name:       aws.String(t.TopicName),
		Attributes: make(map[string]string),
	}
	if t.DisplayName != "" {
		input.Attributes["DisplayName"] = t.DisplayName
	}
	if t.FifoTopic {
		input.Attributes["FifoTopic"] = "true"
	}
	if len(t.Tags) > 0 {
		input.Tags = topicTags(t.Tags)
	}

	out, err := h.client.CreateTopic(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create topic %s: %w", t.TopicName, err)
	}
	return h.attrs(t, aws.ToString(out.TopicArn)), nil
}

func (h *topicHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error) {
	t := desired.(*Topic)
	arn := stringAttr(prior.Attributes, "arn")
	if arn == "" {
		return nil, fmt.Errorf("topic %s has no tracked arn", t.TopicName)
	}

	_, err := h.client.SetTopicAttributes(ctx, &sns.SetTopicAttributesInput{
		TopicArn:       aws.String(arn),
		AttributeName:  aws.String("DisplayName"),
		AttributeValue: aws.String(t.DisplayName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update topic %s: %w", t.TopicName, err)
	}

	if len(t.Tags) > 0 {
		_, err := h.client.TagResource(ctx, &sns.TagResourceInput{
			ResourceArn: aws.String(arn),
			Tags:        topicTags(t.Tags),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to tag topic %s: %w", t.TopicName, err)
		}
	}
	return h.attrs(t, arn), nil
}

func (h *topicHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	arn := stringAttr(prior.Attributes, "arn")
	if arn == "" {
		return nil
	}
	if _, err := h.client.DeleteTopic(ctx, &sns.DeleteTopicInput{TopicArn: aws.String(arn)}); err != nil {
		if isNotFound(err, "NotFound", "NotFoundException") {
			return nil
		}
		return fmt.Errorf("failed to delete topic %s: %w", arn, err)
	}
	return nil
}

func (h *topicHandler) attrs(t *Topic, arn string) map[string]any {
	attrs := map[string]any{
		"name":       t.Name,
		"topic_name": t.TopicName,
		"arn":        arn,
	}
	if t.DisplayName != "" {
		attrs["display_name"] = t.DisplayName
	}
	if t.FifoTopic {
		attrs["fifo_topic"] = true
	}
	setTags(attrs, t.Tags)
	return attrs
}

func topicTags(tags map[string]string) []snstypes.Tag {
	out := make([]snstypes.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, snstypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}
