package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// EventBus declares a custom EventBridge event bus.
type EventBus struct {
	resource.Meta
	BusName string            `json:"bus_name"`
	Tags    map[string]string `json:"tags,omitempty"`
}

func (b *EventBus) ResourceType() string { return "aws_event_bus" }

type eventBusHandler struct {
	client *eventbridge.Client
}

func (h *eventBusHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	name := stringAttr(prior.Attributes, "bus_name")
	if name == "" {
		return nil, false, nil
	}

	out, err := h.client.DescribeEventBus(ctx, &eventbridge.DescribeEventBusInput{Name: aws.String(name)})
	if err != nil {
		if isNotFound(err, "ResourceNotFoundException") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to describe event bus %s: %w", name, err)
	}

	attrs := cloneAttrs(prior)
	attrs["arn"] = aws.ToString(out.Arn)
	return attrs, true, nil
}

func (h *eventBusHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	b := desired.(*EventBus)

	input := &eventbridge.CreateEventBusInput{Name: aws.String(b.BusName)}
	if len(b.Tags) > 0 {
		input.Tags = eventBusTags(b.Tags)
	}
	out, err := h.client.CreateEventBus(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus %s: %w", b.BusName, err)
	}
	return h.attrs(b, aws.ToString(out.EventBusArn)), nil
}

func (h *eventBusHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error) {
	b := desired.(*EventBus)
	arn := stringAttr(prior.Attributes, "arn")

	if len(b.Tags) > 0 && arn != "" {
		_, err := h.client.TagResource(ctx, &eventbridge.TagResourceInput{
			ResourceARN: aws.String(arn),
			Tags:        eventBusTags(b.Tags),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to tag event bus %s: %w", b.BusName, err)
		}
	}
	return h.attrs(b, arn), nil
}

func (h *eventBusHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	name := stringAttr(prior.Attributes, "bus_name")
	if name == "" {
		return nil
	}
	if _, err := h.client.DeleteEventBus(ctx, &eventbridge.DeleteEventBusInput{Name: aws.String(name)}); err != nil {
		if isNotFound(err, "ResourceNotFoundException") {
			return nil
		}
		return fmt.Errorf("failed to delete event bus %s: %w", name, err)
	}
	return nil
}

func (h *eventBusHandler) attrs(b *EventBus, arn string) map[string]any {
	attrs := map[string]any{
		"name":     b.Name,
		"bus_name": b.BusName,
	}
	if arn != "" {
		attrs["arn"] = arn
	}
	setTags(attrs, b.Tags)
	return attrs
}

func eventBusTags(tags map[string]string) []ebtypes.Tag {
	out := make([]ebtypes.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, ebtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}
