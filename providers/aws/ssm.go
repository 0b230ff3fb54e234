package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// Parameter declares an SSM parameter store entry.
type Parameter struct {
	resource.Meta
	ParameterName string            `json:"parameter_name"`
	ParameterType string            `json:"parameter_type"`
	Value         string            `json:"value"`
	Description   string            `json:"description,omitempty"`
	Tier          string            `json:"tier,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

func (p *Parameter) ResourceType() string { return "aws_ssm_parameter" }

type parameterHandler struct {
	client *ssm.Client
}

func (h *parameterHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	name := stringAttr(prior.Attributes, "parameter_name")
	if name == "" {
		return nil, false, nil
	}

	out, err := h.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		if isNotFound(err, "ParameterNotFound") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read SSM parameter %s: %w", name, err)
	}

	attrs := cloneAttrs(prior)
	attrs["value"] = aws.ToString(out.Parameter.Value)
	attrs["parameter_type"] = string(out.Parameter.Type)
	attrs["version"] = out.Parameter.Version
	return attrs, true, nil
}

func (h *parameterHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	p := desired.(*Parameter)

	input := h.putInput(p)
	if len(p.Tags) > 0 {
		tags := make([]ssmtypes.Tag, 0, len(p.Tags))
		for k, v := range p.Tags {
			tags = append(tags, ssmtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
		}
		input.Tags = tags
	}

	out, err := h.client.PutParameter(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSM parameter %s: %w", p.ParameterName, err)
	}
	return h.attrs(p, out.Version), nil
}

func (h *parameterHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, _ *resource.Instance) (map[string]any, error) {
	p := desired.(*Parameter)

	// PutParameter rejects tags together with Overwrite, so tags go
	// through the tagging API.
	input := h.putInput(p)
	input.Overwrite = aws.Bool(true)

	out, err := h.client.PutParameter(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to update SSM parameter %s: %w", p.ParameterName, err)
	}

	if len(p.Tags) > 0 {
		tags := make([]ssmtypes.Tag, 0, len(p.Tags))
		for k, v := range p.Tags {
			tags = append(tags, ssmtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
		}
		_, err = h.client.AddTagsToResource(ctx, &ssm.AddTagsToResourceInput{
			ResourceType: ssmtypes.ResourceTypeForTaggingParameter,
			ResourceId:   aws.String(p.ParameterName),
			Tags:         tags,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to tag SSM parameter %s: %w", p.ParameterName, err)
		}
	}
	return h.attrs(p, out.Version), nil
}

func (h *parameterHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	name := stringAttr(prior.Attributes, "parameter_name")
	if name == "" {
		return nil
	}
	if _, err := h.client.DeleteParameter(ctx, &ssm.DeleteParameterInput{Name: aws.String(name)}); err != nil {
		if isNotFound(err, "ParameterNotFound") {
			return nil
		}
		return fmt.Errorf("failed to delete SSM parameter %s: %w", name, err)
	}
	return nil
}

func (h *parameterHandler) putInput(p *Parameter) *ssm.PutParameterInput {
	input := &ssm.PutParameterInput{
		Name:  aws.String(p.ParameterName),
		Value: aws.String(p.Value),
		Type:  ssmtypes.ParameterType(p.ParameterType),
	}
	if p.Description != "" {
		input.Description = aws.String(p.Description)
	}
	if p.Tier != "" {
		input.Tier = ssmtypes.ParameterTier(p.Tier)
	}
	return input
}

func (h *parameterHandler) attrs(p *Parameter, version int64) map[string]any {
	attrs := map[string]any{
		"name":           p.Name,
		"parameter_name": p.ParameterName,
		"parameter_type": p.ParameterType,
		"value":          p.Value,
		"version":        version,
	}
	if p.Description != "" {
		attrs["description"] = p.Description
	}
	if p.Tier != "" {
		attrs["tier"] = p.Tier
	}
	setTags(attrs, p.Tags)
	return attrs
}
