package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// Secret declares a Secrets Manager secret. The secret value lands in
// the state file as-is; keep state files out of version control.
type Secret struct {
	resource.Meta
	SecretName   string            `json:"secret_name"`
	SecretString string            `json:"secret_string"`
	Description  string            `json:"description,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

func (s *Secret) ResourceType() string { return "aws_secretsmanager_secret" }

type secretHandler struct {
	client *secretsmanager.Client
}

func (h *secretHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	id := stringAttr(prior.Attributes, "arn")
	if id == "" {
		id = stringAttr(prior.Attributes, "secret_name")
	}
	if id == "" {
		return nil, false, nil
	}

	desc, err := h.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{SecretId: aws.String(id)})
	if err != nil {
		if isNotFound(err, "ResourceNotFoundException") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to describe secret %s: %w", id, err)
	}
	// A secret scheduled for deletion no longer serves values.
	if desc.DeletedDate != nil {
		return nil, false, nil
	}

	attrs := cloneAttrs(prior)
	attrs["arn"] = aws.ToString(desc.ARN)
	if desc.Description != nil && *desc.Description != "" {
		attrs["description"] = *desc.Description
	} else {
		delete(attrs, "description")
	}

	value, err := h.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read value of secret %s: %w", id, err)
	}
	attrs["secret_string"] = aws.ToString(value.SecretString)
	return attrs, true, nil
}

func (h *secretHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	s := desired.(*Secret)

	input := &secretsmanager.CreateSecretInput{
		Name:         aws.String(s.SecretName),
		SecretString: aws.String(s.SecretString),
	}
	if s.Description != "" {
		input.Description = aws.String(s.Description)
	}
	if len(s.Tags) > 0 {
		input.Tags = secretTags(s.Tags)
	}

	out, err := h.client.CreateSecret(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret %s: %w", s.SecretName, err)
	}
	return h.attrs(s, aws.ToString(out.ARN)), nil
}

func (h *secretHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error) {
	s := desired.(*Secret)
	arn := stringAttr(prior.Attributes, "arn")
	if arn == "" {
		return nil, fmt.Errorf("secret %s has no tracked arn", s.SecretName)
	}

	input := &secretsmanager.UpdateSecretInput{
		SecretId:     aws.String(arn),
		SecretString: aws.String(s.SecretString),
	}
	if s.Description != "" {
		input.Description = aws.String(s.Description)
	}
	if _, err := h.client.UpdateSecret(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to update secret %s: %w", s.SecretName, err)
	}

	if len(s.Tags) > 0 {
		_, err := h.client.TagResource(ctx, &secretsmanager.TagResourceInput{
			SecretId: aws.String(arn),
			Tags:     secretTags(s.Tags),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to tag secret %s: %w", s.SecretName, err)
		}
	}
	return h.attrs(s, arn), nil
}

func (h *secretHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	arn := stringAttr(prior.Attributes, "arn")
	if arn == "" {
		return nil
	}
	_, err := h.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(arn),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil {
		if isNotFound(err, "ResourceNotFoundException") {
			return nil
		}
		return fmt.Errorf("failed to delete secret %s: %w", arn, err)
	}
	return nil
}

func (h *secretHandler) attrs(s *Secret, arn string) map[string]any {
	attrs := map[string]any{
		"name":          s.Name,
		"secret_name":   s.SecretName,
		"secret_string": s.SecretString,
		"arn":           arn,
	}
	if s.Description != "" {
		attrs["description"] = s.Description
	}
	setTags(attrs, s.Tags)
	return attrs
}

func secretTags(tags map[string]string) []smtypes.Tag {
	out := make([]smtypes.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, smtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}
