package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// Role declares an IAM role with its trust policy document.
type Role struct {
	resource.Meta
	RoleName         string            `json:"role_name"`
	AssumeRolePolicy string            `json:"assume_role_policy"`
	Description      string            `json:"description,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
}

func (r *Role) ResourceType() string { return "aws_iam_role" }

type roleHandler struct {
	client *iam.Client
}

func (h *roleHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	name := stringAttr(prior.Attributes, "role_name")
	if name == "" {
		return nil, false, nil
	}

	out, err := h.client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		if isNotFound(err, "NoSuchEntity", "NoSuchEntityException") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read role %s: %w", name, err)
	}

	// GetRole returns the trust policy URL-encoded; the stored document
	// stays authoritative to keep comparisons stable.
	attrs := cloneAttrs(prior)
	attrs["arn"] = aws.ToString(out.Role.Arn)
	if out.Role.Description != nil && *out.Role.Description != "" {
		attrs["description"] = *out.Role.Description
	} else {
		delete(attrs, "description")
	}
	return attrs, true, nil
}

func (h *roleHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	r := desired.(*Role)

	input := &iam.CreateRoleInput{
		RoleName:                 aws.String(r.RoleName),
		AssumeRolePolicyDocument: aws.String(r.AssumeRolePolicy),
	}
	if r.Description != "" {
		input.Description = aws.String(r.Description)
	}
	if len(r.Tags) > 0 {
		input.Tags = roleTags(r.Tags)
	}

	out, err := h.client.CreateRole(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create role %s: %w", r.RoleName, err)
	}
	return h.attrs(r, aws.ToString(out.Role.Arn)), nil
}

func (h *roleHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error) {
	r := desired.(*Role)

	_, err := h.client.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
		RoleName:       aws.String(r.RoleName),
		PolicyDocument: aws.String(r.AssumeRolePolicy),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update trust policy of role %s: %w", r.RoleName, err)
	}

	if r.Description != "" {
		_, err := h.client.UpdateRole(ctx, &iam.UpdateRoleInput{
			RoleName:    aws.String(r.RoleName),
			Description: aws.String(r.Description),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update role %s: %w", r.RoleName, err)
		}
	}
	if len(r.Tags) > 0 {
		_, err := h.client.TagRole(ctx, &iam.TagRoleInput{
			RoleName: aws.String(r.RoleName),
			Tags:     roleTags(r.Tags),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to tag role %s: %w", r.RoleName, err)
		}
	}
	return h.attrs(r, stringAttr(prior.Attributes, "arn")), nil
}

func (h *roleHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	name := stringAttr(prior.Attributes, "role_name")
	if name == "" {
		return nil
	}
	if _, err := h.client.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)}); err != nil {
		if isNotFound(err, "NoSuchEntity", "NoSuchEntityException") {
			return nil
		}
		return fmt.Errorf("failed to delete role %s: %w", name, err)
	}
	return nil
}

func (h *roleHandler) attrs(r *Role, arn string) map[string]any {
	attrs := map[string]any{
		"name":               r.Name,
		"role_name":          r.RoleName,
		"assume_role_policy": r.AssumeRolePolicy,
	}
	if arn != "" {
		attrs["arn"] = arn
	}
	if r.Description != "" {
		attrs["description"] = r.Description
	}
	setTags(attrs, r.Tags)
	return attrs
}

func roleTags(tags map[string]string) []iamtypes.Tag {
	out := make([]iamtypes.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, iamtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}
