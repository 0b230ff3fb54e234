package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// Repository declares an ECR container image repository.
type Repository struct {
	resource.Meta
	RepositoryName     string            `json:"repository_name"`
	ImageTagMutability string            `json:"image_tag_mutability,omitempty"`
	ScanOnPush         bool              `json:"scan_on_push,omitempty"`
	Tags               map[string]string `json:"tags,omitempty"`
}

func (r *Repository) ResourceType() string { return "aws_ecr_repository" }

type repositoryHandler struct {
	client *ecr.Client
}

func (h *repositoryHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	name := stringAttr(prior.Attributes, "repository_name")
	if name == "" {
		return nil, false, nil
	}

	out, err := h.client.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{name},
	})
	if err != nil {
		if isNotFound(err, "RepositoryNotFoundException") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to describe repository %s: %w", name, err)
	}
	if len(out.Repositories) == 0 {
		return nil, false, nil
	}
	repo := out.Repositories[0]

	attrs := cloneAttrs(prior)
	attrs["arn"] = aws.ToString(repo.RepositoryArn)
	attrs["repository_url"] = aws.ToString(repo.RepositoryUri)
	if repo.ImageTagMutability != "" {
		attrs["image_tag_mutability"] = string(repo.ImageTagMutability)
	}
	if repo.ImageScanningConfiguration != nil && repo.ImageScanningConfiguration.ScanOnPush {
		attrs["scan_on_push"] = true
	} else {
		delete(attrs, "scan_on_push")
	}
	return attrs, true, nil
}

func (h *repositoryHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	r := desired.(*Repository)

	input := &ecr.CreateRepositoryInput{
		RepositoryName: aws.String(r.RepositoryName),
		ImageScanningConfiguration: &ecrtypes.ImageScanningConfiguration{
			ScanOnPush: r.ScanOnPush,
		},
	}
	if r.ImageTagMutability != "" {
		input.ImageTagMutability = ecrtypes.ImageTagMutability(r.ImageTagMutability)
	}
	if len(r.Tags) > 0 {
		input.Tags = repositoryTags(r.Tags)
	}

	out, err := h.client.CreateRepository(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository %s: %w", r.RepositoryName, err)
	}
	return h.attrs(r, aws.ToString(out.Repository.RepositoryArn), aws.ToString(out.Repository.RepositoryUri)), nil
}

func (h *repositoryHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error) {
	r := desired.(*Repository)

	if r.ImageTagMutability != "" {
		_, err := h.client.PutImageTagMutability(ctx, &ecr.PutImageTagMutabilityInput{
			RepositoryName:     aws.String(r.RepositoryName),
			ImageTagMutability: ecrtypes.ImageTagMutability(r.ImageTagMutability),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update tag mutability of repository %s: %w", r.RepositoryName, err)
		}
	}

	_, err := h.client.PutImageScanningConfiguration(ctx, &ecr.PutImageScanningConfigurationInput{
		RepositoryName: aws.String(r.RepositoryName),
		ImageScanningConfiguration: &ecrtypes.ImageScanningConfiguration{
			ScanOnPush: r.ScanOnPush,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update scanning of repository %s: %w", r.RepositoryName, err)
	}

	return h.attrs(r, stringAttr(prior.Attributes, "arn"), stringAttr(prior.Attributes, "repository_url")), nil
}

func (h *repositoryHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	name := stringAttr(prior.Attributes, "repository_name")
	if name == "" {
		return nil
	}
	_, err := h.client.DeleteRepository(ctx, &ecr.DeleteRepositoryInput{
		RepositoryName: aws.String(name),
		Force:          true,
	})
	if err != nil {
		if isNotFound(err, "RepositoryNotFoundException") {
			return nil
		}
		return fmt.Errorf("failed to delete repository %s: %w", name, err)
	}
	return nil
}

func (h *repositoryHandler) attrs(r *Repository, arn, url string) map[string]any {
	attrs := map[string]any{
		"name":            r.Name,
		"repository_name": r.RepositoryName,
	}
	if arn != "" {
		attrs["arn"] = arn
	}
	if url != "" {
		attrs["repository_url"] = url
	}
	if r.ImageTagMutability != "" {
		attrs["image_tag_mutability"] = r.ImageTagMutability
	}
	if r.ScanOnPush {
		attrs["scan_on_push"] = true
	}
	setTags(attrs, r.Tags)
	return attrs
}

func repositoryTags(tags map[string]string) []ecrtypes.Tag {
	out := make([]ecrtypes.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, ecrtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}
