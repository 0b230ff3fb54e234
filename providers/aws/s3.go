package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// Bucket declares an S3 bucket. ForceDestroy lets delete empty the
// bucket first instead of failing on remaining objects.
type Bucket struct {
	resource.Meta
	Bucket       string            `json:"bucket"`
	ForceDestroy bool              `json:"force_destroy,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

func (b *Bucket) ResourceType() string { return "aws_s3_bucket" }

type bucketHandler struct {
	client *s3.Client
	region string
}

func (h *bucketHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	name := stringAttr(prior.Attributes, "bucket")
	if name == "" {
		return nil, false, nil
	}

	if _, err := h.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}); err != nil {
		if isNotFound(err, "NotFound", "NoSuchBucket") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to check bucket %s: %w", name, err)
	}

	attrs := cloneAttrs(prior)
	tags, err := h.readTags(ctx, name)
	if err != nil {
		return nil, false, err
	}
	setTags(attrs, tags)
	return attrs, true, nil
}

func (h *bucketHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	b := desired.(*Bucket)

	input := &s3.CreateBucketInput{Bucket: aws.String(b.Bucket)}
	// us-east-1 rejects an explicit location constraint.
	if h.region != "" && h.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(h.region),
		}
	}
	if _, err := h.client.CreateBucket(ctx, input); err != nil {
		var ae smithy.APIError
		if !errors.As(err, &ae) || ae.ErrorCode() != "BucketAlreadyOwnedByYou" {
			return nil, fmt.Errorf("failed to create bucket %s: %w", b.Bucket, err)
		}
	}
	if err := h.writeTags(ctx, b); err != nil {
		return nil, err
	}
	return h.attrs(b), nil
}

func (h *bucketHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, _ *resource.Instance) (map[string]any, error) {
	b := desired.(*Bucket)
	if err := h.writeTags(ctx, b); err != nil {
		return nil, err
	}
	return h.attrs(b), nil
}

func (h *bucketHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	name := stringAttr(prior.Attributes, "bucket")
	if name == "" {
		return nil
	}

	if force, _ := prior.Attributes["force_destroy"].(bool); force {
		if err := h.emptyBucket(ctx, name); err != nil {
			return err
		}
	}
	if _, err := h.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
		if isNotFound(err, "NotFound", "NoSuchBucket") {
			return nil
		}
		return fmt.Errorf("failed to delete bucket %s: %w", name, err)
	}
	return nil
}

func (h *bucketHandler) attrs(b *Bucket) map[string]any {
	attrs := map[string]any{
		"name":   b.Name,
		"bucket": b.Bucket,
		"arn":    "arn:aws:s3:::" + b.Bucket,
	}
	if b.ForceDestroy {
		attrs["force_destroy"] = true
	}
	setTags(attrs, b.Tags)
	return attrs
}

func (h *bucketHandler) readTags(ctx context.Context, name string) (map[string]string, error) {
	out, err := h.client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(name)})
	if err != nil {
		if isNotFound(err, "NoSuchTagSet", "NoSuchTagSetError") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tags of bucket %s: %w", name, err)
	}
	tags := make(map[string]string, len(out.TagSet))
	for _, t := range out.TagSet {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags, nil
}

func (h *bucketHandler) writeTags(ctx context.Context, b *Bucket) error {
	if len(b.Tags) == 0 {
		if _, err := h.client.DeleteBucketTagging(ctx, &s3.DeleteBucketTaggingInput{Bucket: aws.String(b.Bucket)}); err != nil {
			return fmt.Errorf("failed to clear tags of bucket %s: %w", b.Bucket, err)
		}
		return nil
	}

	tagSet := make([]s3types.Tag, 0, len(b.Tags))
	for k, v := range b.Tags {
		tagSet = append(tagSet, s3types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	_, err := h.client.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket:  aws.String(b.Bucket),
		Tagging: &s3types.Tagging{TagSet: tagSet},
	})
	if err != nil {
		return fmt.Errorf("failed to tag bucket %s: %w", b.Bucket, err)
	}
	return nil
}

// emptyBucket deletes every remaining object so DeleteBucket can succeed.
func (h *bucketHandler) emptyBucket(ctx context.Context, name string) error {
	var token *string
	for {
		page, err := h.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(name),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("failed to list objects of bucket %s: %w", name, err)
		}
		if len(page.Contents) > 0 {
			objects := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
			for _, obj := range page.Contents {
				objects = append(objects, s3types.ObjectIdentifier{Key: obj.Key})
			}
			_, err = h.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(name),
				Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
			})
			if err != nil {
				return fmt.Errorf("failed to empty bucket %s: %w", name, err)
			}
		}
		if page.IsTruncated == nil || !*page.IsTruncated {
			return nil
		}
		token = page.NextContinuationToken
	}
}
