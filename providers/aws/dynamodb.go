package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// Table declares a DynamoDB table. Attribute definitions and the key
// schema are fixed at creation; billing mode and tags stay mutable.
type Table struct {
	resource.Meta
	TableName     string            `json:"table_name"`
	BillingMode   string            `json:"billing_mode"`
	Attributes    []TableAttribute  `json:"attributes"`
	KeySchema     []TableKey        `json:"key_schema"`
	ReadCapacity  int64             `json:"read_capacity,omitempty"`
	WriteCapacity int64             `json:"write_capacity,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// TableAttribute is one attribute definition (type S, N or B).
type TableAttribute struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableKey is one key schema element (key type HASH or RANGE).
type TableKey struct {
	Name    string `json:"name"`
	KeyType string `json:"key_type"`
}

func (t *Table) ResourceType() string { return "aws_dynamodb_table" }

type tableHandler struct {
	client *dynamodb.Client
}

func (h *tableHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	name := stringAttr(prior.Attributes, "table_name")
	if name == "" {
		return nil, false, nil
	}

	out, err := h.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		if isNotFound(err, "ResourceNotFoundException") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to describe table %s: %w", name, err)
	}

	attrs := cloneAttrs(prior)
	attrs["arn"] = aws.ToString(out.Table.TableArn)
	if out.Table.BillingModeSummary != nil {
		attrs["billing_mode"] = string(out.Table.BillingModeSummary.BillingMode)
	}
	return attrs, true, nil
}

func (h *tableHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	t := desired.(*Table)

	defs := make([]ddbtypes.AttributeDefinition, 0, len(t.Attributes))
	for _, a := range t.Attributes {
		defs = append(defs, ddbtypes.AttributeDefinition{
			AttributeName: aws.String(a.Name),
			AttributeType: ddbtypes.ScalarAttributeType(a.Type),
		})
	}
	keySchema := make([]ddbtypes.KeySchemaElement, 0, len(t.KeySchema))
	for _, k := range t.KeySchema {
		keySchema = append(keySchema, ddbtypes.KeySchemaElement{
			AttributeName: aws.String(k.Name),
			KeyType:       ddbtypes.KeyType(k.KeyType),
		})
	}

	input := &dynamodb.CreateTableInput{
		TableName:            aws.String(t.TableName),
		AttributeDefinitions: defs,
		KeySchema:            keySchema,
		BillingMode:          ddbtypes.BillingMode(t.BillingMode),
	}
	if input.BillingMode == ddbtypes.BillingModeProvisioned {
		input.ProvisionedThroughput = &ddbtypes.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(t.ReadCapacity),
			WriteCapacityUnits: aws.Int64(t.WriteCapacity),
		}
	}
	if len(t.Tags) > 0 {
		input.Tags = tableTags(t.Tags)
	}

	out, err := h.client.CreateTable(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", t.TableName, err)
	}
	return h.attrs(t, aws.ToString(out.TableDescription.TableArn)), nil
}

func (h *tableHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error) {
	t := desired.(*Table)

	if t.BillingMode != stringAttr(prior.Attributes, "billing_mode") {
		input := &dynamodb.UpdateTableInput{
			TableName:   aws.String(t.TableName),
			BillingMode: ddbtypes.BillingMode(t.BillingMode),
		}
		if input.BillingMode == ddbtypes.BillingModeProvisioned {
			input.ProvisionedThroughput = &ddbtypes.ProvisionedThroughput{
				ReadCapacityUnits:  aws.Int64(t.ReadCapacity),
				WriteCapacityUnits: aws.Int64(t.WriteCapacity),
			}
		}
		if _, err := h.client.UpdateTable(ctx, input); err != nil {
			return nil, fmt.Errorf("failed to update table %s: %w", t.TableName, err)
		}
	}

	arn := stringAttr(prior.Attributes, "arn")
	if len(t.Tags) > 0 && arn != "" {
		_, err := h.client.TagResource(ctx, &dynamodb.TagResourceInput{
			ResourceArn: aws.String(arn),
			Tags:        tableTags(t.Tags),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to tag table %s: %w", t.TableName, err)
		}
	}
	return h.attrs(t, arn), nil
}

func (h *tableHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	name := stringAttr(prior.Attributes, "table_name")
	if name == "" {
		return nil
	}
	if _, err := h.client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)}); err != nil {
		if isNotFound(err, "ResourceNotFoundException") {
			return nil
		}
		return fmt.Errorf("failed to delete table %s: %w", name, err)
	}
	return nil
}

func (h *tableHandler) attrs(t *Table, arn string) map[string]any {
	attrs := map[string]any{
		"name":         t.Name,
		"table_name":   t.TableName,
		"billing_mode": t.BillingMode,
		"attributes":   t.Attributes,
		"key_schema":   t.KeySchema,
	}
	if arn != "" {
		attrs["arn"] = arn
	}
	if t.ReadCapacity > 0 {
		attrs["read_capacity"] = t.ReadCapacity
	}
	if t.WriteCapacity > 0 {
		attrs["write_capacity"] = t.WriteCapacity
	}
	setTags(attrs, t.Tags)
	return attrs
}

func tableTags(tags map[string]string) []ddbtypes.Tag {
	out := make([]ddbtypes.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, ddbtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}
