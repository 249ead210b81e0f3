// Package storage provides the AWS-backed collaborators of the sync engine:
// DynamoDB entity tables, Secrets Manager credentials and SSM sync state.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/peteski22/erpbridge/internal/commerce"
)

// DynamoDBAPI defines the DynamoDB operations used by the entity tables.
type DynamoDBAPI interface {
	// GetItem retrieves an item from DynamoDB.
	GetItem(
		ctx context.Context,
		params *dynamodb.GetItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.GetItemOutput, error)

	// PutItem stores an item in DynamoDB.
	PutItem(
		ctx context.Context,
		params *dynamodb.PutItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.PutItemOutput, error)

	// Scan reads every item matching a filter from DynamoDB.
	Scan(
		ctx context.Context,
		params *dynamodb.ScanInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.ScanOutput, error)

	// UpdateItem modifies attributes of an existing item in DynamoDB.
	UpdateItem(
		ctx context.Context,
		params *dynamodb.UpdateItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.UpdateItemOutput, error)
}

// EntityTable stores one entity type in a DynamoDB table keyed by "id".
// Documents are stored in their JSON form, so decimals and timestamps are strings.
type EntityTable[T any] struct {
	// client is the DynamoDB API client.
	client DynamoDBAPI

	// tableName is the name of the DynamoDB table.
	tableName string
}

// NewEntityTable creates a new DynamoDB-backed entity table.
func NewEntityTable[T any](client DynamoDBAPI, tableName string) (*EntityTable[T], error) {
	if client == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if tableName == "" {
		return nil, errors.New("table name is required")
	}

	return &EntityTable[T]{
		client:    client,
		tableName: tableName,
	}, nil
}

// Create stores an entity, assigning an id when it has none. Existing ids are rejected.
func (t *EntityTable[T]) Create(ctx context.Context, entity T) (*T, error) {
	f, err := toFields(entity)
	if err != nil {
		return nil, err
	}
	if f.id() == "" {
		f[commerce.FieldID] = uuid.NewString()
	}

	item, err := attributevalue.MarshalMap(map[string]any(f))
	if err != nil {
		return nil, fmt.Errorf("marshaling item: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(commerce.FieldID))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("building condition: %w", err)
	}

	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(t.tableName),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, fmt.Errorf("%w: %s", ErrEntityExists, f.id())
		}
		return nil, fmt.Errorf("putting item to DynamoDB: %w", err)
	}

	return fromFields[T](f)
}

// Distinct returns the distinct non-empty values of field within a store.
func (t *EntityTable[T]) Distinct(ctx context.Context, storeID string, field string) ([]string, error) {
	rows, err := t.scan(ctx, storeID, nil, []string{field})
	if err != nil {
		return nil, err
	}
	return distinctStrings(rows, field), nil
}

// Find returns a page of a store's entities. Sorting and paging happen after the scan.
func (t *EntityTable[T]) Find(ctx context.Context, storeID string, query commerce.Query) ([]T, error) {
	filter, err := toFields(query.Filter)
	if err != nil {
		return nil, err
	}

	rows, err := t.scan(ctx, storeID, filter, nil)
	if err != nil {
		return nil, err
	}

	sortFields(rows, query.OrderBy)
	return decodeAll[T](page(rows, query.Skip, query.Take))
}

// FindFirst returns the first of a store's entities matching filter, or nil.
func (t *EntityTable[T]) FindFirst(ctx context.Context, storeID string, filter commerce.Filter) (*T, error) {
	found, err := t.Find(ctx, storeID, commerce.Query{Filter: filter, Take: 1})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

// FindUnique returns the entity with the given id, or nil.
func (t *EntityTable[T]) FindUnique(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, errors.New("id is required")
	}

	output, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.tableName),
		Key:       t.key(id),
	})
	if err != nil {
		return nil, fmt.Errorf("getting item from DynamoDB: %w", err)
	}

	if output.Item == nil {
		return nil, nil
	}

	return t.decode(output.Item)
}

// Update sets the patched attributes on an existing item and returns the result.
func (t *EntityTable[T]) Update(ctx context.Context, id string, patch commerce.Patch) (*T, error) {
	p, err := toFields(patch)
	if err != nil {
		return nil, err
	}
	delete(p, commerce.FieldID)
	if len(p) == 0 {
		return t.FindUnique(ctx, id)
	}

	var update expression.UpdateBuilder
	for k, v := range p {
		update = update.Set(expression.Name(k), expression.Value(v))
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(commerce.FieldID))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("building update: %w", err)
	}

	output, err := t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.tableName),
		Key:                       t.key(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
		}
		return nil, fmt.Errorf("updating item in DynamoDB: %w", err)
	}

	return t.decode(output.Attributes)
}

// scan reads a store's items matching filter, following pagination.
// projection limits the attributes read when set.
func (t *EntityTable[T]) scan(ctx context.Context, storeID string, filter fields, projection []string) ([]fields, error) {
	cond := expression.Name(commerce.FieldStoreID).Equal(expression.Value(storeID))
	for k, v := range filter {
		cond = cond.And(expression.Name(k).Equal(expression.Value(v)))
	}

	builder := expression.NewBuilder().WithFilter(cond)
	if len(projection) > 0 {
		proj := expression.NamesList(expression.Name(projection[0]))
		for _, name := range projection[1:] {
			proj = proj.AddNames(expression.Name(name))
		}
		builder = builder.WithProjection(proj)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("building scan: %w", err)
	}

	var (
		rows     []fields
		startKey map[string]types.AttributeValue
	)
	for {
		output, err := t.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(t.tableName),
			FilterExpression:          expr.Filter(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scanning DynamoDB: %w", err)
		}

		for _, item := range output.Items {
			var f fields
			if err := attributevalue.UnmarshalMap(item, &f); err != nil {
				return nil, fmt.Errorf("unmarshaling item: %w", err)
			}
			rows = append(rows, f)
		}

		if len(output.LastEvaluatedKey) == 0 {
			return rows, nil
		}
		startKey = output.LastEvaluatedKey
	}
}

func (t *EntityTable[T]) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		commerce.FieldID: &types.AttributeValueMemberS{Value: id},
	}
}

func (t *EntityTable[T]) decode(item map[string]types.AttributeValue) (*T, error) {
	var f fields
	if err := attributevalue.UnmarshalMap(item, &f); err != nil {
		return nil, fmt.Errorf("unmarshaling item: %w", err)
	}
	return fromFields[T](f)
}
