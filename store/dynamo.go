package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/biomatch/codec"
	"github.com/hupe1980/biomatch/model"
)

// DynamoClient is the subset of the DynamoDB API the store needs.
// Satisfied by *dynamodb.Client; fakes implement it in tests.
type DynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore is a Store backed by a DynamoDB table.
//
// Table schema:
//   - Partition key: id (string)
//   - Attributes: type (string), record (binary, codec-encoded model.Record)
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name biomatch-records \
//	  --attribute-definitions AttributeName=id,AttributeType=S \
//	  --key-schema AttributeName=id,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
//
// Inserts use a conditional PutItem (attribute_not_exists) so two writers can
// never claim the same ID.
type DynamoStore struct {
	client    DynamoClient
	tableName string
	dims      Dimensions
	codec     codec.Codec
}

// NewDynamoStore creates a DynamoDB-backed store on the given table.
func NewDynamoStore(client DynamoClient, tableName string, dims Dimensions, c codec.Codec) *DynamoStore {
	if c == nil {
		c = codec.Default
	}
	return &DynamoStore{client: client, tableName: tableName, dims: dims, codec: c}
}

func (s *DynamoStore) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

// Insert persists a new record using a conditional write.
func (s *DynamoStore) Insert(ctx context.Context, rec *model.Record) error {
	if err := s.dims.check(rec); err != nil {
		return err
	}

	blob, err := s.codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"id":     &types.AttributeValueMemberS{Value: rec.ID},
			"type":   &types.AttributeValueMemberS{Value: string(rec.Type)},
			"record": &types.AttributeValueMemberB{Value: blob},
		},
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrDuplicateID
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Get returns the record with the given ID or ErrNotFound.
func (s *DynamoStore) Get(ctx context.Context, id string) (*model.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	return s.decodeItem(out.Item)
}

// Delete removes the record with the given ID, reporting whether it existed.
func (s *DynamoStore) Delete(ctx context.Context, id string) (bool, error) {
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.tableName),
		Key:          s.key(id),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return len(out.Attributes) > 0, nil
}

// Scan returns all records of the given type.
func (s *DynamoStore) Scan(ctx context.Context, t model.Type) ([]*model.Record, error) {
	return s.collect(ctx, &t, nil)
}

// List returns one page of records plus the total matching count.
//
// DynamoDB offers no stable server-side ordering, so the full matching set is
// collected and paginated client-side. Acceptable for the modest populations
// this engine targets.
func (s *DynamoStore) List(ctx context.Context, opts ListOptions) ([]*model.Record, int, error) {
	normalizePage(&opts)

	var t *model.Type
	if opts.Type != "" {
		t = &opts.Type
	}
	recs, err := s.collect(ctx, t, opts.Filter)
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})

	total := len(recs)
	return paginate(recs, opts), total, nil
}

// Count returns the number of records of the given type.
func (s *DynamoStore) Count(ctx context.Context, t model.Type) (int, error) {
	recs, err := s.Scan(ctx, t)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (s *DynamoStore) collect(ctx context.Context, t *model.Type, f Filter) ([]*model.Record, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	}
	if t != nil {
		input.FilterExpression = aws.String("#t = :t")
		input.ExpressionAttributeNames = map[string]string{"#t": "type"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberS{Value: string(*t)},
		}
	}

	var recs []*model.Record
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		for _, item := range out.Items {
			rec, err := s.decodeItem(item)
			if err != nil {
				return nil, err
			}
			if f.Matches(rec) {
				recs = append(recs, rec)
			}
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return recs, nil
}

func (s *DynamoStore) decodeItem(item map[string]types.AttributeValue) (*model.Record, error) {
	blob, ok := item["record"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("%w: item missing record attribute", ErrUnavailable)
	}
	var rec model.Record
	if err := s.codec.Unmarshal(blob.Value, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// Close is a no-op; the AWS client owns no local resources.
func (s *DynamoStore) Close() error {
	return nil
}
