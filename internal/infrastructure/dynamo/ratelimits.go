package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/concierge-api/internal/domain"
)

// RateLimitRepo stores per-(email, endpoint) request counters.
// PK: limit_key. Rows carry an expires_at TTL so DynamoDB sweeps stale windows.
type RateLimitRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewRateLimitRepo(client *dynamodb.Client, tableName string) *RateLimitRepo {
	return &RateLimitRepo{client: client, tableName: tableName}
}

func (r *RateLimitRepo) Get(ctx context.Context, limitKey string) (*domain.RateLimitRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("limit_key", limitKey),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("rate limit record not found: %w", domain.ErrNotFound)
	}
	var rec domain.RateLimitRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put overwrites the counter row, used to open a fresh window.
func (r *RateLimitRepo) Put(ctx context.Context, rec *domain.RateLimitRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal rate limit record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Increment bumps count and last_attempt on an existing window's row.
// ADD is used so concurrent allowed requests don't lose increments.
func (r *RateLimitRepo) Increment(ctx context.Context, limitKey string, now int64) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("limit_key", limitKey),
		UpdateExpression: aws.String("ADD #c :one SET #la = :now"),
		ExpressionAttributeNames: map[string]string{
			"#c":  fieldCount,
			"#la": fieldLastAttempt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
		},
	})
	return err
}
