package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/concierge-api/internal/domain"
)

// PendingSignupRepo stages signup profile data between code request and
// verification. PK: email. Rows expire via the expires_at TTL, so abandoned
// signups are garbage-collected without any sweeper of our own.
type PendingSignupRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPendingSignupRepo(client *dynamodb.Client, tableName string) *PendingSignupRepo {
	return &PendingSignupRepo{client: client, tableName: tableName}
}

func (r *PendingSignupRepo) Put(ctx context.Context, p *domain.PendingSignup) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal pending signup: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *PendingSignupRepo) Get(ctx context.Context, email string) (*domain.PendingSignup, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("pending signup not found: %w", domain.ErrNotFound)
	}
	var p domain.PendingSignup
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PendingSignupRepo) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	return err
}
