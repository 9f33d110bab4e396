package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"shop-assistant/internal/domain"
)

// AppendInput describes one context update. Empty LastIntent and nil Cart
// leave the stored values untouched.
type AppendInput struct {
	Messages   []domain.Message
	LastIntent domain.Intent
	Cart       []domain.CartItemView
}

// GetContext returns the conversation context for owner, or nil if none exists.
func (c *Client) GetContext(ctx context.Context, owner string) (*domain.ConversationContext, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            key(contextPK(owner), skContext),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetContext get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	var cc domain.ConversationContext
	if err := attributevalue.UnmarshalMap(out.Item, &cc); err != nil {
		return nil, fmt.Errorf("repository: GetContext unmarshal: %w", err)
	}
	return &cc, nil
}

// AppendContext pushes messages onto owner's context, evicting the oldest
// beyond window. The write is conditional on the version read, and lost races
// are retried from a fresh read.
func (c *Client) AppendContext(ctx context.Context, owner string, window int, in AppendInput) (*domain.ConversationContext, error) {
	if owner == "" {
		return nil, fmt.Errorf("repository: AppendContext: owner is required")
	}
	var saved *domain.ConversationContext
	err := c.retry(ctx, func() error {
		cur, err := c.GetContext(ctx, owner)
		if err != nil {
			return err
		}
		if cur == nil {
			cur = &domain.ConversationContext{PK: contextPK(owner), SK: skContext, Owner: owner}
		}
		prev := cur.Version

		now := c.now()
		cur.Push(window, in.Messages...)
		if in.LastIntent != "" {
			cur.LastIntent = in.LastIntent
		}
		if in.Cart != nil {
			cur.Cart = in.Cart
		}
		cur.UpdatedAt = now
		cur.TTL = ttlValue(now)
		cur.Version = prev + 1

		item, err := attributevalue.MarshalMap(cur)
		if err != nil {
			return fmt.Errorf("repository: AppendContext marshal: %w", err)
		}
		put := &dynamodb.PutItemInput{
			TableName: aws.String(c.tableName),
			Item:      item,
		}
		if prev == 0 {
			put.ConditionExpression = aws.String("attribute_not_exists(PK)")
		} else {
			put.ConditionExpression = aws.String("version = :v")
			put.ExpressionAttributeValues = map[string]types.AttributeValue{":v": numAV(prev)}
		}
		if _, err := c.api.PutItem(ctx, put); err != nil {
			if isConditionFailed(err) {
				return errConflict
			}
			return fmt.Errorf("repository: AppendContext put: %w", err)
		}
		saved = cur
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("repository: AppendContext: %w", err)
	}
	return saved, nil
}
