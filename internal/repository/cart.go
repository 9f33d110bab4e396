package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"shop-assistant/internal/domain"
)

// lineItem is the stored shape of a cart line or purchase.
type lineItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	Entity string `dynamodbav:"entity"`
	domain.CartLine
}

func newLineItem(sk string, l domain.CartLine) lineItem {
	return lineItem{PK: l.Owner, SK: sk, Entity: "line", CartLine: l}
}

// AddToCart adds quantity of product to owner's cart. The first add creates
// the line with a price snapshot; later adds increment its quantity with an
// atomic ADD, so concurrent adds never produce two lines or lose an increment.
func (c *Client) AddToCart(ctx context.Context, owner string, p domain.Product, quantity int64) (domain.CartLine, error) {
	if quantity <= 0 {
		return domain.CartLine{}, fmt.Errorf("repository: AddToCart: quantity must be positive, got %d", quantity)
	}
	var line domain.CartLine
	err := c.retry(ctx, func() error {
		l, err := c.incrementLine(ctx, owner, p.ID, quantity)
		if err == nil {
			line = l
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		now := c.now()
		created := domain.CartLine{
			ID:                  c.newID(),
			Owner:               owner,
			ProductID:           p.ID,
			ProductName:         p.Name,
			Image:               p.Image,
			Quantity:            quantity,
			Price:               p.Price,
			PriceBeforeDiscount: p.PriceBeforeDiscount,
			Status:              domain.StatusInCart,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		item, err := attributevalue.MarshalMap(newLineItem(cartSK(p.ID), created))
		if err != nil {
			return fmt.Errorf("repository: AddToCart marshal: %w", err)
		}
		_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(c.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		})
		if err != nil {
			if isConditionFailed(err) {
				// Another add created the line first; increment it instead.
				return errConflict
			}
			return fmt.Errorf("repository: AddToCart put: %w", err)
		}
		line = created
		return nil
	})
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("repository: AddToCart: %w", err)
	}
	return line, nil
}

func (c *Client) incrementLine(ctx context.Context, owner, productID string, quantity int64) (domain.CartLine, error) {
	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 key(owner, cartSK(productID)),
		UpdateExpression:    aws.String("ADD buyCount :q SET updatedAt = :now"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q":   numAV(quantity),
			":now": strAV(c.now().Format(timeLayout)),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.CartLine{}, ErrNotFound
		}
		return domain.CartLine{}, fmt.Errorf("repository: increment cart line: %w", err)
	}
	return decodeLine(out.Attributes)
}

// CartLine returns owner's IN_CART line for productID, or ErrNotFound.
func (c *Client) CartLine(ctx context.Context, owner, productID string) (domain.CartLine, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            key(owner, cartSK(productID)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("repository: CartLine: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.CartLine{}, ErrNotFound
	}
	return decodeLine(out.Item)
}

// ListCart returns owner's IN_CART lines, oldest first.
func (c *Client) ListCart(ctx context.Context, owner string) ([]domain.CartLine, error) {
	lines, err := c.queryLines(ctx, owner, skPrefixCrt, nil)
	if err != nil {
		return nil, fmt.Errorf("repository: ListCart: %w", err)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].CreatedAt.Before(lines[j].CreatedAt) })
	return lines, nil
}

// SetCartQuantity overwrites the quantity of owner's line for productID.
// Zero removes the line. A missing line is ErrNotFound.
func (c *Client) SetCartQuantity(ctx context.Context, owner, productID string, quantity int64) (domain.CartLine, error) {
	if quantity < 0 {
		return domain.CartLine{}, fmt.Errorf("repository: SetCartQuantity: negative quantity %d", quantity)
	}
	if quantity == 0 {
		return c.RemoveFromCart(ctx, owner, productID)
	}
	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 key(owner, cartSK(productID)),
		UpdateExpression:    aws.String("SET buyCount = :q, updatedAt = :now"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q":   numAV(quantity),
			":now": strAV(c.now().Format(timeLayout)),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.CartLine{}, ErrNotFound
		}
		return domain.CartLine{}, fmt.Errorf("repository: SetCartQuantity: %w", err)
	}
	return decodeLine(out.Attributes)
}

// RemoveFromCart deletes owner's line for productID and returns it.
func (c *Client) RemoveFromCart(ctx context.Context, owner, productID string) (domain.CartLine, error) {
	out, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 key(owner, cartSK(productID)),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ReturnValues:        types.ReturnValueAllOld,
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.CartLine{}, ErrNotFound
		}
		return domain.CartLine{}, fmt.Errorf("repository: RemoveFromCart: %w", err)
	}
	return decodeLine(out.Attributes)
}

// ListPurchases returns owner's lines in status, newest first. StatusAll
// returns cart lines and checked-out purchases together.
func (c *Client) ListPurchases(ctx context.Context, owner string, status domain.Status) ([]domain.CartLine, error) {
	var lines []domain.CartLine
	switch status {
	case domain.StatusAll:
		cart, err := c.queryLines(ctx, owner, skPrefixCrt, nil)
		if err != nil {
			return nil, fmt.Errorf("repository: ListPurchases: %w", err)
		}
		bought, err := c.queryLines(ctx, owner, skPrefixPur, nil)
		if err != nil {
			return nil, fmt.Errorf("repository: ListPurchases: %w", err)
		}
		lines = append(cart, bought...)
	case domain.StatusInCart:
		cart, err := c.queryLines(ctx, owner, skPrefixCrt, nil)
		if err != nil {
			return nil, fmt.Errorf("repository: ListPurchases: %w", err)
		}
		lines = cart
	default:
		if !status.Valid() {
			return nil, fmt.Errorf("repository: ListPurchases: invalid status %d", status)
		}
		s := status
		bought, err := c.queryLines(ctx, owner, skPrefixPur, &s)
		if err != nil {
			return nil, fmt.Errorf("repository: ListPurchases: %w", err)
		}
		lines = bought
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].UpdatedAt.After(lines[j].UpdatedAt) })
	return lines, nil
}

func (c *Client) queryLines(ctx context.Context, owner, prefix string, status *domain.Status) ([]domain.CartLine, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     strAV(owner),
			":prefix": strAV(prefix),
		},
		ConsistentRead: aws.Bool(true),
	}
	if status != nil {
		in.FilterExpression = aws.String("#st = :st")
		in.ExpressionAttributeNames = map[string]string{"#st": "status"}
		in.ExpressionAttributeValues[":st"] = numAV(int64(*status))
	}
	var lines []domain.CartLine
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("query lines: %w", err)
		}
		for _, raw := range out.Items {
			l, err := decodeLine(raw)
			if err != nil {
				return nil, err
			}
			lines = append(lines, l)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return lines, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func decodeLine(raw map[string]types.AttributeValue) (domain.CartLine, error) {
	var it lineItem
	if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
		return domain.CartLine{}, fmt.Errorf("repository: unmarshal line: %w", err)
	}
	return it.CartLine, nil
}
