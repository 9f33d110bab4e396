package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"shop-assistant/internal/domain"
)

// productItem is the stored shape of a product.
type productItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Entity    string `dynamodbav:"entity"`
	NameLower string `dynamodbav:"nameLower"`
	GSI1PK    string `dynamodbav:"GSI1PK"`
	GSI1SK    string `dynamodbav:"GSI1SK"`
	domain.Product
}

type categoryItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	domain.Category
}

func newProductItem(p domain.Product) productItem {
	lower := strings.ToLower(p.Name)
	return productItem{
		PK:        productPK(p.ID),
		SK:        skProduct,
		Entity:    "product",
		NameLower: lower,
		GSI1PK:    skPrefixCat + p.CategoryID,
		GSI1SK:    lower,
		Product:   p,
	}
}

// PutProduct writes a catalog product with its name and category indexes.
func (c *Client) PutProduct(ctx context.Context, p domain.Product) error {
	item, err := attributevalue.MarshalMap(newProductItem(p))
	if err != nil {
		return fmt.Errorf("repository: PutProduct marshal: %w", err)
	}
	if _, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(c.tableName), Item: item}); err != nil {
		return fmt.Errorf("repository: PutProduct: %w", err)
	}
	return nil
}

// GetProduct returns the product with id, or ErrNotFound.
func (c *Client) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key:       key(productPK(id), skProduct),
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("repository: GetProduct: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Product{}, ErrNotFound
	}
	var it productItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return domain.Product{}, fmt.Errorf("repository: GetProduct unmarshal: %w", err)
	}
	return it.Product, nil
}

// FindProductByName returns the product whose name contains pattern,
// case-insensitively. An exact name match wins; otherwise the shortest
// matching name does. Returns ErrNotFound when nothing matches.
func (c *Client) FindProductByName(ctx context.Context, pattern string) (domain.Product, error) {
	q := strings.ToLower(strings.TrimSpace(pattern))
	if q == "" {
		return domain.Product{}, ErrNotFound
	}

	var matches []domain.Product
	var startKey map[string]types.AttributeValue
	for {
		out, err := c.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(c.tableName),
			FilterExpression: aws.String("entity = :entity AND contains(nameLower, :q)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":entity": strAV("product"),
				":q":      strAV(q),
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return domain.Product{}, fmt.Errorf("repository: FindProductByName scan: %w", err)
		}
		for _, raw := range out.Items {
			var it productItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				return domain.Product{}, fmt.Errorf("repository: FindProductByName unmarshal: %w", err)
			}
			if it.NameLower == q {
				return it.Product, nil
			}
			matches = append(matches, it.Product)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	if len(matches) == 0 {
		return domain.Product{}, ErrNotFound
	}
	sort.SliceStable(matches, func(i, j int) bool { return len(matches[i].Name) < len(matches[j].Name) })
	return matches[0], nil
}

// ProductsByCategory lists up to limit products of a category, by name.
// A non-positive limit returns every product.
func (c *Client) ProductsByCategory(ctx context.Context, categoryID string, limit int) ([]domain.Product, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(indexByCategory),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": strAV(skPrefixCat + categoryID),
		},
	}
	var products []domain.Product
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: ProductsByCategory query: %w", err)
		}
		for _, raw := range out.Items {
			var it productItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				return nil, fmt.Errorf("repository: ProductsByCategory unmarshal: %w", err)
			}
			products = append(products, it.Product)
			if limit > 0 && len(products) == limit {
				return products, nil
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return products, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// PutCategory writes a catalog category.
func (c *Client) PutCategory(ctx context.Context, cat domain.Category) error {
	item, err := attributevalue.MarshalMap(categoryItem{PK: pkCatalog, SK: skPrefixCat + cat.ID, Category: cat})
	if err != nil {
		return fmt.Errorf("repository: PutCategory marshal: %w", err)
	}
	if _, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(c.tableName), Item: item}); err != nil {
		return fmt.Errorf("repository: PutCategory: %w", err)
	}
	return nil
}

// ListCategories returns every catalog category.
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     strAV(pkCatalog),
			":prefix": strAV(skPrefixCat),
		},
	}
	var cats []domain.Category
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: ListCategories query: %w", err)
		}
		for _, raw := range out.Items {
			var it categoryItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				return nil, fmt.Errorf("repository: ListCategories unmarshal: %w", err)
			}
			cats = append(cats, it.Category)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return cats, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// inventoryUpdate builds the conditional ADD used inside checkout, direct
// purchase and cancel transactions. A decrement below zero fails the
// condition.
func inventoryUpdate(table, productID string, deltaQuantity, deltaSold int64) *types.Update {
	values := map[string]types.AttributeValue{
		":dq": numAV(deltaQuantity),
		":ds": numAV(deltaSold),
	}
	cond := "attribute_exists(PK)"
	if deltaQuantity < 0 {
		cond += " AND quantity >= :need"
		values[":need"] = numAV(-deltaQuantity)
	}
	return &types.Update{
		TableName:                 aws.String(table),
		Key:                       key(productPK(productID), skProduct),
		UpdateExpression:          aws.String("ADD quantity :dq, sold :ds"),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeValues: values,
	}
}
