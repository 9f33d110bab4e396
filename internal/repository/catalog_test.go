package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shop-assistant/internal/domain"
)

func storedProduct(t *testing.T, p domain.Product) map[string]types.AttributeValue {
	t.Helper()
	return mustMarshal(t, newProductItem(p))
}

func TestFindProductByName_PrefersExactMatch(t *testing.T) {
	db := &fakeDynamo{scanOuts: []*dynamodb.ScanOutput{
		{
			Items:            []map[string]types.AttributeValue{storedProduct(t, domain.Product{ID: "1", Name: "Phone Case"})},
			LastEvaluatedKey: key("PRODUCT#1", "PRODUCT"),
		},
		{Items: []map[string]types.AttributeValue{storedProduct(t, domain.Product{ID: "2", Name: "Phone"})}},
	}}
	c := mustNewClient(t, db)

	p, err := c.FindProductByName(context.Background(), "  PHONE ")
	require.NoError(t, err)
	require.Equal(t, "2", p.ID)
	require.Len(t, db.scanIns, 2)
	require.Equal(t, &types.AttributeValueMemberS{Value: "phone"}, db.scanIns[0].ExpressionAttributeValues[":q"])
	require.Equal(t, key("PRODUCT#1", "PRODUCT"), db.scanIns[1].ExclusiveStartKey)
}

func TestFindProductByName_ShortestSubstringMatch(t *testing.T) {
	db := &fakeDynamo{scanOuts: []*dynamodb.ScanOutput{{Items: []map[string]types.AttributeValue{
		storedProduct(t, domain.Product{ID: "1", Name: "Red Phone Case XL"}),
		storedProduct(t, domain.Product{ID: "2", Name: "Phone Case"}),
	}}}}
	c := mustNewClient(t, db)

	p, err := c.FindProductByName(context.Background(), "case")
	require.NoError(t, err)
	require.Equal(t, "2", p.ID)
}

func TestFindProductByName_NoMatch(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	_, err := c.FindProductByName(context.Background(), "nothing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = c.FindProductByName(context.Background(), "   ")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProductsByCategory_Limit(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{
		storedProduct(t, domain.Product{ID: "1", Name: "a", CategoryID: "c1"}),
		storedProduct(t, domain.Product{ID: "2", Name: "b", CategoryID: "c1"}),
	}}}}
	c := mustNewClient(t, db)

	products, err := c.ProductsByCategory(context.Background(), "c1", 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, indexByCategory, aws.ToString(db.queryIns[0].IndexName))
	require.Equal(t, &types.AttributeValueMemberS{Value: "CATEGORY#c1"}, db.queryIns[0].ExpressionAttributeValues[":pk"])
}

func TestListCategories(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{
		mustMarshal(t, categoryItem{PK: pkCatalog, SK: "CATEGORY#c1", Category: domain.Category{ID: "c1", Name: "Phones"}}),
	}}}}
	c := mustNewClient(t, db)

	cats, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.Category{{ID: "c1", Name: "Phones"}}, cats)
}

func TestGetProduct(t *testing.T) {
	db := &fakeDynamo{getOuts: []*dynamodb.GetItemOutput{{Item: storedProduct(t, widget)}}}
	c := mustNewClient(t, db)

	p, err := c.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, widget, p)

	c = mustNewClient(t, &fakeDynamo{})
	_, err = c.GetProduct(context.Background(), "p1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutProduct_IndexesName(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	require.NoError(t, c.PutProduct(context.Background(), domain.Product{ID: "p1", Name: "Blue Widget", CategoryID: "c1"}))
	item := db.putIns[0].Item
	require.Equal(t, &types.AttributeValueMemberS{Value: "blue widget"}, item["nameLower"])
	require.Equal(t, &types.AttributeValueMemberS{Value: "CATEGORY#c1"}, item["GSI1PK"])
}

type mockRedis struct {
	mock.Mock
}

func (m *mockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *mockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func TestCatalogCache_MissLoadsAndStores(t *testing.T) {
	ctx := context.Background()
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{storedProduct(t, widget)}}}}
	rdb := &mockRedis{}
	rdb.On("Get", ctx, "catalog:category:c1:5").Return(redis.NewStringResult("", redis.Nil))
	rdb.On("Set", ctx, "catalog:category:c1:5", mock.Anything, 2*time.Minute).Return(redis.NewStatusResult("OK", nil))

	cache, err := NewCatalogCache(mustNewClient(t, db), rdb, 2*time.Minute, zerolog.Nop())
	require.NoError(t, err)

	products, err := cache.ProductsByCategory(ctx, "c1", 5)
	require.NoError(t, err)
	require.Equal(t, []domain.Product{widget}, products)
	rdb.AssertExpectations(t)
}

func TestCatalogCache_HitSkipsSource(t *testing.T) {
	ctx := context.Background()
	db := &fakeDynamo{}
	rdb := &mockRedis{}
	rdb.On("Get", ctx, "catalog:categories").Return(redis.NewStringResult(`[{"id":"c1","name":"Phones"}]`, nil))

	cache, err := NewCatalogCache(mustNewClient(t, db), rdb, time.Minute, zerolog.Nop())
	require.NoError(t, err)

	cats, err := cache.ListCategories(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.Category{{ID: "c1", Name: "Phones"}}, cats)
	require.Empty(t, db.queryIns)
	rdb.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCatalogCache_RedisDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{storedProduct(t, widget)}}}}
	rdb := &mockRedis{}
	rdb.On("Get", ctx, "catalog:category:c1:0").Return(redis.NewStringResult("", errors.New("dial tcp: refused")))
	rdb.On("Set", ctx, "catalog:category:c1:0", mock.Anything, time.Minute).Return(redis.NewStatusResult("", errors.New("dial tcp: refused")))

	cache, err := NewCatalogCache(mustNewClient(t, db), rdb, time.Minute, zerolog.Nop())
	require.NoError(t, err)

	products, err := cache.ProductsByCategory(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "p1", products[0].ID)
}

func TestCatalogCache_SourceErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	rdb := &mockRedis{}
	rdb.On("Get", ctx, "catalog:categories").Return(redis.NewStringResult("", redis.Nil))

	cache, err := NewCatalogCache(mustNewClient(t, &fakeDynamo{queryErr: errors.New("throttled")}), rdb, time.Minute, zerolog.Nop())
	require.NoError(t, err)

	_, err = cache.ListCategories(ctx)
	require.Error(t, err)
	rdb.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
