package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const (
	skContext   = "CONTEXT"
	skProfile   = "PROFILE"
	skProduct   = "PRODUCT"
	skPrefixCat = "CATEGORY#"
	skPrefixCrt = "CART#"
	skPrefixPur = "PURCHASE#"
	skPrefixOrd = "ORDER#"
	pkCatalog   = "CATALOG"

	// timeLayout matches how attributevalue encodes time.Time.
	timeLayout = time.RFC3339Nano

	indexByCategory = "GSI1"
	indexByOrderID  = "GSI2"

	ttlDuration = 30 * 24 * time.Hour // 30-day TTL on conversation contexts

	// DynamoDB rejects transactions with more than 100 actions.
	maxTransactItems = 100
)

var (
	// ErrNotFound is returned when a keyed item does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrInsufficientStock is returned when a reservation would drive a
	// product's quantity below zero.
	ErrInsufficientStock = errors.New("repository: insufficient stock")
	// ErrCartChanged is returned when a cart line was modified between being
	// read and being checked out.
	ErrCartChanged = errors.New("repository: cart changed")
	// ErrStatusChanged is returned when an order is no longer in the status a
	// transition expects.
	ErrStatusChanged = errors.New("repository: order status changed")
	// ErrTooManyLines is returned when a checkout exceeds a single transaction.
	ErrTooManyLines = errors.New("repository: too many lines for one order")

	errConflict = errors.New("repository: write conflict")
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a single DynamoDB table holding contexts, catalog, carts,
// orders and profiles.
type Client struct {
	api       dynamodbAPI
	tableName string

	now     func() time.Time
	newID   func() string
	backoff func() backoff.BackOff
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{
		api:       api,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		backoff:   defaultBackoff,
	}, nil
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 400 * time.Millisecond
	b.MaxElapsedTime = 3 * time.Second
	return backoff.WithMaxRetries(b, 5)
}

// retry runs op until it succeeds, fails with a non-conflict error, or the
// backoff gives up.
func (c *Client) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil || errors.Is(err, errConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(c.backoff(), ctx))
}

func contextPK(owner string) string { return "CTX#" + owner }

func productPK(productID string) string { return "PRODUCT#" + productID }

func cartSK(productID string) string { return skPrefixCrt + productID }

func purchaseSK(lineID string) string { return skPrefixPur + lineID }

func orderSK(orderID string) string { return skPrefixOrd + orderID }

func profilePK(userID string) string { return "USER#" + userID }

// ttlValue returns a Unix timestamp 30 days after now.
func ttlValue(now time.Time) int64 {
	return now.Add(ttlDuration).Unix()
}

func strAV(v string) *types.AttributeValueMemberS { return &types.AttributeValueMemberS{Value: v} }

func numAV(v int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", v)}
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"PK": strAV(pk), "SK": strAV(sk)}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// cancellationCodes returns the per-action reason codes of a cancelled
// transaction, or nil if err is not a cancellation.
func cancellationCodes(err error) []string {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil
	}
	codes := make([]string, len(tce.CancellationReasons))
	for i, r := range tce.CancellationReasons {
		if r.Code != nil {
			codes[i] = *r.Code
		}
	}
	return codes
}

func hasCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
