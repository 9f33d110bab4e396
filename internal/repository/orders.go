package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"shop-assistant/internal/domain"
)

const (
	codeConditionFailed     = "ConditionalCheckFailed"
	codeTransactionConflict = "TransactionConflict"
)

// orderRecord is the stored shape of an order.
type orderRecord struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	Entity string `dynamodbav:"entity"`
	GSI2PK string `dynamodbav:"GSI2PK"`
	GSI2SK string `dynamodbav:"GSI2SK"`
	domain.Order
}

func newOrderRecord(o domain.Order) orderRecord {
	return orderRecord{
		PK:     o.Owner,
		SK:     orderSK(o.ID),
		Entity: "order",
		GSI2PK: orderSK(o.ID),
		GSI2SK: o.Owner,
		Order:  o,
	}
}

// OrderFilter narrows RecentOrders. The zero value matches every order.
type OrderFilter struct {
	Status           domain.Status
	ExcludeCancelled bool
}

// actionKind tags each action of a transaction so cancellation reasons can
// be mapped back to a domain error.
type actionKind int

const (
	actionOrder actionKind = iota
	actionCartLine
	actionPurchase
	actionInventory
)

// PurchaseLine is one line of a direct purchase. InCart marks a product that
// sat in the buyer's cart under the line's ID; that cart line is consumed.
type PurchaseLine struct {
	domain.CartLine
	InCart bool
}

// Checkout creates order from lines in one transaction: the order is put,
// every cart line is removed from the cart and re-written as a purchase
// waiting for confirmation, and, when order.InventoryReserved is set, each
// product's quantity is decremented and its sold counter incremented.
// Either everything is written or nothing is.
func (c *Client) Checkout(ctx context.Context, order domain.Order, lines []domain.CartLine) error {
	guarded := make([]PurchaseLine, 0, len(lines))
	for _, l := range lines {
		guarded = append(guarded, PurchaseLine{CartLine: l, InCart: true})
	}
	return c.placeOrder(ctx, "Checkout", order, guarded, true)
}

// Buy places order for products bought directly rather than from a cart
// selection. Inventory is always taken. Lines marked InCart replace the cart
// line of the same ID whatever its quantity was.
func (c *Client) Buy(ctx context.Context, order domain.Order, lines []PurchaseLine) error {
	order.InventoryReserved = true
	return c.placeOrder(ctx, "Buy", order, lines, false)
}

func (c *Client) placeOrder(ctx context.Context, op string, order domain.Order, lines []PurchaseLine, exactQuantity bool) error {
	if len(lines) == 0 {
		return fmt.Errorf("repository: %s: no lines", op)
	}
	size := 1
	for _, l := range lines {
		size++
		if l.InCart {
			size++
		}
		if order.InventoryReserved {
			size++
		}
	}
	if size > maxTransactItems {
		return fmt.Errorf("repository: %s: %d lines: %w", op, len(lines), ErrTooManyLines)
	}

	orderItem, err := attributevalue.MarshalMap(newOrderRecord(order))
	if err != nil {
		return fmt.Errorf("repository: %s marshal order: %w", op, err)
	}
	items := []types.TransactWriteItem{{Put: &types.Put{
		TableName:           aws.String(c.tableName),
		Item:                orderItem,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}}}
	kinds := []actionKind{actionOrder}

	for _, l := range lines {
		if l.InCart {
			del := &types.Delete{
				TableName:           aws.String(c.tableName),
				Key:                 key(order.Owner, cartSK(l.ProductID)),
				ConditionExpression: aws.String("lineId = :id"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":id": strAV(l.ID),
				},
			}
			if exactQuantity {
				del.ConditionExpression = aws.String("lineId = :id AND buyCount = :q")
				del.ExpressionAttributeValues[":q"] = numAV(l.Quantity)
			}
			items = append(items, types.TransactWriteItem{Delete: del})
			kinds = append(kinds, actionCartLine)
		}

		bought := l.CartLine
		bought.Owner = order.Owner
		bought.Status = domain.StatusWaitForConfirmation
		bought.OrderID = order.ID
		bought.UpdatedAt = order.CreatedAt
		if bought.CreatedAt.IsZero() {
			bought.CreatedAt = order.CreatedAt
		}
		purchase, err := attributevalue.MarshalMap(newLineItem(purchaseSK(l.ID), bought))
		if err != nil {
			return fmt.Errorf("repository: %s marshal purchase: %w", op, err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(c.tableName),
			Item:                purchase,
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		}})
		kinds = append(kinds, actionPurchase)

		if order.InventoryReserved {
			items = append(items, types.TransactWriteItem{
				Update: inventoryUpdate(c.tableName, l.ProductID, -l.Quantity, l.Quantity),
			})
			kinds = append(kinds, actionInventory)
		}
	}

	if err := c.transact(ctx, items, kinds); err != nil {
		return fmt.Errorf("repository: %s %s: %w", op, order.ID, err)
	}
	return nil
}

// GetOrder returns owner's order id. Orders of other owners are not found.
func (c *Client) GetOrder(ctx context.Context, owner, id string) (domain.Order, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            key(owner, orderSK(id)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("repository: GetOrder: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Order{}, ErrNotFound
	}
	return decodeOrder(out.Item)
}

// GetOrderByID looks an order up by id alone, for fulfillment staff.
func (c *Client) GetOrderByID(ctx context.Context, id string) (domain.Order, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(indexByOrderID),
		KeyConditionExpression: aws.String("GSI2PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": strAV(orderSK(id)),
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("repository: GetOrderByID: %w", err)
	}
	if len(out.Items) == 0 {
		return domain.Order{}, ErrNotFound
	}
	return decodeOrder(out.Items[0])
}

// RecentOrders returns up to limit of owner's orders matching filter,
// newest first. Order ids start with their creation time, so key order is
// creation order.
func (c *Client) RecentOrders(ctx context.Context, owner string, limit int, filter OrderFilter) ([]domain.Order, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     strAV(owner),
			":prefix": strAV(skPrefixOrd),
		},
		ScanIndexForward: aws.Bool(false),
		ConsistentRead:   aws.Bool(true),
	}
	switch {
	case filter.Status != domain.StatusAll:
		in.FilterExpression = aws.String("#st = :st")
		in.ExpressionAttributeNames = map[string]string{"#st": "status"}
		in.ExpressionAttributeValues[":st"] = numAV(int64(filter.Status))
	case filter.ExcludeCancelled:
		in.FilterExpression = aws.String("#st <> :st")
		in.ExpressionAttributeNames = map[string]string{"#st": "status"}
		in.ExpressionAttributeValues[":st"] = numAV(int64(domain.StatusCancelled))
	}

	var orders []domain.Order
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: RecentOrders: %w", err)
		}
		for _, raw := range out.Items {
			o, err := decodeOrder(raw)
			if err != nil {
				return nil, err
			}
			orders = append(orders, o)
			if limit > 0 && len(orders) == limit {
				return orders, nil
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return orders, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// ListAllOrders returns orders of every owner in status (StatusAll for any),
// newest first, at most limit when limit is positive. It scans the table and
// is meant for fulfillment staff only.
func (c *Client) ListAllOrders(ctx context.Context, status domain.Status, limit int) ([]domain.Order, error) {
	in := &dynamodb.ScanInput{
		TableName:        aws.String(c.tableName),
		FilterExpression: aws.String("entity = :entity"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":entity": strAV("order"),
		},
	}
	if status != domain.StatusAll {
		in.FilterExpression = aws.String("entity = :entity AND #st = :st")
		in.ExpressionAttributeNames = map[string]string{"#st": "status"}
		in.ExpressionAttributeValues[":st"] = numAV(int64(status))
	}

	var orders []domain.Order
	for {
		out, err := c.api.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: ListAllOrders: %w", err)
		}
		for _, raw := range out.Items {
			o, err := decodeOrder(raw)
			if err != nil {
				return nil, err
			}
			orders = append(orders, o)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

// CancelOrder moves order from WAIT_FOR_CONFIRMATION to CANCELLED together
// with its purchases, and gives reserved inventory back, in one transaction.
// The write is guarded on the stored status, so a repeated cancel fails with
// ErrStatusChanged and never restores inventory twice.
func (c *Client) CancelOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	return c.transition(ctx, order, domain.StatusWaitForConfirmation, domain.StatusCancelled, order.InventoryReserved)
}

// UpdateOrderStatus moves order and its purchases from their current status
// to next. The caller checks that the move is allowed.
func (c *Client) UpdateOrderStatus(ctx context.Context, order domain.Order, next domain.Status) (domain.Order, error) {
	return c.transition(ctx, order, order.Status, next, false)
}

func (c *Client) transition(ctx context.Context, order domain.Order, from, to domain.Status, restore bool) (domain.Order, error) {
	now := c.now()
	stamp := strAV(now.Format(timeLayout))
	names := map[string]string{"#st": "status"}

	items := []types.TransactWriteItem{{Update: &types.Update{
		TableName:                aws.String(c.tableName),
		Key:                      key(order.Owner, orderSK(order.ID)),
		UpdateExpression:         aws.String("SET #st = :to, updatedAt = :now"),
		ConditionExpression:      aws.String("#st = :from"),
		ExpressionAttributeNames: names,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":   numAV(int64(to)),
			":from": numAV(int64(from)),
			":now":  stamp,
		},
	}}}
	kinds := []actionKind{actionOrder}

	for _, id := range order.LineIDs {
		items = append(items, types.TransactWriteItem{Update: &types.Update{
			TableName:                aws.String(c.tableName),
			Key:                      key(order.Owner, purchaseSK(id)),
			UpdateExpression:         aws.String("SET #st = :to, updatedAt = :now"),
			ConditionExpression:      aws.String("attribute_exists(PK)"),
			ExpressionAttributeNames: names,
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":to":  numAV(int64(to)),
				":now": stamp,
			},
		}})
		kinds = append(kinds, actionPurchase)
	}

	if restore {
		restored := map[string]int64{}
		var products []string
		for _, it := range order.Items {
			if _, ok := restored[it.ProductID]; !ok {
				products = append(products, it.ProductID)
			}
			restored[it.ProductID] += it.Quantity
		}
		for _, pid := range products {
			q := restored[pid]
			items = append(items, types.TransactWriteItem{Update: inventoryUpdate(c.tableName, pid, q, -q)})
			kinds = append(kinds, actionInventory)
		}
	}
	if len(items) > maxTransactItems {
		return domain.Order{}, fmt.Errorf("repository: order %s: %w", order.ID, ErrTooManyLines)
	}

	if err := c.transact(ctx, items, kinds); err != nil {
		return domain.Order{}, fmt.Errorf("repository: order %s to %s: %w", order.ID, to, err)
	}
	order.Status = to
	order.UpdatedAt = now
	return order, nil
}

// transact runs a write transaction, retrying on conflicts with other
// transactions and mapping failed conditions to domain errors.
func (c *Client) transact(ctx context.Context, items []types.TransactWriteItem, kinds []actionKind) error {
	return c.retry(ctx, func() error {
		_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if err == nil {
			return nil
		}
		codes := cancellationCodes(err)
		if codes == nil {
			return fmt.Errorf("transact: %w", err)
		}
		if hasCode(codes, codeTransactionConflict) {
			return errConflict
		}
		for i, code := range codes {
			if code != codeConditionFailed || i >= len(kinds) {
				continue
			}
			switch kinds[i] {
			case actionOrder:
				return ErrStatusChanged
			case actionCartLine:
				return ErrCartChanged
			case actionInventory:
				return ErrInsufficientStock
			case actionPurchase:
				return ErrNotFound
			}
		}
		return fmt.Errorf("transact: %w", err)
	})
}

func decodeOrder(raw map[string]types.AttributeValue) (domain.Order, error) {
	var rec orderRecord
	if err := attributevalue.UnmarshalMap(raw, &rec); err != nil {
		return domain.Order{}, fmt.Errorf("repository: unmarshal order: %w", err)
	}
	return rec.Order, nil
}
