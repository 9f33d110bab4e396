package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"shop-assistant/internal/domain"
	"shop-assistant/internal/repository"
)

func TestAdvanceOrderStatus(t *testing.T) {
	m := seededStore()
	l := &fakeLLM{}
	svc := newTestService(t, l, m)
	o := placeOrder(t, svc, l, m)
	ctx := context.Background()

	sum, err := svc.AdvanceOrderStatus(ctx, o.ID, domain.StatusInProgress)
	require.NoError(t, err)
	require.Equal(t, domain.StatusInProgress, sum.Status)
	require.Equal(t, "Being delivered", sum.StatusLabel)
	for _, id := range o.LineIDs {
		require.Equal(t, domain.StatusInProgress, m.purchases[id].Status)
	}

	_, err = svc.AdvanceOrderStatus(ctx, o.ID, domain.StatusWaitForGetting)
	requireCode(t, err, ErrorInvalidInput)

	_, err = svc.AdvanceOrderStatus(ctx, o.ID, domain.StatusCancelled)
	requireCode(t, err, ErrorInvalidInput)

	sum, err = svc.AdvanceOrderStatus(ctx, "  "+o.ID+" ", domain.StatusDelivered)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDelivered, sum.Status)

	_, err = svc.AdvanceOrderStatus(ctx, o.ID, domain.StatusDelivered)
	requireCode(t, err, ErrorInvalidInput)
}

func TestAdvanceOrderStatus_Errors(t *testing.T) {
	m := seededStore()
	l := &fakeLLM{}
	svc := newTestService(t, l, m)
	ctx := context.Background()

	e := requireCode(t, errOf(svc.AdvanceOrderStatus(ctx, "not-an-id", domain.StatusDelivered)), ErrorInvalidInput)
	require.Equal(t, "invalid_order_id", e.Reason)

	e = requireCode(t, errOf(svc.AdvanceOrderStatus(ctx, "0123456789abcdef01234567", domain.StatusDelivered)), ErrorNotFound)
	require.Equal(t, "order_not_found", e.Reason)

	o := placeOrder(t, svc, l, m)
	say(t, svc, l, "cancel_order", "", "cancel "+o.ID)
	e = requireCode(t, errOf(svc.AdvanceOrderStatus(ctx, o.ID, domain.StatusDelivered)), ErrorInvalidInput)
	require.Equal(t, "invalid_transition", e.Reason)
}

type racingOrders struct{ *memStore }

func (racingOrders) UpdateOrderStatus(context.Context, domain.Order, domain.Status) (domain.Order, error) {
	return domain.Order{}, repository.ErrStatusChanged
}

func TestAdvanceOrderStatus_Conflict(t *testing.T) {
	m := seededStore()
	l := &fakeLLM{}
	svc := newTestService(t, l, m)
	o := placeOrder(t, svc, l, m)
	svc.orders = racingOrders{m}

	_, err := svc.AdvanceOrderStatus(context.Background(), o.ID, domain.StatusWaitForGetting)
	e := requireCode(t, err, ErrorConflict)
	require.Equal(t, "status_changed", e.Reason)
}

func TestListPurchases(t *testing.T) {
	m := seededStore()
	l := &fakeLLM{}
	svc := newTestService(t, l, m)
	ctx := context.Background()
	user := domain.Identity{UserID: "u1"}

	lines, err := svc.ListPurchases(ctx, user, domain.StatusAll)
	require.NoError(t, err)
	require.NotNil(t, lines)
	require.Empty(t, lines)

	placeOrder(t, svc, l, m)
	say(t, svc, l, "add_to_cart", "Alpha Phone|1", "add one more")

	lines, err = svc.ListPurchases(ctx, user, domain.StatusAll)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	lines, err = svc.ListPurchases(ctx, user, domain.StatusWaitForConfirmation)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	lines, err = svc.ListPurchases(ctx, user, domain.StatusInCart)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	_, err = svc.ListPurchases(ctx, domain.Identity{SessionID: "s1"}, domain.StatusAll)
	requireCode(t, err, ErrorUnauthorized)

	e := requireCode(t, errOf(svc.ListPurchases(ctx, user, domain.Status(9))), ErrorInvalidInput)
	require.Equal(t, "invalid_status", e.Reason)
}

func TestCancelOrderByID(t *testing.T) {
	m := seededStore()
	l := &fakeLLM{}
	svc := newTestService(t, l, m)
	ctx := context.Background()
	o := placeOrder(t, svc, l, m)

	e := requireCode(t, errOf(svc.CancelOrderByID(ctx, domain.Identity{UserID: "u2"}, o.ID)), ErrorNotFound)
	require.Equal(t, "order_not_found", e.Reason)

	sum, err := svc.CancelOrderByID(ctx, domain.Identity{UserID: "u1"}, o.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, sum.Status)
	require.Equal(t, int64(10), m.product("pA").Quantity)

	e = requireCode(t, errOf(svc.CancelOrderByID(ctx, domain.Identity{UserID: "u1"}, o.ID)), ErrorConflict)
	require.Equal(t, "not_cancellable", e.Reason)
	require.Equal(t, int64(10), m.product("pA").Quantity)

	requireCode(t, errOf(svc.CancelOrderByID(ctx, domain.Identity{SessionID: "s1"}, o.ID)), ErrorUnauthorized)
}

func TestListOrders_OwnOnly(t *testing.T) {
	m := seededStore()
	l := &fakeLLM{}
	svc := newTestService(t, l, m)
	ctx := context.Background()
	o := placeOrder(t, svc, l, m)
	m.orders["ffffffffffffffffffffffff"] = domain.Order{ID: "ffffffffffffffffffffffff", Owner: "USER#u2", Status: domain.StatusWaitForConfirmation}

	sums, err := svc.ListOrders(ctx, domain.Identity{UserID: "u1"}, domain.StatusAll)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	require.Equal(t, o.ID, sums[0].ID)

	sums, err = svc.ListOrders(ctx, domain.Identity{UserID: "u1"}, domain.StatusDelivered)
	require.NoError(t, err)
	require.Empty(t, sums)

	requireCode(t, errOf(svc.ListOrders(ctx, domain.Identity{UserID: "u1"}, domain.Status(9))), ErrorInvalidInput)
}

func TestAdminListOrders(t *testing.T) {
	m := seededStore()
	l := &fakeLLM{}
	svc := newTestService(t, l, m)
	ctx := context.Background()

	orders, err := svc.AdminListOrders(ctx, domain.StatusAll, 0)
	require.NoError(t, err)
	require.NotNil(t, orders)
	require.Empty(t, orders)

	placeOrder(t, svc, l, m)
	m.orders["ffffffffffffffffffffffff"] = domain.Order{ID: "ffffffffffffffffffffffff", Owner: "USER#u2", Status: domain.StatusDelivered}

	orders, err = svc.AdminListOrders(ctx, domain.StatusAll, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	orders, err = svc.AdminListOrders(ctx, domain.StatusDelivered, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, "USER#u2", orders[0].Owner)

	requireCode(t, errOf(svc.AdminListOrders(ctx, domain.StatusAll, -1)), ErrorInvalidInput)
}

func TestOrderDetail(t *testing.T) {
	m := seededStore()
	l := &fakeLLM{}
	svc := newTestService(t, l, m)
	ctx := context.Background()
	o := placeOrder(t, svc, l, m)

	got, err := svc.OrderDetail(ctx, domain.Identity{UserID: "u1"}, o.ID, false)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)

	requireCode(t, errOf(svc.OrderDetail(ctx, domain.Identity{UserID: "u2"}, o.ID, false)), ErrorNotFound)

	got, err = svc.OrderDetail(ctx, domain.Identity{UserID: "u2"}, o.ID, true)
	require.NoError(t, err)
	require.Equal(t, "USER#u1", got.Owner)

	requireCode(t, errOf(svc.OrderDetail(ctx, domain.Identity{UserID: "u1"}, "nope", false)), ErrorInvalidInput)
}

func errOf[T any](_ T, err error) error { return err }
