package usecase

import (
	"context"
	"errors"
	"strings"

	"shop-assistant/internal/domain"
	"shop-assistant/internal/repository"
)

// ListPurchases returns the signed-in user's purchases in status, newest
// first. StatusAll lists every purchase including the cart.
func (s *Service) ListPurchases(ctx context.Context, id domain.Identity, status domain.Status) ([]domain.CartLine, error) {
	if !id.Authenticated() {
		return nil, newError(ErrorUnauthorized, "login_required", nil)
	}
	if status != domain.StatusAll && !status.Valid() {
		return nil, newError(ErrorInvalidInput, "invalid_status", nil)
	}
	lines, err := s.carts.ListPurchases(ctx, id.Key(), status)
	if err != nil {
		return nil, newError(ErrorInternal, "purchase_read_error", err)
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return lines, nil
}

// AdvanceOrderStatus moves an order one or more steps forward along the
// fulfillment path. Cancellation is not reachable from here.
func (s *Service) AdvanceOrderStatus(ctx context.Context, orderID string, next domain.Status) (domain.OrderSummary, error) {
	o, err := s.orderByID(ctx, orderID)
	if err != nil {
		return domain.OrderSummary{}, err
	}
	if !o.Status.CanAdvanceTo(next) {
		return domain.OrderSummary{}, newError(ErrorInvalidInput, "invalid_transition", nil)
	}

	updated, err := s.orders.UpdateOrderStatus(ctx, o, next)
	if errors.Is(err, repository.ErrStatusChanged) {
		return domain.OrderSummary{}, newError(ErrorConflict, "status_changed", err)
	}
	if err != nil {
		return domain.OrderSummary{}, newError(ErrorInternal, "order_write_error", err)
	}
	return updated.Summary(), nil
}

// CancelOrderByID cancels one of the caller's orders. Only orders waiting for
// confirmation can be cancelled.
func (s *Service) CancelOrderByID(ctx context.Context, id domain.Identity, orderID string) (domain.OrderSummary, error) {
	if !id.Authenticated() {
		return domain.OrderSummary{}, newError(ErrorUnauthorized, "login_required", nil)
	}
	o, err := s.orderByID(ctx, orderID)
	if err != nil {
		return domain.OrderSummary{}, err
	}
	if o.Owner != id.Key() {
		return domain.OrderSummary{}, newError(ErrorNotFound, "order_not_found", nil)
	}
	if !o.Status.Cancellable() {
		return domain.OrderSummary{}, newError(ErrorConflict, "not_cancellable", nil)
	}
	cancelled, err := s.orders.CancelOrder(ctx, o)
	if errors.Is(err, repository.ErrStatusChanged) {
		return domain.OrderSummary{}, newError(ErrorConflict, "not_cancellable", err)
	}
	if err != nil {
		return domain.OrderSummary{}, newError(ErrorInternal, "order_write_error", err)
	}
	return cancelled.Summary(), nil
}

// ListOrders returns the caller's orders in status, newest first.
func (s *Service) ListOrders(ctx context.Context, id domain.Identity, status domain.Status) ([]domain.OrderSummary, error) {
	if !id.Authenticated() {
		return nil, newError(ErrorUnauthorized, "login_required", nil)
	}
	if status != domain.StatusAll && !status.Valid() {
		return nil, newError(ErrorInvalidInput, "invalid_status", nil)
	}
	orders, err := s.orders.RecentOrders(ctx, id.Key(), 0, repository.OrderFilter{Status: status})
	if err != nil {
		return nil, newError(ErrorInternal, "order_read_error", err)
	}
	return orderSummaries(orders...), nil
}

// AdminListOrders returns orders of every customer for fulfillment staff.
func (s *Service) AdminListOrders(ctx context.Context, status domain.Status, limit int) ([]domain.Order, error) {
	if status != domain.StatusAll && !status.Valid() {
		return nil, newError(ErrorInvalidInput, "invalid_status", nil)
	}
	if limit < 0 {
		return nil, newError(ErrorInvalidInput, "invalid_limit", nil)
	}
	orders, err := s.orders.ListAllOrders(ctx, status, limit)
	if err != nil {
		return nil, newError(ErrorInternal, "order_read_error", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// OrderDetail returns one order with its items. Staff may read any order;
// customers only their own.
func (s *Service) OrderDetail(ctx context.Context, id domain.Identity, orderID string, staff bool) (domain.Order, error) {
	if !id.Authenticated() {
		return domain.Order{}, newError(ErrorUnauthorized, "login_required", nil)
	}
	o, err := s.orderByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !staff && o.Owner != id.Key() {
		return domain.Order{}, newError(ErrorNotFound, "order_not_found", nil)
	}
	return o, nil
}

func (s *Service) orderByID(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.ToLower(strings.TrimSpace(orderID))
	if len(orderID) != 24 || !orderIDPattern.MatchString(orderID) {
		return domain.Order{}, newError(ErrorInvalidInput, "invalid_order_id", nil)
	}
	o, err := s.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Order{}, newError(ErrorNotFound, "order_not_found", nil)
	}
	if err != nil {
		return domain.Order{}, newError(ErrorInternal, "order_read_error", err)
	}
	return o, nil
}
