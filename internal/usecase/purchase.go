package usecase

import (
	"context"
	"errors"
	"strings"

	"shop-assistant/internal/domain"
	"shop-assistant/internal/repository"
)

// BuyItem is one product of a direct purchase.
type BuyItem struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

// Buy places an order for items without going through the cart selection.
// Stock is always taken. A product already in the cart keeps its line id and
// leaves the cart; others get a fresh purchase line.
func (s *Service) Buy(ctx context.Context, id domain.Identity, items []BuyItem) (domain.OrderSummary, error) {
	if !id.Authenticated() {
		return domain.OrderSummary{}, newError(ErrorUnauthorized, "login_required", nil)
	}
	merged, err := mergeBuyItems(items)
	if err != nil {
		return domain.OrderSummary{}, err
	}

	profile, err := s.profiles.GetProfile(ctx, id.UserID)
	if err != nil {
		return domain.OrderSummary{}, newError(ErrorInternal, "profile_read_error", err)
	}
	if len(profile.MissingFields()) > 0 {
		return domain.OrderSummary{}, newError(ErrorInvalidInput, "profile_incomplete", nil)
	}

	owner := id.Key()
	now := s.now()
	lines := make([]repository.PurchaseLine, 0, len(merged))
	for _, it := range merged {
		p, err := s.products.GetProduct(ctx, it.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.OrderSummary{}, newError(ErrorNotFound, "product_not_found", err)
		}
		if err != nil {
			return domain.OrderSummary{}, newError(ErrorInternal, "product_read_error", err)
		}
		if p.Quantity < it.Quantity {
			return domain.OrderSummary{}, newError(ErrorConflict, "insufficient_stock", nil)
		}

		line := repository.PurchaseLine{CartLine: domain.CartLine{
			ID:                  newUUID(),
			Owner:               owner,
			ProductID:           p.ID,
			ProductName:         p.Name,
			Image:               p.Image,
			Quantity:            it.Quantity,
			Price:               p.Price,
			PriceBeforeDiscount: p.PriceBeforeDiscount,
			CreatedAt:           now,
		}}
		existing, err := s.carts.CartLine(ctx, owner, p.ID)
		switch {
		case err == nil:
			line.ID = existing.ID
			line.CreatedAt = existing.CreatedAt
			line.InCart = true
		case !errors.Is(err, repository.ErrNotFound):
			return domain.OrderSummary{}, newError(ErrorInternal, "cart_read_error", err)
		}
		lines = append(lines, line)
	}

	plain := make([]domain.CartLine, 0, len(lines))
	for _, l := range lines {
		plain = append(plain, l.CartLine)
	}
	order := domain.NewOrder(newOrderID(now), owner, profile.Name, plain, true, now)
	err = s.orders.Buy(ctx, order, lines)
	switch {
	case errors.Is(err, repository.ErrInsufficientStock):
		return domain.OrderSummary{}, newError(ErrorConflict, "insufficient_stock", err)
	case errors.Is(err, repository.ErrCartChanged):
		return domain.OrderSummary{}, newError(ErrorConflict, "cart_changed", err)
	case errors.Is(err, repository.ErrTooManyLines):
		return domain.OrderSummary{}, newError(ErrorInvalidInput, "too_many_lines", err)
	case err != nil:
		return domain.OrderSummary{}, newError(ErrorInternal, "order_write_error", err)
	}
	return order.Summary(), nil
}

func mergeBuyItems(items []BuyItem) ([]BuyItem, error) {
	if len(items) == 0 {
		return nil, newError(ErrorInvalidInput, "no_items", nil)
	}
	var merged []BuyItem
	index := map[string]int{}
	for _, it := range items {
		pid := strings.TrimSpace(it.ProductID)
		if pid == "" || it.Quantity <= 0 {
			return nil, newError(ErrorInvalidInput, "invalid_item", nil)
		}
		if i, ok := index[pid]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[pid] = len(merged)
		merged = append(merged, BuyItem{ProductID: pid, Quantity: it.Quantity})
	}
	return merged, nil
}

// UpdateCartLine sets the quantity of productID in the caller's cart. Zero
// removes the line.
func (s *Service) UpdateCartLine(ctx context.Context, id domain.Identity, productID string, quantity int64) (domain.CartLine, error) {
	if id.IsZero() {
		return domain.CartLine{}, newError(ErrorUnauthorized, "identity_required", nil)
	}
	productID = strings.TrimSpace(productID)
	if productID == "" || quantity < 0 {
		return domain.CartLine{}, newError(ErrorInvalidInput, "invalid_item", nil)
	}
	p, err := s.products.GetProduct(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.CartLine{}, newError(ErrorNotFound, "product_not_found", err)
	}
	if err != nil {
		return domain.CartLine{}, newError(ErrorInternal, "product_read_error", err)
	}
	if quantity > p.Quantity {
		return domain.CartLine{}, newError(ErrorConflict, "insufficient_stock", nil)
	}

	line, err := s.carts.SetCartQuantity(ctx, id.Key(), productID, quantity)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.CartLine{}, newError(ErrorNotFound, "not_in_cart", err)
	}
	if err != nil {
		return domain.CartLine{}, newError(ErrorInternal, "cart_write_error", err)
	}
	return line, nil
}

// RemoveCartLines drops productIDs from the caller's cart and reports how
// many lines were removed. Products not in the cart are skipped.
func (s *Service) RemoveCartLines(ctx context.Context, id domain.Identity, productIDs []string) (int, error) {
	if id.IsZero() {
		return 0, newError(ErrorUnauthorized, "identity_required", nil)
	}
	if len(productIDs) == 0 {
		return 0, newError(ErrorInvalidInput, "no_items", nil)
	}
	removed := 0
	for _, pid := range productIDs {
		pid = strings.TrimSpace(pid)
		if pid == "" {
			continue
		}
		_, err := s.carts.RemoveFromCart(ctx, id.Key(), pid)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, newError(ErrorInternal, "cart_write_error", err)
		}
		removed++
	}
	return removed, nil
}
