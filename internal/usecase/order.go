package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"shop-assistant/internal/domain"
	"shop-assistant/internal/llm"
	"shop-assistant/internal/repository"
)

var orderIDPattern = regexp.MustCompile(`\b[0-9a-fA-F]{24}\b`)

// findOrderID returns the first standalone 24-hex token in input, lower-cased.
func findOrderID(input string) (string, bool) {
	id := orderIDPattern.FindString(input)
	return strings.ToLower(id), id != ""
}

// statusKeywords are checked in order; longer phrases come before the
// words they contain.
var statusKeywords = []struct {
	phrase string
	status domain.Status
}{
	{"cancel", domain.StatusCancelled},
	{"being delivered", domain.StatusInProgress},
	{"in transit", domain.StatusInProgress},
	{"on the way", domain.StatusInProgress},
	{"shipping", domain.StatusInProgress},
	{"delivered", domain.StatusDelivered},
	{"pickup", domain.StatusWaitForGetting},
	{"pick up", domain.StatusWaitForGetting},
	{"waiting for confirmation", domain.StatusWaitForConfirmation},
	{"unconfirmed", domain.StatusWaitForConfirmation},
	{"pending", domain.StatusWaitForConfirmation},
}

// orderFilterFor derives the recent-orders filter from free text. Without a
// keyword, cancelled orders are left out.
func orderFilterFor(input string) repository.OrderFilter {
	lower := strings.ToLower(input)
	for _, k := range statusKeywords {
		if strings.Contains(lower, k.phrase) {
			return repository.OrderFilter{Status: k.status}
		}
	}
	return repository.OrderFilter{ExcludeCancelled: true}
}

func (s *Service) checkOrderStatus(ctx context.Context, t turn) (outcome, error) {
	if id, ok := findOrderID(t.prompt); ok {
		o, err := s.orders.GetOrder(ctx, t.owner, id)
		if errors.Is(err, repository.ErrNotFound) {
			return outcome{reply: replyOrderNotFound(id)}, nil
		}
		if err != nil {
			return outcome{}, err
		}
		return outcome{reply: replyOrderStatus(o), orders: orderSummaries(o)}, nil
	}

	filter := orderFilterFor(t.prompt)
	orders, err := s.orders.RecentOrders(ctx, t.owner, recentOrderLimit, filter)
	if err != nil {
		return outcome{}, err
	}
	if len(orders) == 0 {
		if filter.Status != domain.StatusAll {
			return outcome{reply: replyNoOrdersWithStatus(filter.Status)}, nil
		}
		return outcome{reply: replyNoOrders}, nil
	}
	return outcome{reply: replyRecentOrders(orders), orders: orderSummaries(orders...)}, nil
}

// checkout turns the selected cart lines into one order. The profile is
// checked before anything else; the order, the line transitions and any
// inventory reservation are written in one transaction.
func (s *Service) checkout(ctx context.Context, t turn) (outcome, error) {
	profile, err := s.profiles.GetProfile(ctx, t.identity.UserID)
	if err != nil {
		return outcome{}, err
	}
	if missing := profile.MissingFields(); len(missing) > 0 {
		return outcome{reply: replyProfileIncomplete(missing)}, nil
	}

	ex := s.extractSelection(ctx, t)
	if ex.Upstream {
		return outcome{reply: llm.FallbackReply}, nil
	}
	if ex.Incomplete {
		return outcome{reply: replyAskSelection}, nil
	}

	lines, err := s.carts.ListCart(ctx, t.owner)
	if err != nil {
		return outcome{}, err
	}
	selected := lines
	if !ex.Value.All {
		p, err := s.products.FindProductByName(ctx, ex.Value.ProductName)
		if errors.Is(err, repository.ErrNotFound) {
			return outcome{reply: replyProductNotFound(ex.Value.ProductName)}, nil
		}
		if err != nil {
			return outcome{}, err
		}
		selected = nil
		for _, l := range lines {
			if l.ProductID == p.ID {
				selected = append(selected, l)
			}
		}
		if len(selected) == 0 {
			return outcome{reply: replyNotInCart(p.Name)}, nil
		}
	}
	if len(selected) == 0 {
		return outcome{reply: replyCartEmpty, cart: cartViews(lines)}, nil
	}

	now := s.now()
	order := domain.NewOrder(newOrderID(now), t.owner, profile.Name, selected, s.opts.ReserveInventory, now)
	err = s.orders.Checkout(ctx, order, selected)
	switch {
	case errors.Is(err, repository.ErrInsufficientStock):
		return outcome{reply: replyOutOfStock}, nil
	case errors.Is(err, repository.ErrCartChanged):
		return outcome{reply: replyCartChanged}, nil
	case errors.Is(err, repository.ErrTooManyLines):
		return outcome{reply: replyTooManyLines()}, nil
	case err != nil:
		return outcome{}, err
	}

	remaining := make([]domain.CartLine, 0, len(lines)-len(selected))
	for _, l := range lines {
		if !containsLine(selected, l.ID) {
			remaining = append(remaining, l)
		}
	}
	return outcome{
		reply:  replyOrderPlaced(order),
		orders: orderSummaries(order),
		cart:   cartViews(remaining),
	}, nil
}

func containsLine(lines []domain.CartLine, id string) bool {
	for _, l := range lines {
		if l.ID == id {
			return true
		}
	}
	return false
}

// cancelOrder cancels an order named by its id. Only orders waiting for
// confirmation can be cancelled; the store guards that status again inside
// the cancelling transaction.
func (s *Service) cancelOrder(ctx context.Context, t turn) (outcome, error) {
	id, ok := findOrderID(t.prompt)
	if !ok {
		return outcome{reply: replyAskOrderID}, nil
	}
	o, err := s.orders.GetOrder(ctx, t.owner, id)
	if errors.Is(err, repository.ErrNotFound) {
		return outcome{reply: replyOrderNotFound(id)}, nil
	}
	if err != nil {
		return outcome{}, err
	}
	if !o.Status.Cancellable() {
		return outcome{reply: replyNotCancellable(o), orders: orderSummaries(o)}, nil
	}

	cancelled, err := s.orders.CancelOrder(ctx, o)
	if errors.Is(err, repository.ErrStatusChanged) {
		current, gerr := s.orders.GetOrder(ctx, t.owner, id)
		if gerr != nil {
			return outcome{}, gerr
		}
		return outcome{reply: replyNotCancellable(current), orders: orderSummaries(current)}, nil
	}
	if err != nil {
		return outcome{}, err
	}
	return outcome{reply: replyCancelled(cancelled), orders: orderSummaries(cancelled)}, nil
}
