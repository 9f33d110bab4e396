package usecase

import (
	"context"
	"errors"

	"shop-assistant/internal/llm"
	"shop-assistant/internal/repository"
)

func (s *Service) addToCart(ctx context.Context, t turn) (outcome, error) {
	ex := s.extractAddToCart(ctx, t)
	if ex.Upstream {
		return outcome{reply: llm.FallbackReply}, nil
	}
	if ex.Incomplete {
		return outcome{reply: replyAskAddToCart}, nil
	}

	p, err := s.products.FindProductByName(ctx, ex.Value.Name)
	if errors.Is(err, repository.ErrNotFound) {
		return outcome{reply: replyProductNotFound(ex.Value.Name)}, nil
	}
	if err != nil {
		return outcome{}, err
	}
	inCart, err := s.cartQuantity(ctx, t.owner, p.ID)
	if err != nil {
		return outcome{}, err
	}
	if p.Quantity < inCart+ex.Value.Quantity {
		return outcome{reply: replyLowStock(p)}, nil
	}

	if _, err := s.carts.AddToCart(ctx, t.owner, p, ex.Value.Quantity); err != nil {
		return outcome{}, err
	}
	lines, err := s.carts.ListCart(ctx, t.owner)
	if err != nil {
		return outcome{}, err
	}
	return outcome{reply: replyAdded(p, ex.Value.Quantity), cart: cartViews(lines)}, nil
}

// cartQuantity is how many of productID owner already holds in the cart.
func (s *Service) cartQuantity(ctx context.Context, owner, productID string) (int64, error) {
	l, err := s.carts.CartLine(ctx, owner, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return l.Quantity, nil
}

func (s *Service) viewCart(ctx context.Context, t turn) (outcome, error) {
	lines, err := s.carts.ListCart(ctx, t.owner)
	if err != nil {
		return outcome{}, err
	}
	if len(lines) == 0 {
		return outcome{reply: replyCartEmpty, cart: cartViews(lines)}, nil
	}
	return outcome{reply: replyCart(lines), cart: cartViews(lines)}, nil
}

func (s *Service) changeCartQuantity(ctx context.Context, t turn) (outcome, error) {
	ex := s.extractQuantityChange(ctx, t)
	if ex.Upstream {
		return outcome{reply: llm.FallbackReply}, nil
	}
	if ex.Incomplete {
		return outcome{reply: replyAskQuantityChange}, nil
	}

	p, err := s.products.FindProductByName(ctx, ex.Value.Name)
	if errors.Is(err, repository.ErrNotFound) {
		return outcome{reply: replyProductNotFound(ex.Value.Name)}, nil
	}
	if err != nil {
		return outcome{}, err
	}
	if ex.Value.Quantity > p.Quantity {
		return outcome{reply: replyLowStock(p)}, nil
	}

	_, err = s.carts.SetCartQuantity(ctx, t.owner, p.ID, ex.Value.Quantity)
	if errors.Is(err, repository.ErrNotFound) {
		return outcome{reply: replyNotInCart(p.Name)}, nil
	}
	if err != nil {
		return outcome{}, err
	}

	lines, err := s.carts.ListCart(ctx, t.owner)
	if err != nil {
		return outcome{}, err
	}
	reply := replyQuantitySet(p, ex.Value.Quantity)
	if ex.Value.Quantity == 0 {
		reply = replyRemoved(p)
	}
	return outcome{reply: reply, cart: cartViews(lines)}, nil
}
