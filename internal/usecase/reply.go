package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"shop-assistant/internal/domain"
)

const (
	replyCartEmpty         = "Your cart is empty."
	replyNoOrders          = "You have no orders yet."
	replyNoCategories      = "The store has no product categories yet."
	replyNoSuggestion      = "We have no products matching your request right now. You may want to browse other categories."
	replyAskAddToCart      = "Which product would you like to add to your cart, and how many?"
	replyAskQuantityChange = "I could not tell which product or new quantity you meant. Please say something like \"set Blue Widget to 2\"."
	replyAskSelection      = "Would you like to check out your whole cart or only some products? Name a product or say \"all\"."
	replyAskProfile        = "I could not tell what to update. Please write it as: name: <name>, phone: <phone>, address: <address>."
	replyAskOrderID        = "Please give me the 24-character order id of the order you want to cancel."
	replyCartChanged       = "Your cart changed while the order was being placed. Please review your cart and try again."
	replyOutOfStock        = "Some products in your order do not have enough stock left for the requested quantity. Please adjust your cart and try again."
	replyProfileUpdated    = "Your profile has been updated."
)

func replyProfileIncomplete(missing []string) string {
	return "Please complete your name, phone number and address before placing an order. Missing: " + strings.Join(missing, ", ") + "."
}

func replyProductNotFound(name string) string {
	return fmt.Sprintf("Sorry, we could not find a product called %q.", name)
}

func replyNotInCart(name string) string {
	return fmt.Sprintf("%q is not in your cart.", name)
}

func replyAdded(p domain.Product, quantity int64) string {
	return fmt.Sprintf("Added %d x %q to your cart.", quantity, p.Name)
}

func replyLowStock(p domain.Product) string {
	return fmt.Sprintf("Sorry, only %d of %q are left in stock.", p.Quantity, p.Name)
}

func replyRemoved(p domain.Product) string {
	return fmt.Sprintf("Removed %q from your cart.", p.Name)
}

func replyQuantitySet(p domain.Product, quantity int64) string {
	return fmt.Sprintf("Updated %q in your cart to %d.", p.Name, quantity)
}

func replyCart(lines []domain.CartLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your cart has %d %s:", len(lines), plural(len(lines), "product", "products"))
	var total int64
	for i, l := range lines {
		fmt.Fprintf(&b, "\n%d. %s - %d x %s", i+1, l.ProductName, l.Quantity, formatPrice(l.Price))
		total += l.Subtotal()
	}
	fmt.Fprintf(&b, "\nTotal: %s", formatPrice(total))
	return b.String()
}

func replyOrderPlaced(o domain.Order) string {
	return fmt.Sprintf("Your order has been placed. Order id: %s. Total: %s. Thank you!", o.ID, formatPrice(o.Total))
}

func replyOrderNotFound(id string) string {
	return fmt.Sprintf("We could not find an order with id %s.", id)
}

func replyOrderStatus(o domain.Order) string {
	return fmt.Sprintf("Order %s: %s. Total: %s.", o.ID, o.Status.Label(), formatPrice(o.Total))
}

func replyRecentOrders(orders []domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here %s your %d most recent %s:", plural(len(orders), "is", "are"), len(orders), plural(len(orders), "order", "orders"))
	for _, o := range orders {
		fmt.Fprintf(&b, "\n- Id: %s, status: %s, total: %s", o.ID, o.Status.Label(), formatPrice(o.Total))
	}
	return b.String()
}

func replyNoOrdersWithStatus(s domain.Status) string {
	return fmt.Sprintf("You have no orders with status %q.", s.Label())
}

func replyNotCancellable(o domain.Order) string {
	if o.Status == domain.StatusCancelled {
		return fmt.Sprintf("Order %s is already cancelled.", o.ID)
	}
	return fmt.Sprintf("Order %s cannot be cancelled because it is already %s.", o.ID, strings.ToLower(o.Status.Label()))
}

func replyCancelled(o domain.Order) string {
	return fmt.Sprintf("Order %s has been cancelled.", o.ID)
}

func replyEmptyCategory(c domain.Category) string {
	return fmt.Sprintf("There are no products in the %s category right now.", c.Name)
}

func replyTooManyLines() string {
	return "That order has too many products for a single checkout. Please check out fewer products at a time."
}

// formatPrice renders an amount with thousands separators.
func formatPrice(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func productFacts(products []domain.Product) []string {
	facts := make([]string, 0, len(products))
	for _, p := range products {
		facts = append(facts, fmt.Sprintf("%s (%s)", p.Name, formatPrice(p.Price)))
	}
	return facts
}

func suggestions(products []domain.Product) []domain.ProductSuggestion {
	out := make([]domain.ProductSuggestion, 0, len(products))
	for _, p := range products {
		out = append(out, domain.ProductSuggestion{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			URL:       domain.ProductURL(p.Name, p.ID),
		})
	}
	return out
}

func cartViews(lines []domain.CartLine) []domain.CartItemView {
	views := make([]domain.CartItemView, 0, len(lines))
	for _, l := range lines {
		views = append(views, l.View())
	}
	return views
}

func orderSummaries(orders ...domain.Order) []domain.OrderSummary {
	out := make([]domain.OrderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.Summary())
	}
	return out
}
