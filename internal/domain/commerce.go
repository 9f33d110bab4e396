package domain

import (
	"regexp"
	"strings"
	"time"
)

// Category groups products in the catalog.
type Category struct {
	ID    string `json:"id" dynamodbav:"id"`
	Name  string `json:"name" dynamodbav:"name"`
	Image string `json:"image,omitempty" dynamodbav:"image,omitempty"`
}

// Product is a catalog entry. Prices are integer minor units.
type Product struct {
	ID                  string `json:"id" dynamodbav:"id"`
	Name                string `json:"name" dynamodbav:"name"`
	CategoryID          string `json:"categoryId" dynamodbav:"categoryId"`
	Image               string `json:"image,omitempty" dynamodbav:"image,omitempty"`
	Description         string `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Price               int64  `json:"price" dynamodbav:"price"`
	PriceBeforeDiscount int64  `json:"priceBeforeDiscount" dynamodbav:"priceBeforeDiscount"`
	Quantity            int64  `json:"quantity" dynamodbav:"quantity"`
	Sold                int64  `json:"sold" dynamodbav:"sold"`
}

// CartLine is a purchase: one product entry owned by one identity with a
// price snapshot taken when it was first added.
type CartLine struct {
	ID                  string    `json:"id" dynamodbav:"lineId"`
	Owner               string    `json:"-" dynamodbav:"owner"`
	ProductID           string    `json:"productId" dynamodbav:"productId"`
	ProductName         string    `json:"productName" dynamodbav:"productName"`
	Image               string    `json:"image,omitempty" dynamodbav:"image,omitempty"`
	Quantity            int64     `json:"quantity" dynamodbav:"buyCount"`
	Price               int64     `json:"price" dynamodbav:"price"`
	PriceBeforeDiscount int64     `json:"priceBeforeDiscount" dynamodbav:"priceBeforeDiscount"`
	Status              Status    `json:"status" dynamodbav:"status"`
	OrderID             string    `json:"orderId,omitempty" dynamodbav:"orderId,omitempty"`
	CreatedAt           time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Subtotal is price times quantity.
func (l CartLine) Subtotal() int64 {
	return l.Price * l.Quantity
}

// OrderItem is a copy of a cart line taken when the order was created.
type OrderItem struct {
	ProductID string `json:"productId" dynamodbav:"productId"`
	LineID    string `json:"lineId" dynamodbav:"lineId"`
	Name      string `json:"name" dynamodbav:"name"`
	Price     int64  `json:"price" dynamodbav:"price"`
	Quantity  int64  `json:"quantity" dynamodbav:"quantity"`
}

// Order is an immutable snapshot of the cart lines submitted for fulfillment.
type Order struct {
	ID                string      `json:"id" dynamodbav:"orderId"`
	Owner             string      `json:"-" dynamodbav:"owner"`
	UserName          string      `json:"userName" dynamodbav:"userName"`
	Items             []OrderItem `json:"items" dynamodbav:"items"`
	Total             int64       `json:"total" dynamodbav:"total"`
	Status            Status      `json:"status" dynamodbav:"status"`
	LineIDs           []string    `json:"lineIds" dynamodbav:"lineIds"`
	InventoryReserved bool        `json:"inventoryReserved" dynamodbav:"inventoryReserved"`
	CreatedAt         time.Time   `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt" dynamodbav:"updatedAt"`
}

// NewOrder snapshots lines into an order waiting for confirmation. The total
// is the sum of price times quantity over lines.
func NewOrder(id, owner, userName string, lines []CartLine, reserve bool, now time.Time) Order {
	o := Order{
		ID:                id,
		Owner:             owner,
		UserName:          userName,
		Items:             make([]OrderItem, 0, len(lines)),
		LineIDs:           make([]string, 0, len(lines)),
		Status:            StatusWaitForConfirmation,
		InventoryReserved: reserve,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, l := range lines {
		o.Items = append(o.Items, OrderItem{
			ProductID: l.ProductID,
			LineID:    l.ID,
			Name:      l.ProductName,
			Price:     l.Price,
			Quantity:  l.Quantity,
		})
		o.LineIDs = append(o.LineIDs, l.ID)
		o.Total += l.Subtotal()
	}
	return o
}

// Summary is the payload form of the order.
func (o Order) Summary() OrderSummary {
	return OrderSummary{
		ID:          o.ID,
		Status:      o.Status,
		StatusLabel: o.Status.Label(),
		Total:       o.Total,
		Items:       o.Items,
		CreatedAt:   o.CreatedAt,
	}
}

// Profile holds the recipient fields required for checkout.
type Profile struct {
	UserID  string `json:"userId" dynamodbav:"userId"`
	Email   string `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Name    string `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Phone   string `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	Address string `json:"address,omitempty" dynamodbav:"address,omitempty"`
}

// MissingFields lists the recipient fields that are still empty.
func (p Profile) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(p.Address) == "" {
		missing = append(missing, "address")
	}
	return missing
}

// ProfilePatch is a sparse profile update; nil fields are left untouched.
type ProfilePatch struct {
	Name    *string
	Phone   *string
	Address *string
}

// Empty reports whether the patch carries no field.
func (p ProfilePatch) Empty() bool {
	return p.Name == nil && p.Phone == nil && p.Address == nil
}

// CartItemView is a cart line resolved for display.
type CartItemView struct {
	LineID     string `json:"lineId" dynamodbav:"lineId"`
	ProductID  string `json:"productId" dynamodbav:"productId"`
	Name       string `json:"name" dynamodbav:"name"`
	Image      string `json:"image,omitempty" dynamodbav:"image,omitempty"`
	Price      int64  `json:"price" dynamodbav:"price"`
	Quantity   int64  `json:"quantity" dynamodbav:"quantity"`
	Status     string `json:"status" dynamodbav:"status"`
	ProductURL string `json:"productUrl,omitempty" dynamodbav:"productUrl,omitempty"`
}

// View resolves the line for display.
func (l CartLine) View() CartItemView {
	return CartItemView{
		LineID:     l.ID,
		ProductID:  l.ProductID,
		Name:       l.ProductName,
		Image:      l.Image,
		Price:      l.Price,
		Quantity:   l.Quantity,
		Status:     l.Status.Label(),
		ProductURL: ProductURL(l.ProductName, l.ProductID),
	}
}

// OrderSummary is the payload form of an order.
type OrderSummary struct {
	ID          string      `json:"id" dynamodbav:"id"`
	Status      Status      `json:"status" dynamodbav:"status"`
	StatusLabel string      `json:"statusLabel" dynamodbav:"statusLabel"`
	Total       int64       `json:"total" dynamodbav:"total"`
	Items       []OrderItem `json:"items,omitempty" dynamodbav:"items,omitempty"`
	CreatedAt   time.Time   `json:"createdAt" dynamodbav:"createdAt"`
}

// ProductSuggestion is a product offered to the customer.
type ProductSuggestion struct {
	ProductID string `json:"productId" dynamodbav:"productId"`
	Name      string `json:"name" dynamodbav:"name"`
	Price     int64  `json:"price" dynamodbav:"price"`
	URL       string `json:"url" dynamodbav:"url"`
}

var slugStrip = regexp.MustCompile("[!@%^*()+=<>?/,.:;'\"&#\\[\\]~$_`{}|\\\\-]")

// ProductURL builds the storefront path "/<name-slug>-i-<id>".
func ProductURL(name, id string) string {
	if name == "" || id == "" {
		return ""
	}
	slug := strings.Join(strings.Fields(strings.ToLower(slugStrip.ReplaceAllString(name, ""))), "-")
	return "/" + slug + "-i-" + id
}
