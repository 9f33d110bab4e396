package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shop-assistant/internal/domain"
	"shop-assistant/internal/llm"
	"shop-assistant/internal/repository"
)

// fakeLLM answers by prompt kind: classification, extraction or free text.
type fakeLLM struct {
	mu         sync.Mutex
	intent     string
	extraction string
	answer     string

	classifyErr error
	extractErr  error
	answerErr   error

	prompts   []string
	histories [][]domain.ChatMessage
}

func (f *fakeLLM) Complete(_ context.Context, prompt string, history []domain.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.histories = append(f.histories, history)
	switch {
	case strings.HasPrefix(prompt, "You classify"):
		if f.classifyErr != nil {
			return llm.FallbackReply, f.classifyErr
		}
		return f.intent, nil
	case strings.HasPrefix(prompt, "Extract"), strings.HasPrefix(prompt, "Available product categories"):
		if f.extractErr != nil {
			return llm.FallbackReply, f.extractErr
		}
		return f.extraction, nil
	default:
		if f.answerErr != nil {
			return llm.FallbackReply, f.answerErr
		}
		if f.answer == "" {
			return "ok", nil
		}
		return f.answer, nil
	}
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

// memStore is an in-memory implementation of every store with the same
// all-or-nothing semantics as the DynamoDB transactions.
type memStore struct {
	mu         sync.Mutex
	contexts   map[string]*domain.ConversationContext
	products   map[string]domain.Product
	categories []domain.Category
	cart       map[string]map[string]domain.CartLine
	purchases  map[string]domain.CartLine
	orders     map[string]domain.Order
	profiles   map[string]domain.Profile

	appendCalls int
	checkouts   int
	seq         int

	contextErr error
	cartErr    error
}

func newMemStore() *memStore {
	return &memStore{
		contexts:  map[string]*domain.ConversationContext{},
		products:  map[string]domain.Product{},
		cart:      map[string]map[string]domain.CartLine{},
		purchases: map[string]domain.CartLine{},
		orders:    map[string]domain.Order{},
		profiles:  map[string]domain.Profile{},
	}
}

func (m *memStore) tick() time.Time {
	m.seq++
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Second)
}

func (m *memStore) GetContext(_ context.Context, owner string) (*domain.ConversationContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.contextErr != nil {
		return nil, m.contextErr
	}
	cc, ok := m.contexts[owner]
	if !ok {
		return nil, nil
	}
	cp := *cc
	cp.Messages = append([]domain.Message(nil), cc.Messages...)
	return &cp, nil
}

func (m *memStore) AppendContext(_ context.Context, owner string, window int, in repository.AppendInput) (*domain.ConversationContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalls++
	cc, ok := m.contexts[owner]
	if !ok {
		cc = &domain.ConversationContext{Owner: owner}
		m.contexts[owner] = cc
	}
	cc.Push(window, in.Messages...)
	if in.LastIntent != "" {
		cc.LastIntent = in.LastIntent
	}
	if in.Cart != nil {
		cc.Cart = in.Cart
	}
	cc.Version++
	return cc, nil
}

func (m *memStore) FindProductByName(_ context.Context, pattern string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(pattern))
	var best *domain.Product
	for _, p := range m.products {
		name := strings.ToLower(p.Name)
		if q == "" || !strings.Contains(name, q) {
			continue
		}
		if name == q {
			return p, nil
		}
		if best == nil || len(p.Name) < len(best.Name) {
			best = &p
		}
	}
	if best == nil {
		return domain.Product{}, repository.ErrNotFound
	}
	return *best, nil
}

func (m *memStore) GetProduct(_ context.Context, id string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.Product{}, repository.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ProductsByCategory(_ context.Context, categoryID string, limit int) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListCategories(context.Context) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Category(nil), m.categories...), nil
}

func (m *memStore) AddToCart(_ context.Context, owner string, p domain.Product, quantity int64) (domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cartErr != nil {
		return domain.CartLine{}, m.cartErr
	}
	lines := m.cart[owner]
	if lines == nil {
		lines = map[string]domain.CartLine{}
		m.cart[owner] = lines
	}
	l, ok := lines[p.ID]
	if ok {
		l.Quantity += quantity
	} else {
		now := m.tick()
		l = domain.CartLine{
			ID: fmt.Sprintf("line-%d", m.seq), Owner: owner, ProductID: p.ID, ProductName: p.Name,
			Quantity: quantity, Price: p.Price, PriceBeforeDiscount: p.PriceBeforeDiscount,
			Status: domain.StatusInCart, CreatedAt: now, UpdatedAt: now,
		}
	}
	lines[p.ID] = l
	return l, nil
}

func (m *memStore) ListCart(_ context.Context, owner string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cartLocked(owner), nil
}

func (m *memStore) cartLocked(owner string) []domain.CartLine {
	var out []domain.CartLine
	for _, l := range m.cart[owner] {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memStore) CartLine(_ context.Context, owner, productID string) (domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.cart[owner][productID]
	if !ok {
		return domain.CartLine{}, repository.ErrNotFound
	}
	return l, nil
}

func (m *memStore) RemoveFromCart(_ context.Context, owner, productID string) (domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.cart[owner][productID]
	if !ok {
		return domain.CartLine{}, repository.ErrNotFound
	}
	delete(m.cart[owner], productID)
	return l, nil
}

func (m *memStore) SetCartQuantity(_ context.Context, owner, productID string, quantity int64) (domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.cart[owner][productID]
	if !ok {
		return domain.CartLine{}, repository.ErrNotFound
	}
	if quantity == 0 {
		delete(m.cart[owner], productID)
		return l, nil
	}
	l.Quantity = quantity
	m.cart[owner][productID] = l
	return l, nil
}

func (m *memStore) ListPurchases(_ context.Context, owner string, status domain.Status) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CartLine
	if status == domain.StatusAll || status == domain.StatusInCart {
		out = append(out, m.cartLocked(owner)...)
	}
	for _, l := range m.purchases {
		if l.Owner == owner && (status == domain.StatusAll || l.Status == status) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) Checkout(_ context.Context, order domain.Order, lines []domain.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range lines {
		cur, ok := m.cart[order.Owner][l.ProductID]
		if !ok || cur.ID != l.ID || cur.Quantity != l.Quantity {
			return repository.ErrCartChanged
		}
		if order.InventoryReserved && m.products[l.ProductID].Quantity < l.Quantity {
			return repository.ErrInsufficientStock
		}
	}
	m.checkouts++
	m.orders[order.ID] = order
	for _, l := range lines {
		delete(m.cart[order.Owner], l.ProductID)
		l.Status = domain.StatusWaitForConfirmation
		l.OrderID = order.ID
		m.purchases[l.ID] = l
		if order.InventoryReserved {
			p := m.products[l.ProductID]
			p.Quantity -= l.Quantity
			p.Sold += l.Quantity
			m.products[l.ProductID] = p
		}
	}
	return nil
}

func (m *memStore) Buy(_ context.Context, order domain.Order, lines []repository.PurchaseLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range lines {
		if l.InCart {
			cur, ok := m.cart[order.Owner][l.ProductID]
			if !ok || cur.ID != l.ID {
				return repository.ErrCartChanged
			}
		}
		if m.products[l.ProductID].Quantity < l.Quantity {
			return repository.ErrInsufficientStock
		}
	}
	order.InventoryReserved = true
	m.orders[order.ID] = order
	for _, l := range lines {
		if l.InCart {
			delete(m.cart[order.Owner], l.ProductID)
		}
		bought := l.CartLine
		bought.Owner = order.Owner
		bought.Status = domain.StatusWaitForConfirmation
		bought.OrderID = order.ID
		m.purchases[bought.ID] = bought
		p := m.products[l.ProductID]
		p.Quantity -= l.Quantity
		p.Sold += l.Quantity
		m.products[l.ProductID] = p
	}
	return nil
}

func (m *memStore) ListAllOrders(_ context.Context, status domain.Status, limit int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if status == domain.StatusAll || o.Status == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetOrder(_ context.Context, owner, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Owner != owner {
		return domain.Order{}, repository.ErrNotFound
	}
	return o, nil
}

func (m *memStore) GetOrderByID(_ context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, repository.ErrNotFound
	}
	return o, nil
}

func (m *memStore) RecentOrders(_ context.Context, owner string, limit int, filter repository.OrderFilter) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.Owner != owner {
			continue
		}
		if filter.Status != domain.StatusAll && o.Status != filter.Status {
			continue
		}
		if filter.ExcludeCancelled && o.Status == domain.StatusCancelled {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CancelOrder(_ context.Context, order domain.Order) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.orders[order.ID]
	if stored.Status != domain.StatusWaitForConfirmation {
		return domain.Order{}, repository.ErrStatusChanged
	}
	stored.Status = domain.StatusCancelled
	m.orders[order.ID] = stored
	for _, id := range stored.LineIDs {
		l := m.purchases[id]
		l.Status = domain.StatusCancelled
		m.purchases[id] = l
	}
	if stored.InventoryReserved {
		for _, it := range stored.Items {
			p := m.products[it.ProductID]
			p.Quantity += it.Quantity
			p.Sold -= it.Quantity
			m.products[it.ProductID] = p
		}
	}
	return stored, nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, order domain.Order, next domain.Status) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.orders[order.ID]
	if stored.Status != order.Status {
		return domain.Order{}, repository.ErrStatusChanged
	}
	stored.Status = next
	m.orders[order.ID] = stored
	for _, id := range stored.LineIDs {
		l := m.purchases[id]
		l.Status = next
		m.purchases[id] = l
	}
	return stored, nil
}

func (m *memStore) GetProfile(_ context.Context, userID string) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return domain.Profile{UserID: userID}, nil
	}
	return p, nil
}

func (m *memStore) UpdateProfile(_ context.Context, userID string, patch domain.ProfilePatch) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[userID]
	p.UserID = userID
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.Address != nil {
		p.Address = *patch.Address
	}
	m.profiles[userID] = p
	return p, nil
}

func (m *memStore) product(id string) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id]
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) onlyOrder(t *testing.T) domain.Order {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.orders, 1)
	for _, o := range m.orders {
		return o
	}
	return domain.Order{}
}

// seededStore has two products in one category and a complete profile for
// user u1.
func seededStore() *memStore {
	m := newMemStore()
	m.categories = []domain.Category{{ID: "c1", Name: "Phones"}, {ID: "c2", Name: "Laptops"}}
	m.products["pA"] = domain.Product{ID: "pA", Name: "Alpha Phone", CategoryID: "c1", Price: 100, PriceBeforeDiscount: 120, Quantity: 10}
	m.products["pB"] = domain.Product{ID: "pB", Name: "Beta Phone", CategoryID: "c1", Price: 50, PriceBeforeDiscount: 50, Quantity: 5}
	m.profiles["u1"] = domain.Profile{UserID: "u1", Name: "Ann", Phone: "555-0100", Address: "1 Main St"}
	return m
}

func newTestService(t *testing.T, l Completer, m *memStore) *Service {
	t.Helper()
	svc, err := NewService(l, Stores{Contexts: m, Catalog: m, Products: m, Carts: m, Orders: m, Profiles: m}, Options{ReserveInventory: true})
	require.NoError(t, err)
	var mu sync.Mutex
	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc
}

// say runs one authenticated turn for u1 with the given classifier and
// extractor answers.
func say(t *testing.T, svc *Service, l *fakeLLM, intent, extraction, prompt string) ChatOutput {
	t.Helper()
	l.mu.Lock()
	l.intent, l.extraction = intent, extraction
	l.mu.Unlock()
	out, err := svc.Chat(context.Background(), ChatInput{Prompt: prompt, UserID: "u1"})
	require.NoError(t, err)
	return out
}
