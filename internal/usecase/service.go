package usecase

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"shop-assistant/internal/domain"
	"shop-assistant/internal/repository"
)

const (
	defaultMaxPrompt       = 500
	defaultSuggestionLimit = 5
	defaultCategoryLimit   = 20
	recentOrderLimit       = 2
)

// Completer is the language-model gateway. On failure it still returns a
// displayable fallback text alongside the error.
type Completer interface {
	Complete(ctx context.Context, prompt string, history []domain.ChatMessage) (string, error)
}

type ContextStore interface {
	GetContext(ctx context.Context, owner string) (*domain.ConversationContext, error)
	AppendContext(ctx context.Context, owner string, window int, in repository.AppendInput) (*domain.ConversationContext, error)
}

// CatalogReader serves browsing and suggestions and may be cached.
type CatalogReader interface {
	ProductsByCategory(ctx context.Context, categoryID string, limit int) ([]domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// ProductResolver reads current product rows. Anything that snapshots a price
// or checks stock before a write goes through it, never through a cache.
type ProductResolver interface {
	FindProductByName(ctx context.Context, pattern string) (domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

type CartStore interface {
	AddToCart(ctx context.Context, owner string, p domain.Product, quantity int64) (domain.CartLine, error)
	CartLine(ctx context.Context, owner, productID string) (domain.CartLine, error)
	ListCart(ctx context.Context, owner string) ([]domain.CartLine, error)
	SetCartQuantity(ctx context.Context, owner, productID string, quantity int64) (domain.CartLine, error)
	RemoveFromCart(ctx context.Context, owner, productID string) (domain.CartLine, error)
	ListPurchases(ctx context.Context, owner string, status domain.Status) ([]domain.CartLine, error)
}

type OrderStore interface {
	Checkout(ctx context.Context, order domain.Order, lines []domain.CartLine) error
	Buy(ctx context.Context, order domain.Order, lines []repository.PurchaseLine) error
	GetOrder(ctx context.Context, owner, id string) (domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (domain.Order, error)
	RecentOrders(ctx context.Context, owner string, limit int, filter repository.OrderFilter) ([]domain.Order, error)
	ListAllOrders(ctx context.Context, status domain.Status, limit int) ([]domain.Order, error)
	CancelOrder(ctx context.Context, order domain.Order) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, order domain.Order, next domain.Status) (domain.Order, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (domain.Profile, error)
}

// Stores groups the persistence collaborators of a Service.
type Stores struct {
	Contexts ContextStore
	Catalog  CatalogReader
	Products ProductResolver
	Carts    CartStore
	Orders   OrderStore
	Profiles ProfileStore
}

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	ContextWindow    int
	MaxPromptLength  int
	ReserveInventory bool
}

// Service runs chat turns and the order lifecycle operations.
type Service struct {
	llm      Completer
	contexts ContextStore
	catalog  CatalogReader
	products ProductResolver
	carts    CartStore
	orders   OrderStore
	profiles ProfileStore
	opts     Options
	now      func() time.Time
}

func NewService(llm Completer, stores Stores, opts Options) (*Service, error) {
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if stores.Contexts == nil || stores.Catalog == nil || stores.Products == nil || stores.Carts == nil || stores.Orders == nil || stores.Profiles == nil {
		return nil, errors.New("usecase: every store must be set")
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = domain.DefaultContextWindow
	}
	if opts.MaxPromptLength <= 0 {
		opts.MaxPromptLength = defaultMaxPrompt
	}
	return &Service{
		llm:      llm,
		contexts: stores.Contexts,
		catalog:  stores.Catalog,
		products: stores.Products,
		carts:    stores.Carts,
		orders:   stores.Orders,
		profiles: stores.Profiles,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

var newUUID = uuid.NewString

// newOrderID returns 24 lower-case hex characters: the creation time in unix
// seconds followed by 8 random bytes, so ids sort by creation time.
var newOrderID = func(now time.Time) string {
	var b [12]byte
	binary.BigEndian.PutUint32(b[:4], uint32(now.Unix()))
	r := uuid.New()
	copy(b[4:], r[:8])
	return hex.EncodeToString(b[:])
}
