package usecase

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"shop-assistant/internal/domain"
)

// Extracted is the result of one entity extraction. Incomplete means the
// entity could not be determined and the caller must ask for clarification.
// Upstream additionally marks that the gateway itself failed.
type Extracted[T any] struct {
	Value      T
	Incomplete bool
	Upstream   bool
	Raw        string
}

func complete[T any](v T, raw string) Extracted[T] {
	return Extracted[T]{Value: v, Raw: raw}
}

func incomplete[T any](raw string) Extracted[T] {
	return Extracted[T]{Incomplete: true, Raw: raw}
}

// ProductQuantity is a product name with a quantity.
type ProductQuantity struct {
	Name     string
	Quantity int64
}

// Selection picks the cart lines to check out: either all of them or the
// lines of one product.
type Selection struct {
	All         bool
	ProductName string
}

func (s *Service) extract(ctx context.Context, prompt string, history []domain.ChatMessage) (string, bool) {
	raw, err := s.llm.Complete(ctx, prompt, history)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("entity extraction unavailable")
		return "", false
	}
	return raw, true
}

func (s *Service) extractAddToCart(ctx context.Context, t turn) Extracted[ProductQuantity] {
	raw, ok := s.extract(ctx, addToCartPrompt(t.prompt), t.history)
	if !ok {
		return Extracted[ProductQuantity]{Incomplete: true, Upstream: true}
	}
	return parseAddToCart(raw)
}

func (s *Service) extractQuantityChange(ctx context.Context, t turn) Extracted[ProductQuantity] {
	raw, ok := s.extract(ctx, changeQuantityPrompt(t.prompt), t.history)
	if !ok {
		return Extracted[ProductQuantity]{Incomplete: true, Upstream: true}
	}
	return parseQuantityChange(raw)
}

func (s *Service) extractSelection(ctx context.Context, t turn) Extracted[Selection] {
	raw, ok := s.extract(ctx, selectionPrompt(t.prompt), t.history)
	if !ok {
		return Extracted[Selection]{Incomplete: true, Upstream: true}
	}
	return parseSelection(raw)
}

func (s *Service) extractProfile(ctx context.Context, t turn) Extracted[domain.ProfilePatch] {
	raw, ok := s.extract(ctx, profilePrompt(t.prompt), t.history)
	if !ok {
		return Extracted[domain.ProfilePatch]{Incomplete: true, Upstream: true}
	}
	return parseProfilePatch(raw)
}

func (s *Service) extractCategoryKeyword(ctx context.Context, t turn, categories []domain.Category) Extracted[string] {
	raw, ok := s.extract(ctx, categoryKeywordPrompt(t.prompt, categories), nil)
	if !ok {
		return Extracted[string]{Incomplete: true, Upstream: true}
	}
	kw := cleanLine(raw)
	if isNone(kw) {
		return incomplete[string](raw)
	}
	return complete(kw, raw)
}

// parseAddToCart reads "<name>|<qty>". A missing, non-numeric or
// non-positive quantity defaults to 1.
func parseAddToCart(raw string) Extracted[ProductQuantity] {
	name, qtyText, _ := strings.Cut(cleanLine(raw), "|")
	name = cleanField(name)
	if isNone(name) {
		return incomplete[ProductQuantity](raw)
	}
	qty, err := strconv.ParseInt(cleanField(qtyText), 10, 64)
	if err != nil || qty <= 0 {
		qty = 1
	}
	return complete(ProductQuantity{Name: name, Quantity: qty}, raw)
}

// parseQuantityChange reads "<name>|<qty>". The quantity is required and
// must be zero or positive.
func parseQuantityChange(raw string) Extracted[ProductQuantity] {
	name, qtyText, found := strings.Cut(cleanLine(raw), "|")
	name = cleanField(name)
	if isNone(name) || !found {
		return incomplete[ProductQuantity](raw)
	}
	qty, err := strconv.ParseInt(cleanField(qtyText), 10, 64)
	if err != nil || qty < 0 {
		return incomplete[ProductQuantity](raw)
	}
	return complete(ProductQuantity{Name: name, Quantity: qty}, raw)
}

func parseSelection(raw string) Extracted[Selection] {
	v := cleanField(cleanLine(raw))
	switch {
	case isNone(v):
		return incomplete[Selection](raw)
	case strings.EqualFold(v, "all"):
		return complete(Selection{All: true}, raw)
	default:
		return complete(Selection{ProductName: v}, raw)
	}
}

var profileKeys = map[string]string{
	"name":         "name",
	"full name":    "name",
	"phone":        "phone",
	"phone number": "phone",
	"tel":          "phone",
	"address":      "address",
}

// parseProfilePatch reads "name|x, phone|y, address|z". A segment without a
// key continues the previous value, so addresses may contain commas.
func parseProfilePatch(raw string) Extracted[domain.ProfilePatch] {
	line := cleanLine(raw)
	if isNone(line) {
		return incomplete[domain.ProfilePatch](raw)
	}
	values := map[string]string{}
	last := ""
	for _, seg := range strings.Split(line, ",") {
		k, v, found := strings.Cut(seg, "|")
		field, known := profileKeys[strings.ToLower(cleanField(k))]
		if !found || !known {
			if last != "" && strings.TrimSpace(seg) != "" {
				values[last] += "," + seg
			}
			continue
		}
		values[field] = v
		last = field
	}

	var patch domain.ProfilePatch
	set := func(field string, dst **string) {
		v := cleanField(values[field])
		if v != "" && !isNone(v) {
			*dst = &v
		}
	}
	set("name", &patch.Name)
	set("phone", &patch.Phone)
	set("address", &patch.Address)
	if patch.Empty() {
		return incomplete[domain.ProfilePatch](raw)
	}
	return complete(patch, raw)
}

// cleanLine returns the first non-empty line of raw without bullets,
// quotes or surrounding whitespace.
func cleanLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		line = strings.Trim(line, "\"'`")
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

func cleanField(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "\"'`<>."))
}

func isNone(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "" || s == "none" || s == "empty" || s == "null" || s == "n/a"
}
