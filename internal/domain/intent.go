package domain

// Intent is the classified purpose of a chat turn.
type Intent string

const (
	IntentSearchProduct      Intent = "search_product"
	IntentAddToCart          Intent = "add_to_cart"
	IntentViewCart           Intent = "view_cart"
	IntentOrder              Intent = "order"
	IntentInfo               Intent = "info"
	IntentCheckOrderStatus   Intent = "check_order_status"
	IntentCancelOrder        Intent = "cancel_order"
	IntentChangeCartQuantity Intent = "change_cart_quantity"
	IntentSuggestProduct     Intent = "suggest_product"
	IntentUpdateProfile      Intent = "update_profile"
	IntentOther              Intent = "other"
)

var knownIntents = map[Intent]bool{
	IntentSearchProduct:      false,
	IntentAddToCart:          true,
	IntentViewCart:           true,
	IntentOrder:              true,
	IntentInfo:               false,
	IntentCheckOrderStatus:   true,
	IntentCancelOrder:        true,
	IntentChangeCartQuantity: true,
	IntentSuggestProduct:     false,
	IntentUpdateProfile:      true,
	IntentOther:              false,
}

// ParseIntent maps a token to a known intent. Anything outside the closed
// set is IntentOther.
func ParseIntent(token string) Intent {
	in := Intent(token)
	if _, ok := knownIntents[in]; ok {
		return in
	}
	return IntentOther
}

// RequiresLogin reports whether the intent touches user-owned records.
func (i Intent) RequiresLogin() bool {
	return knownIntents[i]
}
