package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"shop-assistant/internal/domain"
	"shop-assistant/internal/repository"
)

type ChatInput struct {
	Prompt    string
	UserID    string
	SessionID string
}

type ChatOutput struct {
	Reply             string                     `json:"reply"`
	Intent            domain.Intent              `json:"intent"`
	SessionID         string                     `json:"sessionId,omitempty"`
	NewSession        bool                       `json:"-"`
	Orders            []domain.OrderSummary      `json:"orders,omitempty"`
	SuggestedProducts []domain.ProductSuggestion `json:"suggestedProducts,omitempty"`
	Cart              []domain.CartItemView      `json:"cart,omitempty"`
	Profile           *domain.Profile            `json:"profile,omitempty"`
}

// turn is one classified chat message on its way through the orchestrator.
type turn struct {
	identity domain.Identity
	owner    string
	intent   domain.Intent
	prompt   string
	history  []domain.ChatMessage
}

// outcome is what an intent handler produced. A non-nil cart replaces the
// cart snapshot kept in the conversation context.
type outcome struct {
	reply       string
	orders      []domain.OrderSummary
	suggestions []domain.ProductSuggestion
	cart        []domain.CartItemView
	profile     *domain.Profile
}

// Chat handles one inbound message: classify, check login, extract, apply
// and record the exchange in the conversation context.
func (s *Service) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_prompt", nil)
	}
	if utf8.RuneCountInString(prompt) > s.opts.MaxPromptLength {
		return ChatOutput{}, newError(ErrorInvalidInput, "prompt_too_long", nil)
	}

	id := domain.Identity{UserID: strings.TrimSpace(in.UserID), SessionID: strings.TrimSpace(in.SessionID)}
	newSession := false
	if id.SessionID == "" && !id.Authenticated() {
		id.SessionID = newUUID()
		newSession = true
	}
	owner := id.Key()

	var (
		intent domain.Intent
		cc     *domain.ConversationContext
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intent = s.classify(gctx, prompt)
		return nil
	})
	g.Go(func() error {
		var err error
		cc, err = s.contexts.GetContext(gctx, owner)
		return err
	})
	if err := g.Wait(); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "context_read_error", err)
	}

	log := zerolog.Ctx(ctx).With().Str("intent", string(intent)).Bool("authenticated", id.Authenticated()).Logger()
	if intent.RequiresLogin() && !id.Authenticated() {
		log.Info().Msg("intent requires login")
		return ChatOutput{}, newError(ErrorUnauthorized, "login_required", nil)
	}

	t := turn{
		identity: id,
		owner:    owner,
		intent:   intent,
		prompt:   prompt,
		history:  cc.Recent(s.opts.ContextWindow),
	}
	res, err := s.dispatch(log.WithContext(ctx), t)
	if err != nil {
		log.Error().Err(err).Msg("chat turn failed")
		return ChatOutput{}, newError(ErrorInternal, "store_error", err)
	}

	now := s.now()
	_, err = s.contexts.AppendContext(ctx, owner, s.opts.ContextWindow, repository.AppendInput{
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: prompt, Timestamp: now},
			{
				Role:              domain.RoleAssistant,
				Content:           res.reply,
				Timestamp:         now,
				Orders:            res.orders,
				Cart:              res.cart,
				SuggestedProducts: res.suggestions,
			},
		},
		LastIntent: intent,
		Cart:       res.cart,
	})
	if err != nil {
		// The turn's effects are already committed; answer anyway.
		log.Error().Err(err).Msg("failed to record conversation turn")
	}

	out := ChatOutput{
		Reply:             res.reply,
		Intent:            intent,
		NewSession:        newSession,
		Orders:            res.orders,
		SuggestedProducts: res.suggestions,
		Cart:              res.cart,
		Profile:           res.profile,
	}
	if !id.Authenticated() {
		out.SessionID = id.SessionID
	} else {
		out.SessionID = strings.TrimSpace(in.SessionID)
	}
	return out, nil
}

func (s *Service) dispatch(ctx context.Context, t turn) (outcome, error) {
	switch t.intent {
	case domain.IntentAddToCart:
		return s.addToCart(ctx, t)
	case domain.IntentViewCart:
		return s.viewCart(ctx, t)
	case domain.IntentChangeCartQuantity:
		return s.changeCartQuantity(ctx, t)
	case domain.IntentCheckOrderStatus:
		return s.checkOrderStatus(ctx, t)
	case domain.IntentOrder:
		return s.checkout(ctx, t)
	case domain.IntentCancelOrder:
		return s.cancelOrder(ctx, t)
	case domain.IntentUpdateProfile:
		return s.updateProfile(ctx, t)
	case domain.IntentSearchProduct, domain.IntentInfo:
		return s.browseCatalog(ctx, t)
	case domain.IntentSuggestProduct:
		return s.suggestProducts(ctx, t)
	default:
		return s.converse(ctx, t)
	}
}

// converse forwards the message with the recent history and no constraint.
func (s *Service) converse(ctx context.Context, t turn) (outcome, error) {
	reply, _ := s.llm.Complete(ctx, t.prompt, t.history)
	return outcome{reply: reply}, nil
}

// History returns the stored messages of the identity, oldest first.
func (s *Service) History(ctx context.Context, id domain.Identity) ([]domain.Message, error) {
	if id.IsZero() {
		return []domain.Message{}, nil
	}
	cc, err := s.contexts.GetContext(ctx, id.Key())
	if err != nil {
		return nil, newError(ErrorInternal, "context_read_error", err)
	}
	if cc == nil || cc.Messages == nil {
		return []domain.Message{}, nil
	}
	return cc.Messages, nil
}
