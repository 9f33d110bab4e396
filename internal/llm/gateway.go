package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"shop-assistant/internal/domain"
)

// FallbackReply is returned in place of a completion whenever the provider
// cannot be reached or answers with nothing usable.
const FallbackReply = "Sorry, I could not complete your request right now. Please try again later."

const (
	defaultHistoryLimit = 5
	defaultTimeout      = 15 * time.Second
	defaultSystemPrompt = "You are a friendly, concise shopping assistant for an online store."
)

// ErrUnavailable marks a completion that was replaced by FallbackReply.
var ErrUnavailable = errors.New("llm: completion unavailable")

// Provider is one text-completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Config tunes a Gateway. Zero values fall back to defaults.
type Config struct {
	HistoryLimit    int
	Timeout         time.Duration
	Language        string
	SystemPrompt    string
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Gateway is the provider-agnostic completion entry point. It truncates the
// history, bounds each call with a timeout and trips a circuit breaker on
// repeated failures.
type Gateway struct {
	provider Provider
	cfg      Config
	breaker  *gobreaker.CircuitBreaker
	log      zerolog.Logger
}

// New creates a Gateway around provider.
func New(provider Provider, cfg Config, log zerolog.Logger) (*Gateway, error) {
	if provider == nil {
		return nil, errors.New("llm: provider must not be nil")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	log = log.With().Str("component", "llm").Str("provider", provider.Name()).Logger()

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-" + provider.Name(),
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return &Gateway{provider: provider, cfg: cfg, breaker: breaker, log: log}, nil
}

// Complete sends prompt with the most recent history turns. On failure the
// returned text is FallbackReply and the error wraps ErrUnavailable.
func (g *Gateway) Complete(ctx context.Context, prompt string, history []domain.ChatMessage) (string, error) {
	messages := g.buildMessages(prompt, history)

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	out, err := g.breaker.Execute(func() (interface{}, error) {
		text, err := g.provider.Complete(callCtx, messages)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, errors.New("empty completion")
		}
		return text, nil
	})
	if err != nil {
		ev := g.log.Warn().Err(err).Dur("elapsed", time.Since(start)).Int("history", len(messages)-2)
		var sc httpStatusCoder
		if errors.As(err, &sc) {
			ev = ev.Int("status", sc.HTTPStatusCode())
		}
		ev.Msg("completion failed, using fallback reply")
		return FallbackReply, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return strings.TrimSpace(out.(string)), nil
}

func (g *Gateway) buildMessages(prompt string, history []domain.ChatMessage) []domain.ChatMessage {
	history = Truncate(history, g.cfg.HistoryLimit)
	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: g.cfg.SystemPrompt})
	messages = append(messages, history...)

	if lang := strings.TrimSpace(g.cfg.Language); lang != "" {
		prompt = prompt + "\nAlways answer in " + lang + "."
	}
	return append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: prompt})
}

// Truncate keeps the last n entries of history.
func Truncate(history []domain.ChatMessage, n int) []domain.ChatMessage {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]domain.ChatMessage, len(history))
	copy(out, history)
	return out
}
