package usecase

import (
	"context"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"shop-assistant/internal/domain"
)

// classify asks the gateway for the intent of input. Any failure or unknown
// answer is IntentOther.
func (s *Service) classify(ctx context.Context, input string) domain.Intent {
	raw, err := s.llm.Complete(ctx, classifyPrompt(input), nil)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("intent classification unavailable")
		return domain.IntentOther
	}
	return parseIntent(raw)
}

// parseIntent reads the first whitespace-delimited token of raw, keeping
// only letters and underscores.
func parseIntent(raw string) domain.Intent {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return domain.IntentOther
	}
	token := strings.Map(func(r rune) rune {
		if r == '_' || (r < unicode.MaxASCII && unicode.IsLetter(r)) {
			return unicode.ToLower(r)
		}
		return -1
	}, fields[0])
	return domain.ParseIntent(token)
}
