package usecase

import (
	"context"

	"shop-assistant/internal/llm"
)

func (s *Service) updateProfile(ctx context.Context, t turn) (outcome, error) {
	ex := s.extractProfile(ctx, t)
	if ex.Upstream {
		return outcome{reply: llm.FallbackReply}, nil
	}
	if ex.Incomplete {
		return outcome{reply: replyAskProfile}, nil
	}
	p, err := s.profiles.UpdateProfile(ctx, t.identity.UserID, ex.Value)
	if err != nil {
		return outcome{}, err
	}
	return outcome{reply: replyProfileUpdated, profile: &p}, nil
}
