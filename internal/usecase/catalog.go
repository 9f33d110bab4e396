package usecase

import (
	"context"
	"strings"

	"shop-assistant/internal/domain"
	"shop-assistant/internal/llm"
)

// mentionedCategory returns the category whose name appears in input,
// preferring the longest name.
func mentionedCategory(input string, categories []domain.Category) (domain.Category, bool) {
	lower := strings.ToLower(input)
	var best domain.Category
	found := false
	for _, c := range categories {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || !strings.Contains(lower, name) {
			continue
		}
		if !found || len(name) > len(best.Name) {
			best, found = c, true
		}
	}
	return best, found
}

// matchCategory returns the first category whose name contains keyword.
func matchCategory(keyword string, categories []domain.Category) (domain.Category, bool) {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return domain.Category{}, false
	}
	for _, c := range categories {
		if strings.Contains(strings.ToLower(c.Name), kw) {
			return c, true
		}
	}
	return domain.Category{}, false
}

// browseCatalog answers product searches and store questions from catalog
// data only: the products of a mentioned category, or else the category list.
func (s *Service) browseCatalog(ctx context.Context, t turn) (outcome, error) {
	categories, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return outcome{}, err
	}
	if len(categories) == 0 {
		return outcome{reply: replyNoCategories}, nil
	}

	cat, ok := mentionedCategory(t.prompt, categories)
	if !ok {
		prompt := constrainedPrompt("Product categories the store sells", categoryNames(categories), t.prompt,
			"If the customer asks about a specific product, ask them to pick a category first.")
		reply, _ := s.llm.Complete(ctx, prompt, t.history)
		return outcome{reply: reply}, nil
	}

	products, err := s.catalog.ProductsByCategory(ctx, cat.ID, defaultCategoryLimit)
	if err != nil {
		return outcome{}, err
	}
	if len(products) == 0 {
		return outcome{reply: replyEmptyCategory(cat)}, nil
	}
	prompt := constrainedPrompt("Products in the "+cat.Name+" category", productFacts(products), t.prompt, "")
	reply, _ := s.llm.Complete(ctx, prompt, t.history)
	return outcome{reply: reply, suggestions: suggestions(products)}, nil
}

// suggestProducts picks a category from the request and offers a few of its
// products, phrased from that list only.
func (s *Service) suggestProducts(ctx context.Context, t turn) (outcome, error) {
	categories, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return outcome{}, err
	}
	if len(categories) == 0 {
		return outcome{reply: replyNoCategories}, nil
	}

	ex := s.extractCategoryKeyword(ctx, t, categories)
	if ex.Upstream {
		return outcome{reply: llm.FallbackReply}, nil
	}
	cat, ok := matchCategory(ex.Value, categories)
	if ex.Incomplete || !ok {
		return outcome{reply: replyNoSuggestion}, nil
	}

	products, err := s.catalog.ProductsByCategory(ctx, cat.ID, defaultSuggestionLimit)
	if err != nil {
		return outcome{}, err
	}
	if len(products) == 0 {
		return outcome{reply: replyEmptyCategory(cat)}, nil
	}
	prompt := constrainedPrompt("Products matching the customer's request", productFacts(products), t.prompt,
		"Recommend from these products in a natural tone.")
	reply, _ := s.llm.Complete(ctx, prompt, t.history)
	return outcome{reply: reply, suggestions: suggestions(products)}, nil
}
