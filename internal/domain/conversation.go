package domain

import "time"

// DefaultContextWindow is the number of messages kept per identity.
const DefaultContextWindow = 10

// Message is one entry of a conversation context.
type Message struct {
	Role              string              `json:"role" dynamodbav:"role"`
	Content           string              `json:"content" dynamodbav:"content"`
	Timestamp         time.Time           `json:"timestamp" dynamodbav:"timestamp"`
	Orders            []OrderSummary      `json:"orders,omitempty" dynamodbav:"orders,omitempty"`
	Cart              []CartItemView      `json:"cart,omitempty" dynamodbav:"cart,omitempty"`
	SuggestedProducts []ProductSuggestion `json:"suggestedProducts,omitempty" dynamodbav:"suggestedProducts,omitempty"`
}

// ConversationContext is the bounded message log owned by one identity.
type ConversationContext struct {
	PK         string         `json:"-" dynamodbav:"PK"`
	SK         string         `json:"-" dynamodbav:"SK"`
	Owner      string         `json:"owner" dynamodbav:"owner"`
	Messages   []Message      `json:"messages" dynamodbav:"messages"`
	LastIntent Intent         `json:"lastIntent,omitempty" dynamodbav:"lastIntent,omitempty"`
	Cart       []CartItemView `json:"cart,omitempty" dynamodbav:"cart,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt" dynamodbav:"updatedAt"`
	Version    int64          `json:"-" dynamodbav:"version"`
	TTL        int64          `json:"-" dynamodbav:"ttl"`
}

// Push appends msgs and evicts the oldest entries beyond window.
func (c *ConversationContext) Push(window int, msgs ...Message) {
	if window <= 0 {
		window = DefaultContextWindow
	}
	c.Messages = append(c.Messages, msgs...)
	if over := len(c.Messages) - window; over > 0 {
		kept := make([]Message, window)
		copy(kept, c.Messages[over:])
		c.Messages = kept
	}
}

// Recent returns the last n messages as chat history, oldest first.
func (c *ConversationContext) Recent(n int) []ChatMessage {
	if c == nil || n <= 0 {
		return nil
	}
	msgs := c.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		role := RoleUser
		if m.Role == RoleAssistant {
			role = RoleAssistant
		}
		out = append(out, ChatMessage{Role: role, Content: m.Content})
	}
	return out
}
