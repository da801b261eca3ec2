package domain

import "time"

// TaskKind selects the prompt shape and output contract for a model call
type TaskKind string

const (
	TaskConversational TaskKind = "conversational"
	TaskTextSearch     TaskKind = "text_search"
	TaskImageSearch    TaskKind = "image_search"
	TaskRecommendation TaskKind = "recommendation"
)

// PolicySnippet is a titled piece of business information (shipping, returns, ...)
type PolicySnippet struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// StoreContext carries the store facts rendered into conversational prompts
type StoreContext struct {
	Name     string          `json:"name"`
	Currency string          `json:"currency"`
	Email    string          `json:"email"`
	Policies []PolicySnippet `json:"policies,omitempty"`
}

// DisplayName returns the store name or a neutral default
func (s StoreContext) DisplayName() string {
	if s.Name == "" {
		return "our store"
	}
	return s.Name
}

// CurrencyCode returns the store currency or USD
func (s StoreContext) CurrencyCode() string {
	if s.Currency == "" {
		return "USD"
	}
	return s.Currency
}

// ContactEmail returns the store email or a placeholder
func (s StoreContext) ContactEmail() string {
	if s.Email == "" {
		return "Not provided"
	}
	return s.Email
}

// DiscoveryTurn is one shopper turn handed to the discovery engine
type DiscoveryTurn struct {
	Text    string
	Image   *Image
	Catalog []Product
	Store   StoreContext
	History []ConversationTurn
	Limit   int
}

// RecommendationRequest asks for personalised suggestions from preferences and history
type RecommendationRequest struct {
	Preferences string
	Catalog     []Product
	Store       StoreContext
	History     []ConversationTurn
	Limit       int
}

// DiscoveryResult is the single output shape of the discovery engine,
// regardless of whether the model, an exact match, or a fallback produced it.
type DiscoveryResult struct {
	Reply       string    `json:"reply"`
	Products    []Product `json:"products"`
	CartOffer   bool      `json:"cartOffer"`
	Description string    `json:"description,omitempty"`
}

// ParsedModelOutput is the validated structure extracted from model text.
// It never outlives the request that produced it.
type ParsedModelOutput struct {
	ProductIDs  []string
	Explanation string
	Description string
	Text        string // Free-text reply for conversational calls
}

// AnalyticsEvent is a single tracked interaction
type AnalyticsEvent struct {
	StoreID   string                 `json:"storeId"`
	SessionID string                 `json:"sessionId,omitempty"`
	EventType string                 `json:"eventType"`
	EventData map[string]interface{} `json:"eventData,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Analytics event types
const (
	EventChatMessage        = "chat_message"
	EventProductRecommended = "product_recommended"
	EventDirectOffer        = "direct_offer"
	EventAIFallback         = "ai_fallback"
	EventAddToCart          = "add_to_cart"
)
