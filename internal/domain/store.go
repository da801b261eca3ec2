package domain

import "time"

// Store is the public profile of a merchant store
type Store struct {
	ID         string `json:"id"`
	ShopDomain string `json:"shopDomain"`
	Name       string `json:"name"`
	Currency   string `json:"currency"`
	Email      string `json:"email,omitempty"`
}

// TrainingSnippet is a piece of merchant-authored business information.
// Active snippets become the PolicySnippets rendered into prompts.
type TrainingSnippet struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"storeId"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	IsActive  bool      `json:"isActive"`
	Priority  int       `json:"priority"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AnalyticsSummary aggregates a store's activity since a point in time
type AnalyticsSummary struct {
	StoreID       string         `json:"storeId"`
	Since         time.Time      `json:"since"`
	Conversations int            `json:"conversations"`
	Messages      int            `json:"messages"`
	Events        map[string]int `json:"events"`
}
