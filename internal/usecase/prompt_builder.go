package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chatcart/backend/internal/domain"
)

// PromptRequest carries everything needed to render one model prompt
type PromptRequest struct {
	Kind    domain.TaskKind
	Catalog []domain.Product
	Store   domain.StoreContext
	History []domain.ConversationTurn
	Query   string
	Limit   int
	Image   *domain.Image
}

// Prompt is a rendered instruction plus the optional image payload sent beside it
type Prompt struct {
	Kind  domain.TaskKind
	Text  string
	Image *domain.Image
}

// PromptBuilder renders catalog, store context and history into task prompts
type PromptBuilder struct{}

// NewPromptBuilder creates a new prompt builder
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// Build renders the prompt for req.Kind. Unknown kinds render as conversational.
func (b *PromptBuilder) Build(req PromptRequest) Prompt {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultResultLimit
	}
	catalog := domain.ActiveProducts(req.Catalog)

	switch req.Kind {
	case domain.TaskTextSearch:
		return Prompt{Kind: req.Kind, Text: b.textSearch(req.Query, catalog, req.Store, limit)}
	case domain.TaskImageSearch:
		return Prompt{Kind: req.Kind, Text: b.imageSearch(req.Query, catalog, req.Store, limit), Image: req.Image}
	case domain.TaskRecommendation:
		return Prompt{Kind: req.Kind, Text: b.recommendation(req.Query, catalog, req.Store, req.History, limit)}
	default:
		return Prompt{Kind: domain.TaskConversational, Text: b.conversational(req.Query, req.Store, req.History)}
	}
}

func (b *PromptBuilder) conversational(query string, store domain.StoreContext, history []domain.ConversationTurn) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are a helpful AI shopping assistant for %s.\n\n", store.DisplayName())
	sb.WriteString("Your role is to:\n")
	sb.WriteString("- Help customers find products they're looking for\n")
	sb.WriteString("- Answer questions about products, shipping, returns, and store policies\n")
	sb.WriteString("- Provide personalized recommendations\n")
	sb.WriteString("- Assist with adding items to cart\n")
	sb.WriteString("- Be friendly, helpful, and knowledgeable\n\n")

	sb.WriteString("Store Information:\n")
	fmt.Fprintf(&sb, "- Store Name: %s\n", store.DisplayName())
	fmt.Fprintf(&sb, "- Currency: %s\n", store.CurrencyCode())
	fmt.Fprintf(&sb, "- Email: %s\n", store.ContactEmail())

	if len(store.Policies) > 0 {
		sb.WriteString("\nBusiness Information:\n")
		for _, policy := range store.Policies {
			fmt.Fprintf(&sb, "- %s: %s\n", policy.Title, policy.Content)
		}
	}

	sb.WriteString("\nGuidelines:\n")
	sb.WriteString("- Always be helpful and friendly\n")
	sb.WriteString("- If you don't know something, say so honestly\n")
	sb.WriteString("- When recommending products, explain why they're a good fit\n")
	sb.WriteString("- Keep responses concise but informative\n")
	sb.WriteString("- If a customer wants to add something to cart, confirm the product and guide them through the process\n")
	sb.WriteString("- For shipping, returns, or policy questions, refer to the business information provided above\n")

	if len(history) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		writeHistory(&sb, history)
	}

	fmt.Fprintf(&sb, "\nCustomer: %s", query)
	return sb.String()
}

func (b *PromptBuilder) textSearch(query string, catalog []domain.Product, store domain.StoreContext, limit int) string {
	var sb strings.Builder

	sb.WriteString("You are a product search assistant for an e-commerce store.\n\n")
	sb.WriteString("Available products:\n")
	writeCatalog(&sb, catalog, store.CurrencyCode())

	fmt.Fprintf(&sb, "\nCustomer search query: %q\n\n", query)
	sb.WriteString("Please:\n")
	sb.WriteString("1. Find the most relevant products that match the customer's query\n")
	fmt.Fprintf(&sb, "2. Return the product IDs of the best matches (maximum %d products)\n", limit)
	sb.WriteString("3. Provide a brief explanation of why these products match\n\n")

	writeContract(&sb, `{
  "productIds": [array of product IDs],
  "explanation": "Brief explanation of the matches"
}`)
	return sb.String()
}

func (b *PromptBuilder) imageSearch(query string, catalog []domain.Product, store domain.StoreContext, limit int) string {
	var sb strings.Builder

	sb.WriteString("Analyze this image and find similar products from our catalog.\n\n")
	sb.WriteString("Available products:\n")
	writeCatalog(&sb, catalog, store.CurrencyCode())

	if strings.TrimSpace(query) != "" {
		fmt.Fprintf(&sb, "\nCustomer note: %q\n", query)
	}

	sb.WriteString("\nPlease:\n")
	sb.WriteString("1. Describe what you see in the image\n")
	fmt.Fprintf(&sb, "2. Find products that match or are similar to items in the image (maximum %d products)\n", limit)
	sb.WriteString("3. Explain why these products are relevant\n\n")

	writeContract(&sb, `{
  "description": "Description of what you see in the image",
  "productIds": [array of matching product IDs],
  "explanation": "Why these products match the image"
}`)
	return sb.String()
}

func (b *PromptBuilder) recommendation(preferences string, catalog []domain.Product, store domain.StoreContext, history []domain.ConversationTurn, limit int) string {
	var sb strings.Builder

	sb.WriteString("You are a personal shopping assistant. Based on the customer's preferences and conversation history, recommend the best products.\n\n")
	fmt.Fprintf(&sb, "Customer preferences: %q\n\n", preferences)

	sb.WriteString("Conversation history:\n")
	writeHistory(&sb, history)

	sb.WriteString("\nAvailable products:\n")
	writeCatalog(&sb, catalog, store.CurrencyCode())

	minimum := 3
	if limit < minimum {
		minimum = limit
	}
	fmt.Fprintf(&sb, "\nPlease recommend %d-%d products that best match the customer's needs and explain why.\n\n", minimum, limit)

	writeContract(&sb, `{
  "productIds": [array of recommended product IDs],
  "explanation": "Personalized explanation of why these products are recommended"
}`)
	return sb.String()
}

func writeCatalog(sb *strings.Builder, catalog []domain.Product, currency string) {
	if len(catalog) == 0 {
		sb.WriteString("(no products available)\n")
		return
	}

	for _, p := range catalog {
		fmt.Fprintf(sb, "- ID: %s", p.ID)
		if p.ExternalID != 0 {
			fmt.Fprintf(sb, ", External ID: %d", p.ExternalID)
		}
		fmt.Fprintf(sb, ", Title: %s", p.Title)

		description := strings.TrimSpace(p.Description)
		if description == "" {
			description = "No description"
		}
		fmt.Fprintf(sb, ", Description: %s", description)

		if len(p.Tags) > 0 {
			fmt.Fprintf(sb, ", Tags: %s", strings.Join(p.Tags, ", "))
		}
		fmt.Fprintf(sb, ", Price: %s\n", FormatPrice(p.Price, currency))
	}
}

func writeHistory(sb *strings.Builder, history []domain.ConversationTurn) {
	for _, turn := range history {
		fmt.Fprintf(sb, "%s: %s\n", turn.Role, turn.Content)
	}
}

func writeContract(sb *strings.Builder, shape string) {
	sb.WriteString("Respond with ONLY a single JSON object in this exact format, with no other text, keys or markdown:\n")
	sb.WriteString(shape)
	sb.WriteString("\n")
}

// FormatPrice renders a price range in the store currency, "N/A" when absent
func FormatPrice(price *domain.PriceRange, currency string) string {
	if price == nil || price.Min == nil {
		return "N/A"
	}
	if currency == "" {
		currency = "USD"
	}

	formatted := formatAmount(*price.Min, currency)
	if price.Max != nil && *price.Max > *price.Min {
		formatted += " - " + formatAmount(*price.Max, currency)
	}
	return formatted
}

func formatAmount(amount float64, currency string) string {
	value := strconv.FormatFloat(amount, 'f', 2, 64)
	if strings.EqualFold(currency, "USD") {
		return "$" + value
	}
	return value + " " + strings.ToUpper(currency)
}
