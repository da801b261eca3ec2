package usecase

import (
	"fmt"
	"strings"

	"github.com/chatcart/backend/internal/domain"
)

// Canned replies used when the model cannot be reached or its output is unusable
const (
	shippingReply = "I'd be happy to help with shipping information! Please check our shipping policy for detailed information, or feel free to ask specific questions about delivery times and costs."
	returnsReply  = "For returns and refunds, please refer to our return policy. If you have specific questions about returning an item, I'm here to help!"
	sizingReply   = "For sizing information, please check the product details page where you'll find our size chart and fitting guide."
	genericReply  = "I'm here to help you find what you're looking for! Could you tell me more about what you need, or would you like me to show you some of our popular products?"

	imageParseFallbackReply     = "I can see your image. Here are some products that might interest you."
	imageTransportFallbackReply = "I received your image. Here are some popular products you might like."
	recommendationFallbackReply = "Here are some of our popular products that customers love!"
)

const defaultFallbackCount = 3

// FailureReason tells the fallback resolver why the model result was unusable
type FailureReason string

const (
	FailureTransport FailureReason = "transport"
	FailureContract  FailureReason = "contract"
)

// keywordReplies map lowercased keywords in shopper text to a canned policy answer.
// Rules are checked in order.
var keywordReplies = []struct {
	keywords []string
	reply    string
}{
	{keywords: []string{"shipping"}, reply: shippingReply},
	{keywords: []string{"return", "refund"}, reply: returnsReply},
	{keywords: []string{"size", "sizing"}, reply: sizingReply},
}

// FallbackResolver produces deterministic, network-free substitute results.
// Every method is total and never returns an error.
type FallbackResolver struct {
	fixedCount int
}

// NewFallbackResolver creates a fallback resolver returning fixedCount products
// for image and recommendation fallbacks (3 when fixedCount <= 0).
func NewFallbackResolver(fixedCount int) *FallbackResolver {
	if fixedCount <= 0 {
		fixedCount = defaultFallbackCount
	}
	return &FallbackResolver{fixedCount: fixedCount}
}

// TextSearch does a case-insensitive substring search over title, description and tags
func (f *FallbackResolver) TextSearch(query string, catalog []domain.Product, limit int) *domain.DiscoveryResult {
	needle := strings.ToLower(strings.TrimSpace(query))
	matched := []domain.Product{}

	if needle != "" && limit > 0 {
		for _, product := range catalog {
			if productContains(product, needle) {
				matched = append(matched, product)
				if len(matched) == limit {
					break
				}
			}
		}
	}

	reply := fmt.Sprintf("No exact matches found for \"%s\". Here are some popular products you might like.", query)
	if len(matched) > 0 {
		reply = fmt.Sprintf("Found %d products matching \"%s\"", len(matched), query)
	}

	return &domain.DiscoveryResult{Reply: reply, Products: matched}
}

// Image returns the head of the catalog with a generic reply worded by reason
func (f *FallbackResolver) Image(catalog []domain.Product, reason FailureReason) *domain.DiscoveryResult {
	reply := imageTransportFallbackReply
	if reason == FailureContract {
		reply = imageParseFallbackReply
	}
	return &domain.DiscoveryResult{
		Reply:       reply,
		Products:    f.head(catalog),
		Description: reply,
	}
}

// Conversational picks a canned policy reply from keywords in text
func (f *FallbackResolver) Conversational(text string) *domain.DiscoveryResult {
	return &domain.DiscoveryResult{
		Reply:    f.cannedReply(text),
		Products: []domain.Product{},
	}
}

// Recommendation returns the head of the catalog as popular products
func (f *FallbackResolver) Recommendation(catalog []domain.Product) *domain.DiscoveryResult {
	return &domain.DiscoveryResult{
		Reply:    recommendationFallbackReply,
		Products: f.head(catalog),
	}
}

func (f *FallbackResolver) head(catalog []domain.Product) []domain.Product {
	n := f.fixedCount
	if len(catalog) < n {
		n = len(catalog)
	}
	products := make([]domain.Product, n)
	copy(products, catalog[:n])
	return products
}

// PolicyReply returns the canned policy answer when text mentions shipping, returns or sizing
func (f *FallbackResolver) PolicyReply(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, rule := range keywordReplies {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.reply, true
			}
		}
	}
	return "", false
}

func (f *FallbackResolver) cannedReply(text string) string {
	if reply, ok := f.PolicyReply(text); ok {
		return reply
	}
	return genericReply
}

func productContains(p domain.Product, needle string) bool {
	if strings.Contains(strings.ToLower(p.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(p.Description), needle) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}
