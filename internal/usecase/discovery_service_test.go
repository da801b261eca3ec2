package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/chatcart/backend/internal/domain"
	"github.com/chatcart/backend/internal/platform/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelCall records a single call made to MockModelClient
type modelCall struct {
	prompt string
	image  *domain.Image
}

// MockModelClient is a mock implementation of domain.ModelClient.
// Responses are served in order; the last one repeats.
type MockModelClient struct {
	responses []mockModelResponse
	calls     []modelCall
	panicWith interface{}
}

type mockModelResponse struct {
	text string
	err  error
}

func newMockModel(responses ...mockModelResponse) *MockModelClient {
	return &MockModelClient{responses: responses}
}

func reply(text string) mockModelResponse {
	return mockModelResponse{text: text}
}

func failure(err error) mockModelResponse {
	return mockModelResponse{err: err}
}

func (m *MockModelClient) Complete(ctx context.Context, prompt string, image *domain.Image) (string, error) {
	m.calls = append(m.calls, modelCall{prompt: prompt, image: image})
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	if len(m.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	idx := len(m.calls) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	r := m.responses[idx]
	return r.text, r.err
}

var errTransport = fmt.Errorf("%w: connection refused", domain.ErrModelUnavailable)

func newTestDiscoveryService(model domain.ModelClient) *DiscoveryService {
	return NewDiscoveryService(model, DiscoveryConfig{}, nil)
}

func TestNewDiscoveryService_Defaults(t *testing.T) {
	s := NewDiscoveryService(nil, DiscoveryConfig{ResultLimit: 50, MaxLimit: 8}, nil)

	assert.Equal(t, 8, s.config.ResultLimit)
	assert.Equal(t, 8, s.config.MaxLimit)
	assert.Equal(t, defaultHistoryWindow, s.config.HistoryWindow)
	assert.Equal(t, 8, s.limit(0))
	assert.Equal(t, 3, s.limit(3))
	assert.Equal(t, 8, s.limit(20))
}

func TestDiscover_ExactMatchSkipsModel(t *testing.T) {
	model := newMockModel(reply(`{"productIds": [], "explanation": "unused"}`))
	s := newTestDiscoveryService(model)

	catalog := tenProductCatalog()
	catalog[3].Price = price(49, 49)

	outcome := s.ResolveTurn(context.Background(), domain.DiscoveryTurn{Text: "blue hoodie", Catalog: catalog})
	result := outcome.Result

	require.Len(t, result.Products, 1)
	assert.Equal(t, "4", result.Products[0].ID)
	assert.True(t, result.CartOffer)
	assert.Equal(t, `I found exactly what you're looking for! "Blue Hoodie" is available for $49.00. Would you like me to add it to your cart?`, result.Reply)
	assert.Equal(t, metrics.PathDirectOffer, outcome.Path)
	assert.Empty(t, model.calls)
}

func TestDiscover_ExactMatchWithoutPrice(t *testing.T) {
	s := newTestDiscoveryService(newMockModel())

	result := s.Discover(context.Background(), domain.DiscoveryTurn{Text: "blue hoodie", Catalog: tenProductCatalog()})

	assert.True(t, result.CartOffer)
	assert.Equal(t, `I found exactly what you're looking for! "Blue Hoodie" is available. Would you like me to add it to your cart?`, result.Reply)
}

func TestDiscover_ProductMentionsAreNotOffers(t *testing.T) {
	queries := []string{
		"What is the return policy for the Blue Hoodie?",
		"I don't want the blue hoodie",
		"Is the blue hoodie out of stock?",
	}

	for _, query := range queries {
		t.Run(query, func(t *testing.T) {
			model := newMockModel(reply(`{"productIds": [], "explanation": "none"}`), reply("Happy to help."))
			s := newTestDiscoveryService(model)

			result := s.Discover(context.Background(), domain.DiscoveryTurn{Text: query, Catalog: tenProductCatalog()})

			assert.False(t, result.CartOffer)
			assert.NotEmpty(t, model.calls)
		})
	}

	t.Run("policy keyword alongside an exact title", func(t *testing.T) {
		model := newMockModel(reply(`{"productIds": [], "explanation": "none"}`), reply("Returns are free."))
		s := newTestDiscoveryService(model)

		result := s.Discover(context.Background(), domain.DiscoveryTurn{Text: "blue hoodie return", Catalog: tenProductCatalog()})

		assert.False(t, result.CartOffer)
		assert.Equal(t, "Returns are free.", result.Reply)
		assert.Len(t, model.calls, 2)
	})
}

func TestDiscover_AmbiguousTitleGoesToModel(t *testing.T) {
	model := newMockModel(reply(`{"productIds": ["1", "2"], "explanation": "Both are hoodies."}`))
	s := newTestDiscoveryService(model)

	catalog := []domain.Product{
		activeProduct("1", "Blue Hoodie"),
		activeProduct("2", "Blue Hoodie"),
	}

	result := s.Discover(context.Background(), domain.DiscoveryTurn{Text: "blue hoodie", Catalog: catalog})

	assert.False(t, result.CartOffer)
	assert.Equal(t, []string{"1", "2"}, idsOf(result.Products))
	assert.Equal(t, "Both are hoodies. Here are the products I found:", result.Reply)
	assert.Len(t, model.calls, 1)
}

func TestDiscover_TextSearch(t *testing.T) {
	model := newMockModel(reply(`{"productIds": [9, 7, 42], "explanation": "These keep you warm."}`))
	s := newTestDiscoveryService(model)

	outcome := s.ResolveTurn(context.Background(), domain.DiscoveryTurn{
		Text:    "something warm for winter",
		Catalog: tenProductCatalog(),
		Limit:   5,
	})

	assert.Equal(t, metrics.PathSearchResults, outcome.Path)
	assert.False(t, outcome.Fallback())
	assert.Equal(t, []string{"7", "9"}, idsOf(outcome.Result.Products))
	assert.Equal(t, "These keep you warm. Here are the products I found:", outcome.Result.Reply)
	require.Len(t, model.calls, 1)
	assert.Contains(t, model.calls[0].prompt, `Customer search query: "something warm for winter"`)
	assert.Nil(t, model.calls[0].image)
}

func TestDiscover_TextSearchRespectsLimit(t *testing.T) {
	model := newMockModel(reply(`{"productIds": [1, 2, 3, 4, 5, 6], "explanation": "Lots."}`))
	s := newTestDiscoveryService(model)

	result := s.Discover(context.Background(), domain.DiscoveryTurn{Text: "everything", Catalog: tenProductCatalog(), Limit: 2})

	assert.Equal(t, []string{"1", "2"}, idsOf(result.Products))
}

func TestDiscover_EmptySearchFallsThroughToConversation(t *testing.T) {
	model := newMockModel(
		reply(`{"productIds": [], "explanation": "Nothing fits."}`),
		reply("We ship to most countries within 5 days."),
	)
	s := newTestDiscoveryService(model)

	history := []domain.ConversationTurn{
		{Role: domain.RoleUser, Content: "turn 1"},
		{Role: domain.RoleAssistant, Content: "turn 2"},
		{Role: domain.RoleUser, Content: "turn 3"},
		{Role: domain.RoleAssistant, Content: "turn 4"},
		{Role: domain.RoleUser, Content: "turn 5"},
		{Role: domain.RoleAssistant, Content: "turn 6"},
	}

	outcome := s.ResolveTurn(context.Background(), domain.DiscoveryTurn{
		Text:    "Do you ship to Norway?",
		Catalog: tenProductCatalog(),
		Store:   domain.StoreContext{Name: "Nordic Knits"},
		History: history,
	})

	assert.Equal(t, metrics.PathConversational, outcome.Path)
	assert.Equal(t, "We ship to most countries within 5 days.", outcome.Result.Reply)
	assert.Empty(t, outcome.Result.Products)
	assert.NotNil(t, outcome.Result.Products)
	assert.False(t, outcome.Result.CartOffer)

	require.Len(t, model.calls, 2)
	conversational := model.calls[1].prompt
	assert.Contains(t, conversational, "shopping assistant for Nordic Knits")
	assert.Contains(t, conversational, "Customer: Do you ship to Norway?")
	assert.NotContains(t, conversational, "turn 1", "only the trailing window is rendered")
	assert.Contains(t, conversational, "turn 2")
	assert.Contains(t, conversational, "turn 6")
}

func TestDiscover_NonexistentQueryWithTransportFailure(t *testing.T) {
	model := newMockModel(failure(errTransport))
	s := newTestDiscoveryService(model)

	outcome := s.ResolveTurn(context.Background(), domain.DiscoveryTurn{
		Text:    "xyz-nonexistent",
		Catalog: tenProductCatalog(),
	})

	assert.Len(t, model.calls, 1, "AI search is attempted exactly once")
	assert.True(t, outcome.Fallback())
	assert.Empty(t, outcome.Result.Products)
	assert.Equal(t, `No exact matches found for "xyz-nonexistent". Here are some popular products you might like.`, outcome.Result.Reply)
}

func TestDiscover_SearchContractViolationUsesFallbackSearch(t *testing.T) {
	model := newMockModel(reply("Sure! I recommend product 4."))
	s := newTestDiscoveryService(model)

	// Long enough that "hoodie" alone is not an exact match
	catalog := tenProductCatalog()
	catalog[3].Title = "Blue Hoodie Oversized"

	outcome := s.ResolveTurn(context.Background(), domain.DiscoveryTurn{Text: "hoodie", Catalog: catalog})

	assert.True(t, outcome.Fallback())
	assert.Equal(t, []string{"4", "7", "9"}, idsOf(outcome.Result.Products))
	assert.Equal(t, `Found 3 products matching "hoodie"`, outcome.Result.Reply)
	assert.False(t, outcome.Result.CartOffer)
}

func TestDiscover_ReturnPolicyQuestionWithTransportFailure(t *testing.T) {
	model := newMockModel(failure(errTransport))
	s := newTestDiscoveryService(model)

	result := s.Discover(context.Background(), domain.DiscoveryTurn{
		Text:    "What is your return policy?",
		Catalog: tenProductCatalog(),
	})

	assert.Equal(t, returnsReply, result.Reply)
	assert.Empty(t, result.Products)
	assert.False(t, result.CartOffer)
}

func TestDiscover_ConversationalFailureUsesCannedReply(t *testing.T) {
	model := newMockModel(
		reply(`{"productIds": [], "explanation": "none"}`),
		failure(errTransport),
	)
	s := newTestDiscoveryService(model)

	outcome := s.ResolveTurn(context.Background(), domain.DiscoveryTurn{
		Text:    "How long does shipping take?",
		Catalog: tenProductCatalog(),
	})

	assert.True(t, outcome.Fallback())
	assert.Equal(t, shippingReply, outcome.Result.Reply)
	assert.Empty(t, outcome.Result.Products)
	assert.Len(t, model.calls, 2)
}

func TestDiscover_ImageSearch(t *testing.T) {
	model := newMockModel(reply(`{"description":"a red shoe","productIds":[7,3],"explanation":"These match the shoe style"}`))
	s := newTestDiscoveryService(model)
	img := &domain.Image{Data: []byte{0xff, 0xd8, 0xff}, MIMEType: "image/jpeg"}

	outcome := s.ResolveTurn(context.Background(), domain.DiscoveryTurn{
		Image:   img,
		Catalog: parserCatalog(),
	})
	result := outcome.Result

	assert.Equal(t, metrics.PathImageResults, outcome.Path)
	assert.Equal(t, []string{"3", "7"}, idsOf(result.Products))
	assert.Equal(t, "a red shoe", result.Description)
	assert.Equal(t, "a red shoe These match the shoe style", result.Reply)
	assert.False(t, result.CartOffer)
	require.Len(t, model.calls, 1)
	assert.Same(t, img, model.calls[0].image)
}

func TestDiscover_ImageTakesPrecedenceOverExactMatch(t *testing.T) {
	model := newMockModel(reply(`{"description":"a hoodie","productIds":[],"explanation":""}`))
	s := newTestDiscoveryService(model)

	outcome := s.ResolveTurn(context.Background(), domain.DiscoveryTurn{
		Text:    "blue hoodie",
		Image:   &domain.Image{Data: []byte{1}, MIMEType: "image/png"},
		Catalog: tenProductCatalog(),
	})

	assert.Equal(t, metrics.PathImageResults, outcome.Path)
	assert.Empty(t, outcome.Result.Products)
	assert.Equal(t, "a hoodie", outcome.Result.Reply)
	assert.Len(t, model.calls, 1)
}

func TestDiscover_ImageFallbacks(t *testing.T) {
	img := &domain.Image{Data: []byte{1, 2, 3}, MIMEType: "image/jpeg"}

	t.Run("transport failure", func(t *testing.T) {
		s := newTestDiscoveryService(newMockModel(failure(errTransport)))
		result := s.Discover(context.Background(), domain.DiscoveryTurn{Image: img, Catalog: tenProductCatalog()})

		assert.Equal(t, imageTransportFallbackReply, result.Reply)
		assert.Equal(t, []string{"1", "2", "3"}, idsOf(result.Products))
	})

	t.Run("contract violation", func(t *testing.T) {
		s := newTestDiscoveryService(newMockModel(reply(`{"productIds":[1],"explanation":"missing description"}`)))
		result := s.Discover(context.Background(), domain.DiscoveryTurn{Image: img, Catalog: tenProductCatalog()})

		assert.Equal(t, imageParseFallbackReply, result.Reply)
		assert.Equal(t, []string{"1", "2", "3"}, idsOf(result.Products))
	})
}

func TestDiscover_EmptyTurn(t *testing.T) {
	model := newMockModel(reply("unused"))
	s := newTestDiscoveryService(model)

	result := s.Discover(context.Background(), domain.DiscoveryTurn{Text: "   ", Catalog: tenProductCatalog()})

	assert.Equal(t, genericReply, result.Reply)
	assert.Empty(t, result.Products)
	assert.Empty(t, model.calls)
}

func TestDiscover_InactiveProductsAreNeverReturned(t *testing.T) {
	model := newMockModel(reply(`{"productIds": ["1", "2"], "explanation": "Found them."}`))
	s := newTestDiscoveryService(model)

	catalog := []domain.Product{
		{ID: "1", Title: "Retired Jacket", Status: domain.ProductStatusInactive},
		activeProduct("2", "Rain Jacket"),
	}

	result := s.Discover(context.Background(), domain.DiscoveryTurn{Text: "jacket for rain and wind", Catalog: catalog})

	assert.Equal(t, []string{"2"}, idsOf(result.Products))
	require.Len(t, model.calls, 1)
	assert.NotContains(t, model.calls[0].prompt, "Retired Jacket")
}

func TestDiscover_NeverFailsOnBrokenModel(t *testing.T) {
	t.Run("nil model", func(t *testing.T) {
		s := newTestDiscoveryService(nil)
		result := s.Discover(context.Background(), domain.DiscoveryTurn{Text: "hoodie", Catalog: tenProductCatalog()})
		require.NotNil(t, result)
		assert.NotEmpty(t, result.Reply)
	})

	t.Run("panicking model", func(t *testing.T) {
		model := newMockModel()
		model.panicWith = "boom"
		s := newTestDiscoveryService(model)

		result := s.Discover(context.Background(), domain.DiscoveryTurn{
			Image:   &domain.Image{Data: []byte{1}},
			Catalog: tenProductCatalog(),
		})
		require.NotNil(t, result)
		assert.Equal(t, imageTransportFallbackReply, result.Reply)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		s := newTestDiscoveryService(newMockModel(failure(context.Canceled)))
		result := s.Discover(ctx, domain.DiscoveryTurn{Text: "xyz", Catalog: nil})
		require.NotNil(t, result)
		assert.Empty(t, result.Products)
	})
}

func TestDiscover_Idempotent(t *testing.T) {
	turns := []domain.DiscoveryTurn{
		{Text: "blue hoodie", Catalog: tenProductCatalog()},
		{Text: "something warm", Catalog: tenProductCatalog()},
		{Text: "What is your return policy?", Catalog: tenProductCatalog()},
		{Image: &domain.Image{Data: []byte{1}}, Catalog: tenProductCatalog()},
	}

	responses := []mockModelResponse{
		reply(`{"productIds": [2, 5], "explanation": "Cozy picks."}`),
		failure(errTransport),
		reply(`{"description": "a scarf", "productIds": [1], "explanation": "Similar knit."}`),
	}

	for i, turn := range turns {
		for _, r := range responses {
			t.Run(fmt.Sprintf("turn %d %s", i, strings.TrimSpace(r.text+fmt.Sprint(r.err))), func(t *testing.T) {
				first := newTestDiscoveryService(newMockModel(r)).Discover(context.Background(), turn)
				second := newTestDiscoveryService(newMockModel(r)).Discover(context.Background(), turn)
				assert.Equal(t, first, second)
			})
		}
	}
}

func TestRecommend(t *testing.T) {
	t.Run("model recommendations", func(t *testing.T) {
		model := newMockModel(reply(`{"productIds": [5, 2, 8], "explanation": "Great for weekends."}`))
		s := newTestDiscoveryService(model)

		outcome := s.ResolveRecommendation(context.Background(), domain.RecommendationRequest{
			Preferences: "casual weekend wear",
			Catalog:     tenProductCatalog(),
			History:     []domain.ConversationTurn{{Role: domain.RoleUser, Content: "I like cotton"}},
		})

		assert.Equal(t, metrics.PathRecommendation, outcome.Path)
		assert.Equal(t, []string{"2", "5", "8"}, idsOf(outcome.Result.Products))
		assert.Equal(t, "Great for weekends.", outcome.Result.Reply)
		require.Len(t, model.calls, 1)
		assert.Contains(t, model.calls[0].prompt, "user: I like cotton")
		assert.Contains(t, model.calls[0].prompt, `Customer preferences: "casual weekend wear"`)
	})

	t.Run("transport failure", func(t *testing.T) {
		s := newTestDiscoveryService(newMockModel(failure(errTransport)))

		result := s.Recommend(context.Background(), domain.RecommendationRequest{Catalog: tenProductCatalog()})

		assert.Equal(t, recommendationFallbackReply, result.Reply)
		assert.Equal(t, []string{"1", "2", "3"}, idsOf(result.Products))
	})

	t.Run("contract violation", func(t *testing.T) {
		s := newTestDiscoveryService(newMockModel(reply(`{"ids": [1]}`)))

		result := s.Recommend(context.Background(), domain.RecommendationRequest{Catalog: tenProductCatalog()})

		assert.Equal(t, recommendationFallbackReply, result.Reply)
		assert.Len(t, result.Products, 3)
	})
}
