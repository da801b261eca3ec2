package usecase

import (
	"fmt"
	"testing"

	"github.com/chatcart/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenProductCatalog() []domain.Product {
	catalog := make([]domain.Product, 0, 10)
	for i := 1; i <= 10; i++ {
		catalog = append(catalog, domain.Product{
			ID:          fmt.Sprintf("%d", i),
			Title:       fmt.Sprintf("Product %d", i),
			Description: "Everyday essential",
			Tags:        []string{"basics"},
			Status:      domain.ProductStatusActive,
		})
	}
	catalog[3].Title = "Blue Hoodie"
	catalog[6].Description = "A hoodie for cold evenings"
	catalog[8].Tags = []string{"Winter", "HOODIES"}
	return catalog
}

func TestFallbackResolver_TextSearch(t *testing.T) {
	f := NewFallbackResolver(0)

	t.Run("matches title, description and tags case-insensitively", func(t *testing.T) {
		result := f.TextSearch("HOODIE", tenProductCatalog(), 5)

		assert.Equal(t, []string{"4", "7", "9"}, idsOf(result.Products))
		assert.Equal(t, `Found 3 products matching "HOODIE"`, result.Reply)
		assert.False(t, result.CartOffer)
	})

	t.Run("respects the limit", func(t *testing.T) {
		result := f.TextSearch("essential", tenProductCatalog(), 2)
		assert.Len(t, result.Products, 2)
	})

	t.Run("no matches", func(t *testing.T) {
		result := f.TextSearch("xyz-nonexistent", tenProductCatalog(), 5)

		assert.Empty(t, result.Products)
		assert.Equal(t, `No exact matches found for "xyz-nonexistent". Here are some popular products you might like.`, result.Reply)
	})
}

func TestFallbackResolver_IsTotal(t *testing.T) {
	f := NewFallbackResolver(0)

	inputs := []struct {
		name    string
		query   string
		catalog []domain.Product
		limit   int
	}{
		{name: "empty catalog", query: "shoes", catalog: nil, limit: 5},
		{name: "empty query", query: "", catalog: tenProductCatalog(), limit: 5},
		{name: "whitespace query", query: "   ", catalog: tenProductCatalog(), limit: 5},
		{name: "zero limit", query: "hoodie", catalog: tenProductCatalog(), limit: 0},
		{name: "negative limit", query: "hoodie", catalog: tenProductCatalog(), limit: -1},
	}

	for _, in := range inputs {
		t.Run(in.name, func(t *testing.T) {
			result := f.TextSearch(in.query, in.catalog, in.limit)
			require.NotNil(t, result)
			assert.NotNil(t, result.Products)
			assert.Empty(t, result.Products)
			assert.NotEmpty(t, result.Reply)
		})
	}

	t.Run("image and recommendation with empty catalog", func(t *testing.T) {
		img := f.Image(nil, FailureTransport)
		assert.NotNil(t, img.Products)
		assert.Empty(t, img.Products)
		assert.NotEmpty(t, img.Reply)

		rec := f.Recommendation(nil)
		assert.NotNil(t, rec.Products)
		assert.Empty(t, rec.Products)
		assert.NotEmpty(t, rec.Reply)
	})
}

func TestFallbackResolver_Image(t *testing.T) {
	f := NewFallbackResolver(0)
	catalog := tenProductCatalog()

	t.Run("transport failure", func(t *testing.T) {
		result := f.Image(catalog, FailureTransport)
		assert.Equal(t, []string{"1", "2", "3"}, idsOf(result.Products))
		assert.Equal(t, imageTransportFallbackReply, result.Reply)
		assert.Equal(t, imageTransportFallbackReply, result.Description)
	})

	t.Run("contract violation", func(t *testing.T) {
		result := f.Image(catalog, FailureContract)
		assert.Equal(t, []string{"1", "2", "3"}, idsOf(result.Products))
		assert.Equal(t, imageParseFallbackReply, result.Reply)
	})

	t.Run("result does not alias the catalog", func(t *testing.T) {
		result := f.Image(catalog, FailureTransport)
		result.Products[0].Title = "changed"
		assert.Equal(t, "Product 1", catalog[0].Title)
	})
}

func TestFallbackResolver_Conversational(t *testing.T) {
	f := NewFallbackResolver(0)

	tests := []struct {
		text string
		want string
	}{
		{"How much is SHIPPING to Canada?", shippingReply},
		{"What is your return policy?", returnsReply},
		{"Can I get a refund?", returnsReply},
		{"Which size should I pick?", sizingReply},
		{"Do you have a sizing chart?", sizingReply},
		{"Tell me a joke", genericReply},
		{"", genericReply},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			result := f.Conversational(tt.text)
			assert.Equal(t, tt.want, result.Reply)
			assert.Empty(t, result.Products)
			assert.False(t, result.CartOffer)
		})
	}
}

func TestFallbackResolver_Recommendation(t *testing.T) {
	f := NewFallbackResolver(2)

	result := f.Recommendation(tenProductCatalog())

	assert.Equal(t, []string{"1", "2"}, idsOf(result.Products))
	assert.Equal(t, recommendationFallbackReply, result.Reply)
}
