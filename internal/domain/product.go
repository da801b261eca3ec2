package domain

import (
	"strconv"
	"strings"
)

// ProductStatus is the catalog lifecycle state of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
	ProductStatusDraft    ProductStatus = "draft"
)

// PriceRange holds the min/max variant price of a product. Either bound may be absent.
type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Product represents a catalog product as supplied by the merchant's catalog
type Product struct {
	ID          string        `json:"id"`                   // Catalog-local id
	ExternalID  int64         `json:"externalId,omitempty"` // Commerce platform id, 0 when unknown
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Vendor      string        `json:"vendor,omitempty"`
	ProductType string        `json:"productType,omitempty"`
	Handle      string        `json:"handle,omitempty"`
	Price       *PriceRange   `json:"price,omitempty"`
	Status      ProductStatus `json:"status"`
}

// IsActive reports whether the product may be shown to shoppers
func (p Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// MatchesID reports whether a claimed identifier refers to this product,
// either by catalog-local id or by external platform id.
func (p Product) MatchesID(claim string) bool {
	claim = strings.TrimSpace(claim)
	if claim == "" {
		return false
	}
	if claim == p.ID {
		return true
	}
	return p.ExternalID != 0 && claim == strconv.FormatInt(p.ExternalID, 10)
}

// MinPrice returns the lower price bound, if known
func (p Product) MinPrice() (float64, bool) {
	if p.Price == nil || p.Price.Min == nil {
		return 0, false
	}
	return *p.Price.Min, true
}

// ActiveProducts returns the active products in catalog order, dropping
// duplicate ids (first occurrence wins).
func ActiveProducts(products []Product) []Product {
	seen := make(map[string]bool, len(products))
	active := make([]Product, 0, len(products))
	for _, p := range products {
		if !p.IsActive() || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		active = append(active, p)
	}
	return active
}
