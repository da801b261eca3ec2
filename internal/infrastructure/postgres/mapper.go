package postgres

import (
	"database/sql"
	"strings"

	"github.com/chatcart/backend/internal/domain"
	"github.com/lib/pq"
)

// productColumns is the select list scanned by scanProduct
const productColumns = `id, shopify_product_id, title, description, vendor, product_type, tags, handle, status, price_min, price_max`

// productRow mirrors one row of the products table
type productRow struct {
	ID          string
	ExternalID  sql.NullInt64
	Title       string
	Description sql.NullString
	Vendor      sql.NullString
	ProductType sql.NullString
	Tags        pq.StringArray
	Handle      sql.NullString
	Status      string
	PriceMin    sql.NullFloat64
	PriceMax    sql.NullFloat64
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(s scanner) (productRow, error) {
	var r productRow
	err := s.Scan(
		&r.ID, &r.ExternalID, &r.Title, &r.Description, &r.Vendor, &r.ProductType,
		&r.Tags, &r.Handle, &r.Status, &r.PriceMin, &r.PriceMax,
	)
	return r, err
}

// MapToProduct converts a products row to the domain Product
func MapToProduct(r productRow) domain.Product {
	return domain.Product{
		ID:          r.ID,
		ExternalID:  r.ExternalID.Int64,
		Title:       r.Title,
		Description: r.Description.String,
		Tags:        cleanTags(r.Tags),
		Vendor:      r.Vendor.String,
		ProductType: r.ProductType.String,
		Handle:      r.Handle.String,
		Price:       mapPrice(r.PriceMin, r.PriceMax),
		Status:      mapStatus(r.Status),
	}
}

// mapFromProduct converts a domain Product to a products row for writing
func mapFromProduct(p domain.Product) productRow {
	row := productRow{
		ID:          p.ID,
		ExternalID:  sql.NullInt64{Int64: p.ExternalID, Valid: p.ExternalID != 0},
		Title:       strings.TrimSpace(p.Title),
		Description: nullString(p.Description),
		Vendor:      nullString(p.Vendor),
		ProductType: nullString(p.ProductType),
		Tags:        pq.StringArray(cleanTags(p.Tags)),
		Handle:      nullString(p.Handle),
		Status:      string(mapStatus(string(p.Status))),
	}
	if row.Tags == nil {
		row.Tags = pq.StringArray{}
	}
	if p.Price != nil {
		if p.Price.Min != nil {
			row.PriceMin = sql.NullFloat64{Float64: *p.Price.Min, Valid: true}
		}
		if p.Price.Max != nil {
			row.PriceMax = sql.NullFloat64{Float64: *p.Price.Max, Valid: true}
		}
	}
	return row
}

// mapPrice returns nil when neither bound is known
func mapPrice(min, max sql.NullFloat64) *domain.PriceRange {
	if !min.Valid && !max.Valid {
		return nil
	}
	price := &domain.PriceRange{}
	if min.Valid {
		v := min.Float64
		price.Min = &v
	}
	if max.Valid {
		v := max.Float64
		price.Max = &v
	}
	return price
}

// mapStatus normalizes platform status strings; unknown values are treated as drafts
func mapStatus(status string) domain.ProductStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active":
		return domain.ProductStatusActive
	case "archived", "inactive":
		return domain.ProductStatusInactive
	default:
		return domain.ProductStatusDraft
	}
}

func cleanTags(tags pq.StringArray) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
