package models

import (
	"strconv"
	"strings"
	"time"
)

// Product is a catalog entry, externally owned by the document store.
// Only products with Active set are shown on the storefront.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Category  string    `json:"category"`
	ImageURL  string    `json:"imageUrl"`
	Desc      string    `json:"desc,omitempty"`
	Tag       string    `json:"tag,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// CartLine is one row of the cart. Name, price and image are snapshots
// taken at add time and are not re-synced with later catalog edits.
type CartLine struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl"`
	Quantity int     `json:"quantity"`
}

// FilterState is the transient, view-local state of the catalog controls.
// It is never persisted.
type FilterState struct {
	SearchTerm string   `json:"searchTerm"`
	Category   string   `json:"category"`
	SortMode   SortMode `json:"sortMode"`
}

// SortMode enumerates catalog sort orders.
type SortMode string

const (
	SortFeatured  SortMode = "featured"
	SortPriceAsc  SortMode = "price-asc"
	SortPriceDesc SortMode = "price-desc"
	SortLatest    SortMode = "latest"
)

// CategoryAll is the sentinel meaning "no category filter".
const CategoryAll = "all"

// Order statuses
const (
	OrderStatusPending = "pending"
	OrderStatusShipped = "shipped"
)

// Order is a placed order as stored in the document store.
type Order struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
	Note      string     `json:"note,omitempty"`
	Items     []CartLine `json:"items"`
	Total     float64    `json:"total"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Profile is the user-editable part of an account document. Saved with
// merge-write semantics so unspecified fields survive.
type Profile struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Email    string `json:"email"`
}

// SiteSettings shapes the storefront chrome and lives in a single
// well-known document, written with merge semantics from the admin console.
type SiteSettings struct {
	Title              string `json:"title"`
	Subtitle           string `json:"subtitle"`
	BannerText         string `json:"bannerText"`
	HeroTitle          string `json:"heroTitle"`
	HeroSubtitle       string `json:"heroSubtitle"`
	HeroImageURL       string `json:"heroImageUrl"`
	LogoURL            string `json:"logoUrl"`
	ShopOpen           bool   `json:"shopOpen"`
	MaintenanceMode    bool   `json:"maintenanceMode"`
	MaintenanceMessage string `json:"maintenanceMessage"`
}

// Well-known document store collections and document IDs.
const (
	CollectionProducts = "products"
	CollectionOrders   = "orders"
	CollectionUsers    = "users"
	CollectionSettings = "settings"
	SettingsDocID      = "shop"
)

// CoerceFloat converts a loosely typed numeric field to a float64. Source
// data has shipped prices both as numbers and as strings; anything that
// cannot be parsed becomes 0 so NaN never reaches a total.
func CoerceFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// CoerceInt converts a loosely typed count field to an int, defaulting to 0.
func CoerceInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

// CoerceString returns the string value of a field, or "".
func CoerceString(v any) string {
	s, _ := v.(string)
	return s
}

// CoerceBool returns the bool value of a field; def is used when the field
// is absent or not a bool.
func CoerceBool(v any, def bool) bool {
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// CoerceTime returns the time value of a field; absent or mistyped
// timestamps become the zero time, which sorts last under "latest".
func CoerceTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

// ProductFromFields builds a Product from a raw document, coercing the
// loosely typed fields at the boundary.
func ProductFromFields(id string, fields map[string]any) Product {
	return Product{
		ID:        id,
		Name:      CoerceString(fields["name"]),
		Price:     CoerceFloat(fields["price"]),
		Category:  CoerceString(fields["category"]),
		ImageURL:  CoerceString(fields["imageUrl"]),
		Desc:      CoerceString(fields["desc"]),
		Tag:       CoerceString(fields["tag"]),
		Active:    CoerceBool(fields["active"], true),
		CreatedAt: CoerceTime(fields["createdAt"]),
	}
}
