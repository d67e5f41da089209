// Package catalog loads active products from the document store and applies
// the search/category/sort pipeline entirely in memory.
package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront-service/internal/apperr"
	"storefront-service/internal/docstore"
	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

// Loader fetches and caches the active product set. A failed fetch leaves
// the previously loaded catalog untouched; a fetch superseded by a newer one
// has its result discarded.
type Loader struct {
	docs   docstore.Store
	logger *zap.Logger

	mu       sync.Mutex
	gen      uint64
	loading  bool
	loaded   bool
	lastErr  error
	products []models.Product
}

// View is what the rendering layer consumes: the filtered product list plus
// observable state flags instead of side-effecting writes.
type View struct {
	Products []models.Product
	Loading  bool
	Empty    bool
	Err      error
}

// NewLoader creates a catalog loader over the document store.
func NewLoader(docs docstore.Store) *Loader {
	return &Loader{docs: docs, logger: util.GetLogger()}
}

// Refresh fetches products flagged active from the document store. The
// result of a refresh that was superseded while in flight is dropped.
func (l *Loader) Refresh(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "catalog.Refresh")
	defer span.End()

	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.loading = true
	l.mu.Unlock()

	start := time.Now()
	docs, err := l.docs.Query(ctx, models.CollectionProducts,
		[]docstore.Filter{{Field: "active", Value: true}}, nil)
	util.CatalogFetchLatency.Observe(time.Since(start).Seconds())

	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen {
		l.logger.Debug("Discarding superseded catalog fetch", zap.Uint64("gen", gen))
		util.CatalogFetchesTotal.WithLabelValues("superseded").Inc()
		return nil
	}
	l.loading = false

	if err != nil {
		util.CatalogFetchesTotal.WithLabelValues("error").Inc()
		l.lastErr = apperr.Wrap(apperr.LoadFailure, "failed to load products", err)
		l.logger.Error("Catalog fetch failed", zap.Error(err))
		return l.lastErr
	}

	products := make([]models.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, models.ProductFromFields(d.ID, d.Fields))
	}

	util.CatalogFetchesTotal.WithLabelValues("ok").Inc()
	l.lastErr = nil
	l.loaded = true
	l.products = products
	l.logger.Info("Catalog loaded", zap.Int("products", len(products)))
	return nil
}

// View applies the filter state to the cached catalog.
func (l *Loader) View(fs models.FilterState) View {
	l.mu.Lock()
	defer l.mu.Unlock()

	filtered := ApplyFilters(l.products, fs)
	return View{
		Products: filtered,
		Loading:  l.loading,
		Empty:    l.loaded && len(filtered) == 0,
		Err:      l.lastErr,
	}
}

// Product looks up one cached product by ID, for building cart snapshots.
func (l *Loader) Product(id string) (models.Product, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// ApplyFilters runs the pipeline: text filter, then category filter, then
// sort. It is pure: the input slice is never reordered or mutated, and the
// same arguments always yield the same output.
func ApplyFilters(products []models.Product, fs models.FilterState) []models.Product {
	term := strings.ToLower(strings.TrimSpace(fs.SearchTerm))
	category := strings.TrimSpace(fs.Category)

	filtered := make([]models.Product, 0, len(products))
	for _, p := range products {
		if term != "" {
			text := strings.ToLower(p.Name + " " + p.Category + " " + p.Desc)
			if !strings.Contains(text, term) {
				continue
			}
		}
		if category != "" && !strings.EqualFold(category, models.CategoryAll) {
			if !strings.EqualFold(p.Category, category) {
				continue
			}
		}
		filtered = append(filtered, p)
	}

	switch fs.SortMode {
	case models.SortPriceAsc:
		sort.SliceStable(filtered, func(i, j int) bool {
			return price(filtered[i]) < price(filtered[j])
		})
	case models.SortPriceDesc:
		sort.SliceStable(filtered, func(i, j int) bool {
			return price(filtered[i]) > price(filtered[j])
		})
	case models.SortLatest:
		// Zero timestamps are the oldest, so they land last.
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		})
	default:
		// featured: keep fetch order
	}
	return filtered
}

func price(p models.Product) float64 {
	if p.Price != p.Price || p.Price < 0 { // NaN guard
		return 0
	}
	return p.Price
}
