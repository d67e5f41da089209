package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/apperr"
	"storefront-service/internal/docstore"
	"storefront-service/internal/models"
)

func sampleProducts() []models.Product {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []models.Product{
		{ID: "p1", Name: "Dragon Bust", Category: "Fantasy", Desc: "fire breathing", Price: 900, CreatedAt: base.AddDate(0, 0, 1)},
		{ID: "p2", Name: "Knight", Category: "fantasy", Desc: "sword and shield", Price: 100, CreatedAt: base.AddDate(0, 0, 3)},
		{ID: "p3", Name: "Rover", Category: "scifi", Desc: "planet rover", Price: 500},
	}
}

func TestApplyFiltersPriceAscScenario(t *testing.T) {
	out := ApplyFilters(sampleProducts(), models.FilterState{SortMode: models.SortPriceAsc})

	require.Len(t, out, 3)
	assert.Equal(t, []float64{100, 500, 900}, []float64{out[0].Price, out[1].Price, out[2].Price})
}

func TestApplyFiltersPriceDesc(t *testing.T) {
	out := ApplyFilters(sampleProducts(), models.FilterState{SortMode: models.SortPriceDesc})

	require.Len(t, out, 3)
	assert.Equal(t, []float64{900, 500, 100}, []float64{out[0].Price, out[1].Price, out[2].Price})
}

func TestApplyFiltersLatestPutsMissingTimestampLast(t *testing.T) {
	out := ApplyFilters(sampleProducts(), models.FilterState{SortMode: models.SortLatest})

	require.Len(t, out, 3)
	assert.Equal(t, "p2", out[0].ID)
	assert.Equal(t, "p1", out[1].ID)
	assert.Equal(t, "p3", out[2].ID, "product without createdAt sorts last")
}

func TestApplyFiltersFeaturedPreservesFetchOrder(t *testing.T) {
	products := sampleProducts()
	out := ApplyFilters(products, models.FilterState{SortMode: models.SortFeatured})

	require.Len(t, out, 3)
	for i := range products {
		assert.Equal(t, products[i].ID, out[i].ID)
	}
}

func TestApplyFiltersTextSearch(t *testing.T) {
	out := ApplyFilters(sampleProducts(), models.FilterState{SearchTerm: "ROVER"})
	require.Len(t, out, 1)
	assert.Equal(t, "p3", out[0].ID)

	// Matches against description too.
	out = ApplyFilters(sampleProducts(), models.FilterState{SearchTerm: "sword"})
	require.Len(t, out, 1)
	assert.Equal(t, "p2", out[0].ID)
}

func TestApplyFiltersCategory(t *testing.T) {
	out := ApplyFilters(sampleProducts(), models.FilterState{Category: "FANTASY"})
	require.Len(t, out, 2)

	out = ApplyFilters(sampleProducts(), models.FilterState{Category: models.CategoryAll})
	assert.Len(t, out, 3)

	out = ApplyFilters(sampleProducts(), models.FilterState{Category: ""})
	assert.Len(t, out, 3)
}

func TestApplyFiltersIsPure(t *testing.T) {
	products := sampleProducts()
	fs := models.FilterState{SearchTerm: "a", SortMode: models.SortPriceDesc}

	first := ApplyFilters(products, fs)
	second := ApplyFilters(products, fs)
	assert.Equal(t, first, second, "identical arguments yield identical output")

	// The input slice keeps its order.
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, "p2", products[1].ID)
	assert.Equal(t, "p3", products[2].ID)
}

func TestRefreshLoadsOnlyActiveProducts(t *testing.T) {
	docs := docstore.NewMemoryStore()
	docs.Seed(models.CollectionProducts, "p1", map[string]any{"name": "Dragon", "price": 900.0, "active": true})
	docs.Seed(models.CollectionProducts, "p2", map[string]any{"name": "Hidden", "price": 100.0, "active": false})

	loader := NewLoader(docs)
	require.NoError(t, loader.Refresh(context.Background()))

	view := loader.View(models.FilterState{})
	require.Len(t, view.Products, 1)
	assert.Equal(t, "Dragon", view.Products[0].Name)
	assert.False(t, view.Empty)
	assert.NoError(t, view.Err)
}

func TestRefreshCoercesStringPrice(t *testing.T) {
	docs := docstore.NewMemoryStore()
	docs.Seed(models.CollectionProducts, "p1", map[string]any{"name": "Dragon", "price": "900", "active": true})

	loader := NewLoader(docs)
	require.NoError(t, loader.Refresh(context.Background()))

	view := loader.View(models.FilterState{})
	require.Len(t, view.Products, 1)
	assert.Equal(t, 900.0, view.Products[0].Price)
}

// flakyStore fails queries on demand, wrapping the memory store otherwise.
type flakyStore struct {
	docstore.Store
	fail bool
}

func (f *flakyStore) Query(ctx context.Context, collection string, filters []docstore.Filter, orderBy *docstore.OrderBy) ([]docstore.Document, error) {
	if f.fail {
		return nil, errors.New("backend unavailable")
	}
	return f.Store.Query(ctx, collection, filters, orderBy)
}

func TestRefreshFailureKeepsPriorCatalog(t *testing.T) {
	mem := docstore.NewMemoryStore()
	mem.Seed(models.CollectionProducts, "p1", map[string]any{"name": "Dragon", "price": 900.0, "active": true})
	docs := &flakyStore{Store: mem}

	loader := NewLoader(docs)
	require.NoError(t, loader.Refresh(context.Background()))

	docs.fail = true
	err := loader.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.LoadFailure, apperr.KindOf(err))

	view := loader.View(models.FilterState{})
	assert.Len(t, view.Products, 1, "failed fetch must not overwrite the loaded catalog")
	assert.Error(t, view.Err)

	docs.fail = false
	require.NoError(t, loader.Refresh(context.Background()))
	assert.NoError(t, loader.View(models.FilterState{}).Err)
}

func TestViewEmptyFlag(t *testing.T) {
	docs := docstore.NewMemoryStore()
	docs.Seed(models.CollectionProducts, "p1", map[string]any{"name": "Dragon", "category": "fantasy", "price": 900.0, "active": true})

	loader := NewLoader(docs)
	require.NoError(t, loader.Refresh(context.Background()))

	view := loader.View(models.FilterState{SearchTerm: "nothing matches this"})
	assert.Empty(t, view.Products)
	assert.True(t, view.Empty)
}
