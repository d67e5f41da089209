package cartview

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/cart"
	"storefront-service/internal/models"
)

func TestFormatINR(t *testing.T) {
	cases := []struct {
		amount float64
		want   string
	}{
		{0, "₹0"},
		{42, "₹42"},
		{999, "₹999"},
		{1300, "₹1,300"},
		{99999, "₹99,999"},
		{100000, "₹1,00,000"},
		{150000, "₹1,50,000"},
		{12345678, "₹1,23,45,678"},
		{499.4, "₹499"},
		{499.5, "₹500"},
		{-10, "₹0"},
		{math.NaN(), "₹0"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatINR(tc.amount), "amount %v", tc.amount)
	}
}

func TestRenderSummary(t *testing.T) {
	vm := Render([]models.CartLine{
		{ID: "a", Name: "Dragon", Price: 500, Quantity: 2},
		{ID: "b", Name: "Knight", Price: 300, Quantity: 1},
	})

	require.Len(t, vm.Rows, 2)
	assert.Equal(t, "₹500", vm.Rows[0].UnitPrice)
	assert.Equal(t, "₹1,000", vm.Rows[0].LineTotal)
	assert.Equal(t, 1000.0, vm.Rows[0].RawLineTotal)

	assert.Equal(t, "₹1,300", vm.Summary.Total)
	assert.Equal(t, 1300.0, vm.Summary.RawTotal)
	assert.Equal(t, 3, vm.Summary.ItemCount)
	assert.True(t, vm.Summary.CheckoutEnabled)
	assert.False(t, vm.Summary.Empty)
}

func TestRenderEmptyCartDisablesCheckout(t *testing.T) {
	vm := Render(nil)

	assert.Empty(t, vm.Rows)
	assert.True(t, vm.Summary.Empty)
	assert.False(t, vm.Summary.CheckoutEnabled)
	assert.Equal(t, "₹0", vm.Summary.Total)
}

func TestControllerActionsRederiveFromStore(t *testing.T) {
	store := cart.NewStore(cart.NewMemoryStorage())
	ctrl := NewController(store)
	ctx := context.Background()

	_, err := store.Add(ctx, models.Product{ID: "a", Name: "Dragon", Price: 500}, 1)
	require.NoError(t, err)

	vm, err := ctrl.Increment(ctx, "a")
	require.NoError(t, err)
	require.Len(t, vm.Rows, 1)
	assert.Equal(t, 2, vm.Rows[0].Quantity)

	vm, err = ctrl.Decrement(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, vm.Rows[0].Quantity)

	// Decrementing at one keeps the line; it never drops below one.
	vm, err = ctrl.Decrement(ctx, "a")
	require.NoError(t, err)
	require.Len(t, vm.Rows, 1)
	assert.Equal(t, 1, vm.Rows[0].Quantity)

	vm, err = ctrl.Remove(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, vm.Rows)

	// The view model always reflects persisted state, not a stale copy.
	assert.Empty(t, store.Load(ctx))
}

func TestControllerUnknownIDIsNoop(t *testing.T) {
	store := cart.NewStore(cart.NewMemoryStorage())
	ctrl := NewController(store)
	ctx := context.Background()

	_, err := store.Add(ctx, models.Product{ID: "a", Price: 100}, 1)
	require.NoError(t, err)

	vm, err := ctrl.Increment(ctx, "zzz")
	require.NoError(t, err)
	require.Len(t, vm.Rows, 1)
	assert.Equal(t, 1, vm.Rows[0].Quantity)
}
