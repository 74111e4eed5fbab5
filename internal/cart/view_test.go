package cart_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leonardofps/gomarketplace/internal/cart"
	"github.com/Leonardofps/gomarketplace/internal/domain"
)

func TestBuildView_Aggregates(t *testing.T) {
	items := []domain.CartItem{
		{ID: "a", Price: 10, Quantity: 2},
		{ID: "b", Price: 5, Quantity: 1},
	}

	view := cart.BuildView(items, nil)

	assert.Equal(t, "25", view.Subtotal)
	assert.Equal(t, "25.00", view.Total)
	assert.Equal(t, 3, view.TotalItems)
	assert.False(t, view.Empty)
	assert.Len(t, view.Products, 2)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, "10.00", view.Lines[0].UnitPrice)
	assert.Equal(t, "20.00", view.Lines[0].LineTotal)
	assert.Equal(t, "5.00", view.Lines[1].LineTotal)
	assert.Equal(t, items[0], view.Lines[0].CartItem)
}

func TestBuildView_Empty(t *testing.T) {
	view := cart.BuildView(nil, nil)

	assert.Equal(t, "0", view.Subtotal)
	assert.Equal(t, "0.00", view.Total)
	assert.Equal(t, 0, view.TotalItems)
	assert.True(t, view.Empty)
	assert.NotNil(t, view.Products)
	assert.NotNil(t, view.Lines)
	assert.Empty(t, view.Lines)
}

func TestBuildView_UsesFormatter(t *testing.T) {
	items := []domain.CartItem{{ID: "a", Price: 1.5, Quantity: 3}}

	view := cart.BuildView(items, func(amount decimal.Decimal) string {
		return "R$ " + amount.StringFixed(2)
	})

	assert.Equal(t, "R$ 4.50", view.Total)
	assert.Equal(t, "4.5", view.Subtotal)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "R$ 1.50", view.Lines[0].UnitPrice)
	assert.Equal(t, "R$ 4.50", view.Lines[0].LineTotal)
}

func TestStoreView(t *testing.T) {
	h := newLoadedStore(t)
	require.NoError(t, h.store.AddToCart(product("a", 10)))
	require.NoError(t, h.store.AddToCart(product("a", 10)))
	require.NoError(t, h.store.AddToCart(product("b", 5)))

	view, err := h.store.View(nil)
	require.NoError(t, err)
	assert.Equal(t, "25.00", view.Total)
	assert.Equal(t, 3, view.TotalItems)

	var nilStore *cart.Store
	_, err = nilStore.View(nil)
	assert.ErrorIs(t, err, domain.ErrCartNotProvided)
}
