package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leonardofps/gomarketplace/internal/cart"
	"github.com/Leonardofps/gomarketplace/internal/service/httpapi"
	"github.com/Leonardofps/gomarketplace/internal/service/persist"
	"github.com/Leonardofps/gomarketplace/internal/storage/memory"
)

func newServer(t *testing.T, provider *cart.Provider) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	format := func(amount decimal.Decimal) string { return "R$ " + amount.StringFixed(2) }
	httpapi.NewHandler(provider, format, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newLoadedProvider(t *testing.T) *cart.Provider {
	t.Helper()

	kv := memory.NewKVStore()
	store := cart.NewStore(kv, persist.NewWriter(kv))
	require.NoError(t, store.Initialize(context.Background()))
	return cart.NewProvider(store)
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, cart.View) {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var view cart.View
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	}
	return resp, view
}

func TestHandler_CartFlow(t *testing.T) {
	srv := newServer(t, newLoadedProvider(t))

	resp, view := do(t, srv, http.MethodGet, "/v1/cart", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, view.Empty)
	assert.Equal(t, "true", resp.Header.Get(httpapi.HeaderCartLoaded))

	product := `{"id":"a","title":"Cadeira","image_url":"https://img/a.png","price":10}`
	_, _ = do(t, srv, http.MethodPost, "/v1/cart/items", product)
	resp, view = do(t, srv, http.MethodPost, "/v1/cart/items", product)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, view.Products, 1)
	assert.Equal(t, 2, view.Products[0].Quantity)

	resp, view = do(t, srv, http.MethodPost, "/v1/cart/items/a/increment", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, view.TotalItems)
	assert.Equal(t, "R$ 30.00", view.Total)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "R$ 10.00", view.Lines[0].UnitPrice)
	assert.Equal(t, "R$ 30.00", view.Lines[0].LineTotal)
	assert.Equal(t, "Cadeira", view.Lines[0].Title)

	for i := 0; i < 3; i++ {
		resp, view = do(t, srv, http.MethodPost, "/v1/cart/items/a/decrement", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.True(t, view.Empty)
	assert.Empty(t, view.Products)
}

func TestHandler_UnknownIDIsNoOp(t *testing.T) {
	srv := newServer(t, newLoadedProvider(t))

	resp, view := do(t, srv, http.MethodPost, "/v1/cart/items/missing/increment", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, view.Empty)

	resp, view = do(t, srv, http.MethodPost, "/v1/cart/items/missing/decrement", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, view.Empty)
}

func TestHandler_BadRequests(t *testing.T) {
	srv := newServer(t, newLoadedProvider(t))

	resp, _ := do(t, srv, http.MethodPost, "/v1/cart/items", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/v1/cart/items", `{"id":"","price":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/v1/cart/items", `{"id":"a","price":-5}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodDelete, "/v1/cart", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandler_NoStoreReturns503(t *testing.T) {
	srv := newServer(t, cart.NewProvider(nil))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/cart", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body httpapi.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "cart accessed before provider initialization")
}

func TestHandler_NotLoadedHeader(t *testing.T) {
	kv := memory.NewKVStore()
	store := cart.NewStore(kv, persist.NewWriter(kv))
	srv := newServer(t, cart.NewProvider(store))

	resp, _ := do(t, srv, http.MethodGet, "/v1/cart", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "false", resp.Header.Get(httpapi.HeaderCartLoaded))
}
