package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/account"
	"storefront-service/internal/admin"
	"storefront-service/internal/authsvc"
	"storefront-service/internal/blobstore"
	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/docstore"
	"storefront-service/internal/models"
)

type testEnv struct {
	router *gin.Engine
	docs   *docstore.MemoryStore
	auth   *authsvc.FakeService
}

func newTestEnv(t *testing.T, adminEmails ...string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	docs := docstore.NewMemoryStore()
	auth := authsvc.NewFakeService()

	cartStorages := map[string]cart.Storage{}
	storageFor := func(cartID string) cart.Storage {
		if s, ok := cartStorages[cartID]; ok {
			return s
		}
		s := cart.NewMemoryStorage()
		cartStorages[cartID] = s
		return s
	}

	handler := NewHandler(
		catalog.NewLoader(docs),
		storageFor,
		auth,
		auth,
		account.NewService(docs),
		admin.NewService(docs, blobstore.NewMemoryStore(), nil, adminEmails),
		docs,
		nil,
		nil,
	)

	router := gin.New()
	handler.SetupRoutes(router)
	return &testEnv{router: router, docs: docs, auth: auth}
}

type client struct {
	env     *testEnv
	cookies []*http.Cookie
	token   string
}

func (e *testEnv) client() *client {
	return &client{env: e}
}

func (c *client) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	w := httptest.NewRecorder()
	c.env.router.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		c.cookies = append(c.cookies, ck)
	}
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func seedProduct(docs *docstore.MemoryStore, id, name string, price float64) {
	docs.Seed(models.CollectionProducts, id, map[string]any{
		"name":      name,
		"price":     price,
		"category":  "decor",
		"active":    true,
		"createdAt": time.Now(),
	})
}

func TestListProductsAppliesFilters(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env.docs, "p1", "Brass Lamp", 900)
	seedProduct(env.docs, "p2", "Clay Pot", 100)
	seedProduct(env.docs, "p3", "Silk Scarf", 500)

	w := env.client().do(t, http.MethodGet, "/api/v1/products?sort=price-asc", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	products := body["products"].([]any)
	require.Len(t, products, 3)
	first := products[0].(map[string]any)
	assert.Equal(t, "Clay Pot", first["name"])
}

func TestCartFlowAcrossRequests(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env.docs, "p1", "Brass Lamp", 400)
	seedProduct(env.docs, "p2", "Clay Pot", 500)
	c := env.client()

	w := c.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": "p1", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = c.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": "p2", "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)

	// The cart cookie carries the cart between requests.
	w = c.do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)

	summary := body["cart"].(map[string]any)["summary"].(map[string]any)
	assert.Equal(t, "₹1,300", summary["total"])
	assert.Equal(t, float64(3), summary["itemCount"])
	assert.Equal(t, true, summary["checkoutEnabled"])

	badgeState := body["badge"].(map[string]any)
	assert.Equal(t, "3", badgeState["text"])
	assert.Equal(t, true, badgeState["visible"])
}

func TestCartBadgeHiddenWhenEmpty(t *testing.T) {
	env := newTestEnv(t)

	w := env.client().do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	badgeState := body["badge"].(map[string]any)
	assert.Equal(t, false, badgeState["visible"])
}

func TestAddUnknownProductIs404(t *testing.T) {
	env := newTestEnv(t)

	w := env.client().do(t, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": "ghost", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDecrementFloorsAtOne(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env.docs, "p1", "Brass Lamp", 400)
	c := env.client()

	c.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": "p1", "quantity": 1})
	w := c.do(t, http.MethodPost, "/api/v1/cart/items/p1/decrement", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	rows := body["cart"].(map[string]any)["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(1), rows[0].(map[string]any)["quantity"])
}

func TestCheckoutClearsCart(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env.docs, "p1", "Brass Lamp", 400)
	c := env.client()

	c.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": "p1", "quantity": 2})

	w := c.do(t, http.MethodPost, "/api/v1/checkout", gin.H{
		"name":    "Asha Rao",
		"email":   "asha@example.com",
		"phone":   "9876543210",
		"address": "12 MG Road, Bengaluru 560001",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["order_id"])
	assert.Equal(t, float64(800), body["total"])

	w = c.do(t, http.MethodGet, "/api/v1/cart", nil)
	summary := decode(t, w)["cart"].(map[string]any)["summary"].(map[string]any)
	assert.Equal(t, true, summary["empty"])
}

func TestCheckoutEmptyCartRejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.client().do(t, http.MethodPost, "/api/v1/checkout", gin.H{
		"name":    "Asha Rao",
		"email":   "asha@example.com",
		"phone":   "9876543210",
		"address": "12 MG Road, Bengaluru 560001",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutValidationErrorsListFields(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env.docs, "p1", "Brass Lamp", 400)
	c := env.client()
	c.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": "p1", "quantity": 1})

	w := c.do(t, http.MethodPost, "/api/v1/checkout", gin.H{
		"name":    "Asha Rao",
		"email":   "not-an-email",
		"phone":   "9876543210",
		"address": "12 MG Road, Bengaluru 560001",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode(t, w)
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "Email")
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	w := c.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "asha@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	token := decode(t, w)["id_token"].(string)
	require.NotEmpty(t, token)

	// Wrong password is a 401 with a fixed message, not backend text.
	w = c.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email": "asha@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Incorrect email or password.", decode(t, w)["error"])

	// Duplicate registration conflicts.
	w = c.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "asha@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Weak password is a 400.
	w = c.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "new@example.com", "password": "abc",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccountRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.client().do(t, http.MethodGet, "/api/v1/account/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileRoundTripOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	w := c.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "asha@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	c.token = decode(t, w)["id_token"].(string)

	w = c.do(t, http.MethodPut, "/api/v1/account/profile", gin.H{
		"fullName": "Asha Rao", "phone": "9876543210", "address": "12 MG Road",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = c.do(t, http.MethodGet, "/api/v1/account/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Asha Rao", body["fullName"])
	// Email always comes from the session, not the payload.
	assert.Equal(t, "asha@example.com", body["email"])
}

func TestAccountOrdersScopedToSessionEmail(t *testing.T) {
	env := newTestEnv(t)
	env.docs.Seed(models.CollectionOrders, "o-mine", map[string]any{
		"email": "asha@example.com", "total": 800.0, "status": "pending", "createdAt": time.Now(),
	})
	env.docs.Seed(models.CollectionOrders, "o-other", map[string]any{
		"email": "other@example.com", "total": 99.0, "status": "pending", "createdAt": time.Now(),
	})

	c := env.client()
	w := c.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "asha@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	c.token = decode(t, w)["id_token"].(string)

	w = c.do(t, http.MethodGet, "/api/v1/account/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	orders := decode(t, w)["orders"].([]any)
	require.Len(t, orders, 1)
	assert.Equal(t, "o-mine", orders[0].(map[string]any)["id"])
}

func TestAdminGateByAllowlist(t *testing.T) {
	env := newTestEnv(t, "owner@shop.example")

	// Signed-in non-admin is forbidden.
	c := env.client()
	w := c.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "visitor@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	c.token = decode(t, w)["id_token"].(string)

	w = c.do(t, http.MethodGet, "/api/v1/admin/products", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Allowlisted admin gets through and can manage products.
	a := env.client()
	w = a.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "owner@shop.example", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	a.token = decode(t, w)["id_token"].(string)

	w = a.do(t, http.MethodPost, "/api/v1/admin/products", gin.H{
		"name": "Brass Lamp", "price": 400, "category": "decor", "active": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(t, http.MethodGet, "/api/v1/admin/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["products"].([]any), 1)
}

func TestAdminMarkShippedOverHTTP(t *testing.T) {
	env := newTestEnv(t, "owner@shop.example")
	env.docs.Seed(models.CollectionOrders, "o1", map[string]any{
		"email": "asha@example.com", "status": "pending", "createdAt": time.Now(),
	})

	a := env.client()
	w := a.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "owner@shop.example", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	a.token = decode(t, w)["id_token"].(string)

	w = a.do(t, http.MethodPost, "/api/v1/admin/orders/o1/ship", nil)
	require.Equal(t, http.StatusOK, w.Code)

	doc, err := env.docs.Get(context.Background(), models.CollectionOrders, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, doc.Fields["status"])
}

func TestArchiveRoutesUnavailableWithoutDatabase(t *testing.T) {
	env := newTestEnv(t, "owner@shop.example")
	a := env.client()
	w := a.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "owner@shop.example", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	a.token = decode(t, w)["id_token"].(string)

	w = a.do(t, http.MethodGet, "/api/v1/admin/archive/orders", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	assert.Equal(t, http.StatusOK, c.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, c.do(t, http.MethodGet, "/ready", nil).Code)
}
