// Package api exposes the storefront over HTTP: catalog browsing, the
// per-session cart, checkout, auth, account and admin routes.
package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storefront-service/internal/account"
	"storefront-service/internal/admin"
	"storefront-service/internal/apperr"
	"storefront-service/internal/archive"
	"storefront-service/internal/authsvc"
	"storefront-service/internal/badge"
	"storefront-service/internal/broker"
	"storefront-service/internal/cart"
	"storefront-service/internal/cartview"
	"storefront-service/internal/catalog"
	"storefront-service/internal/checkout"
	"storefront-service/internal/docstore"
	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

const cartCookieName = "cart_id"

// CartStorageFunc resolves the persisted storage for one cart ID.
type CartStorageFunc func(cartID string) cart.Storage

// Handler contains the HTTP handlers and their collaborators.
type Handler struct {
	catalog     *catalog.Loader
	cartStorage CartStorageFunc
	auth        authsvc.Service
	verifier    authsvc.TokenVerifier
	accounts    *account.Service
	admins      *admin.Service
	docs        docstore.Store
	publisher   *broker.EventPublisher
	archive     *archive.Store
	logger      *zap.Logger

	mu        sync.Mutex
	carts     map[string]*cart.Store
	checkouts map[string]*checkout.Service
}

// NewHandler creates the HTTP handler. archiveStore may be nil when the
// relational archive is not deployed; its routes then answer 503.
func NewHandler(
	catalogLoader *catalog.Loader,
	cartStorage CartStorageFunc,
	auth authsvc.Service,
	verifier authsvc.TokenVerifier,
	accounts *account.Service,
	admins *admin.Service,
	docs docstore.Store,
	publisher *broker.EventPublisher,
	archiveStore *archive.Store,
) *Handler {
	return &Handler{
		catalog:     catalogLoader,
		cartStorage: cartStorage,
		auth:        auth,
		verifier:    verifier,
		accounts:    accounts,
		admins:      admins,
		docs:        docs,
		publisher:   publisher,
		archive:     archiveStore,
		logger:      util.GetLogger(),
		carts:       make(map[string]*cart.Store),
		checkouts:   make(map[string]*checkout.Service),
	}
}

// SetupRoutes sets up HTTP routes.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/settings", h.siteSettings)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.POST("/cart/items/:id/increment", h.incrementCartItem)
		v1.POST("/cart/items/:id/decrement", h.decrementCartItem)
		v1.DELETE("/cart/items/:id", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)

		v1.POST("/checkout", h.placeOrder)

		v1.POST("/auth/register", h.register)
		v1.POST("/auth/login", h.login)
		v1.POST("/auth/logout", h.logout)

		authed := v1.Group("")
		authed.Use(h.requireSession())
		{
			authed.GET("/account/profile", h.getProfile)
			authed.PUT("/account/profile", h.saveProfile)
			authed.GET("/account/orders", h.listAccountOrders)
		}

		adm := v1.Group("/admin")
		adm.Use(h.requireSession(), h.requireAdmin())
		{
			adm.GET("/products", h.adminListProducts)
			adm.POST("/products", h.adminCreateProduct)
			adm.PUT("/products/:id", h.adminUpdateProduct)
			adm.PATCH("/products/:id/active", h.adminSetActive)
			adm.DELETE("/products/:id", h.adminDeleteProduct)
			adm.POST("/uploads", h.adminUploadImage)
			adm.GET("/orders", h.adminListOrders)
			adm.POST("/orders/:id/ship", h.adminMarkShipped)
			adm.GET("/archive/orders", h.adminArchivedOrders)
			adm.GET("/archive/orders/:id", h.adminArchivedOrder)
			adm.GET("/settings", h.siteSettings)
			adm.PUT("/settings", h.adminSaveSettings)
		}
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// cartStore resolves the cart for this request, minting the cart cookie on
// first contact. Stores are cached per cart ID so subscribers and the
// checkout in-flight guard survive across requests.
func (h *Handler) cartStore(c *gin.Context) (*cart.Store, string) {
	cartID, err := c.Cookie(cartCookieName)
	if err != nil || cartID == "" {
		cartID = uuid.New().String()
		c.SetCookie(cartCookieName, cartID, int((365 * 24 * time.Hour).Seconds()), "/", "", false, true)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	store, ok := h.carts[cartID]
	if !ok {
		store = cart.NewStore(h.cartStorage(cartID))
		h.carts[cartID] = store
	}
	return store, cartID
}

func (h *Handler) checkoutService(c *gin.Context) *checkout.Service {
	store, cartID := h.cartStore(c)

	h.mu.Lock()
	defer h.mu.Unlock()
	svc, ok := h.checkouts[cartID]
	if !ok {
		svc = checkout.NewService(store, h.docs, h.publisher)
		h.checkouts[cartID] = svc
	}
	return svc
}

// cartResponse renders the cart view-model plus the nav badge state.
func cartResponse(vm cartview.ViewModel) gin.H {
	counter := &badge.Counter{}
	badge.NewProjector(counter).Project(linesFromViewModel(vm))
	text, visible := counter.State()
	return gin.H{
		"cart": vm,
		"badge": gin.H{
			"text":    text,
			"visible": visible,
		},
	}
}

// linesFromViewModel rebuilds the minimal line list the badge needs.
func linesFromViewModel(vm cartview.ViewModel) []models.CartLine {
	lines := make([]models.CartLine, 0, len(vm.Rows))
	for _, r := range vm.Rows {
		lines = append(lines, models.CartLine{ID: r.ID, Quantity: r.Quantity})
	}
	return lines
}

func (h *Handler) listProducts(c *gin.Context) {
	ctx := c.Request.Context()
	_ = h.catalog.Refresh(ctx)

	fs := models.FilterState{
		SearchTerm: c.Query("search"),
		Category:   c.Query("category"),
		SortMode:   models.SortMode(c.DefaultQuery("sort", string(models.SortFeatured))),
	}

	view := h.catalog.View(fs)
	resp := gin.H{
		"products": view.Products,
		"loading":  view.Loading,
		"empty":    view.Empty,
	}
	if view.Err != nil {
		resp["error"] = apperr.UserMessage(view.Err)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getProduct(c *gin.Context) {
	_ = h.catalog.Refresh(c.Request.Context())

	p, ok := h.catalog.Product(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) siteSettings(c *gin.Context) {
	settings, err := h.admins.Settings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) getCart(c *gin.Context) {
	store, _ := h.cartStore(c)
	vm := cartview.NewController(store).View(c.Request.Context())
	c.JSON(http.StatusOK, cartResponse(vm))
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	_ = h.catalog.Refresh(ctx)
	product, ok := h.catalog.Product(req.ProductID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	store, _ := h.cartStore(c)
	lines, err := store.Add(ctx, product, req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(cartview.Render(lines)))
}

func (h *Handler) incrementCartItem(c *gin.Context) {
	store, _ := h.cartStore(c)
	vm, err := cartview.NewController(store).Increment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(vm))
}

func (h *Handler) decrementCartItem(c *gin.Context) {
	store, _ := h.cartStore(c)
	vm, err := cartview.NewController(store).Decrement(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(vm))
}

func (h *Handler) removeCartItem(c *gin.Context) {
	store, _ := h.cartStore(c)
	vm, err := cartview.NewController(store).Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(vm))
}

func (h *Handler) clearCart(c *gin.Context) {
	store, _ := h.cartStore(c)
	vm, err := cartview.NewController(store).Clear(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(vm))
}

func (h *Handler) placeOrder(c *gin.Context) {
	var form checkout.ContactForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	res, err := h.checkoutService(c).PlaceOrder(c.Request.Context(), form)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	session, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse(session))
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	session, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.auth.SignOut(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "signed out"})
}

func sessionResponse(s *authsvc.Session) gin.H {
	return gin.H{
		"uid":           s.UID,
		"email":         s.Email,
		"id_token":      s.IDToken,
		"refresh_token": s.RefreshToken,
		"expires_at":    s.ExpiresAt,
	}
}

const sessionKey = "session"

// requireSession authenticates the bearer token and stores the session on
// the request context.
func (h *Handler) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		session, err := h.verifier.Verify(c.Request.Context(), header[len(prefix):])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperr.UserMessage(err)})
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessionFrom(c)
		if session == nil || !h.admins.IsAdmin(session.Email) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *authsvc.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*authsvc.Session)
	return session
}

func (h *Handler) getProfile(c *gin.Context) {
	session := sessionFrom(c)
	profile, err := h.accounts.LoadProfile(c.Request.Context(), session.UID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) saveProfile(c *gin.Context) {
	var profile models.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	session := sessionFrom(c)
	profile.Email = session.Email
	if err := h.accounts.SaveProfile(c.Request.Context(), session.UID, profile); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) listAccountOrders(c *gin.Context) {
	session := sessionFrom(c)
	orders, err := h.accounts.Orders(c.Request.Context(), session.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) adminListProducts(c *gin.Context) {
	products, err := h.admins.ListProducts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) adminCreateProduct(c *gin.Context) {
	var form admin.ProductForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	id, err := h.admins.CreateProduct(c.Request.Context(), form)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) adminUpdateProduct(c *gin.Context) {
	var form admin.ProductForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.admins.UpdateProduct(c.Request.Context(), c.Param("id"), form); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) adminSetActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.admins.SetActive(c.Request.Context(), c.Param("id"), req.Active); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "active": req.Active})
}

func (h *Handler) adminDeleteProduct(c *gin.Context) {
	if err := h.admins.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) adminUploadImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing image file"})
		return
	}
	defer file.Close()

	url, err := h.admins.UploadProductImage(
		c.Request.Context(),
		header.Filename,
		header.Header.Get("Content-Type"),
		file,
		header.Size,
		nil,
	)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func (h *Handler) adminListOrders(c *gin.Context) {
	orders, err := h.admins.ListOrders(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) adminMarkShipped(c *gin.Context) {
	if err := h.admins.MarkShipped(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": models.OrderStatusShipped})
}

// adminArchivedOrders serves the relational read model, which supports the
// reporting queries the document store is poorly shaped for.
func (h *Handler) adminArchivedOrders(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Order archive is not available"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	var (
		orders []archive.ArchivedOrder
		err    error
	)
	if email := c.Query("email"); email != "" {
		orders, err = h.archive.ListOrdersByEmail(c.Request.Context(), email)
	} else {
		orders, err = h.archive.ListOrders(c.Request.Context(), limit)
	}
	if err != nil {
		h.fail(c, apperr.Wrap(apperr.LoadFailure, "failed to load archived orders", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) adminArchivedOrder(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Order archive is not available"})
		return
	}

	ctx := c.Request.Context()
	order, err := h.archive.GetOrder(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not archived"})
		return
	}
	items, err := h.archive.GetItems(ctx, order.OrderID)
	if err != nil {
		h.fail(c, apperr.Wrap(apperr.LoadFailure, "failed to load archived order items", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

func (h *Handler) adminSaveSettings(c *gin.Context) {
	var settings models.SiteSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.admins.SaveSettings(c.Request.Context(), settings); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// fail maps a classified error to a status code and a safe message.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.ValidationFailure:
		status = http.StatusBadRequest
	case apperr.AuthFailure:
		switch apperr.ReasonOf(err) {
		case apperr.AuthEmailInUse:
			status = http.StatusConflict
		case apperr.AuthThrottled:
			status = http.StatusTooManyRequests
		case apperr.AuthWeakPassword:
			status = http.StatusBadRequest
		default:
			status = http.StatusUnauthorized
		}
	case apperr.LoadFailure, apperr.WriteFailure:
		status = http.StatusBadGateway
	}

	resp := gin.H{"error": apperr.UserMessage(err)}
	if apperr.KindOf(err) == apperr.ValidationFailure {
		if fields := checkout.ValidationErrors(err); len(fields) > 0 {
			resp["fields"] = fields
		}
	}

	h.logger.Warn("Request failed",
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.Error(err))
	c.JSON(status, resp)
}

// prometheusMiddleware collects HTTP metrics.
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
