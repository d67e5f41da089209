// Package checkout turns the current cart plus a contact form into a
// persisted order. One order submission may be in flight at a time; the
// cart is cleared only after the order document is confirmed written.
package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-service/internal/apperr"
	"storefront-service/internal/broker"
	"storefront-service/internal/cart"
	"storefront-service/internal/docstore"
	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

// ContactForm is the buyer-supplied half of an order.
type ContactForm struct {
	Name    string `json:"name" validate:"required,min=2"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,min=7"`
	Address string `json:"address" validate:"required,min=10"`
	Note    string `json:"note" validate:"max=500"`
}

// Service places orders from a cart store into the order collection.
type Service struct {
	cart      *cart.Store
	docs      docstore.Store
	publisher *broker.EventPublisher
	validate  *validator.Validate
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight bool
}

// NewService wires a checkout service. publisher may be nil when event
// publishing is disabled (tests, local runs without a broker).
func NewService(cartStore *cart.Store, docs docstore.Store, publisher *broker.EventPublisher) *Service {
	return &Service{
		cart:      cartStore,
		docs:      docs,
		publisher: publisher,
		validate:  validator.New(),
		logger:    util.GetLogger(),
	}
}

// Result describes a successfully placed order.
type Result struct {
	OrderID string  `json:"order_id"`
	Total   float64 `json:"total"`
}

// PlaceOrder validates the form, refuses empty carts, writes the order
// document, publishes the placement event, and clears the cart. Failures
// before the document write leave the cart untouched.
func (s *Service) PlaceOrder(ctx context.Context, form ContactForm) (*Result, error) {
	if err := s.validate.Struct(form); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, apperr.Wrap(apperr.ValidationFailure, "order form rejected", err)
	}

	if !s.begin() {
		util.OrdersFailedTotal.WithLabelValues("in_flight").Inc()
		return nil, apperr.New(apperr.ValidationFailure, "an order submission is already in progress")
	}
	defer s.end()

	lines := s.cart.Load(ctx)
	if len(lines) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, apperr.New(apperr.ValidationFailure, "cannot place an order with an empty cart")
	}

	total := cart.Total(lines)
	items := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		items = append(items, map[string]any{
			"id":       l.ID,
			"name":     l.Name,
			"price":    l.Price,
			"imageUrl": l.ImageURL,
			"quantity": l.Quantity,
		})
	}

	fields := map[string]any{
		"name":      form.Name,
		"email":     form.Email,
		"phone":     form.Phone,
		"address":   form.Address,
		"note":      form.Note,
		"items":     items,
		"total":     total,
		"status":    models.OrderStatusPending,
		"createdAt": docstore.ServerTimestamp,
	}

	orderID, err := s.docs.Create(ctx, models.CollectionOrders, fields)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("persist").Inc()
		s.logger.Error("Order write failed", zap.Error(err))
		return nil, apperr.Wrap(apperr.WriteFailure, "failed to save order", err)
	}

	if s.publisher != nil {
		event := models.OrderPlacedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderPlaced,
				Timestamp: time.Now(),
			},
			OrderID:  orderID,
			Email:    form.Email,
			Name:     form.Name,
			Total:    total,
			Items:    orderItems(lines),
			PlacedAt: time.Now(),
		}
		if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
			// Order is already durable; the archive catches up later.
			s.logger.Warn("Order event publish failed",
				zap.String("order_id", orderID), zap.Error(err))
		}
	}

	if err := s.cart.Clear(ctx); err != nil {
		s.logger.Warn("Cart clear after checkout failed",
			zap.String("order_id", orderID), zap.Error(err))
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", orderID),
		zap.Float64("total", total),
		zap.Int("lines", len(lines)))

	return &Result{OrderID: orderID, Total: total}, nil
}

func (s *Service) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *Service) end() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func orderItems(lines []models.CartLine) []models.OrderItemData {
	items := make([]models.OrderItemData, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.OrderItemData{
			ProductID: l.ID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.Price,
		})
	}
	return items
}

// ValidationErrors renders validator failures as field: message pairs
// suitable for an API response.
func ValidationErrors(err error) map[string]string {
	out := map[string]string{}
	var verr validator.ValidationErrors
	if !asValidationErrors(err, &verr) {
		return out
	}
	for _, fe := range verr {
		out[fe.Field()] = fmt.Sprintf("failed %s validation", fe.Tag())
	}
	return out
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	for err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok {
			*target = ve
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
