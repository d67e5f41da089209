// Package admin is the shop-owner console: product CRUD, image uploads,
// site settings, and order fulfilment. Access is gated by an email
// allowlist checked after authentication.
package admin

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-service/internal/account"
	"storefront-service/internal/apperr"
	"storefront-service/internal/blobstore"
	"storefront-service/internal/broker"
	"storefront-service/internal/docstore"
	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

// Service implements the admin console operations.
type Service struct {
	docs      docstore.Store
	blobs     blobstore.Store
	publisher *broker.EventPublisher
	validate  *validator.Validate
	logger    *zap.Logger

	adminEmails map[string]struct{}
}

// NewService wires the admin service. adminEmails is the allowlist;
// publisher may be nil when event publishing is disabled.
func NewService(docs docstore.Store, blobs blobstore.Store, publisher *broker.EventPublisher, adminEmails []string) *Service {
	allow := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			allow[e] = struct{}{}
		}
	}
	return &Service{
		docs:        docs,
		blobs:       blobs,
		publisher:   publisher,
		validate:    validator.New(),
		logger:      util.GetLogger(),
		adminEmails: allow,
	}
}

// IsAdmin reports whether the email is on the allowlist. Matching is
// case-insensitive; an empty allowlist admits nobody.
func (s *Service) IsAdmin(email string) bool {
	_, ok := s.adminEmails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// ProductForm is the admin-editable product payload.
type ProductForm struct {
	Name     string  `json:"name" validate:"required,min=2"`
	Price    float64 `json:"price" validate:"gte=0"`
	Category string  `json:"category" validate:"required"`
	ImageURL string  `json:"imageUrl" validate:"omitempty,url"`
	Desc     string  `json:"desc" validate:"max=2000"`
	Tag      string  `json:"tag" validate:"max=50"`
	Active   bool    `json:"active"`
}

// ListProducts returns every product, active or not, in store order.
func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	docs, err := s.docs.Query(ctx, models.CollectionProducts, nil, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.LoadFailure, "failed to load products", err)
	}
	products := make([]models.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, models.ProductFromFields(d.ID, d.Fields))
	}
	return products, nil
}

// CreateProduct validates and stores a new product. The creation timestamp
// comes from the backend so "latest" ordering is consistent across writers.
func (s *Service) CreateProduct(ctx context.Context, form ProductForm) (string, error) {
	if err := s.validate.Struct(form); err != nil {
		return "", apperr.Wrap(apperr.ValidationFailure, "product rejected", err)
	}
	fields := productFields(form)
	fields["createdAt"] = docstore.ServerTimestamp

	id, err := s.docs.Create(ctx, models.CollectionProducts, fields)
	if err != nil {
		return "", apperr.Wrap(apperr.WriteFailure, "failed to create product", err)
	}
	s.logger.Info("Product created", zap.String("product_id", id), zap.String("name", form.Name))
	return id, nil
}

// UpdateProduct validates and overwrites an existing product's editable
// fields. The original createdAt survives.
func (s *Service) UpdateProduct(ctx context.Context, id string, form ProductForm) error {
	if err := s.validate.Struct(form); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "product rejected", err)
	}
	if err := s.docs.Update(ctx, models.CollectionProducts, id, productFields(form)); err != nil {
		return apperr.Wrap(apperr.WriteFailure, "failed to update product", err)
	}
	s.logger.Info("Product updated", zap.String("product_id", id))
	return nil
}

// SetActive toggles a product's storefront visibility without touching the
// rest of the document.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	err := s.docs.Update(ctx, models.CollectionProducts, id, map[string]any{"active": active})
	if err != nil {
		return apperr.Wrap(apperr.WriteFailure, "failed to update product", err)
	}
	return nil
}

// DeleteProduct removes a product document. Carts holding the product keep
// their snapshot lines.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.docs.Delete(ctx, models.CollectionProducts, id); err != nil {
		return apperr.Wrap(apperr.WriteFailure, "failed to delete product", err)
	}
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

// UploadProductImage streams an image to blob storage under a unique name
// and returns its public URL for use in a product form.
func (s *Service) UploadProductImage(ctx context.Context, filename, contentType string, r io.Reader, size int64, progress blobstore.ProgressFunc) (string, error) {
	object := "products/" + uuid.New().String() + "-" + sanitizeFilename(filename)
	url, err := s.blobs.Upload(ctx, object, r, size, contentType, progress)
	if err != nil {
		util.ImageUploadsTotal.WithLabelValues("error").Inc()
		return "", apperr.Wrap(apperr.WriteFailure, "failed to upload image", err)
	}
	util.ImageUploadsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Product image uploaded", zap.String("object", object))
	return url, nil
}

// Settings loads the single site settings document; a missing document
// yields the zero settings.
func (s *Service) Settings(ctx context.Context) (models.SiteSettings, error) {
	doc, err := s.docs.Get(ctx, models.CollectionSettings, models.SettingsDocID)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.SiteSettings{}, nil
	}
	if err != nil {
		return models.SiteSettings{}, apperr.Wrap(apperr.LoadFailure, "failed to load settings", err)
	}
	return models.SiteSettings{
		Title:              models.CoerceString(doc.Fields["title"]),
		Subtitle:           models.CoerceString(doc.Fields["subtitle"]),
		BannerText:         models.CoerceString(doc.Fields["bannerText"]),
		HeroTitle:          models.CoerceString(doc.Fields["heroTitle"]),
		HeroSubtitle:       models.CoerceString(doc.Fields["heroSubtitle"]),
		HeroImageURL:       models.CoerceString(doc.Fields["heroImageUrl"]),
		LogoURL:            models.CoerceString(doc.Fields["logoUrl"]),
		ShopOpen:           models.CoerceBool(doc.Fields["shopOpen"], true),
		MaintenanceMode:    models.CoerceBool(doc.Fields["maintenanceMode"], false),
		MaintenanceMessage: models.CoerceString(doc.Fields["maintenanceMessage"]),
	}, nil
}

// SaveSettings merge-writes the settings document so partial saves never
// blank fields another admin session set.
func (s *Service) SaveSettings(ctx context.Context, settings models.SiteSettings) error {
	fields := map[string]any{
		"title":              settings.Title,
		"subtitle":           settings.Subtitle,
		"bannerText":         settings.BannerText,
		"heroTitle":          settings.HeroTitle,
		"heroSubtitle":       settings.HeroSubtitle,
		"heroImageUrl":       settings.HeroImageURL,
		"logoUrl":            settings.LogoURL,
		"shopOpen":           settings.ShopOpen,
		"maintenanceMode":    settings.MaintenanceMode,
		"maintenanceMessage": settings.MaintenanceMessage,
	}
	if err := s.docs.Merge(ctx, models.CollectionSettings, models.SettingsDocID, fields); err != nil {
		return apperr.Wrap(apperr.WriteFailure, "failed to save settings", err)
	}
	s.logger.Info("Site settings saved")
	return nil
}

// ListOrders returns every order, newest first, degrading to client-side
// sort when the backend lacks the index for the ordered query.
func (s *Service) ListOrders(ctx context.Context) ([]models.Order, error) {
	docs, err := s.docs.Query(ctx, models.CollectionOrders, nil,
		&docstore.OrderBy{Field: "createdAt", Desc: true})
	if errors.Is(err, docstore.ErrNeedsIndex) {
		docs, err = s.docs.Query(ctx, models.CollectionOrders, nil, nil)
		if err == nil {
			sort.SliceStable(docs, func(i, j int) bool {
				return models.CoerceTime(docs[i].Fields["createdAt"]).
					After(models.CoerceTime(docs[j].Fields["createdAt"]))
			})
		}
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.LoadFailure, "failed to load orders", err)
	}

	orders := make([]models.Order, 0, len(docs))
	for _, d := range docs {
		orders = append(orders, account.OrderFromFields(d.ID, d.Fields))
	}
	return orders, nil
}

// MarkShipped moves an order to shipped and publishes the lifecycle event.
func (s *Service) MarkShipped(ctx context.Context, orderID string) error {
	err := s.docs.Update(ctx, models.CollectionOrders, orderID,
		map[string]any{"status": models.OrderStatusShipped})
	if err != nil {
		return apperr.Wrap(apperr.WriteFailure, "failed to update order", err)
	}

	if s.publisher != nil {
		event := models.OrderShippedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderShipped,
				Timestamp: time.Now(),
			},
			OrderID: orderID,
		}
		if err := s.publisher.PublishOrderShipped(ctx, event); err != nil {
			s.logger.Warn("Order shipped event publish failed",
				zap.String("order_id", orderID), zap.Error(err))
		}
	}

	s.logger.Info("Order marked shipped", zap.String("order_id", orderID))
	return nil
}

func productFields(form ProductForm) map[string]any {
	return map[string]any{
		"name":     form.Name,
		"price":    form.Price,
		"category": form.Category,
		"imageUrl": form.ImageURL,
		"desc":     form.Desc,
		"tag":      form.Tag,
		"active":   form.Active,
	}
}

// sanitizeFilename keeps only the base name and replaces characters that
// complicate object keys or URLs.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := b.String()
	if out == "" || out == "." || out == ".." {
		return "upload"
	}
	return out
}
