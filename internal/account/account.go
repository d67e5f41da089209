// Package account serves the signed-in user's profile and order history.
package account

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"storefront-service/internal/apperr"
	"storefront-service/internal/docstore"
	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

// Service reads and writes account-scoped documents.
type Service struct {
	docs   docstore.Store
	logger *zap.Logger
}

// NewService creates an account service over the document store.
func NewService(docs docstore.Store) *Service {
	return &Service{docs: docs, logger: util.GetLogger()}
}

// LoadProfile fetches the user's profile document. A missing document is
// not an error; a first-time visitor simply gets an empty profile.
func (s *Service) LoadProfile(ctx context.Context, uid string) (models.Profile, error) {
	doc, err := s.docs.Get(ctx, models.CollectionUsers, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.Profile{}, nil
	}
	if err != nil {
		return models.Profile{}, apperr.Wrap(apperr.LoadFailure, "failed to load profile", err)
	}
	return models.Profile{
		FullName: models.CoerceString(doc.Fields["fullName"]),
		Phone:    models.CoerceString(doc.Fields["phone"]),
		Address:  models.CoerceString(doc.Fields["address"]),
		Email:    models.CoerceString(doc.Fields["email"]),
	}, nil
}

// SaveProfile merge-writes the profile so fields managed elsewhere on the
// user document survive the save.
func (s *Service) SaveProfile(ctx context.Context, uid string, p models.Profile) error {
	fields := map[string]any{
		"fullName": p.FullName,
		"phone":    p.Phone,
		"address":  p.Address,
		"email":    p.Email,
	}
	if err := s.docs.Merge(ctx, models.CollectionUsers, uid, fields); err != nil {
		return apperr.Wrap(apperr.WriteFailure, "failed to save profile", err)
	}
	s.logger.Info("Profile saved", zap.String("uid", uid))
	return nil
}

// Orders returns the user's orders, newest first. It asks the backend for
// the ordered query and, when that needs a composite index the project does
// not have, retries unordered and sorts client-side instead.
func (s *Service) Orders(ctx context.Context, email string) ([]models.Order, error) {
	filters := []docstore.Filter{{Field: "email", Value: email}}

	docs, err := s.docs.Query(ctx, models.CollectionOrders, filters,
		&docstore.OrderBy{Field: "createdAt", Desc: true})
	if errors.Is(err, docstore.ErrNeedsIndex) {
		s.logger.Warn("Ordered order query needs a composite index, sorting client-side",
			zap.String("email", email))
		docs, err = s.docs.Query(ctx, models.CollectionOrders, filters, nil)
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
		orders = append(orders, OrderFromFields(d.ID, d.Fields))
	}
	return orders, nil
}

// OrderFromFields builds an Order from a raw document, coercing loosely
// typed fields at the boundary.
func OrderFromFields(id string, fields map[string]any) models.Order {
	return models.Order{
		ID:        id,
		Name:      models.CoerceString(fields["name"]),
		Email:     models.CoerceString(fields["email"]),
		Phone:     models.CoerceString(fields["phone"]),
		Address:   models.CoerceString(fields["address"]),
		Note:      models.CoerceString(fields["note"]),
		Items:     itemsFromField(fields["items"]),
		Total:     models.CoerceFloat(fields["total"]),
		Status:    models.CoerceString(fields["status"]),
		CreatedAt: models.CoerceTime(fields["createdAt"]),
	}
}

func itemsFromField(v any) []models.CartLine {
	var lines []models.CartLine
	appendLine := func(m map[string]any) {
		lines = append(lines, models.CartLine{
			ID:       models.CoerceString(m["id"]),
			Name:     models.CoerceString(m["name"]),
			Price:    models.CoerceFloat(m["price"]),
			ImageURL: models.CoerceString(m["imageUrl"]),
			Quantity: models.CoerceInt(m["quantity"]),
		})
	}
	switch items := v.(type) {
	case []map[string]any:
		for _, m := range items {
			appendLine(m)
		}
	case []any:
		for _, it := range items {
			if m, ok := it.(map[string]any); ok {
				appendLine(m)
			}
		}
	}
	return lines
}
