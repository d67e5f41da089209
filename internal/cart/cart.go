// Package cart owns the persisted shopping cart: an ordered list of line
// items kept under a single storage key, with quantity/price aggregation.
// It has no UI concerns; views subscribe to changes instead.
package cart

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

// Storage is the single persisted key holding the serialized cart. The key
// may be shared by other processes (e.g. several tabs of the same browser
// profile hitting the same session); no cross-process locking is provided,
// so concurrent writers can race. Within this process every mutation
// re-reads the persisted state immediately before writing.
type Storage interface {
	// Read returns the raw payload and whether the key exists.
	Read(ctx context.Context) ([]byte, bool, error)
	Write(ctx context.Context, payload []byte) error
	Delete(ctx context.Context) error
}

// Store is the Local Cart Store. All mutations go through Save so every
// change is persisted and observers are notified.
type Store struct {
	storage Storage
	logger  *zap.Logger

	mu          sync.Mutex
	subMu       sync.Mutex
	subscribers map[int]func([]models.CartLine)
	nextSubID   int
}

// NewStore creates a cart store over the given persisted key.
func NewStore(storage Storage) *Store {
	return &Store{
		storage:     storage,
		logger:      util.GetLogger(),
		subscribers: make(map[int]func([]models.CartLine)),
	}
}

// persistedLine tolerates the loose typing of historical cart payloads:
// prices written as strings, and the short-lived "qty" field name.
type persistedLine struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    any    `json:"price"`
	ImageURL string `json:"imageUrl"`
	Quantity any    `json:"quantity"`
	Qty      any    `json:"qty"`
}

// Load reads and deserializes the persisted cart. A missing key or a
// malformed payload yields the empty cart; Load never fails.
func (s *Store) Load(ctx context.Context) []models.CartLine {
	payload, ok, err := s.storage.Read(ctx)
	if err != nil {
		s.logger.Warn("Cart read failed, treating as empty", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	var raw []persistedLine
	if err := json.Unmarshal(payload, &raw); err != nil {
		util.CartCorruptionsTotal.Inc()
		s.logger.Warn("Persisted cart unparsable, treating as empty", zap.Error(err))
		return nil
	}

	lines := make([]models.CartLine, 0, len(raw))
	for _, r := range raw {
		if r.ID == "" {
			continue
		}
		qty := r.Quantity
		if qty == nil {
			qty = r.Qty
		}
		lines = append(lines, models.CartLine{
			ID:       r.ID,
			Name:     r.Name,
			Price:    models.CoerceFloat(r.Price),
			ImageURL: r.ImageURL,
			Quantity: clampQuantity(models.CoerceInt(qty)),
		})
	}
	return lines
}

// Save serializes and persists the full cart, then notifies subscribers.
func (s *Store) Save(ctx context.Context, lines []models.CartLine) error {
	payload, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	if err := s.storage.Write(ctx, payload); err != nil {
		return err
	}
	s.notify(lines)
	return nil
}

// Add merges a product snapshot into the cart: an existing line's quantity
// is incremented, otherwise a new line is appended. Price is coerced to a
// number here so a string price can never poison the totals.
func (s *Store) Add(ctx context.Context, p models.Product, quantity int) ([]models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		quantity = 1
	}

	lines := s.Load(ctx)
	merged := false
	for i := range lines {
		if lines[i].ID == p.ID {
			lines[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		lines = append(lines, models.CartLine{
			ID:       p.ID,
			Name:     p.Name,
			Price:    models.CoerceFloat(p.Price),
			ImageURL: p.ImageURL,
			Quantity: quantity,
		})
	}

	if err := s.Save(ctx, lines); err != nil {
		return nil, err
	}
	util.CartMutationsTotal.WithLabelValues("add").Inc()
	return lines, nil
}

// SetQuantity sets a line's quantity, clamping to a minimum of 1. Dropping
// a line is only possible through Remove; asking for zero or less floors at
// one. Unknown IDs are a no-op.
func (s *Store) SetQuantity(ctx context.Context, id string, n int) ([]models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.Load(ctx)
	changed := false
	for i := range lines {
		if lines[i].ID == id {
			next := clampQuantity(n)
			if lines[i].Quantity != next {
				lines[i].Quantity = next
				changed = true
			}
			break
		}
	}
	if !changed {
		return lines, nil
	}

	if err := s.Save(ctx, lines); err != nil {
		return nil, err
	}
	util.CartMutationsTotal.WithLabelValues("set_quantity").Inc()
	return lines, nil
}

// Remove deletes a line; removing an absent ID leaves the cart unchanged.
func (s *Store) Remove(ctx context.Context, id string) ([]models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.Load(ctx)
	for i := range lines {
		if lines[i].ID == id {
			lines = append(lines[:i:i], lines[i+1:]...)
			if err := s.Save(ctx, lines); err != nil {
				return nil, err
			}
			util.CartMutationsTotal.WithLabelValues("remove").Inc()
			return lines, nil
		}
	}
	return lines, nil
}

// Clear removes the persisted key entirely, used after a confirmed checkout
// or an explicit user action.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Delete(ctx); err != nil {
		return err
	}
	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	s.notify(nil)
	return nil
}

// Subscribe registers fn to run after every persisted change. The returned
// func cancels the subscription.
func (s *Store) Subscribe(fn func([]models.CartLine)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(lines []models.CartLine) {
	s.subMu.Lock()
	fns := make([]func([]models.CartLine), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(lines)
	}
}

// Total sums price × quantity over all lines. Absent or invalid numeric
// fields count as zero, never NaN.
func Total(lines []models.CartLine) float64 {
	var total float64
	for _, l := range lines {
		price := l.Price
		if price != price || price < 0 { // NaN or negative snapshot
			price = 0
		}
		qty := l.Quantity
		if qty < 0 {
			qty = 0
		}
		total += price * float64(qty)
	}
	return total
}

// ItemCount sums quantities over all lines.
func ItemCount(lines []models.CartLine) int {
	var count int
	for _, l := range lines {
		if l.Quantity > 0 {
			count += l.Quantity
		}
	}
	return count
}

func clampQuantity(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
