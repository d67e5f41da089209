// Package cartview projects the cart store into view-models: formatted
// rows, a summary, and the quantity/remove interactions. It never caches
// cart state of its own; every action re-derives from the store.
package cartview

import (
	"context"
	"math"
	"strings"

	"storefront-service/internal/cart"
	"storefront-service/internal/models"
)

// Row is the view-model for one cart line.
type Row struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ImageURL     string  `json:"imageUrl"`
	Quantity     int     `json:"quantity"`
	UnitPrice    string  `json:"unitPrice"`
	LineTotal    string  `json:"lineTotal"`
	RawLineTotal float64 `json:"rawLineTotal"`
}

// Summary is the view-model for the cart footer.
type Summary struct {
	Total           string  `json:"total"`
	RawTotal        float64 `json:"rawTotal"`
	ItemCount       int     `json:"itemCount"`
	CheckoutEnabled bool    `json:"checkoutEnabled"`
	Empty           bool    `json:"empty"`
}

// ViewModel is the full cart page view-model.
type ViewModel struct {
	Rows    []Row   `json:"rows"`
	Summary Summary `json:"summary"`
}

// Render maps a cart to its view-model. Pure function of the line list.
func Render(lines []models.CartLine) ViewModel {
	rows := make([]Row, 0, len(lines))
	for _, l := range lines {
		lineTotal := l.Price * float64(l.Quantity)
		if math.IsNaN(lineTotal) || lineTotal < 0 {
			lineTotal = 0
		}
		rows = append(rows, Row{
			ID:           l.ID,
			Name:         l.Name,
			ImageURL:     l.ImageURL,
			Quantity:     l.Quantity,
			UnitPrice:    FormatINR(l.Price),
			LineTotal:    FormatINR(lineTotal),
			RawLineTotal: lineTotal,
		})
	}

	total := cart.Total(lines)
	return ViewModel{
		Rows: rows,
		Summary: Summary{
			Total:           FormatINR(total),
			RawTotal:        total,
			ItemCount:       cart.ItemCount(lines),
			CheckoutEnabled: len(lines) > 0,
			Empty:           len(lines) == 0,
		},
	}
}

// FormatINR renders an amount as rupees: rounded to whole units, grouped
// with Indian digit grouping (last three digits, then pairs), ₹-prefixed.
func FormatINR(amount float64) string {
	if math.IsNaN(amount) || amount < 0 {
		amount = 0
	}
	n := int64(math.Round(amount))

	digits := []byte{}
	if n == 0 {
		digits = []byte{'0'}
	}
	for n > 0 {
		digits = append(digits, byte('0'+n%10))
		n /= 10
	}
	// digits are reversed; insert separators after the third digit, then
	// after every following pair.
	var b strings.Builder
	b.WriteString("₹")
	out := make([]byte, 0, len(digits)+len(digits)/2)
	for i, d := range digits {
		if i == 3 || (i > 3 && (i-3)%2 == 0) {
			out = append(out, ',')
		}
		out = append(out, d)
	}
	for i := len(out) - 1; i >= 0; i-- {
		b.WriteByte(out[i])
	}
	return b.String()
}

// Controller wires the view interactions to the cart store.
type Controller struct {
	store *cart.Store
}

// NewController creates a controller over the given cart store.
func NewController(store *cart.Store) *Controller {
	return &Controller{store: store}
}

// View renders the current store state.
func (c *Controller) View(ctx context.Context) ViewModel {
	return Render(c.store.Load(ctx))
}

// Increment bumps a line's quantity by one.
func (c *Controller) Increment(ctx context.Context, id string) (ViewModel, error) {
	lines := c.store.Load(ctx)
	for _, l := range lines {
		if l.ID == id {
			updated, err := c.store.SetQuantity(ctx, id, l.Quantity+1)
			if err != nil {
				return ViewModel{}, err
			}
			return Render(updated), nil
		}
	}
	return Render(lines), nil
}

// Decrement lowers a line's quantity by one; at one it is a no-op, the line
// can only be dropped through Remove.
func (c *Controller) Decrement(ctx context.Context, id string) (ViewModel, error) {
	lines := c.store.Load(ctx)
	for _, l := range lines {
		if l.ID == id {
			updated, err := c.store.SetQuantity(ctx, id, l.Quantity-1)
			if err != nil {
				return ViewModel{}, err
			}
			return Render(updated), nil
		}
	}
	return Render(lines), nil
}

// Remove deletes a line.
func (c *Controller) Remove(ctx context.Context, id string) (ViewModel, error) {
	updated, err := c.store.Remove(ctx, id)
	if err != nil {
		return ViewModel{}, err
	}
	return Render(updated), nil
}

// Clear empties the cart.
func (c *Controller) Clear(ctx context.Context) (ViewModel, error) {
	if err := c.store.Clear(ctx); err != nil {
		return ViewModel{}, err
	}
	return Render(nil), nil
}
