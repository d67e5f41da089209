// Package badge derives the navigation cart badge from the cart store. The
// projector holds no cart state; it always recomputes the count from what it
// is handed, so projecting twice is harmless.
package badge

import (
	"strconv"
	"sync"

	"storefront-service/internal/cart"
	"storefront-service/internal/models"
)

// Sink is one navigation affordance showing the badge. Show receives the
// formatted count; Hide removes the badge entirely.
type Sink interface {
	Show(text string)
	Hide()
}

// Projector pushes the cart item count to every attached sink.
type Projector struct {
	mu    sync.Mutex
	sinks []Sink
}

// NewProjector creates a projector with no sinks.
func NewProjector(sinks ...Sink) *Projector {
	return &Projector{sinks: sinks}
}

// Attach registers another sink and immediately leaves it blank until the
// next projection.
func (p *Projector) Attach(s Sink) {
	p.mu.Lock()
	p.sinks = append(p.sinks, s)
	p.mu.Unlock()
}

// Project recomputes the count and reflects it onto every sink. A count of
// zero hides the badge.
func (p *Projector) Project(lines []models.CartLine) {
	count := cart.ItemCount(lines)

	p.mu.Lock()
	sinks := make([]Sink, len(p.sinks))
	copy(sinks, p.sinks)
	p.mu.Unlock()

	for _, s := range sinks {
		if count > 0 {
			s.Show(strconv.Itoa(count))
		} else {
			s.Hide()
		}
	}
}

// Bind subscribes the projector to a cart store so every persisted change
// re-projects. The returned func cancels the binding.
func (p *Projector) Bind(store *cart.Store) (cancel func()) {
	return store.Subscribe(p.Project)
}

// Counter is a Sink that records the latest badge state, used by the API
// layer to report the badge alongside cart responses.
type Counter struct {
	mu      sync.Mutex
	text    string
	visible bool
}

func (c *Counter) Show(text string) {
	c.mu.Lock()
	c.text, c.visible = text, true
	c.mu.Unlock()
}

func (c *Counter) Hide() {
	c.mu.Lock()
	c.text, c.visible = "", false
	c.mu.Unlock()
}

// State returns the current badge text and whether it is visible.
func (c *Counter) State() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.visible
}
