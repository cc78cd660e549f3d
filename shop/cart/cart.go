// Package cart holds the per-chat product quantities.
//
// Quantities are always at least one: any change that would leave a line at
// zero or below removes the line instead. Lines keep the order in which they
// were first added so repeated renders show them in a stable order.
package cart

import (
	"errors"

	"github.com/m3rciful/storebot/shop/catalog"
)

var (
	// ErrUnknownProduct is returned when a product name does not resolve in the catalog.
	ErrUnknownProduct = errors.New("cart: unknown product")
	// ErrNotInCart is returned when adjusting a line that does not exist.
	ErrNotInCart = errors.New("cart: product not in cart")
)

// Item is one cart line.
type Item struct {
	Name     string `json:"product_name"`
	Quantity int    `json:"quantity"`
}

// Cart maps product names to quantities. It is not safe for concurrent use;
// the owning session serializes access.
type Cart struct {
	order []string
	qty   map[string]int
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{qty: make(map[string]int)}
}

// Add increments the quantity of name by one, creating the line if needed.
func (c *Cart) Add(products catalog.Finder, name string) (int, error) {
	if _, ok := products.Find(name); !ok {
		return 0, ErrUnknownProduct
	}
	if _, ok := c.qty[name]; !ok {
		c.order = append(c.order, name)
	}
	c.qty[name]++
	return c.qty[name], nil
}

// Adjust adds delta to an existing line and returns the resulting quantity.
// A result of zero or less removes the line and reports 0.
func (c *Cart) Adjust(name string, delta int) (int, error) {
	q, ok := c.qty[name]
	if !ok {
		return 0, ErrNotInCart
	}
	q += delta
	if q <= 0 {
		c.Remove(name)
		return 0, nil
	}
	c.qty[name] = q
	return q, nil
}

// Remove drops the line and reports whether it existed.
func (c *Cart) Remove(name string) bool {
	if _, ok := c.qty[name]; !ok {
		return false
	}
	delete(c.qty, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Quantity returns the quantity for name, zero when absent.
func (c *Cart) Quantity(name string) int {
	return c.qty[name]
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.order)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.order) == 0
}

// Items returns the lines in first-add order.
func (c *Cart) Items() []Item {
	items := make([]Item, 0, len(c.order))
	for _, name := range c.order {
		items = append(items, Item{Name: name, Quantity: c.qty[name]})
	}
	return items
}

// Snapshot captures the current lines as an immutable value.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{items: c.Items()}
}

// Total sums quantity * unit price; lines whose product left the catalog are skipped.
func (c *Cart) Total(products catalog.Finder) int {
	return total(products, c.Items())
}

// Clear removes every line.
func (c *Cart) Clear() {
	c.order = nil
	c.qty = make(map[string]int)
}

// Snapshot is a read-only copy of cart lines taken at a point in time.
type Snapshot struct {
	items []Item
}

// Items returns a copy of the captured lines.
func (s Snapshot) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of captured lines.
func (s Snapshot) Len() int {
	return len(s.items)
}

// IsEmpty reports whether the snapshot has no lines.
func (s Snapshot) IsEmpty() bool {
	return len(s.items) == 0
}

// Total sums the captured lines against the catalog.
func (s Snapshot) Total(products catalog.Finder) int {
	return total(products, s.items)
}

func total(products catalog.Finder, items []Item) int {
	sum := 0
	for _, it := range items {
		p, ok := products.Find(it.Name)
		if !ok {
			continue
		}
		sum += p.UnitPrice * it.Quantity
	}
	return sum
}
