// Package catalog models the set of items a plan is chosen from.
package catalog

import (
	"github.com/turtacn/topk-planner/pkg/errors"
)

// Catalog is an immutable, ordered list of items with unique ids.  Order is
// significant: it fixes variable order in the model and therefore the
// outcome of exact objective ties.
type Catalog struct {
	items []Item
	index map[string]int
}

// NewCatalog validates items and returns a Catalog holding a copy of them.
func NewCatalog(items []Item) (*Catalog, error) {
	if len(items) == 0 {
		return nil, errors.InvalidConfig("catalog must contain at least one item")
	}
	c := &Catalog{
		items: make([]Item, len(items)),
		index: make(map[string]int, len(items)),
	}
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.index[it.ID]; dup {
			return nil, errors.InvalidConfig("duplicate item id").WithDetail("id=" + it.ID)
		}
		c.items[i] = it
		c.index[it.ID] = i
	}
	return c, nil
}

// MustCatalog is NewCatalog that panics, for fixed built-in data.
func MustCatalog(items []Item) *Catalog {
	c, err := NewCatalog(items)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Items returns a copy of the items in catalog order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// At returns the i-th item.
func (c *Catalog) At(i int) Item { return c.items[i] }

// Get looks an item up by id.
func (c *Catalog) Get(id string) (Item, bool) {
	i, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Contains reports whether id is in the catalog.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// IndexOf returns the position of id, or -1.
func (c *Catalog) IndexOf(id string) int {
	if i, ok := c.index[id]; ok {
		return i
	}
	return -1
}

// IDs returns item ids in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.items))
	for i, it := range c.items {
		out[i] = it.ID
	}
	return out
}

// Categories returns the distinct categories in order of first appearance.
func (c *Catalog) Categories() []string {
	return distinct(c.items, func(it Item) string { return it.Category })
}

// Timeslots returns the distinct timeslots in order of first appearance.
func (c *Catalog) Timeslots() []string {
	return distinct(c.items, func(it Item) string { return it.Timeslot })
}

// IndicesByCategory maps each category to the positions of its items.
func (c *Catalog) IndicesByCategory() map[string][]int {
	return group(c.items, func(it Item) string { return it.Category })
}

// IndicesByTimeslot maps each timeslot to the positions of its items.
func (c *Catalog) IndicesByTimeslot() map[string][]int {
	return group(c.items, func(it Item) string { return it.Timeslot })
}

func distinct(items []Item, key func(Item) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, it := range items {
		k := key(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func group(items []Item, key func(Item) string) map[string][]int {
	out := make(map[string][]int)
	for i, it := range items {
		k := key(it)
		out[k] = append(out[k], i)
	}
	return out
}
