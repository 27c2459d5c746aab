// Package catalog holds the read-only menu of vendors and their dishes.
//
// A Catalog is built once at startup and never mutated afterwards; every
// accessor hands out copies so callers cannot alter the shared menu.
package catalog

import (
	"fmt"
	"strings"
)

// Dish is identified only by its name within the parent vendor.
type Dish struct {
	Name string `json:"name"`
}

// Vendor is a food outlet. Group is a coarse location label such as a
// dining hall; it is metadata, not a reference to another entity.
type Vendor struct {
	Name   string `json:"name"`
	Group  string `json:"group"`
	Dishes []Dish `json:"dishes"`
}

// HasDishes reports whether the vendor lists any dishes.
func (v Vendor) HasDishes() bool { return len(v.Dishes) > 0 }

func (v Vendor) clone() Vendor {
	out := v
	out.Dishes = append([]Dish(nil), v.Dishes...)
	if out.Dishes == nil {
		out.Dishes = []Dish{}
	}
	return out
}

// Catalog is an ordered, immutable sequence of vendors.
type Catalog struct {
	vendors []Vendor
	groups  []string
}

// New validates vendors and returns a catalog over a private copy of them.
// Names are trimmed; an empty list, an unnamed vendor or an unnamed dish
// yields ErrInvalidCatalog.
func New(vendors []Vendor) (*Catalog, error) {
	if len(vendors) == 0 {
		return nil, fmt.Errorf("%w: no vendors", ErrInvalidCatalog)
	}

	c := &Catalog{vendors: make([]Vendor, 0, len(vendors))}
	seen := make(map[string]struct{})
	for i, v := range vendors {
		v = v.clone()
		v.Name = strings.TrimSpace(v.Name)
		v.Group = strings.TrimSpace(v.Group)
		if v.Name == "" {
			return nil, fmt.Errorf("%w: vendor %d has no name", ErrInvalidCatalog, i)
		}
		for j := range v.Dishes {
			v.Dishes[j].Name = strings.TrimSpace(v.Dishes[j].Name)
			if v.Dishes[j].Name == "" {
				return nil, fmt.Errorf("%w: vendor %q dish %d has no name", ErrInvalidCatalog, v.Name, j)
			}
		}
		if _, ok := seen[v.Group]; !ok {
			seen[v.Group] = struct{}{}
			c.groups = append(c.groups, v.Group)
		}
		c.vendors = append(c.vendors, v)
	}
	return c, nil
}

// Len returns the number of vendors. A nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.vendors)
}

// At returns a copy of the vendor at index i.
func (c *Catalog) At(i int) (Vendor, error) {
	if i < 0 || i >= c.Len() {
		return Vendor{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return c.vendors[i].clone(), nil
}

// Vendors returns a copy of every vendor in catalog order.
func (c *Catalog) Vendors() []Vendor {
	out := make([]Vendor, 0, c.Len())
	if c == nil {
		return out
	}
	for _, v := range c.vendors {
		out = append(out, v.clone())
	}
	return out
}

// Groups returns distinct group labels in first-seen order.
func (c *Catalog) Groups() []string {
	if c == nil {
		return []string{}
	}
	return append([]string{}, c.groups...)
}

// InGroup returns a copy of the vendors carrying the given group label.
func (c *Catalog) InGroup(group string) []Vendor {
	out := []Vendor{}
	if c == nil {
		return out
	}
	for _, v := range c.vendors {
		if v.Group == group {
			out = append(out, v.clone())
		}
	}
	return out
}

// DishCount returns the total number of dishes across all vendors.
func (c *Catalog) DishCount() int {
	n := 0
	if c == nil {
		return n
	}
	for _, v := range c.vendors {
		n += len(v.Dishes)
	}
	return n
}
