// Package selector draws a random vendor, and a dish from it, out of a catalog.
//
// Draws are vendor-uniform: every vendor is equally likely no matter how many
// dishes it lists, and a dish is drawn uniformly only after its vendor won.
package selector

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/whattoeat/internal/domain/catalog"
)

// Source yields uniform integers in [0, n). Implementations are called with
// n > 0 only.
type Source interface {
	IntN(n int) int
}

// Result is one draw. Dish is empty when the vendor lists no dishes.
type Result struct {
	Group  string `json:"group"`
	Vendor string `json:"vendor"`
	Dish   string `json:"dish"`
}

// Label renders a result for display: "vendor\ndish", or just the vendor.
func Label(r Result) string {
	if r.Dish == "" {
		return r.Vendor
	}
	return r.Vendor + "\n" + r.Dish
}

// Selector draws results using an injected random source.
type Selector struct {
	mu  sync.Mutex
	src Source
}

// New returns a Selector backed by src. A nil src falls back to NewSource(0).
func New(src Source) *Selector {
	if src == nil {
		src = NewSource(0)
	}
	return &Selector{src: src}
}

// NewSource returns a PCG generator. A zero seed picks a time-based seed.
func NewSource(seed uint64) Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Pick draws one result from c. An empty catalog yields ErrInvalidInput.
func (s *Selector) Pick(c *catalog.Catalog) (Result, error) {
	n := c.Len()
	if n == 0 {
		return Result{}, fmt.Errorf("%w: empty catalog", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := c.At(s.intN(n))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	r := Result{Group: v.Group, Vendor: v.Name}
	if v.HasDishes() {
		r.Dish = v.Dishes[s.intN(len(v.Dishes))].Name
	}
	return r, nil
}

// intN guards against sources that misbehave at the edges.
func (s *Selector) intN(n int) int {
	i := s.src.IntN(n)
	if i < 0 || i >= n {
		i = ((i % n) + n) % n
	}
	return i
}
