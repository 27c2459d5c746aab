// Package stats summarizes how draws spread over vendors.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Bucket is one vendor's tally.
type Bucket struct {
	Key      string  `json:"key"`
	Count    int     `json:"count"`
	Share    float64 `json:"share"`
	Expected float64 `json:"expected"`
}

// Report describes a frequency table against a uniform expectation.
type Report struct {
	Total   int      `json:"total"`
	Buckets []Bucket `json:"buckets"`
	// ChiSquare is Pearson's statistic against the uniform distribution.
	ChiSquare float64 `json:"chi_square"`
	// MaxDeviation is the largest |share - 1/k| over all buckets.
	MaxDeviation float64 `json:"max_deviation"`
}

// Tally counts draws per key.
type Tally struct {
	keys   []string
	counts map[string]int
	total  int
}

// NewTally prepares a tally over keys, so keys that are never drawn still
// show up with a zero count.
func NewTally(keys ...string) *Tally {
	t := &Tally{counts: make(map[string]int, len(keys))}
	for _, k := range keys {
		if _, ok := t.counts[k]; ok {
			continue
		}
		t.counts[k] = 0
		t.keys = append(t.keys, k)
	}
	return t
}

// Add records one draw for key. Unknown keys are added on the fly.
func (t *Tally) Add(key string) {
	t.AddN(key, 1)
}

// AddN records n draws for key.
func (t *Tally) AddN(key string, n int) {
	if _, ok := t.counts[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.counts[key] += n
	t.total += n
}

// Report builds the uniformity report. Buckets are sorted by count, then key.
func (t *Tally) Report() Report {
	r := Report{Total: t.total, Buckets: make([]Bucket, 0, len(t.keys))}
	k := len(t.keys)
	if k == 0 {
		return r
	}
	expectedShare := 1 / float64(k)
	expected := float64(t.total) * expectedShare
	obs := make([]float64, 0, k)
	exp := make([]float64, 0, k)
	for _, key := range t.keys {
		c := t.counts[key]
		b := Bucket{Key: key, Count: c, Expected: expected}
		if t.total > 0 {
			b.Share = float64(c) / float64(t.total)
			r.MaxDeviation = math.Max(r.MaxDeviation, math.Abs(b.Share-expectedShare))
		}
		obs = append(obs, float64(c))
		exp = append(exp, expected)
		r.Buckets = append(r.Buckets, b)
	}
	// an empty tally has no expectation to test against
	if expected > 0 {
		r.ChiSquare = stat.ChiSquare(obs, exp)
	}
	sort.SliceStable(r.Buckets, func(i, j int) bool {
		if r.Buckets[i].Count != r.Buckets[j].Count {
			return r.Buckets[i].Count > r.Buckets[j].Count
		}
		return r.Buckets[i].Key < r.Buckets[j].Key
	})
	return r
}
