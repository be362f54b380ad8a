package operations

import (
	"sort"
	"sync"
)

// DropCount is the number of observations one source lost for one reason
type DropCount struct {
	Reason string `json:"reason"`
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type dropKey struct {
	reason string
	source string
}

// DropCounter accumulates dropped observations by reason and source
type DropCounter struct {
	mu     sync.Mutex
	counts map[dropKey]int
}

// NewDropCounter creates an empty counter
func NewDropCounter() *DropCounter {
	return &DropCounter{counts: make(map[dropKey]int)}
}

// Add records n drops. Non-positive n is ignored.
func (d *DropCounter) Add(reason, source string, n int) {
	if n <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts[dropKey{reason: reason, source: source}] += n
}

// Total returns every recorded drop
func (d *DropCounter) Total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.counts {
		n += c
	}
	return n
}

// ByReason sums drops across sources
func (d *DropCounter) ByReason() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int)
	for k, c := range d.counts {
		out[k.reason] += c
	}
	return out
}

// Entries returns the counts sorted by reason then source
func (d *DropCounter) Entries() []DropCount {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DropCount, 0, len(d.counts))
	for k, c := range d.counts {
		out = append(out, DropCount{Reason: k.reason, Source: k.source, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reason != out[j].Reason {
			return out[i].Reason < out[j].Reason
		}
		return out[i].Source < out[j].Source
	})
	return out
}
