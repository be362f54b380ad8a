package countries

import (
	"sort"
	"sync"

	"sovpanel/pkg/contracts/domain"
)

// UnresolvedEntry aggregates the rows dropped for one raw identifier in one source
type UnresolvedEntry struct {
	Raw        string               `json:"raw"`
	Source     string               `json:"source"`
	Method     Method               `json:"method"`
	Candidates []domain.CountryCode `json:"candidates,omitempty"`
	Count      int                  `json:"count"`
}

type trackerKey struct {
	raw, source string
}

// Tracker collects unresolved identifiers across loaders. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries map[trackerKey]*UnresolvedEntry
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[trackerKey]*UnresolvedEntry)}
}

// Record counts one dropped row for res, which must be unresolved
func (t *Tracker) Record(source string, res Resolution) {
	if res.Resolved() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	k := trackerKey{raw: res.Raw, source: source}
	e, ok := t.entries[k]
	if !ok {
		e = &UnresolvedEntry{Raw: res.Raw, Source: source, Method: res.Method, Candidates: res.Candidates}
		t.entries[k] = e
	}
	e.Count++
}

// Entries returns the aggregated entries, most frequent first
func (t *Tracker) Entries() []UnresolvedEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]UnresolvedEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Raw < out[j].Raw
	})
	return out
}

// Total returns the number of rows dropped across all identifiers
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, e := range t.entries {
		n += e.Count
	}
	return n
}
