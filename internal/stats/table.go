package stats

import (
	"slices"

	"github.com/goccy/go-json"
)

// Entry is one row of a serialized frequency table.
type Entry struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// Table counts occurrences per key and remembers the order in which keys
// were first seen. It is sorted only when serialized.
type Table struct {
	keys   []string
	counts map[string]int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{counts: make(map[string]int)}
}

// Add increments key by n.
func (t *Table) Add(key string, n int) {
	if _, ok := t.counts[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.counts[key] += n
}

// Get returns the count of key.
func (t *Table) Get(key string) int { return t.counts[key] }

// Len is the number of distinct keys.
func (t *Table) Len() int { return len(t.keys) }

// Total sums every count.
func (t *Table) Total() int {
	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

// Entries returns the rows sorted by value, largest first. Ties keep the
// order in which keys were first added.
func (t *Table) Entries() []Entry {
	entries := make([]Entry, 0, len(t.keys))
	for _, k := range t.keys {
		entries = append(entries, Entry{Key: k, Value: t.counts[k]})
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return b.Value - a.Value
	})
	return entries
}

func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Entries())
}

func (t *Table) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*t = Table{counts: make(map[string]int, len(entries))}
	for _, e := range entries {
		t.Add(e.Key, e.Value)
	}
	return nil
}
