package sessions

import (
	"sync"
	"time"
)

// OpenSession is what the index remembers about a session that may still
// receive events.
type OpenSession struct {
	Path           string
	LastActivity   time.Time // arrival of the last beacon
	LastEvent      time.Time // client time of the last event
	LastURL        string
	TimezoneOffset *int
}

// Expired reports whether the session window closed before now.
func (o OpenSession) Expired(now time.Time, timeout time.Duration) bool {
	return !o.LastActivity.Add(timeout).After(now)
}

// ExpiredAt reports whether an event stamped at eventTime falls outside the
// window measured on client time. Entries without an event time never do.
func (o OpenSession) ExpiredAt(eventTime time.Time, timeout time.Duration) bool {
	return !o.LastEvent.IsZero() && !o.LastEvent.Add(timeout).After(eventTime)
}

// Index tracks recently open sessions per origin. It is an optimization
// only: losing it (for example on restart) makes the next beacon start a
// new session file instead of appending to the previous one.
type Index struct {
	timeout time.Duration

	mu      sync.Mutex
	origins map[string]*OriginTable
}

// OriginTable holds the open sessions of one origin. Its methods must only
// be called from within Index.With.
type OriginTable struct {
	mu      sync.Mutex
	entries map[string]OpenSession
}

func NewIndex(timeout time.Duration) *Index {
	return &Index{timeout: timeout, origins: make(map[string]*OriginTable)}
}

// Timeout is the session window length.
func (ix *Index) Timeout() time.Duration { return ix.timeout }

func (ix *Index) table(origin string) *OriginTable {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	t, ok := ix.origins[origin]
	if !ok {
		t = &OriginTable{entries: make(map[string]OpenSession)}
		ix.origins[origin] = t
	}
	return t
}

// With runs fn holding the origin's lock, serializing every lookup and
// update for that origin.
func (ix *Index) With(origin string, fn func(t *OriginTable) error) error {
	t := ix.table(origin)
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(t)
}

// Get returns the open session for key, if any. Expiry is the caller's
// decision.
func (t *OriginTable) Get(key string) (OpenSession, bool) {
	o, ok := t.entries[key]
	return o, ok
}

func (t *OriginTable) Put(key string, o OpenSession) {
	t.entries[key] = o
}

func (t *OriginTable) Delete(key string) {
	delete(t.entries, key)
}

// Sweep evicts sessions whose window closed before now and returns how many
// were removed.
func (ix *Index) Sweep(now time.Time) int {
	ix.mu.Lock()
	tables := make([]*OriginTable, 0, len(ix.origins))
	for _, t := range ix.origins {
		tables = append(tables, t)
	}
	ix.mu.Unlock()

	removed := 0
	for _, t := range tables {
		t.mu.Lock()
		for key, o := range t.entries {
			if o.Expired(now, ix.timeout) {
				delete(t.entries, key)
				removed++
			}
		}
		t.mu.Unlock()
	}
	return removed
}

// Len counts open sessions across all origins.
func (ix *Index) Len() int {
	ix.mu.Lock()
	tables := make([]*OriginTable, 0, len(ix.origins))
	for _, t := range ix.origins {
		tables = append(tables, t)
	}
	ix.mu.Unlock()

	n := 0
	for _, t := range tables {
		t.mu.Lock()
		n += len(t.entries)
		t.mu.Unlock()
	}
	return n
}
