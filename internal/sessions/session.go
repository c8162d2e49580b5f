// Package sessions persists visitor sessions as one JSON document per
// session, partitioned by origin and arrival day:
//
//	<root>/<origin>/sessions/<year>/<month>/<day>/<key>[-n].json
//
// Derived attributes (country, OS, bilingualism class) are not stored;
// they are computed when sessions are aggregated.
package sessions

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"pagetally/internal/calendar"
)

// DocumentVersion is written into every session document.
const DocumentVersion = 1

// Event types
const (
	EventPageView = "pageview"
	EventCustom   = "event"
)

// Event is one entry of a session, in arrival order.
type Event struct {
	Type     string `json:"type"`
	Time     int64  `json:"time"`
	URL      string `json:"url"`
	Referrer string `json:"referrer"`
	Title    string `json:"title"`
}

// Context holds the client fields sent with the first page view.
type Context struct {
	TimezoneOffset int      `json:"timezoneOffset"`
	Languages      []string `json:"languages"`
	InnerWidth     int      `json:"innerWidth"`
	InnerHeight    int      `json:"innerHeight"`
	OuterWidth     int      `json:"outerWidth"`
	OuterHeight    int      `json:"outerHeight"`
	ReducedMotion  bool     `json:"reducedMotion"`
	ColorScheme    string   `json:"colorScheme"`
}

// Session is the persisted document. Times are Unix milliseconds.
type Session struct {
	Version      int            `json:"version"`
	Origin       string         `json:"origin"`
	Key          string         `json:"key"`
	IP           string         `json:"ip"`
	UA           string         `json:"ua"`
	Day          calendar.Value `json:"day"`
	Start        int64          `json:"start"`
	LastActivity int64          `json:"lastActivity"`
	Context      *Context       `json:"context,omitempty"`
	Events       []Event        `json:"events"`
}

// PageViews returns the page-view events in order.
func (s *Session) PageViews() []Event {
	views := make([]Event, 0, len(s.Events))
	for _, e := range s.Events {
		if e.Type == EventPageView {
			views = append(views, e)
		}
	}
	return views
}

// EntryPage is the URL of the first page view, or "".
func (s *Session) EntryPage() string {
	for _, e := range s.Events {
		if e.Type == EventPageView {
			return e.URL
		}
	}
	return ""
}

// ExitPage is the URL of the last page view, or "".
func (s *Session) ExitPage() string {
	for i := len(s.Events) - 1; i >= 0; i-- {
		if s.Events[i].Type == EventPageView {
			return s.Events[i].URL
		}
	}
	return ""
}

// Referrer is the referrer of the first page view, or "".
func (s *Session) Referrer() string {
	for _, e := range s.Events {
		if e.Type == EventPageView {
			return e.Referrer
		}
	}
	return ""
}

// Key derives the stable session key for an (ip, user agent) pair. The salt
// keeps raw addresses from being recoverable by brute force over the key.
func Key(salt, ip, ua string) string {
	secret := []byte(salt)
	if len(secret) > blake2b.Size {
		sum := blake2b.Sum256(secret)
		secret = sum[:]
	}
	h, err := blake2b.New(16, secret)
	if err != nil {
		// Only reachable with an oversized key, ruled out above.
		panic(err)
	}
	h.Write([]byte(ip))
	h.Write([]byte{0})
	h.Write([]byte(ua))
	return hex.EncodeToString(h.Sum(nil))
}
