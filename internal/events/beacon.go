// Package events decodes analytics beacons and folds them into sessions.
package events

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"pagetally/internal/sessions"
)

// BeaconVersion is the only wire version accepted.
const BeaconVersion = 1

// An event is a positional array:
//
//	[type, timeMillis, url, referrer, title]
//	["pageview", timeMillis, url, referrer, title, context]
const (
	eventFields            = 5
	eventFieldsWithContext = 6
)

var validate = validator.New()

// Beacon is a decoded, validated batch of events from one client.
type Beacon struct {
	Origin string        `validate:"required,max=253,hostname_rfc1123|hostname_port"`
	Events []BeaconEvent `validate:"required,min=1,dive"`
}

// BeaconEvent is one event. Context is only set on a page view that
// carried the sixth field.
type BeaconEvent struct {
	Type     string         `validate:"oneof=pageview event"`
	Time     int64          `validate:"gt=0,lte=253402300799999"` // at most 9999-12-31T23:59:59.999Z
	URL      string         `validate:"required,http_url,max=2048"`
	Referrer string         `validate:"max=2048"`
	Title    string         `validate:"max=1024"`
	Context  *BeaconContext `validate:"omitempty"`
}

// BeaconContext carries the client fields of the first page view.
type BeaconContext struct {
	TimezoneOffset int      `json:"timezoneOffset" validate:"gte=-900,lte=900"`
	Languages      []string `json:"languages" validate:"max=32,dive,max=35"`
	InnerWidth     int      `json:"innerWidth" validate:"gte=0"`
	InnerHeight    int      `json:"innerHeight" validate:"gte=0"`
	OuterWidth     int      `json:"outerWidth" validate:"gte=0"`
	OuterHeight    int      `json:"outerHeight" validate:"gte=0"`
	ReducedMotion  bool     `json:"reducedMotion"`
	ColorScheme    string   `json:"colorScheme" validate:"omitempty,oneof=light dark"`
}

type wireBeacon struct {
	Version *int              `json:"v"`
	Origin  string            `json:"origin"`
	Events  []json.RawMessage `json:"events"`
}

// ParseBeacon decodes and validates a raw beacon.
func ParseBeacon(raw []byte) (*Beacon, error) {
	var wire wireBeacon
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, beaconError(MalformedBeacon, "%v", err)
	}
	if wire.Version == nil || *wire.Version != BeaconVersion {
		return nil, ErrUnknownBeaconVersion
	}
	if len(wire.Events) == 0 {
		return nil, beaconError(InvalidBeaconLength, "no events")
	}

	beacon := &Beacon{Origin: strings.ToLower(strings.TrimSpace(wire.Origin))}
	for i, rawEvent := range wire.Events {
		event, err := parseEvent(rawEvent)
		if err != nil {
			var be *BeaconError
			if errors.As(err, &be) {
				be.Detail = "event " + strconv.Itoa(i) + ": " + be.Detail
			}
			return nil, err
		}
		beacon.Events = append(beacon.Events, event)
	}

	if err := validate.Struct(beacon); err != nil {
		return nil, beaconError(InvalidBeaconField, "%s", describe(err))
	}
	return beacon, nil
}

func parseEvent(raw json.RawMessage) (BeaconEvent, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return BeaconEvent{}, beaconError(InvalidBeaconField, "not an array")
	}

	var event BeaconEvent
	if len(fields) < eventFields {
		return event, beaconError(InvalidBeaconLength, "%d fields", len(fields))
	}
	if err := decodeField(fields[0], &event.Type); err != nil {
		return event, beaconError(InvalidBeaconField, "type")
	}
	switch {
	case len(fields) == eventFields:
	case len(fields) == eventFieldsWithContext && event.Type == sessions.EventPageView:
	default:
		return event, beaconError(InvalidBeaconLength, "%d fields for %q", len(fields), event.Type)
	}

	if err := decodeField(fields[1], &event.Time); err != nil {
		return event, beaconError(InvalidBeaconField, "time")
	}
	if err := decodeField(fields[2], &event.URL); err != nil {
		return event, beaconError(InvalidBeaconField, "url")
	}
	if err := decodeField(fields[3], &event.Referrer); err != nil {
		return event, beaconError(InvalidBeaconField, "referrer")
	}
	if err := decodeField(fields[4], &event.Title); err != nil {
		return event, beaconError(InvalidBeaconField, "title")
	}
	if len(fields) == eventFieldsWithContext && !isNull(fields[5]) {
		var ctx BeaconContext
		if err := json.Unmarshal(fields[5], &ctx); err != nil {
			return event, beaconError(InvalidBeaconField, "context")
		}
		event.Context = &ctx
	}
	return event, nil
}

// decodeField treats JSON null as the zero value.
func decodeField(raw json.RawMessage, v any) error {
	if isNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	return verrs[0].Namespace() + " failed " + verrs[0].Tag()
}

// toSession converts the wire context into the stored form.
func (c *BeaconContext) toSession() *sessions.Context {
	return &sessions.Context{
		TimezoneOffset: c.TimezoneOffset,
		Languages:      c.Languages,
		InnerWidth:     c.InnerWidth,
		InnerHeight:    c.InnerHeight,
		OuterWidth:     c.OuterWidth,
		OuterHeight:    c.OuterHeight,
		ReducedMotion:  c.ReducedMotion,
		ColorScheme:    c.ColorScheme,
	}
}

// FirstContext returns the context of the first page view that has one.
func (b *Beacon) FirstContext() *BeaconContext {
	for _, e := range b.Events {
		if e.Context != nil {
			return e.Context
		}
	}
	return nil
}

// FirstPageView returns the first page view, if any.
func (b *Beacon) FirstPageView() (BeaconEvent, bool) {
	for _, e := range b.Events {
		if e.Type == sessions.EventPageView {
			return e, true
		}
	}
	return BeaconEvent{}, false
}
