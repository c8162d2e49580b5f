package stats

import (
	"strconv"

	"pagetally/internal/pkg/clientinfo"
	"pagetally/internal/pkg/geoip"
	"pagetally/internal/pkg/referrers"
	"pagetally/internal/pkg/user_agent"
	"pagetally/internal/sessions"
)

// Dimension names double as table names and filter keys.
const (
	PageViews           = "pageViews"
	EntryPages          = "entryPages"
	ExitPages           = "exitPages"
	ReferralChannels    = "referralChannels"
	ReferralOrigins     = "referralOrigins"
	BilingualismClasses = "bilingualismClasses"
	Languages           = "languages"
	ScreenBreakpoints   = "screenBreakpoints"
	OSNames             = "osNames"
	RenderingEngines    = "renderingEngines"
	Countries           = "countries"
	Regions             = "regions"
	Cities              = "cities"
	TimezoneOffsets     = "timezoneOffsets"
	ColorSchemes        = "colorSchemes"
	ReducedMotion       = "reducedMotion"
	SessionDays         = "sessionDays"
	SessionLengths      = "sessionLengths"
)

// Dimensions lists every dimension in document order.
var Dimensions = []string{
	PageViews, EntryPages, ExitPages, ReferralChannels, ReferralOrigins,
	BilingualismClasses, Languages, ScreenBreakpoints, OSNames, RenderingEngines,
	Countries, Regions, Cities, TimezoneOffsets, ColorSchemes, ReducedMotion,
	SessionDays, SessionLengths,
}

// Unknown replaces empty attribute values.
const Unknown = "unknown"

// Attributes maps each dimension to the session's keys for it. Every
// dimension has exactly one key except pageViews, which has one per view.
type Attributes map[string][]string

// describe derives a session's attributes. Nothing derived here is stored,
// so classifier changes apply to old sessions too.
func describe(s *sessions.Session, loc geoip.Location) Attributes {
	ctx := s.Context
	if ctx == nil {
		ctx = &sessions.Context{}
	}

	views := s.PageViews()
	urls := make([]string, len(views))
	for i, v := range views {
		urls[i] = orUnknown(v.URL)
	}

	channel := referrers.Channel(s.Referrer(), s.Origin)
	referralOrigin := ""
	if channel != referrers.ChannelDirect && channel != referrers.ChannelInternal {
		referralOrigin = referrers.Hostname(s.Referrer())
	}

	bilingualism := ""
	if len(ctx.Languages) > 0 {
		bilingualism = clientinfo.BilingualismClass(ctx.Languages)
	}

	timezone := ""
	colorScheme := ctx.ColorScheme
	reducedMotion := ""
	if s.Context != nil {
		timezone = strconv.Itoa(ctx.TimezoneOffset)
		reducedMotion = strconv.FormatBool(ctx.ReducedMotion)
	}

	country := loc.Country
	if loc.CountryCode != "" {
		country = geoip.CountryName(loc.CountryCode)
	}

	return Attributes{
		PageViews:           urls,
		EntryPages:          one(s.EntryPage()),
		ExitPages:           one(s.ExitPage()),
		ReferralChannels:    one(channel),
		ReferralOrigins:     one(referralOrigin),
		BilingualismClasses: one(bilingualism),
		Languages:           one(clientinfo.PrimaryLanguage(ctx.Languages)),
		ScreenBreakpoints:   one(clientinfo.ScreenBreakpoint(ctx.InnerWidth)),
		OSNames:             one(user_agent.OSName(s.UA)),
		RenderingEngines:    one(user_agent.RenderingEngine(s.UA)),
		Countries:           one(country),
		Regions:             one(loc.Region),
		Cities:              one(loc.City),
		TimezoneOffsets:     one(timezone),
		ColorSchemes:        one(colorScheme),
		ReducedMotion:       one(reducedMotion),
		SessionDays:         one(s.Day.String()),
		SessionLengths:      one(strconv.Itoa(len(views))),
	}
}

func one(value string) []string {
	return []string{orUnknown(value)}
}

func orUnknown(value string) string {
	if value == "" {
		return Unknown
	}
	return value
}
