// Package clientinfo derives categorical labels from browser context fields.
package clientinfo

import (
	"strings"

	"golang.org/x/text/language"
)

// Bilingualism classes
const (
	BilingualEnglish       = "en"
	BilingualFrench        = "fr"
	BilingualEnglishFirst  = "en+"
	BilingualFrenchFirst   = "fr+"
	BilingualOtherLanguage = "al"
)

// Screen breakpoints, mirroring the dashboard's CSS.
const (
	ScreenXSmall  = "xsmall"
	ScreenMobile  = "mobile"
	ScreenTablet  = "tablet"
	ScreenDesktop = "desktop"
)

var (
	english = mustBase("en")
	french  = mustBase("fr")
)

// BilingualismClass places a language preference list into one of five
// classes: en or fr when only one of the two appears, en+ or fr+ when
// both appear (the first listed wins), and al when neither does.
func BilingualismClass(languages []string) string {
	var hasEnglish, hasFrench bool
	var first language.Base
	for _, l := range languages {
		base, ok := parseBase(l)
		if !ok || (base != english && base != french) {
			continue
		}
		if !hasEnglish && !hasFrench {
			first = base
		}
		hasEnglish = hasEnglish || base == english
		hasFrench = hasFrench || base == french
	}
	switch {
	case hasEnglish && hasFrench && first == english:
		return BilingualEnglishFirst
	case hasEnglish && hasFrench:
		return BilingualFrenchFirst
	case hasEnglish:
		return BilingualEnglish
	case hasFrench:
		return BilingualFrench
	default:
		return BilingualOtherLanguage
	}
}

// PrimaryLanguage returns the base language of the first parseable tag,
// or "" when there is none.
func PrimaryLanguage(languages []string) string {
	for _, l := range languages {
		if base, ok := parseBase(l); ok {
			return base.String()
		}
	}
	return ""
}

// ScreenBreakpoint buckets a viewport width. Widths of zero or less mean
// the client sent no context and yield "".
func ScreenBreakpoint(innerWidth int) string {
	switch {
	case innerWidth <= 0:
		return ""
	case innerWidth <= 360:
		return ScreenXSmall
	case innerWidth <= 800:
		return ScreenMobile
	case innerWidth <= 1080:
		return ScreenTablet
	default:
		return ScreenDesktop
	}
}

func parseBase(tag string) (language.Base, bool) {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return language.Base{}, false
	}
	base, confidence := t.Base()
	if confidence == language.No {
		return language.Base{}, false
	}
	return base, true
}

func mustBase(s string) language.Base {
	return language.MustParseBase(s)
}
