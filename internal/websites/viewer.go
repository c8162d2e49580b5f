package websites

import (
	"crypto/subtle"
	"errors"
	"slices"

	"gorm.io/gorm"
)

// ErrNoOrigins means the caller may not view any origin.
var ErrNoOrigins = errors.New("noOrigins")

// Viewer is the set of origins a caller may read.
type Viewer struct {
	All     bool
	Origins []string
}

// CanView reports whether origin is visible to v.
func (v Viewer) CanView(origin string) bool {
	return v.All || slices.Contains(v.Origins, NormalizeDomain(origin))
}

// Visible filters origins down to those v may read.
func (v Viewer) Visible(origins []string) []string {
	if v.All {
		return origins
	}
	visible := make([]string, 0, len(v.Origins))
	for _, origin := range origins {
		if v.CanView(origin) {
			visible = append(visible, origin)
		}
	}
	return visible
}

// ResolveViewer maps a bearer token to a Viewer. The admin key sees every
// origin and a share token sees its own; anything else is ErrNoOrigins.
func ResolveViewer(db *gorm.DB, token, adminKey string) (Viewer, error) {
	if token == "" {
		return Viewer{}, ErrNoOrigins
	}
	if adminKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(adminKey)) == 1 {
		return Viewer{All: true}, nil
	}
	website, err := GetWebsiteByShareToken(db, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Viewer{}, ErrNoOrigins
	}
	if err != nil {
		return Viewer{}, err
	}
	return Viewer{Origins: []string{website.Domain}}, nil
}
