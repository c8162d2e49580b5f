// Package websites is the registry of tracked origins.
package websites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"gorm.io/gorm"
)

// WebsiteNotFoundError represents an error when a website is not found
type WebsiteNotFoundError struct {
	Domain string
}

func (e *WebsiteNotFoundError) Error() string {
	return fmt.Sprintf("website not found for domain: %s", e.Domain)
}

// NewWebsiteNotFoundError creates a new WebsiteNotFoundError
func NewWebsiteNotFoundError(domain string) *WebsiteNotFoundError {
	return &WebsiteNotFoundError{Domain: domain}
}

// Website is a registered origin. Domain doubles as the name of the
// origin's data directory.
type Website struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Domain     string    `gorm:"unique;not null" json:"domain"`
	ShareToken *string   `gorm:"uniqueIndex" json:"share_token"` // If set, stats are readable with this token
	CreatedAt  time.Time `json:"created_at"`
}

// NormalizeDomain lower-cases and trims an origin.
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// CreateWebsite registers domain as an origin.
func CreateWebsite(db *gorm.DB, domain string) (Website, error) {
	domain = NormalizeDomain(domain)
	if domain == "" || strings.ContainsAny(domain, "/\\ ") {
		return Website{}, fmt.Errorf("invalid domain %q", domain)
	}
	website := Website{Domain: domain, CreatedAt: time.Now().UTC()}
	if err := db.Create(&website).Error; err != nil {
		return Website{}, fmt.Errorf("failed to create website %s: %w", domain, err)
	}
	return website, nil
}

// GetWebsiteByDomain retrieves a website by its domain
func GetWebsiteByDomain(db *gorm.DB, domain string) (*Website, error) {
	var website Website
	err := db.Where("domain = ?", NormalizeDomain(domain)).First(&website).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewWebsiteNotFoundError(domain)
	}
	if err != nil {
		return nil, fmt.Errorf("unexpected error querying website: %w", err)
	}
	return &website, nil
}

// ListOrigins returns every registered domain in alphabetical order.
func ListOrigins(db *gorm.DB) ([]string, error) {
	var origins []string
	if err := db.Model(&Website{}).Order("domain ASC").Pluck("domain", &origins).Error; err != nil {
		return nil, fmt.Errorf("failed to list websites: %w", err)
	}
	return origins, nil
}

// DeleteWebsite unregisters a domain. Its session files are left on disk.
func DeleteWebsite(db *gorm.DB, domain string) error {
	result := db.Where("domain = ?", NormalizeDomain(domain)).Delete(&Website{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return NewWebsiteNotFoundError(domain)
	}
	return nil
}

// Registry answers whether beacons for an origin are accepted. Answers
// are cached briefly since every beacon asks.
type Registry struct {
	known *cache.Cache[string, bool]
}

// NewRegistry returns a Registry backed by db.
func NewRegistry(db *gorm.DB, logger *slog.Logger) *Registry {
	fetchFunc := func(domain string) (bool, error) {
		var count int64
		if err := db.Model(&Website{}).Where("domain = ?", domain).Count(&count).Error; err != nil {
			return false, err
		}
		return count > 0, nil
	}
	return &Registry{known: cache.NewCache[string, bool](logger, time.Minute, fetchFunc)}
}

// IsRegistered reports whether origin is a registered website.
func (r *Registry) IsRegistered(_ context.Context, origin string) (bool, error) {
	return r.known.Get(NormalizeDomain(origin))
}
