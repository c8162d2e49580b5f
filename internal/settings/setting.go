// Package settings stores instance-wide key/value settings, most notably
// the exclusion lists applied when sessions are aggregated.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"pagetally/internal/pkg/geoip"
)

// Exclusion list keys. Values are comma-separated.
const (
	KeyExcludedIPs   = "excluded_ips"
	KeySpamIPs       = "spam_ips"
	KeySpamCountries = "spam_countries"
)

// Setting represents a configuration item in the database
type Setting struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

// Exclusions are the lists a session is checked against before it counts.
// Countries are upper-case ISO alpha-2 codes.
type Exclusions struct {
	DevIPs        []string
	SpamIPs       []string
	SpamCountries []string
}

// IsDevIP reports whether ip belongs to the site's own developers.
func (e Exclusions) IsDevIP(ip string) bool { return slices.Contains(e.DevIPs, ip) }

// IsSpamIP reports whether ip is a known spam source.
func (e Exclusions) IsSpamIP(ip string) bool { return slices.Contains(e.SpamIPs, ip) }

// IsSpamCountry reports whether the alpha-2 code is blocklisted.
func (e Exclusions) IsSpamCountry(code string) bool {
	return code != "" && slices.Contains(e.SpamCountries, strings.ToUpper(code))
}

var (
	listsMu    sync.RWMutex
	listsCache *cache.Cache[string, []string]
)

// SetupDefaultSettings inserts the exclusion keys when missing and loads
// the list cache.
func SetupDefaultSettings(dbConn *gorm.DB, logger *slog.Logger) error {
	keys := []string{KeyExcludedIPs, KeySpamIPs, KeySpamCountries}
	err := sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		for _, key := range keys {
			err := tx.Exec(`
                INSERT INTO settings (key, value, created_at, updated_at)
                VALUES (?, ?, ?, ?)
                ON CONFLICT(key) DO NOTHING
            `, key, "", time.Now().UTC(), time.Now().UTC()).Error
			if err != nil {
				logger.Error("Failed to upsert setting", slog.String("key", key), slog.Any("error", err))
				return fmt.Errorf("failed to upsert setting %s: %w", key, err)
			}
		}
		return nil
	})

	loadCache(dbConn, logger)

	return err
}

// GetSetting retrieves a setting value from the database
func GetSetting(dbConn *gorm.DB, key string) (string, error) {
	var setting Setting
	result := dbConn.Where("key = ?", key).First(&setting)

	if result.Error != nil {
		return "", result.Error
	}

	return setting.Value, nil
}

// UpdateSetting stores value under key, creating the row when needed, and
// drops the cached exclusion lists.
func UpdateSetting(dbConn *gorm.DB, key string, value string) error {
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		result := tx.Model(&Setting{}).Where("key = ?", key).Update("value", value)
		if result.Error != nil {
			return fmt.Errorf("failed to update setting: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			if err := tx.Create(&Setting{Key: key, Value: value}).Error; err != nil {
				return fmt.Errorf("failed to create setting: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	loadCache(dbConn, slog.Default())
	return nil
}

// GetExclusions returns the cached exclusion lists. Before the cache is
// loaded nothing is excluded.
func GetExclusions(_ context.Context) (Exclusions, error) {
	listsMu.RLock()
	c := listsCache
	listsMu.RUnlock()
	if c == nil {
		return Exclusions{}, nil
	}

	var e Exclusions
	var err error
	if e.DevIPs, err = c.Get(KeyExcludedIPs); err != nil {
		return Exclusions{}, fmt.Errorf("failed to load excluded IPs: %w", err)
	}
	if e.SpamIPs, err = c.Get(KeySpamIPs); err != nil {
		return Exclusions{}, fmt.Errorf("failed to load spam IPs: %w", err)
	}
	if e.SpamCountries, err = c.Get(KeySpamCountries); err != nil {
		return Exclusions{}, fmt.Errorf("failed to load spam countries: %w", err)
	}
	return e, nil
}

func loadCache(dbConn *gorm.DB, logger *slog.Logger) {
	fetchFunc := func(key string) ([]string, error) {
		var value string
		err := dbConn.WithContext(context.Background()).Raw("SELECT value FROM settings WHERE key = ? LIMIT 1", key).Scan(&value).Error
		if err != nil {
			return nil, err
		}
		normalize := strings.TrimSpace
		if key == KeySpamCountries {
			normalize = geoip.CountryCode
		}
		return splitList(value, normalize), nil
	}

	listsMu.Lock()
	listsCache = cache.NewCache[string, []string](logger, 5*time.Minute, fetchFunc)
	listsMu.Unlock()
}

func splitList(value string, normalize func(string) string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = normalize(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
