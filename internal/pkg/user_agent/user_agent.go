// Package user_agent classifies user-agent strings against an embedded,
// ordered signature table.
package user_agent

import (
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

//go:embed database/signatures.yml
var databaseFiles embed.FS

// Signature is one row of the os or engine table.
type Signature struct {
	Name     string   `yaml:"name"`
	Contains []string `yaml:"contains"`
	Regex    string   `yaml:"regex"`
}

type database struct {
	Bots    []string    `yaml:"bots"`
	OSs     []Signature `yaml:"oss"`
	Engines []Signature `yaml:"engines"`
}

// Compiled regex cache
type RegexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *RegexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

// Classifier matches user agents against the signature tables.
type Classifier struct {
	db         database
	regexCache *RegexCache
	logger     *slog.Logger
}

var (
	classifier *Classifier
	once       sync.Once
	logger     *slog.Logger = slog.Default()
)

// InitLogger sets the logger used to report unmatched user agents.
func InitLogger(l *slog.Logger) {
	logger = l
}

// NewClassifier parses a signature table in the embedded YAML layout.
func NewClassifier(data []byte, l *slog.Logger) (*Classifier, error) {
	c := &Classifier{regexCache: newRegexCache(), logger: l}
	if err := yaml.Unmarshal(data, &c.db); err != nil {
		return nil, fmt.Errorf("parsing signatures: %w", err)
	}
	for i, bot := range c.db.Bots {
		c.db.Bots[i] = strings.ToLower(bot)
	}
	for _, table := range [][]Signature{c.db.OSs, c.db.Engines} {
		for i := range table {
			for j, s := range table[i].Contains {
				table[i].Contains[j] = strings.ToLower(s)
			}
			if table[i].Regex != "" {
				if _, err := c.regexCache.get(table[i].Regex); err != nil {
					return nil, fmt.Errorf("signature %q: %w", table[i].Name, err)
				}
			}
		}
	}
	return c, nil
}

func getClassifier() *Classifier {
	once.Do(func() {
		data, err := databaseFiles.ReadFile("database/signatures.yml")
		if err == nil {
			classifier, err = NewClassifier(data, logger)
		}
		if err != nil {
			panic(fmt.Sprintf("user_agent: embedded signatures: %v", err))
		}
	})
	return classifier
}

// IsBot reports whether ua contains any known bot signature.
func (c *Classifier) IsBot(ua string) bool {
	lower := strings.ToLower(ua)
	for _, sig := range c.db.Bots {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// OSName returns the first matching operating system, or "" when none match.
func (c *Classifier) OSName(ua string) string {
	return c.firstMatch("os", c.db.OSs, ua)
}

// RenderingEngine returns the first matching engine, or "" when none match.
func (c *Classifier) RenderingEngine(ua string) string {
	return c.firstMatch("engine", c.db.Engines, ua)
}

func (c *Classifier) firstMatch(table string, sigs []Signature, ua string) string {
	lower := strings.ToLower(ua)
	for _, sig := range sigs {
		if c.matches(sig, ua, lower) {
			return sig.Name
		}
	}
	if c.logger != nil && ua != "" {
		c.logger.Info("Unmatched user agent",
			slog.String("table", table),
			slog.String("user_agent", ua))
	}
	return ""
}

func (c *Classifier) matches(sig Signature, ua, lower string) bool {
	for _, s := range sig.Contains {
		if strings.Contains(lower, s) {
			return true
		}
	}
	if sig.Regex == "" {
		return false
	}
	regex, err := c.regexCache.get(sig.Regex)
	return err == nil && regex.MatchString(ua)
}

// IsBot classifies ua with the embedded signatures.
func IsBot(ua string) bool {
	return getClassifier().IsBot(ua)
}

// OSName classifies ua with the embedded signatures.
func OSName(ua string) string {
	return getClassifier().OSName(ua)
}

// RenderingEngine classifies ua with the embedded signatures.
func RenderingEngine(ua string) string {
	return getClassifier().RenderingEngine(ua)
}
