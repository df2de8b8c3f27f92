// Package user_agent classifies user-agent strings into device, OS and
// browser labels using an embedded rule database.
package user_agent

import (
	"embed"
	"log"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Device labels
const (
	DeviceBot     = "Bot"
	DeviceTablet  = "Tablet"
	DeviceMobile  = "Mobile"
	DeviceDesktop = "Desktop"
)

// Other is the fallback label for unmatched OS and browser strings.
const Other = "Other"

// UserAgent is the classification result for one user-agent string.
type UserAgent struct {
	UserAgent string
	Device    string
	OS        string
	Browser   string
	Bot       bool
}

//go:embed rules.yml
var rulesFile embed.FS

// ClassRule is a single ordered classification rule. Exclude, when set,
// vetoes the rule even if Regex matches.
type ClassRule struct {
	Regex   string `yaml:"regex"`
	Exclude string `yaml:"exclude"`
	Name    string `yaml:"name"`
}

type ruleDatabase struct {
	Device struct {
		Bot    string `yaml:"bot"`
		Tablet string `yaml:"tablet"`
		Mobile string `yaml:"mobile"`
	} `yaml:"device"`
	OS       []ClassRule `yaml:"os"`
	Browsers []ClassRule `yaml:"browsers"`
}

// Compiled regex cache
type regexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *regexCache {
	return &regexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *regexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	// Double-check pattern
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

// Global parser instance
var (
	parser *classifier
	once   sync.Once
)

type classifier struct {
	rules ruleDatabase
	cache *regexCache
}

func getClassifier() *classifier {
	once.Do(func() {
		parser = &classifier{cache: newRegexCache()}

		data, err := rulesFile.ReadFile("rules.yml")
		if err != nil {
			log.Printf("user_agent: failed to read rules.yml: %v", err)
			return
		}
		if err := yaml.Unmarshal(data, &parser.rules); err != nil {
			log.Printf("user_agent: failed to parse rules.yml: %v", err)
		}
	})
	return parser
}

func (c *classifier) match(pattern, ua string) bool {
	if pattern == "" {
		return false
	}
	regex, err := c.cache.get(pattern)
	if err != nil {
		return false
	}
	return regex.MatchString(ua)
}

func (c *classifier) matchRules(rules []ClassRule, ua string) string {
	for _, rule := range rules {
		if !c.match(rule.Regex, ua) {
			continue
		}
		if rule.Exclude != "" && c.match(rule.Exclude, ua) {
			continue
		}
		return rule.Name
	}
	return Other
}

// ParseUserAgent classifies a raw user-agent string. Matching is done on
// the lower-cased string; bot signatures take precedence over tablet,
// tablet over mobile, and everything else is desktop.
func ParseUserAgent(userAgent string) UserAgent {
	c := getClassifier()
	ua := strings.ToLower(userAgent)

	result := UserAgent{
		UserAgent: userAgent,
		Device:    DeviceDesktop,
		OS:        c.matchRules(c.rules.OS, ua),
		Browser:   c.matchRules(c.rules.Browsers, ua),
	}

	switch {
	case c.match(c.rules.Device.Bot, ua):
		result.Device = DeviceBot
		result.Bot = true
	case c.match(c.rules.Device.Tablet, ua):
		result.Device = DeviceTablet
	case c.match(c.rules.Device.Mobile, ua):
		result.Device = DeviceMobile
	}

	return result
}
