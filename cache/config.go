package cache

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/cachestream/errors"
)

// Property keys accepted by FromProperties.
const (
	PropCacheName      = "cache-name"
	PropMaxMessages    = "max-msgs"
	PropMaxAgeSeconds  = "max-age"
	PropRequestTimeout = "request-timeout-ms"
	PropReplyTo        = "reply-to" // deprecated, defaults to the session inbox
)

// minRequestTimeout is the enforced lower bound on the request timeout.
const minRequestTimeout = 3000 * time.Millisecond

// Config describes a cache session.
type Config struct {
	// CacheName is the distributed cache to query. Required.
	CacheName string `yaml:"cache-name"`

	// MaxMessages is the maximum messages returned per topic. Zero means
	// no limit.
	MaxMessages int `yaml:"max-msgs"`

	// MaxAgeSeconds limits the age of returned messages. Zero means
	// unlimited.
	MaxAgeSeconds int `yaml:"max-age"`

	// RequestTimeout bounds the request/reply exchange. Values below
	// 3000ms are rejected.
	RequestTimeout time.Duration `yaml:"request-timeout-ms"`

	// ReplyTo overrides the reply destination.
	//
	// Deprecated: the session's own inbox is used when empty, which is
	// the correct setting for all current brokers.
	ReplyTo string `yaml:"reply-to"`

	// MaxOutstanding caps simultaneously outstanding requests per
	// session. Zero selects the default of 1000.
	MaxOutstanding int `yaml:"max-outstanding"`

	// BlockWhenFull makes Send wait for capacity when the outstanding
	// ceiling is reached instead of failing immediately.
	BlockWhenFull bool `yaml:"block-when-full"`
}

// DefaultConfig returns the documented defaults. CacheName has no default
// and must be supplied.
func DefaultConfig() Config {
	return Config{
		MaxMessages:    1,
		MaxAgeSeconds:  0,
		RequestTimeout: 10000 * time.Millisecond,
		MaxOutstanding: 1000,
	}
}

// FromProperties builds a Config from string key/value pairs, applying
// the documented defaults for missing keys.
func FromProperties(props map[string]string) (Config, error) {
	cfg := DefaultConfig()

	for key, value := range props {
		switch key {
		case PropCacheName:
			cfg.CacheName = value
		case PropMaxMessages:
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return Config{}, errors.WrapInvalid(errors.ErrInvalidParam, "Cache", "FromProperties",
					fmt.Sprintf("%s: %q is not a non-negative integer", key, value))
			}
			cfg.MaxMessages = n
		case PropMaxAgeSeconds:
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return Config{}, errors.WrapInvalid(errors.ErrInvalidParam, "Cache", "FromProperties",
					fmt.Sprintf("%s: %q is not a non-negative integer", key, value))
			}
			cfg.MaxAgeSeconds = n
		case PropRequestTimeout:
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return Config{}, errors.WrapInvalid(errors.ErrInvalidParam, "Cache", "FromProperties",
					fmt.Sprintf("%s: %q is not a positive integer", key, value))
			}
			cfg.RequestTimeout = time.Duration(n) * time.Millisecond
		case PropReplyTo:
			cfg.ReplyTo = value
		default:
			return Config{}, errors.WrapInvalid(errors.ErrInvalidParam, "Cache", "FromProperties",
				fmt.Sprintf("unknown property %q", key))
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadProperties reads a YAML file of string key/value pairs and builds a
// Config from it.
func LoadProperties(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WrapInvalid(err, "Cache", "LoadProperties", "read properties file")
	}
	props := make(map[string]string)
	if err := yaml.Unmarshal(data, &props); err != nil {
		return Config{}, errors.WrapInvalid(err, "Cache", "LoadProperties", "parse properties file")
	}
	return FromProperties(props)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.CacheName == "" {
		return errors.WrapInvalid(errors.ErrInvalidParam, "Cache", "Validate",
			"cache-name is required")
	}
	if c.RequestTimeout < minRequestTimeout {
		return errors.WrapInvalid(errors.ErrInvalidParam, "Cache", "Validate",
			fmt.Sprintf("request timeout %v below the %v minimum", c.RequestTimeout, minRequestTimeout))
	}
	if c.MaxMessages < 0 || c.MaxAgeSeconds < 0 || c.MaxOutstanding < 0 {
		return errors.WrapInvalid(errors.ErrInvalidParam, "Cache", "Validate",
			"limits must be non-negative")
	}
	return nil
}

// maxOutstanding returns the configured ceiling, defaulted.
func (c Config) maxOutstanding() int {
	if c.MaxOutstanding > 0 {
		return c.MaxOutstanding
	}
	return 1000
}
