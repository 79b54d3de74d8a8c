// Package config holds the cache configuration and its defaults.
package config

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/hearth/pkg/serialization"
)

// Config configures the cache layer.
type Config struct {
	// Namespace prefixes every key this instance reads or writes.
	Namespace string

	// DefaultTTL applies to Set calls that do not specify a TTL.
	DefaultTTL time.Duration

	// OpTimeout bounds every individual backing-store call.
	OpTimeout time.Duration

	// CompressionThreshold is the serialized size above which values are
	// compressed.
	CompressionThreshold int

	// EnableLocalCache turns on the per-process hot tier.
	EnableLocalCache bool
	// MaxLocalSize caps the hot tier, in bytes.
	MaxLocalSize uint64

	// EnableSingleFlight suppresses cache stampedes by deduplicating
	// concurrent GetOrCompute calls for the same key. Off by default: the
	// base design accepts redundant fetches on a cold key.
	EnableSingleFlight bool

	// NegativeFilter enables the bloom-filter read short-circuit. Only
	// correct when this process is the sole writer of its namespace.
	NegativeFilter         bool
	NegativeFilterItems    uint
	NegativeFilterFailRate float64

	Serialization SerializationConfig
	Resilience    ResilienceConfig
	Logger        *zap.Logger
}

// SerializationConfig selects the value codec.
type SerializationConfig struct {
	Type string
}

// ResilienceConfig sets retry and circuit-breaker policy for store access.
type ResilienceConfig struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Factor         float64
	Jitter         float64
	CircuitBreaker gobreaker.Settings
}

var (
	// ErrEmptyNamespace rejects configs without a key namespace.
	ErrEmptyNamespace = errors.New("namespace must not be empty")
	// ErrInvalidTTL rejects non-positive default TTLs.
	ErrInvalidTTL = errors.New("default TTL must be positive")
)

// New creates a Config with production defaults.
func New() *Config {
	return &Config{
		Namespace:            "hearth",
		DefaultTTL:           5 * time.Minute,
		OpTimeout:            2 * time.Second,
		CompressionThreshold: serialization.DefaultCompressionThreshold,

		EnableLocalCache: false,
		MaxLocalSize:     64 * 1024 * 1024,

		EnableSingleFlight: false,

		NegativeFilter:         false,
		NegativeFilterItems:    100_000,
		NegativeFilterFailRate: 0.01,

		Serialization: SerializationConfig{
			Type: serialization.JSONType,
		},
		Resilience: ResilienceConfig{
			MaxRetries: 3,
			BaseDelay:  100 * time.Millisecond,
			MaxDelay:   2 * time.Second,
			Factor:     2.0,
			Jitter:     0.2,
			CircuitBreaker: gobreaker.Settings{
				Name:        "hearth-store",
				MaxRequests: 3,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures > 5
				},
			},
		},
	}
}

// Validate checks invariants the defaults already satisfy but options can
// break.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return ErrEmptyNamespace
	}
	if c.DefaultTTL <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
