package enroll

import (
	"errors"
	"regexp"
	"time"
)

// Config groups the Engine's tunables. Zero values fall back to
// defaultConfig at Build time; validation happens once in [Builder.Build].
type Config struct {
	Login     LoginConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig tunes the login state machine.
type LoginConfig struct {
	// MaxPasswordAttempts bounds wrong two-step passwords per attempt
	// before terminal teardown.
	MaxPasswordAttempts int
	// AttemptTTL is the age past which AbandonStale sweeps an attempt.
	AttemptTTL time.Duration
	// PhonePattern validates submitted phone numbers before any network
	// call. Default is international format: +, then 7 to 15 digits.
	PhonePattern string
	// ServiceCodePattern extracts login codes from service messages.
	ServiceCodePattern string
	// ServiceInboxScan is how many recent service messages FetchLoginCode
	// inspects.
	ServiceInboxScan int
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig tunes the Redis-backed code-request budget. When Enabled,
// the Engine refuses SubmitPhone during a recorded network flood-wait and
// caps code requests per user within the window. The Engine never retries
// on its own; it only reports the wait.
type RateLimitConfig struct {
	Enabled         bool
	RedisPrefix     string
	MaxCodeRequests int
	Window          time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig tunes the async audit pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the login path when the
	// buffer is saturated.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig tunes the in-house counters.
type MetricsConfig struct {
	Enabled bool
	// EnableLatencyHistograms records the phone-to-completion duration of
	// successful logins.
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration a fresh [Builder] starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Login: LoginConfig{
			MaxPasswordAttempts: 3,
			AttemptTTL:          10 * time.Minute,
			PhonePattern:        `^\+[0-9]{7,15}$`,
			ServiceCodePattern:  `\b[0-9]{5}\b`,
			ServiceInboxScan:    20,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			RedisPrefix:     "enr",
			MaxCodeRequests: 5,
			Window:          10 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are values; a shallow copy is a deep copy.
	return cfg
}

func normalizeConfig(cfg *Config) {
	def := defaultConfig()
	if cfg.Login.MaxPasswordAttempts <= 0 {
		cfg.Login.MaxPasswordAttempts = def.Login.MaxPasswordAttempts
	}
	if cfg.Login.AttemptTTL <= 0 {
		cfg.Login.AttemptTTL = def.Login.AttemptTTL
	}
	if cfg.Login.PhonePattern == "" {
		cfg.Login.PhonePattern = def.Login.PhonePattern
	}
	if cfg.Login.ServiceCodePattern == "" {
		cfg.Login.ServiceCodePattern = def.Login.ServiceCodePattern
	}
	if cfg.Login.ServiceInboxScan <= 0 {
		cfg.Login.ServiceInboxScan = def.Login.ServiceInboxScan
	}
	if cfg.RateLimit.RedisPrefix == "" {
		cfg.RateLimit.RedisPrefix = def.RateLimit.RedisPrefix
	}
	if cfg.RateLimit.MaxCodeRequests <= 0 {
		cfg.RateLimit.MaxCodeRequests = def.RateLimit.MaxCodeRequests
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = def.RateLimit.Window
	}
	if cfg.Audit.BufferSize <= 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}
}

func validateConfig(cfg Config) error {
	if _, err := regexp.Compile(cfg.Login.PhonePattern); err != nil {
		return errors.New("config: invalid Login.PhonePattern")
	}
	if _, err := regexp.Compile(cfg.Login.ServiceCodePattern); err != nil {
		return errors.New("config: invalid Login.ServiceCodePattern")
	}
	if cfg.Login.MaxPasswordAttempts > 10 {
		return errors.New("config: Login.MaxPasswordAttempts above 10 defeats the lockout")
	}
	return nil
}
