package enroll

import (
	"testing"
	"time"
)

func TestNormalizeConfigFillsZeroValues(t *testing.T) {
	var cfg Config
	normalizeConfig(&cfg)

	def := defaultConfig()
	if cfg.Login.MaxPasswordAttempts != def.Login.MaxPasswordAttempts {
		t.Fatalf("expected default MaxPasswordAttempts, got %d", cfg.Login.MaxPasswordAttempts)
	}
	if cfg.Login.AttemptTTL != def.Login.AttemptTTL {
		t.Fatalf("expected default AttemptTTL, got %s", cfg.Login.AttemptTTL)
	}
	if cfg.Login.PhonePattern != def.Login.PhonePattern {
		t.Fatalf("expected default PhonePattern, got %q", cfg.Login.PhonePattern)
	}
	if cfg.RateLimit.RedisPrefix != def.RateLimit.RedisPrefix {
		t.Fatalf("expected default RedisPrefix, got %q", cfg.RateLimit.RedisPrefix)
	}
	if cfg.Audit.BufferSize != def.Audit.BufferSize {
		t.Fatalf("expected default BufferSize, got %d", cfg.Audit.BufferSize)
	}
}

func TestNormalizeConfigKeepsExplicitValues(t *testing.T) {
	cfg := defaultConfig()
	cfg.Login.MaxPasswordAttempts = 5
	cfg.Login.AttemptTTL = time.Hour
	cfg.RateLimit.MaxCodeRequests = 9

	normalizeConfig(&cfg)

	if cfg.Login.MaxPasswordAttempts != 5 || cfg.Login.AttemptTTL != time.Hour || cfg.RateLimit.MaxCodeRequests != 9 {
		t.Fatalf("explicit values were overwritten: %+v", cfg)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "bad phone pattern",
			mutate: func(c *Config) {
				c.Login.PhonePattern = "([0-9]"
			},
			wantValid: false,
		},
		{
			name: "bad code pattern",
			mutate: func(c *Config) {
				c.Login.ServiceCodePattern = "[0-9"
			},
			wantValid: false,
		},
		{
			name: "password attempts above cap",
			mutate: func(c *Config) {
				c.Login.MaxPasswordAttempts = 11
			},
			wantValid: false,
		},
		{
			name: "password attempts at cap",
			mutate: func(c *Config) {
				c.Login.MaxPasswordAttempts = 10
			},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)

			err := validateConfig(cfg)
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation failure")
			}
		})
	}
}

func TestDefaultConfigMatchesInternalDefaults(t *testing.T) {
	if DefaultConfig() != defaultConfig() {
		t.Fatal("DefaultConfig drifted from internal defaults")
	}
}
