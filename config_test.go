package havenAuth

import (
	"testing"
	"time"
)

func TestConfigPresetsValidate(t *testing.T) {
	for name, cfg := range map[string]Config{
		"development": DevelopmentConfig(),
		"production":  ProductionConfig(),
	} {
		if err := cfg.Validate(); err != nil {
			t.Fatalf("%s preset invalid: %v", name, err)
		}
	}
}

func TestConfigValidateEnums(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name: "session store redis valid",
			mutate: func(c *Config) {
				c.Session.Store = StoreRedis
			},
			wantValid: true,
		},
		{
			name: "session store invalid",
			mutate: func(c *Config) {
				c.Session.Store = "memcached"
			},
			wantValid: false,
		},
		{
			name: "session ttl zero invalid",
			mutate: func(c *Config) {
				c.Session.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "otp request burst zero invalid",
			mutate: func(c *Config) {
				c.OTP.RequestBurst = 0
			},
			wantValid: false,
		},
		{
			name: "trusted proxies valid",
			mutate: func(c *Config) {
				c.HTTP.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.1", "2001:db8::/32"}
			},
			wantValid: true,
		},
		{
			name: "trusted proxy hostname invalid",
			mutate: func(c *Config) {
				c.HTTP.TrustedProxies = []string{"lb.internal"}
			},
			wantValid: false,
		},
		{
			name: "permission cache redis valid",
			mutate: func(c *Config) {
				c.Permission.Cache = CacheRedis
			},
			wantValid: true,
		},
		{
			name: "permission cache invalid",
			mutate: func(c *Config) {
				c.Permission.Cache = "disk"
			},
			wantValid: false,
		},
		{
			name: "otp attempts without window invalid",
			mutate: func(c *Config) {
				c.OTP.MaxVerifyAttempts = 3
				c.OTP.AttemptWindow = 0
			},
			wantValid: false,
		},
		{
			name: "otp attempts disabled valid",
			mutate: func(c *Config) {
				c.OTP.MaxVerifyAttempts = 0
				c.OTP.AttemptWindow = 0
			},
			wantValid: true,
		},
		{
			name: "passkey rp without origins invalid",
			mutate: func(c *Config) {
				c.Passkey.RPID = "7haven.com"
				c.Passkey.Origins = nil
				c.Passkey.TicketSecret = make([]byte, 32)
			},
			wantValid: false,
		},
		{
			name: "passkey short secret invalid",
			mutate: func(c *Config) {
				c.Passkey.RPID = "7haven.com"
				c.Passkey.Origins = []string{"https://7haven.com"}
				c.Passkey.TicketSecret = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "passkey configured valid",
			mutate: func(c *Config) {
				c.Passkey.RPID = "7haven.com"
				c.Passkey.Origins = []string{"https://7haven.com"}
				c.Passkey.TicketSecret = make([]byte, 32)
			},
			wantValid: true,
		},
		{
			name: "passkey ticket ttl too long invalid",
			mutate: func(c *Config) {
				c.Passkey.TicketTTL = 11 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "password memory too low invalid",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "latency without metrics invalid",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
		{
			name: "environment invalid",
			mutate: func(c *Config) {
				c.Environment = "staging"
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ProductionConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatalf("expected invalid config")
			}
		})
	}
}

func TestConfigCloneIsDeep(t *testing.T) {
	cfg := DevelopmentConfig()
	clone := cloneConfig(cfg)
	clone.Passkey.Origins[0] = "https://evil.example"
	clone.Passkey.TicketSecret[0] = 'X'

	if cfg.Passkey.Origins[0] != "http://localhost:3000" {
		t.Fatalf("origins shared with clone")
	}
	if cfg.Passkey.TicketSecret[0] == 'X' {
		t.Fatalf("ticket secret shared with clone")
	}
}

func TestSecureCookies(t *testing.T) {
	dev := DevelopmentConfig()
	prod := ProductionConfig()
	if dev.SecureCookies() {
		t.Fatalf("development cookies should not require TLS")
	}
	if !prod.SecureCookies() {
		t.Fatalf("production cookies must be Secure")
	}
}
