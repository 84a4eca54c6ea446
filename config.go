package havenAuth

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Environment names accepted by [Config.Environment].
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store backends for [SessionConfig.Store] and [OTPConfig.Store].
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Permission cache backends for [PermissionConfig.Cache].
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the full engine configuration. Build it from a preset, adjust
// fields, and pass it to [Builder.WithConfig]; the engine keeps its own copy.
type Config struct {
	Environment string
	Session     SessionConfig
	Permission  PermissionConfig
	OTP         OTPConfig
	Passkey     PasskeyConfig
	Password    PasswordConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	HTTP        HTTPConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime and storage. Sessions are renewed
// to a full TTL once their remaining lifetime drops to a tenth of it.
type SessionConfig struct {
	TTL         time.Duration
	Store       string
	RedisPrefix string
}

/*
====================================
PERMISSION CONFIG
====================================
*/

// PermissionConfig controls the permission snapshot cache.
type PermissionConfig struct {
	CacheTTL    time.Duration
	Cache       string
	RedisPrefix string
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls one-time codes and the failed-verification budget.
//
// RequestRate and RequestBurst size the per-client token bucket in front of
// the HTTP issue, resend and verify endpoints.
type OTPConfig struct {
	Expiry            time.Duration
	Cooldown          time.Duration
	Store             string
	RedisPrefix       string
	MaxVerifyAttempts int
	AttemptWindow     time.Duration
	RequestRate       float64
	RequestBurst      int
}

/*
====================================
PASSKEY CONFIG
====================================
*/

// PasskeyConfig describes the relying party and the challenge tickets.
// TicketSecret signs tickets with HS256 and must be at least 32 bytes.
type PasskeyConfig struct {
	RPID           string
	RPName         string
	Origins        []string
	ChallengeSize  int
	TicketTTL      time.Duration
	TicketSecret   []byte
	TicketIssuer   string
	LedgerPrefix   string
	ChallengeRate  float64
	ChallengeBurst int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id cost parameters and the sign-in budget.
type PasswordConfig struct {
	Memory       uint32
	Time         uint32
	Parallelism  uint8
	SaltLength   uint32
	KeyLength    uint32
	MaxAttempts  int
	LockoutAfter time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
INFRASTRUCTURE CONFIG
====================================
*/

// DatabaseConfig locates Postgres.
type DatabaseConfig struct {
	URL           string
	MaxConns      int32
	RunMigrations bool
}

// RedisConfig locates Redis. URL may be a redis:// URL or a host:port.
type RedisConfig struct {
	URL string
}

// HTTPConfig is used by the bundled server. X-Forwarded-For is only believed
// when the peer matches TrustedProxies (CIDRs or bare addresses).
type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedProxies  []string
}

func defaultConfig() Config {
	return Config{
		Environment: EnvProduction,
		Session: SessionConfig{
			TTL:         30 * time.Minute,
			Store:       StorePostgres,
			RedisPrefix: "hs",
		},
		Permission: PermissionConfig{
			CacheTTL:    60 * time.Second,
			Cache:       CacheMemory,
			RedisPrefix: "hp",
		},
		OTP: OTPConfig{
			Expiry:            30 * time.Minute,
			Cooldown:          60 * time.Second,
			Store:             StorePostgres,
			RedisPrefix:       "ho",
			MaxVerifyAttempts: 5,
			AttemptWindow:     15 * time.Minute,
			RequestRate:       0.5,
			RequestBurst:      5,
		},
		Passkey: PasskeyConfig{
			RPName:         "7Haven",
			ChallengeSize:  32,
			TicketTTL:      5 * time.Minute,
			TicketIssuer:   "havenAuth",
			LedgerPrefix:   "hpc",
			ChallengeRate:  1,
			ChallengeBurst: 5,
		},
		Password: PasswordConfig{
			Memory:       64 * 1024,
			Time:         3,
			Parallelism:  2,
			SaltLength:   16,
			KeyLength:    32,
			MaxAttempts:  5,
			LockoutAfter: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Database: DatabaseConfig{
			MaxConns:      20,
			RunMigrations: true,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// DevelopmentConfig uses 15 minute sessions, Redis-free permission caching,
// and non-Secure cookies.
func DevelopmentConfig() Config {
	cfg := defaultConfig()
	cfg.Environment = EnvDevelopment
	cfg.Session.TTL = 15 * time.Minute
	cfg.Passkey.RPID = "localhost"
	cfg.Passkey.Origins = []string{"http://localhost:3000"}
	cfg.Passkey.TicketSecret = []byte("havenauth-development-only-ticket-secret")
	cfg.Metrics.Enabled = true
	return cfg
}

// ProductionConfig uses 30 minute sessions and enables audit and metrics.
func ProductionConfig() Config {
	cfg := defaultConfig()
	cfg.Environment = EnvProduction
	cfg.Session.TTL = 30 * time.Minute
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

// SecureCookies reports whether session cookies carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return c.Environment != EnvDevelopment
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Passkey.Origins = append([]string(nil), cfg.Passkey.Origins...)
	out.Passkey.TicketSecret = cloneBytes(cfg.Passkey.TicketSecret)
	out.HTTP.TrustedProxies = append([]string(nil), cfg.HTTP.TrustedProxies...)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return errors.New("Environment must be 'development' or 'production'")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.Store != StoreRedis && c.Session.Store != StorePostgres {
		return errors.New("Session Store must be 'redis' or 'postgres'")
	}

	// Permission
	if c.Permission.CacheTTL <= 0 {
		return errors.New("Permission CacheTTL must be > 0")
	}
	if c.Permission.Cache != CacheMemory && c.Permission.Cache != CacheRedis {
		return errors.New("Permission Cache must be 'memory' or 'redis'")
	}

	// OTP
	if c.OTP.Expiry <= 0 {
		return errors.New("OTP Expiry must be > 0")
	}
	if c.OTP.Cooldown < 0 {
		return errors.New("OTP Cooldown must be >= 0")
	}
	if c.OTP.Store != StoreRedis && c.OTP.Store != StorePostgres {
		return errors.New("OTP Store must be 'redis' or 'postgres'")
	}
	if c.OTP.MaxVerifyAttempts < 0 {
		return errors.New("OTP MaxVerifyAttempts must be >= 0")
	}
	if c.OTP.MaxVerifyAttempts > 0 && c.OTP.AttemptWindow <= 0 {
		return errors.New("OTP AttemptWindow must be > 0 when MaxVerifyAttempts is set")
	}
	if c.OTP.RequestRate <= 0 || c.OTP.RequestBurst <= 0 {
		return errors.New("OTP RequestRate and RequestBurst must be > 0")
	}

	// Passkey
	if c.Passkey.RPID != "" {
		if len(c.Passkey.Origins) == 0 {
			return errors.New("Passkey Origins must not be empty when RPID is set")
		}
		if len(c.Passkey.TicketSecret) < 32 {
			return errors.New("Passkey TicketSecret must be at least 32 bytes")
		}
	}
	if c.Passkey.ChallengeSize < 16 {
		return errors.New("Passkey ChallengeSize must be >= 16")
	}
	if c.Passkey.TicketTTL <= 0 || c.Passkey.TicketTTL > 10*time.Minute {
		return errors.New("Passkey TicketTTL must be in (0, 10m]")
	}
	if c.Passkey.ChallengeRate <= 0 || c.Passkey.ChallengeBurst <= 0 {
		return errors.New("Passkey ChallengeRate and ChallengeBurst must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxAttempts <= 0 || c.Password.LockoutAfter <= 0 {
		return errors.New("Password MaxAttempts and LockoutAfter must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Database
	if c.Database.MaxConns < 0 {
		return errors.New("Database MaxConns must be >= 0")
	}

	// HTTP
	for _, proxy := range c.HTTP.TrustedProxies {
		if !validProxy(proxy) {
			return fmt.Errorf("HTTP TrustedProxies entry %q is not an address or CIDR", proxy)
		}
	}
	return nil
}

func validProxy(raw string) bool {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		_, err := netip.ParsePrefix(raw)
		return err == nil
	}
	_, err := netip.ParseAddr(raw)
	return err == nil
}
