package havenAuth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// configFile mirrors the YAML layout of a havenAuth config file. Durations
// are written as Go duration strings ("30m", "60s").
type configFile struct {
	Environment string `yaml:"environment"`
	Session     struct {
		TTL         string `yaml:"ttl"`
		Store       string `yaml:"store"`
		RedisPrefix string `yaml:"redis_prefix"`
	} `yaml:"session"`
	Permission struct {
		CacheTTL    string `yaml:"cache_ttl"`
		Cache       string `yaml:"cache"`
		RedisPrefix string `yaml:"redis_prefix"`
	} `yaml:"permission"`
	OTP struct {
		Expiry            string  `yaml:"expiry"`
		Cooldown          string  `yaml:"cooldown"`
		Store             string  `yaml:"store"`
		MaxVerifyAttempts int     `yaml:"max_verify_attempts"`
		AttemptWindow     string  `yaml:"attempt_window"`
		RequestRate       float64 `yaml:"request_rate"`
		RequestBurst      int     `yaml:"request_burst"`
	} `yaml:"otp"`
	Passkey struct {
		RPID           string   `yaml:"rp_id"`
		RPName         string   `yaml:"rp_name"`
		Origins        []string `yaml:"origins"`
		TicketTTL      string   `yaml:"ticket_ttl"`
		ChallengeRate  float64  `yaml:"challenge_rate"`
		ChallengeBurst int      `yaml:"challenge_burst"`
	} `yaml:"passkey"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
		MaxDBConns  int32  `yaml:"max_db_conns"`
	} `yaml:"dependencies"`
	HTTP struct {
		Addr           string   `yaml:"addr"`
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"http"`
	Audit struct {
		Enabled    *bool `yaml:"enabled"`
		BufferSize int   `yaml:"buffer_size"`
	} `yaml:"audit"`
}

// LoadConfig resolves configuration in priority order: environment preset,
// then the YAML file at path (if it exists), then HAVEN_* environment
// variables. The result is validated before it is returned.
func LoadConfig(path string) (Config, error) {
	cfg := ProductionConfig()
	if strings.EqualFold(os.Getenv("HAVEN_ENV"), EnvDevelopment) {
		cfg = DevelopmentConfig()
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyConfigFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return cfg, nil
}

func applyConfigFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if f.Environment != "" {
		if f.Environment == EnvDevelopment && cfg.Environment != EnvDevelopment {
			*cfg = DevelopmentConfig()
		}
		cfg.Environment = f.Environment
	}

	var err error
	set := func(dst *time.Duration, raw, field string) {
		if raw == "" || err != nil {
			return
		}
		d, parseErr := time.ParseDuration(raw)
		if parseErr != nil {
			err = fmt.Errorf("parse config file: %s: %w", field, parseErr)
			return
		}
		*dst = d
	}

	set(&cfg.Session.TTL, f.Session.TTL, "session.ttl")
	set(&cfg.Permission.CacheTTL, f.Permission.CacheTTL, "permission.cache_ttl")
	set(&cfg.OTP.Expiry, f.OTP.Expiry, "otp.expiry")
	set(&cfg.OTP.Cooldown, f.OTP.Cooldown, "otp.cooldown")
	set(&cfg.OTP.AttemptWindow, f.OTP.AttemptWindow, "otp.attempt_window")
	set(&cfg.Passkey.TicketTTL, f.Passkey.TicketTTL, "passkey.ticket_ttl")
	if err != nil {
		return err
	}

	if f.Session.Store != "" {
		cfg.Session.Store = f.Session.Store
	}
	if f.Session.RedisPrefix != "" {
		cfg.Session.RedisPrefix = f.Session.RedisPrefix
	}
	if f.Permission.Cache != "" {
		cfg.Permission.Cache = f.Permission.Cache
	}
	if f.Permission.RedisPrefix != "" {
		cfg.Permission.RedisPrefix = f.Permission.RedisPrefix
	}
	if f.OTP.Store != "" {
		cfg.OTP.Store = f.OTP.Store
	}
	if f.OTP.MaxVerifyAttempts > 0 {
		cfg.OTP.MaxVerifyAttempts = f.OTP.MaxVerifyAttempts
	}
	if f.OTP.RequestRate > 0 {
		cfg.OTP.RequestRate = f.OTP.RequestRate
	}
	if f.OTP.RequestBurst > 0 {
		cfg.OTP.RequestBurst = f.OTP.RequestBurst
	}
	if f.Passkey.RPID != "" {
		cfg.Passkey.RPID = f.Passkey.RPID
	}
	if f.Passkey.RPName != "" {
		cfg.Passkey.RPName = f.Passkey.RPName
	}
	if len(f.Passkey.Origins) > 0 {
		cfg.Passkey.Origins = f.Passkey.Origins
	}
	if f.Passkey.ChallengeRate > 0 {
		cfg.Passkey.ChallengeRate = f.Passkey.ChallengeRate
	}
	if f.Passkey.ChallengeBurst > 0 {
		cfg.Passkey.ChallengeBurst = f.Passkey.ChallengeBurst
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.Database.URL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.Redis.URL = f.Dependencies.RedisURL
	}
	if f.Dependencies.MaxDBConns > 0 {
		cfg.Database.MaxConns = f.Dependencies.MaxDBConns
	}
	if f.HTTP.Addr != "" {
		cfg.HTTP.Addr = f.HTTP.Addr
	}
	if len(f.HTTP.TrustedProxies) > 0 {
		cfg.HTTP.TrustedProxies = f.HTTP.TrustedProxies
	}
	if f.Audit.Enabled != nil {
		cfg.Audit.Enabled = *f.Audit.Enabled
	}
	if f.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = f.Audit.BufferSize
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Database.URL = envOrDefault("HAVEN_DB_URL", envOrDefault("DATABASE_URL", cfg.Database.URL))
	cfg.Database.MaxConns = int32(envInt("HAVEN_DB_MAX_CONNS", int(cfg.Database.MaxConns)))
	cfg.Database.RunMigrations = envBool("HAVEN_DB_MIGRATE", cfg.Database.RunMigrations)
	cfg.Redis.URL = envOrDefault("HAVEN_REDIS_URL", envOrDefault("REDIS_URL", cfg.Redis.URL))
	cfg.HTTP.Addr = envOrDefault("HAVEN_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.TrustedProxies = envCSV("HAVEN_TRUSTED_PROXIES", cfg.HTTP.TrustedProxies)

	cfg.Session.Store = strings.ToLower(envOrDefault("HAVEN_SESSION_STORE", cfg.Session.Store))
	cfg.Session.TTL = time.Duration(envInt("HAVEN_SESSION_TTL_MINUTES", int(cfg.Session.TTL.Minutes()))) * time.Minute
	cfg.Permission.Cache = strings.ToLower(envOrDefault("HAVEN_PERMISSION_CACHE", cfg.Permission.Cache))
	cfg.Permission.CacheTTL = time.Duration(envInt("HAVEN_PERMISSION_CACHE_TTL_SECONDS", int(cfg.Permission.CacheTTL.Seconds()))) * time.Second
	cfg.OTP.Store = strings.ToLower(envOrDefault("HAVEN_OTP_STORE", cfg.OTP.Store))
	cfg.OTP.MaxVerifyAttempts = envInt("HAVEN_OTP_MAX_ATTEMPTS", cfg.OTP.MaxVerifyAttempts)

	cfg.Passkey.RPID = envOrDefault("HAVEN_RP_ID", cfg.Passkey.RPID)
	cfg.Passkey.RPName = envOrDefault("HAVEN_RP_NAME", cfg.Passkey.RPName)
	cfg.Passkey.Origins = envCSV("HAVEN_RP_ORIGINS", cfg.Passkey.Origins)
	if secret := os.Getenv("HAVEN_TICKET_SECRET"); secret != "" {
		cfg.Passkey.TicketSecret = []byte(secret)
	}

	cfg.Audit.Enabled = envBool("HAVEN_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Metrics.Enabled = envBool("HAVEN_METRICS_ENABLED", cfg.Metrics.Enabled)
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt falls back on empty or unparsable values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
