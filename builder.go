package havenAuth

import (
	"errors"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/havenAuth/internal/audit"
	"github.com/MrEthical07/havenAuth/internal/rate"
	"github.com/MrEthical07/havenAuth/jwt"
	"github.com/MrEthical07/havenAuth/otp"
	"github.com/MrEthical07/havenAuth/passkey"
	"github.com/MrEthical07/havenAuth/password"
	"github.com/MrEthical07/havenAuth/permission"
	"github.com/MrEthical07/havenAuth/session"
	"github.com/redis/go-redis/v9"
)

// signInPolicyPrefix namespaces failed password attempts per email.
const signInPolicyPrefix = "hsi:"

// Builder assembles an [Engine]. Stores not set explicitly are derived from
// the config and the Redis client where possible.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *slog.Logger
	now    func() time.Time

	sessionStore session.Store
	users        session.UserLookup
	permSource   permission.Source
	roleStore    permission.RoleStore
	registry     *permission.Registry
	permCache    permission.Cache
	otpStore     otp.Store
	passkeyStore passkey.CredentialStore
	credentials  CredentialLookup
	auditSink    AuditSink

	built bool
}

// New returns a Builder seeded with the production preset.
func New() *Builder {
	return &Builder{
		config: ProductionConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the Redis-backed pieces: sign-in and OTP attempt
// budgets, passkey challenges, and Redis stores selected in the config.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock for every component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithSessionStore overrides the store chosen by Session.Store.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessionStore = store
	return b
}

// WithUserLookup is required by the Redis session store.
func (b *Builder) WithUserLookup(users session.UserLookup) *Builder {
	b.users = users
	return b
}

func (b *Builder) WithPermissionSource(source permission.Source) *Builder {
	b.permSource = source
	return b
}

// WithRoleStore enables [Engine.Admin].
func (b *Builder) WithRoleStore(store permission.RoleStore) *Builder {
	b.roleStore = store
	return b
}

// WithRegistry replaces the default resource and restriction registry.
func (b *Builder) WithRegistry(r *permission.Registry) *Builder {
	b.registry = r
	return b
}

// WithPermissionCache overrides the cache chosen by Permission.Cache.
func (b *Builder) WithPermissionCache(c permission.Cache) *Builder {
	b.permCache = c
	return b
}

func (b *Builder) WithOTPStore(store otp.Store) *Builder {
	b.otpStore = store
	return b
}

func (b *Builder) WithPasskeyStore(store passkey.CredentialStore) *Builder {
	b.passkeyStore = store
	return b
}

// WithCredentialLookup enables [Engine.SignInWithPassword].
func (b *Builder) WithCredentialLookup(lookup CredentialLookup) *Builder {
	b.credentials = lookup
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. A Builder can be
// used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:      cfg,
		logger:      logger,
		now:         now,
		credentials: b.credentials,
		passkeys:    b.passkeyStore,
		metrics:     NewMetrics(cfg.Metrics),
	}

	var limiter *rate.Limiter
	if b.redis != nil {
		limiter = rate.New(b.redis)
		engine.signInGuard = limiter.Guard(rate.Policy{
			Prefix:      signInPolicyPrefix,
			MaxAttempts: cfg.Password.MaxAttempts,
			Window:      cfg.Password.LockoutAfter,
		})
	}

	// -------- SESSIONS --------
	sessionStore := b.sessionStore
	if sessionStore == nil {
		if cfg.Session.Store != StoreRedis {
			return nil, errors.New("postgres session store requires WithSessionStore")
		}
		if b.redis == nil || b.users == nil {
			return nil, errors.New("redis session store requires redis client and user lookup")
		}
		sessionStore = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, b.users, session.WithStoreClock(now))
	}
	sessions, err := session.NewManager(sessionStore, cfg.Session.TTL,
		session.WithClock(now),
		session.WithLogger(logger),
		session.WithEvictionHook(engine.onSessionEvicted),
	)
	if err != nil {
		return nil, err
	}
	engine.sessions = sessions

	// -------- PERMISSIONS --------
	if b.permSource == nil {
		return nil, errors.New("permission source required")
	}
	cache := b.permCache
	if cache == nil {
		if cfg.Permission.Cache == CacheRedis {
			if b.redis == nil {
				return nil, errors.New("redis permission cache requires redis client")
			}
			cache = permission.NewRedisCache(b.redis, cfg.Permission.RedisPrefix)
		} else {
			cache = permission.NewMemoryCache(now)
		}
	}
	engine.checker = permission.NewChecker(cache, permission.NewResolver(b.permSource),
		permission.WithCheckerClock(now),
		permission.WithCheckerLogger(logger),
		permission.WithTTL(cfg.Permission.CacheTTL),
	)
	engine.registry = b.registry
	if engine.registry == nil {
		engine.registry = permission.DefaultRegistry()
	}
	if b.roleStore != nil {
		engine.admin = permission.NewAdmin(b.roleStore, engine.registry, engine.checker, logger)
	}

	// -------- OTP --------
	otpStore := b.otpStore
	if otpStore == nil && cfg.OTP.Store == StoreRedis && b.redis != nil {
		otpStore = otp.NewRedisStore(b.redis, cfg.OTP.RedisPrefix, now)
	}
	if otpStore != nil {
		opts := []otp.Option{
			otp.WithClock(now),
			otp.WithLogger(logger),
			otp.WithExpiry(cfg.OTP.Expiry),
			otp.WithCooldown(cfg.OTP.Cooldown),
		}
		if limiter != nil && cfg.OTP.MaxVerifyAttempts > 0 {
			policy := otp.VerifyPolicy
			policy.MaxAttempts = cfg.OTP.MaxVerifyAttempts
			policy.Window = cfg.OTP.AttemptWindow
			opts = append(opts, otp.WithAttemptLimiter(otp.NewAttemptGuard(limiter, policy)))
		}
		engine.otp, err = otp.NewManager(otpStore, opts...)
		if err != nil {
			return nil, err
		}
	}

	// -------- PASSWORDS --------
	engine.hasher, err = password.New(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSKEYS --------
	if cfg.Passkey.RPID != "" {
		if b.redis == nil || b.passkeyStore == nil {
			return nil, errors.New("passkeys require redis client and passkey store")
		}
		tickets, err := jwt.NewManager(jwt.Config{
			TTL:           cfg.Passkey.TicketTTL,
			SigningMethod: jwt.MethodHS256,
			PrivateKey:    cloneBytes(cfg.Passkey.TicketSecret),
			Issuer:        cfg.Passkey.TicketIssuer,
			Audience:      cfg.Passkey.RPID,
		}, now)
		if err != nil {
			return nil, err
		}
		engine.issuer, err = passkey.NewIssuer(tickets, b.redis,
			passkey.WithChallengeSize(cfg.Passkey.ChallengeSize),
			passkey.WithLedgerPrefix(cfg.Passkey.LedgerPrefix),
			passkey.WithIssuerLogger(logger),
			passkey.WithIssuerClock(now),
		)
		if err != nil {
			return nil, err
		}
		engine.verifier, err = passkey.NewVerifier(cfg.Passkey.RPID, cfg.Passkey.Origins, engine.issuer, b.passkeyStore,
			passkey.WithVerifierClock(now),
			passkey.WithVerifierLogger(logger),
		)
		if err != nil {
			return nil, err
		}
	}

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil {
		sink = internalaudit.NewSlogSink(logger)
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Critical:   criticalAuditEvents,
	}, sink, logger)

	b.built = true

	return engine, nil
}
