package security

import "time"

const (
	recommendedMemoryKB   = 64 * 1024
	recommendedSessionTTL = time.Hour
	minTicketSecretLength = 32
)

// Warnings produced by [BuildReport].
const (
	WarnInsecureCookies   = "session cookies are sent without the Secure flag"
	WarnNoSignInBudget    = "password sign-in is not rate limited"
	WarnNoOTPBudget       = "one-time code verification is not rate limited"
	WarnWeakArgon2        = "argon2id memory cost is below 64 MiB"
	WarnLongSessions      = "sessions live longer than an hour"
	WarnShortTicketSecret = "passkey ticket secret is shorter than 32 bytes"
	WarnAuditDisabled     = "audit events are disabled"
)

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type Report struct {
	ProductionMode     bool
	SecureCookies      bool
	SessionTTL         time.Duration
	SessionStore       string
	PermissionCacheTTL time.Duration
	Argon2             PasswordReport
	SignInBudgetActive bool
	OTPBudgetActive    bool
	PasskeysEnabled    bool
	AuditEnabled       bool
	Warnings           []string
}

type ReportInput struct {
	ProductionMode     bool
	SecureCookies      bool
	SessionTTL         time.Duration
	SessionStore       string
	PermissionCacheTTL time.Duration
	Password           PasswordReport
	RedisConfigured    bool
	MaxSignInAttempts  int
	SignInLockout      time.Duration
	MaxOTPAttempts     int
	PasskeysEnabled    bool
	TicketSecretLength int
	AuditEnabled       bool
}

func BuildReport(input ReportInput) Report {
	signInBudget := input.RedisConfigured &&
		input.MaxSignInAttempts > 0 &&
		input.SignInLockout > 0

	r := Report{
		ProductionMode:     input.ProductionMode,
		SecureCookies:      input.SecureCookies,
		SessionTTL:         input.SessionTTL,
		SessionStore:       input.SessionStore,
		PermissionCacheTTL: input.PermissionCacheTTL,
		Argon2:             input.Password,
		SignInBudgetActive: signInBudget,
		OTPBudgetActive:    input.RedisConfigured && input.MaxOTPAttempts > 0,
		PasskeysEnabled:    input.PasskeysEnabled,
		AuditEnabled:       input.AuditEnabled,
		Warnings:           []string{},
	}

	warn := func(cond bool, msg string) {
		if cond {
			r.Warnings = append(r.Warnings, msg)
		}
	}
	warn(!input.SecureCookies, WarnInsecureCookies)
	warn(!r.SignInBudgetActive, WarnNoSignInBudget)
	warn(!r.OTPBudgetActive, WarnNoOTPBudget)
	warn(input.Password.Memory < recommendedMemoryKB, WarnWeakArgon2)
	warn(input.SessionTTL > recommendedSessionTTL, WarnLongSessions)
	warn(input.PasskeysEnabled && input.TicketSecretLength < minTicketSecretLength, WarnShortTicketSecret)
	warn(input.ProductionMode && !input.AuditEnabled, WarnAuditDisabled)
	return r
}
