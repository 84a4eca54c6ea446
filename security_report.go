package havenAuth

import "github.com/MrEthical07/havenAuth/internal/security"

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport = security.Report

// SecurityReport summarizes the active configuration and lists weaknesses
// worth alerting on.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config
	return security.BuildReport(security.ReportInput{
		ProductionMode:     c.Environment == EnvProduction,
		SecureCookies:      c.SecureCookies(),
		SessionTTL:         c.Session.TTL,
		SessionStore:       c.Session.Store,
		PermissionCacheTTL: c.Permission.CacheTTL,
		Password: security.PasswordReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		RedisConfigured:    e.signInGuard != nil,
		MaxSignInAttempts:  c.Password.MaxAttempts,
		SignInLockout:      c.Password.LockoutAfter,
		MaxOTPAttempts:     c.OTP.MaxVerifyAttempts,
		PasskeysEnabled:    e.issuer != nil,
		TicketSecretLength: len(c.Passkey.TicketSecret),
		AuditEnabled:       e.audit != nil,
	})
}
