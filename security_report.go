package sessionguard

import (
	"github.com/MrEthical07/sessionguard/cache"
	"github.com/MrEthical07/sessionguard/internal/security"
)

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport = security.Report

// PasswordConfigReport lists the Argon2id parameters in a SecurityReport.
type PasswordConfigReport = security.PasswordReport

// SecurityReport describes the protections this engine enforces. It never
// includes key material.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	_, noCache := e.cache.(cache.NoOp)

	return security.BuildReport(security.ReportInput{
		SigningAlgorithm: e.config.JWT.SigningMethod,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.Session.RefreshTTL,
		Password: security.PasswordReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		UpgradeOnLogin:          e.config.Password.UpgradeOnLogin,
		RevokeAllOnRotatedReuse: e.config.Security.RevokeAllOnRotatedReuse,
		InactiveTokenRetention:  e.config.Session.InactiveTokenRetention,
		LockoutThreshold:        e.config.Lockout.Threshold,
		LockoutDuration:         e.config.Lockout.Duration,
		EnableIPThrottle:        e.ipLimiter != nil,
		MaxLoginAttemptsPerIP:   e.config.Security.MaxLoginAttemptsPerIP,
		IPThrottleWindow:        e.config.Security.IPThrottleWindow,
		CacheInstalled:          e.cache != nil && !noCache,
		AuditEnabled:            e.audit != nil,
	})
}
