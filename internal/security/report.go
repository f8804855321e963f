package security

import "time"

// PasswordReport lists the Argon2id cost parameters new hashes use.
type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report summarizes the protections an engine enforces.
type Report struct {
	SigningAlgorithm string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	Argon2           PasswordReport
	PasswordUpgrade  bool

	RefreshReuseRevokesAll bool
	InactiveTokenRetention time.Duration

	LockoutActive    bool
	LockoutThreshold int
	LockoutDuration  time.Duration

	IPThrottleActive bool
	CacheInstalled   bool
	AuditStream      bool
}

// ReportInput is the configuration slice BuildReport reads.
type ReportInput struct {
	SigningAlgorithm        string
	AccessTTL               time.Duration
	RefreshTTL              time.Duration
	Password                PasswordReport
	UpgradeOnLogin          bool
	RevokeAllOnRotatedReuse bool
	InactiveTokenRetention  time.Duration
	LockoutThreshold        int
	LockoutDuration         time.Duration
	EnableIPThrottle        bool
	MaxLoginAttemptsPerIP   int
	IPThrottleWindow        time.Duration
	CacheInstalled          bool
	AuditEnabled            bool
}

// BuildReport folds input into a Report. A limiter counts as active only
// when both its threshold and its window are positive.
func BuildReport(input ReportInput) Report {
	return Report{
		SigningAlgorithm:       input.SigningAlgorithm,
		AccessTTL:              input.AccessTTL,
		RefreshTTL:             input.RefreshTTL,
		Argon2:                 input.Password,
		PasswordUpgrade:        input.UpgradeOnLogin,
		RefreshReuseRevokesAll: input.RevokeAllOnRotatedReuse,
		InactiveTokenRetention: input.InactiveTokenRetention,
		LockoutActive:          input.LockoutThreshold > 0 && input.LockoutDuration > 0,
		LockoutThreshold:       input.LockoutThreshold,
		LockoutDuration:        input.LockoutDuration,
		IPThrottleActive: input.EnableIPThrottle &&
			input.MaxLoginAttemptsPerIP > 0 &&
			input.IPThrottleWindow > 0,
		CacheInstalled: input.CacheInstalled,
		AuditStream:    input.AuditEnabled,
	}
}
