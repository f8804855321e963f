package limiters

import (
	"time"

	"github.com/MrEthical07/sessionguard/account"
)

// ResendCooldown throttles verification-code resends per user.
type ResendCooldown struct {
	Interval time.Duration
}

// Allow reports whether a new code may be sent to u at now.
func (c ResendCooldown) Allow(u *account.User, now time.Time) bool {
	if u.LastVerificationSentAt == nil {
		return true
	}
	return now.Sub(*u.LastVerificationSentAt) >= c.Interval
}
