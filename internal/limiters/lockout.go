package limiters

import (
	"time"

	"github.com/MrEthical07/sessionguard/account"
)

// Lockout applies the failed-login policy to a loaded user record. State
// lives only on the record, so the decision is consistent across processes
// as long as the record is saved atomically with the attempt.
type Lockout struct {
	Threshold int
	Duration  time.Duration
}

// Locked reports whether u is inside an active lock window at now.
func (l Lockout) Locked(u *account.User, now time.Time) bool {
	return u.LockUntil != nil && now.Before(*u.LockUntil)
}

// RecordFailure counts one failed attempt. When the count reaches the
// threshold the lock is applied and the counter starts again from zero.
// It reports whether this attempt applied the lock.
func (l Lockout) RecordFailure(u *account.User, now time.Time) bool {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts < l.Threshold {
		return false
	}

	until := now.Add(l.Duration)
	u.LockUntil = &until
	u.FailedLoginAttempts = 0
	return true
}

// Reset clears the counter and any lock.
func (l Lockout) Reset(u *account.User) {
	u.FailedLoginAttempts = 0
	u.LockUntil = nil
}
