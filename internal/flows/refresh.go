package flows

import (
	"time"

	"github.com/MrEthical07/sessionguard/account"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	// RefreshFailureNotFound means no record on the user matches the token.
	RefreshFailureNotFound
	// RefreshFailureExpired means the record outlived its window unrevoked.
	RefreshFailureExpired
	// RefreshFailureRevoked means the record was revoked for a reason other
	// than rotation. This is treated as theft.
	RefreshFailureRevoked
	// RefreshFailureReplayed means a token already rotated away was
	// presented again.
	RefreshFailureReplayed
	// RefreshFailureRaceLost means the caller observed the token as valid but
	// a concurrent rotation committed first.
	RefreshFailureRaceLost
)

// RefreshPolicy carries the configuration the refresh flow needs.
type RefreshPolicy struct {
	TTL                     time.Duration
	Retention               time.Duration
	RevokeAllOnRotatedReuse bool
}

// RefreshResult reports what RunRefresh did to the record.
type RefreshResult struct {
	Failure RefreshFailureKind
	// Persist is false only when the record was left untouched.
	Persist bool
	// MassRevoked is set when reuse detection revoked every token.
	MassRevoked bool
	Revoked     int
	Issued      account.RefreshToken
}

// RunRefresh rotates the record whose digest is presentedHash into a new
// record with digest nextHash.
//
// observedValid must be true when an earlier attempt of the same call saw
// the token as valid and then lost a save race. A rotated token found on
// such a retry is the losing side of a concurrent refresh, not a replay.
func RunRefresh(u *account.User, presentedHash, nextHash string, observedValid bool, policy RefreshPolicy, req Request) RefreshResult {
	idx := u.FindRefreshToken(presentedHash)
	if idx < 0 {
		return RefreshResult{Failure: RefreshFailureNotFound}
	}

	current := &u.RefreshTokens[idx]
	if current.Active(req.Now) {
		revoke(current, req)
		current.ReplacedByToken = nextHash

		issued := NewRefreshRecord(nextHash, policy.TTL, req)
		u.RefreshTokens = append(u.RefreshTokens, issued)
		PruneInactive(u, req.Now, policy.Retention)
		u.Record(req.audit(account.ActionRefresh, true))

		return RefreshResult{Failure: RefreshFailureNone, Persist: true, Issued: issued}
	}

	u.Record(req.audit(account.ActionRefresh, false))
	res := RefreshResult{Persist: true}

	switch {
	case !current.Revoked:
		res.Failure = RefreshFailureExpired
	case current.ReplacedByToken == "":
		res.Failure = RefreshFailureRevoked
		res.MassRevoked = true
		res.Revoked = RevokeAll(u, req)
	case observedValid:
		res.Failure = RefreshFailureRaceLost
	default:
		res.Failure = RefreshFailureReplayed
		if policy.RevokeAllOnRotatedReuse {
			res.MassRevoked = true
			res.Revoked = RevokeAll(u, req)
		}
	}

	return res
}
