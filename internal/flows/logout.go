package flows

import "github.com/MrEthical07/sessionguard/account"

// LogoutFailureKind classifies logout flow failures.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureNotFound
	LogoutFailureInactive
)

// RunLogout revokes exactly the record whose digest is hash. Sibling
// records are left untouched.
func RunLogout(u *account.User, hash string, req Request) LogoutFailureKind {
	idx := u.FindRefreshToken(hash)
	if idx < 0 {
		return LogoutFailureNotFound
	}

	t := &u.RefreshTokens[idx]
	if t.Revoked {
		return LogoutFailureInactive
	}

	revoke(t, req)
	u.Record(req.audit(account.ActionLogout, true))
	return LogoutFailureNone
}
