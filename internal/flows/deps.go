package flows

import (
	"time"

	"github.com/MrEthical07/sessionguard/account"
)

// Request carries the request-scoped facts every flow stamps on the record.
type Request struct {
	Now       time.Time
	IP        string
	UserAgent string
}

func (r Request) audit(action account.AuditAction, success bool) account.AuditEntry {
	return account.AuditEntry{
		Action:    action,
		Success:   success,
		At:        r.Now,
		IP:        r.IP,
		UserAgent: r.UserAgent,
	}
}

// NewRefreshRecord builds the record stored for a freshly issued token whose
// digest is hash.
func NewRefreshRecord(hash string, ttl time.Duration, req Request) account.RefreshToken {
	return account.RefreshToken{
		Token:       hash,
		ExpiresAt:   req.Now.Add(ttl),
		CreatedAt:   req.Now,
		CreatedByIP: req.IP,
		UserAgent:   req.UserAgent,
	}
}

// PruneInactive drops refresh records that are no longer active and whose
// natural expiry lies more than retention in the past. Revoked records
// survive until then so a replay is still recognized. A zero retention keeps
// everything.
func PruneInactive(u *account.User, now time.Time, retention time.Duration) int {
	if retention <= 0 {
		return 0
	}
	kept := u.RefreshTokens[:0]
	removed := 0
	for _, t := range u.RefreshTokens {
		if !t.Active(now) && now.Sub(t.ExpiresAt) > retention {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	u.RefreshTokens = kept
	return removed
}

// RevokeAll revokes every active refresh record of u and records a
// revoke_all_tokens entry. It returns the number of records revoked.
func RevokeAll(u *account.User, req Request) int {
	n := 0
	for i := range u.RefreshTokens {
		t := &u.RefreshTokens[i]
		if !t.Active(req.Now) {
			continue
		}
		revoke(t, req)
		n++
	}
	u.Record(req.audit(account.ActionRevokeAllTokens, true))
	return n
}

func revoke(t *account.RefreshToken, req Request) {
	at := req.Now
	t.Revoked = true
	t.RevokedAt = &at
	t.RevokedByIP = req.IP
}
