package models

import "time"

// LoginAttempt tracks consecutive authentication failures for one
// (domain, client, identity provider, username) key. A record exists only
// while the key has outstanding failures; a successful authentication
// deletes it.
type LoginAttempt struct {
	ID               string     `db:"id"`
	Domain           string     `db:"domain"`
	Client           string     `db:"client"`
	IdentityProvider string     `db:"identity_provider"`
	Username         string     `db:"username"`
	Attempts         int        `db:"attempts"`
	ExpireAt         *time.Time `db:"expire_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// LoginAttemptCriteria is the exact-match key tuple identifying a login
// attempt record.
type LoginAttemptCriteria struct {
	Domain           string
	Client           string
	IdentityProvider string
	Username         string
}

// Expired reports whether the record's lockout window has already passed.
// Records without an ExpireAt are never expired.
func (la *LoginAttempt) Expired(now time.Time) bool {
	return la.ExpireAt != nil && !la.ExpireAt.After(now)
}
