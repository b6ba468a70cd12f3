package models

import "time"

// SharePermission is the access level carried by a share grant.
type SharePermission string

const (
	PermissionView     SharePermission = "view"
	PermissionDownload SharePermission = "download"
)

// Valid reports whether p is one of the defined permission levels.
func (p SharePermission) Valid() bool {
	return p == PermissionView || p == PermissionDownload
}

// ShareGrant authorizes one recipient to access one file under one
// permission level until expiry.
//
// A grant is created unclaimed (SharedWith empty) and bound to a concrete
// account on first successful verification. Revocation is modeled as forcing
// ExpiresAt to the revocation time, never as deletion, so the audit trail
// survives.
type ShareGrant struct {
	ID     string
	FileID string
	// CreatedBy is the file owner who issued the grant.
	CreatedBy string
	// SharedWith is the bound recipient account. Empty until claimed;
	// immutable afterwards.
	SharedWith string
	// SharedWithEmail is the recipient email recorded at creation, stored
	// lowercase. It is authoritative for identity binding: only an account
	// with this email may ever claim the grant.
	SharedWithEmail string
	Permission      SharePermission
	// AccessToken is the high-entropy server-generated token presented by
	// the recipient. Unique and unguessable; multi-use for access,
	// single-use for identity binding.
	AccessToken string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Live reports whether the grant still authorizes access at instant now.
func (g *ShareGrant) Live(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}

// Claimed reports whether the grant has been bound to an account.
func (g *ShareGrant) Claimed() bool {
	return g.SharedWith != ""
}
