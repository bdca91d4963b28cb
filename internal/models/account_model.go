package models

import (
	"time"
)

// SocialAccount is one linked external identity on one platform, owned by
// one user and optionally scoped to an organization. Access and refresh
// tokens are stored as vault ciphertext, never plaintext.
type SocialAccount struct {
	ID              int64             `db:"id" json:"id"`
	UserID          int64             `db:"user_id" json:"user_id"`
	OrgID           int64             `db:"org_id" json:"org_id,omitempty"`
	Platform        string            `db:"platform" json:"platform"`
	AccountType     string            `db:"account_type" json:"account_type"`
	AccountID       string            `db:"account_id" json:"account_id"`
	AccountName     string            `db:"account_name" json:"account_name"`
	AccountUsername string            `db:"account_username" json:"account_username"`
	AccessToken     string            `db:"access_token" json:"-"`
	RefreshToken    string            `db:"refresh_token" json:"-"`
	TokenExpiresAt  time.Time         `db:"token_expires_at" json:"token_expires_at"`
	IsActive        bool              `db:"is_active" json:"is_active"`
	IsDefault       bool              `db:"is_default" json:"is_default"`
	Metadata        map[string]string `db:"metadata" json:"metadata,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

const (
	PlatformInstagram = "instagram"
	PlatformLinkedIn  = "linkedin"

	AccountTypePersonal     = "personal"
	AccountTypeBusiness     = "business"
	AccountTypeOrganization = "organization"

	// Metadata keys populated by the linking flow.
	MetaLinkedPageID = "linked_page_id"
	MetaOrgURN       = "organization_urn"
)

// TokenExpired reports whether the stored access token is past its expiry.
// A zero expiry means the provider issued no expiry and the token is
// treated as live.
func (sa *SocialAccount) TokenExpired(now time.Time) bool {
	return !sa.TokenExpiresAt.IsZero() && sa.TokenExpiresAt.Before(now)
}
