package transfer

import "github.com/golang-jwt/jwt/v5"

// CustomClaims is the session token payload set by the auth frontend.
type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// LinkStateClaims is the correlation token carried through the OAuth
// redirect round-trip as the state parameter. It ties a callback to the
// user that started the authorize leg.
type LinkStateClaims struct {
	UserID      int64  `json:"user_id"`
	OrgID       int64  `json:"org_id,omitempty"`
	AccountType string `json:"account_type,omitempty"`
	Nonce       string `json:"nonce"`
	jwt.RegisteredClaims
}
