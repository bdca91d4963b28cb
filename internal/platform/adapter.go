// Package platform holds the adapters that translate a normalized publish
// request into each remote platform's protocol calls.
package platform

import (
	"context"
	"time"

	"github.com/calebms/postbridge/internal/apperr"
)

// PublishRequest is the normalized input an adapter needs. The access token
// arrives already decrypted; adapters never see vault ciphertext.
type PublishRequest struct {
	AccountID      string // provider-assigned account id
	AccountType    string
	AccessToken    string
	TokenExpiresAt time.Time
	PostType       string
	Caption        string
	ImageURLs      []string
	Metadata       map[string]string
}

// PublishResult is the normalized outcome. Permalink is best-effort and may
// be empty.
type PublishResult struct {
	ExternalPostID string
	Permalink      string
}

// Adapter publishes one post to one platform. Implementations return
// *apperr.AuthError for missing or expired credentials, and
// *apperr.PublishError for remote rejections.
type Adapter interface {
	Name() string
	Publish(ctx context.Context, req *PublishRequest) (*PublishResult, error)
}

func checkToken(platform string, req *PublishRequest) error {
	if req.AccessToken == "" {
		return &apperr.AuthError{Platform: platform, Msg: "no access token, account needs re-linking"}
	}
	if !req.TokenExpiresAt.IsZero() && req.TokenExpiresAt.Before(time.Now()) {
		return &apperr.AuthError{Platform: platform, Msg: "access token expired, account needs re-linking"}
	}
	return nil
}

// settle waits the fixed delay between container creation and publish,
// bailing out early if the caller's context ends.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
