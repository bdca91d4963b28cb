package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/calebms/postbridge/internal/models"
	"github.com/calebms/postbridge/internal/repository"
	"github.com/calebms/postbridge/internal/vault"
)

const refreshWindow = 30 * time.Minute

// TokenRefreshJob renews Instagram long-lived tokens shortly before they
// expire. LinkedIn tokens cannot be refreshed without user interaction and
// are left to expire into a re-link prompt.
type TokenRefreshJob struct {
	sr    repository.SocialAccountRepository
	vault *vault.Vault

	HTTPClient *http.Client
	GraphURL   string
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, v *vault.Vault) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:         sr,
		vault:      v,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		GraphURL:   "https://graph.instagram.com",
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	accounts, err := c.sr.ListExpiring(ctx, time.Now().Add(refreshWindow))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		if acc.Platform != models.PlatformInstagram {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.refreshInstagram(ctx, acc); err != nil {
				slog.Info(fmt.Sprintf("unable to refresh token for account %d: %v", acc.ID, err))
			}
		}(acc)
	}

	wg.Wait()
}

func (c *TokenRefreshJob) refreshInstagram(ctx context.Context, acc *models.SocialAccount) error {
	refreshToken, err := c.vault.Decrypt(acc.RefreshToken)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		c.GraphURL, url.QueryEscape(refreshToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh returned status %d", resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	encryptedToken, err := c.vault.Encrypt(result.AccessToken)
	if err != nil {
		return err
	}

	return c.sr.SetToken(ctx, acc.ID, &models.SocialAccount{
		AccessToken:    encryptedToken,
		RefreshToken:   encryptedToken,
		TokenExpiresAt: time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	})
}
