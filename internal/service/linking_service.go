package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"

	config "github.com/calebms/postbridge/configs"
	"github.com/calebms/postbridge/internal/apperr"
	"github.com/calebms/postbridge/internal/models"
	"github.com/calebms/postbridge/internal/repository"
	"github.com/calebms/postbridge/internal/transfer"
	"github.com/calebms/postbridge/internal/vault"
	"github.com/calebms/postbridge/pkg/utils"
)

const (
	instagramAuthURL  = "https://www.instagram.com/oauth/authorize"
	instagramOAuthURL = "https://api.instagram.com"
	instagramGraphURL = "https://graph.instagram.com"
	linkedinAPIURL    = "https://api.linkedin.com"

	instagramScopes = "instagram_business_basic,instagram_business_content_publish"

	// shortLivedTTL is assumed when the long-lived exchange fails and the
	// provider reports no expiry for the short-lived token.
	shortLivedTTL = time.Hour
)

// Machine-readable error codes carried back to the frontend when a linking
// leg fails. The browser never sees provider error bodies.
const (
	LinkErrConfigMissing       = "config_missing"
	LinkErrProviderDenied      = "provider_denied"
	LinkErrInvalidState        = "invalid_state"
	LinkErrCodeExchangeFailed  = "code_exchange_failed"
	LinkErrIdentityFetchFailed = "identity_fetch_failed"
	LinkErrNoEligiblePage      = "no_eligible_page"
	LinkErrAccountSaveFailed   = "account_save_failed"
	LinkErrUnsupported         = "unsupported_platform"
)

type LinkingService interface {
	AuthURL(ctx context.Context, platform string, userID, orgID int64, accountType string) (string, error)
	HandleCallback(ctx context.Context, platform, code, state, providerErr string) string
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Disconnect(ctx context.Context, userID, accountID int64) error
}

type linkingService struct {
	cfg   config.Config
	sa    repository.SocialAccountRepository
	vault *vault.Vault

	http *http.Client

	// Endpoint roots, overridable in tests.
	igAuthURL  string
	igOAuthURL string
	igGraphURL string
	liAPIURL   string
	liOAuth    *oauth2.Config
}

func NewLinkingService(cfg config.Config, sa repository.SocialAccountRepository, v *vault.Vault) LinkingService {
	return &linkingService{
		cfg:        cfg,
		sa:         sa,
		vault:      v,
		http:       &http.Client{Timeout: 30 * time.Second},
		igAuthURL:  instagramAuthURL,
		igOAuthURL: instagramOAuthURL,
		igGraphURL: instagramGraphURL,
		liAPIURL:   linkedinAPIURL,
		liOAuth: &oauth2.Config{
			ClientID:     cfg.LinkedInClientID,
			ClientSecret: cfg.LinkedInClientSecret,
			RedirectURL:  cfg.RedirectURI(models.PlatformLinkedIn),
			Endpoint:     linkedin.Endpoint,
			Scopes:       []string{"openid", "profile", "email", "w_member_social"},
		},
	}
}

// AuthURL starts the authorize leg: it validates app credentials, builds
// the signed correlation token and returns the provider authorize URL.
func (s *linkingService) AuthURL(ctx context.Context, platform string, userID, orgID int64, accountType string) (string, error) {
	if accountType == "" {
		accountType = models.AccountTypePersonal
	}

	switch platform {
	case models.PlatformInstagram:
		if s.cfg.InstagramClientID == "" || s.cfg.InstagramClientSecret == "" {
			return "", apperr.Config("instagram app credentials are not configured")
		}

		state, err := utils.GenerateLinkState(s.cfg.SecretKey, userID, orgID, accountType)
		if err != nil {
			return "", err
		}

		params := url.Values{}
		params.Add("client_id", s.cfg.InstagramClientID)
		params.Add("scope", instagramScopes)
		params.Add("response_type", "code")
		params.Add("redirect_uri", s.cfg.RedirectURI(models.PlatformInstagram))
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", s.igAuthURL, params.Encode()), nil

	case models.PlatformLinkedIn:
		if s.cfg.LinkedInClientID == "" || s.cfg.LinkedInClientSecret == "" {
			return "", apperr.Config("linkedin app credentials are not configured")
		}

		state, err := utils.GenerateLinkState(s.cfg.SecretKey, userID, orgID, accountType)
		if err != nil {
			return "", err
		}
		return s.liOAuth.AuthCodeURL(state), nil

	default:
		return "", apperr.Validation("unsupported platform %q", platform)
	}
}

// HandleCallback drives the callback leg. It always terminates in a
// redirect back to the frontend: success carries linked=<platform>, any
// failure carries a coarse machine-readable error code.
func (s *linkingService) HandleCallback(ctx context.Context, platform, code, state, providerErr string) string {
	if providerErr != "" {
		slog.Info(fmt.Sprintf("%s oauth denied: %s", platform, providerErr))
		return s.redirect(LinkErrProviderDenied)
	}

	claims, err := utils.ValidateLinkState(s.cfg.SecretKey, state)
	if err != nil {
		slog.Info(err.Error())
		return s.redirect(LinkErrInvalidState)
	}

	if code == "" {
		return s.redirect(LinkErrCodeExchangeFailed)
	}

	var errCode string
	switch platform {
	case models.PlatformInstagram:
		errCode = s.linkInstagram(ctx, code, claims)
	case models.PlatformLinkedIn:
		errCode = s.linkLinkedIn(ctx, code, claims)
	default:
		errCode = LinkErrUnsupported
	}

	if errCode != "" {
		return s.redirect(errCode)
	}
	return fmt.Sprintf("%s/dashboard/accounts?linked=%s", s.cfg.FrontendURL, platform)
}

func (s *linkingService) redirect(errCode string) string {
	return fmt.Sprintf("%s/dashboard/accounts?error=%s", s.cfg.FrontendURL, errCode)
}

func (s *linkingService) linkInstagram(ctx context.Context, code string, claims *transfer.LinkStateClaims) string {
	if s.cfg.InstagramClientID == "" || s.cfg.InstagramClientSecret == "" {
		return LinkErrConfigMissing
	}

	token, err := s.exchangeInstagramCode(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return LinkErrCodeExchangeFailed
	}

	page, err := s.firstEligiblePage(ctx, token.AccessToken)
	if err != nil {
		if errors.Is(err, errNoEligiblePage) {
			return LinkErrNoEligiblePage
		}
		slog.Info(err.Error())
		return LinkErrIdentityFetchFailed
	}

	encryptedToken, err := s.vault.Encrypt(token.AccessToken)
	if err != nil {
		slog.Info(err.Error())
		return LinkErrAccountSaveFailed
	}

	account := &models.SocialAccount{
		UserID:          claims.UserID,
		OrgID:           claims.OrgID,
		Platform:        models.PlatformInstagram,
		AccountType:     models.AccountTypeBusiness,
		AccountID:       page.BusinessAccount.ID,
		AccountName:     page.BusinessAccount.Name,
		AccountUsername: page.BusinessAccount.Username,
		AccessToken:     encryptedToken,
		// Instagram long-lived tokens refresh with the access token
		// itself, there is no separate refresh credential.
		RefreshToken:   encryptedToken,
		TokenExpiresAt: token.ExpiresAt,
		Metadata:       map[string]string{models.MetaLinkedPageID: page.ID},
	}

	if _, err := s.sa.Upsert(ctx, account); err != nil {
		slog.Info(err.Error())
		return LinkErrAccountSaveFailed
	}
	return ""
}

// exchangeInstagramCode chains the short-lived and long-lived exchanges.
// A failed long-lived exchange is tolerated: the short-lived token is kept
// with its one-hour expiry.
func (s *linkingService) exchangeInstagramCode(ctx context.Context, code string) (*transfer.InstagramToken, error) {
	data := url.Values{}
	data.Set("client_id", s.cfg.InstagramClientID)
	data.Set("client_secret", s.cfg.InstagramClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", s.cfg.RedirectURI(models.PlatformInstagram))
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.igOAuthURL+"/oauth/access_token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get short-lived token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("short-lived token exchange returned status %d", resp.StatusCode)
	}

	var shortLived struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&shortLived); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if shortLived.AccessToken == "" {
		return nil, errors.New("no access token in exchange response")
	}

	if longLived, err := s.exchangeLongLived(ctx, shortLived.AccessToken); err == nil {
		return longLived, nil
	} else {
		slog.Info(fmt.Sprintf("long-lived exchange failed, keeping short-lived token: %v", err))
	}

	return &transfer.InstagramToken{
		AccessToken: shortLived.AccessToken,
		ExpiresAt:   time.Now().Add(shortLivedTTL),
	}, nil
}

func (s *linkingService) exchangeLongLived(ctx context.Context, shortLivedToken string) (*transfer.InstagramToken, error) {
	endpoint := fmt.Sprintf("%s/access_token?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		s.igGraphURL, url.QueryEscape(s.cfg.InstagramClientSecret), url.QueryEscape(shortLivedToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("long-lived exchange returned status %d", resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, errors.New("no access token in long-lived exchange response")
	}

	return &transfer.InstagramToken{
		AccessToken: result.AccessToken,
		LongLived:   true,
		ExpiresAt:   time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	}, nil
}

var errNoEligiblePage = errors.New("no manageable page carries a business account")

// firstEligiblePage picks one page deterministically: the first page in API
// order that carries an Instagram business account. No meaning is assumed
// in the provider's ordering.
func (s *linkingService) firstEligiblePage(ctx context.Context, accessToken string) (*transfer.InstagramPage, error) {
	endpoint := fmt.Sprintf(
		"%s/me/accounts?fields=id,name,instagram_business_account{id,username,name}&access_token=%s",
		s.igGraphURL, url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page listing returned status %d", resp.StatusCode)
	}

	var pages transfer.InstagramPageList
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		return nil, err
	}

	for i := range pages.Data {
		if pages.Data[i].BusinessAccount != nil {
			return &pages.Data[i], nil
		}
	}
	return nil, errNoEligiblePage
}

func (s *linkingService) linkLinkedIn(ctx context.Context, code string, claims *transfer.LinkStateClaims) string {
	if s.cfg.LinkedInClientID == "" || s.cfg.LinkedInClientSecret == "" {
		return LinkErrConfigMissing
	}

	token, err := s.liOAuth.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return LinkErrCodeExchangeFailed
	}

	userInfo, err := s.linkedInUserInfo(ctx, token.AccessToken)
	if err != nil {
		slog.Info(err.Error())
		return LinkErrIdentityFetchFailed
	}

	encryptedToken, err := s.vault.Encrypt(token.AccessToken)
	if err != nil {
		slog.Info(err.Error())
		return LinkErrAccountSaveFailed
	}

	var encryptedRefresh string
	if token.RefreshToken != "" {
		encryptedRefresh, err = s.vault.Encrypt(token.RefreshToken)
		if err != nil {
			slog.Info(err.Error())
			return LinkErrAccountSaveFailed
		}
	}

	accountType := claims.AccountType
	if accountType != models.AccountTypeOrganization {
		accountType = models.AccountTypePersonal
	}

	metadata := map[string]string{}
	if accountType == models.AccountTypeOrganization {
		metadata[models.MetaOrgURN] = "urn:li:organization:" + strconv.FormatInt(claims.OrgID, 10)
	}

	account := &models.SocialAccount{
		UserID:          claims.UserID,
		OrgID:           claims.OrgID,
		Platform:        models.PlatformLinkedIn,
		AccountType:     accountType,
		AccountID:       userInfo.Sub,
		AccountName:     userInfo.Name,
		AccountUsername: userInfo.Email,
		AccessToken:     encryptedToken,
		RefreshToken:    encryptedRefresh,
		TokenExpiresAt:  token.Expiry,
		Metadata:        metadata,
	}

	if _, err := s.sa.Upsert(ctx, account); err != nil {
		slog.Info(err.Error())
		return LinkErrAccountSaveFailed
	}
	return ""
}

func (s *linkingService) linkedInUserInfo(ctx context.Context, accessToken string) (*transfer.LinkedInUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.liAPIURL+"/v2/userinfo", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var userInfo transfer.LinkedInUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, err
	}
	if userInfo.Sub == "" {
		return nil, errors.New("userinfo response missing subject")
	}
	return &userInfo, nil
}

func (s *linkingService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	if userID == 0 {
		return nil, apperr.Validation("UserID is not valid")
	}

	accounts, err := s.sa.ListInfoByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting social accounts: %w", err)
	}
	return accounts, nil
}

// Disconnect soft-deletes a linked account. The row survives for history;
// relinking the same external identity reactivates it.
func (s *linkingService) Disconnect(ctx context.Context, userID, accountID int64) error {
	if userID == 0 || accountID == 0 {
		return apperr.Validation("account id is not valid")
	}

	owned, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !owned {
		return apperr.ErrNotFound
	}

	return s.sa.Deactivate(ctx, accountID)
}
