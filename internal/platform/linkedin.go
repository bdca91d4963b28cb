package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/calebms/postbridge/internal/apperr"
	"github.com/calebms/postbridge/internal/models"
	"github.com/calebms/postbridge/internal/transfer"
)

const linkedinAPIURL = "https://api.linkedin.com"

// LinkedIn publishes UGC shares. The author URN depends on the account
// type: person for personal accounts, organization otherwise.
type LinkedIn struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewLinkedIn() *LinkedIn {
	return &LinkedIn{
		BaseURL:    linkedinAPIURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (li *LinkedIn) Name() string { return models.PlatformLinkedIn }

func (li *LinkedIn) Publish(ctx context.Context, req *PublishRequest) (*PublishResult, error) {
	if err := checkToken(li.Name(), req); err != nil {
		return nil, err
	}

	switch req.PostType {
	case models.PostTypeText, models.PostTypeSingleImage:
	default:
		return nil, apperr.Validation("linkedin does not support post type %q", req.PostType)
	}

	if req.Caption == "" && len(req.ImageURLs) == 0 {
		return nil, apperr.Validation("linkedin post needs a caption or an image")
	}

	author, err := li.authorURN(req)
	if err != nil {
		return nil, err
	}

	var media []map[string]any
	category := "NONE"
	if len(req.ImageURLs) > 0 {
		imageURL := req.ImageURLs[0]
		assetURN, err := li.uploadImageAsset(ctx, req.AccessToken, author, imageURL)
		if err == nil {
			category = "IMAGE"
			media = []map[string]any{{"status": "READY", "media": assetURN}}
		} else {
			// Asset registration is best-effort. Fall back to
			// referencing the image by URL instead of aborting.
			slog.Info(fmt.Sprintf("linkedin asset upload failed, falling back to URL reference: %v", err))
			category = "ARTICLE"
			media = []map[string]any{{"status": "READY", "originalUrl": imageURL}}
		}
	}

	shareContent := map[string]any{
		"shareCommentary":    map[string]any{"text": req.Caption},
		"shareMediaCategory": category,
	}
	if media != nil {
		shareContent["media"] = media
	}

	payload := map[string]any{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, li.BaseURL+"/v2/ugcPosts", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := li.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, &apperr.PublishError{Platform: li.Name(), Msg: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, li.remoteError(resp.StatusCode, respBody)
	}

	var share transfer.LinkedInShareResponse
	if err := json.Unmarshal(respBody, &share); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	if share.ID == "" {
		return nil, &apperr.PublishError{Platform: li.Name(), Msg: "no share ID returned"}
	}

	// The permalink is deterministic from the share id, no remote fetch
	// needed.
	return &PublishResult{
		ExternalPostID: share.ID,
		Permalink:      fmt.Sprintf("https://www.linkedin.com/feed/update/%s/", share.ID),
	}, nil
}

func (li *LinkedIn) authorURN(req *PublishRequest) (string, error) {
	if req.AccountType == models.AccountTypeOrganization {
		urn := req.Metadata[models.MetaOrgURN]
		if urn == "" {
			return "", apperr.Validation("organization account is missing its organization URN")
		}
		return urn, nil
	}
	return "urn:li:person:" + req.AccountID, nil
}

// uploadImageAsset downloads the image and registers it as a native
// LinkedIn asset. Any failure here is recoverable by the caller's URL
// fallback.
func (li *LinkedIn) uploadImageAsset(ctx context.Context, accessToken, author, imageURL string) (string, error) {
	imgReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	imgResp, err := li.HTTPClient.Do(imgReq)
	if err != nil {
		return "", err
	}
	defer imgResp.Body.Close()
	if imgResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image fetch returned status %d", imgResp.StatusCode)
	}
	imageBytes, err := io.ReadAll(imgResp.Body)
	if err != nil {
		return "", err
	}

	registerPayload := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   author,
			"serviceRelationships": []map[string]any{{
				"relationshipType": "OWNER",
				"identifier":       "urn:li:userGeneratedContent",
			}},
		},
	}
	body, err := json.Marshal(registerPayload)
	if err != nil {
		return "", err
	}

	regReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		li.BaseURL+"/v2/assets?action=registerUpload", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	regReq.Header.Set("Authorization", "Bearer "+accessToken)
	regReq.Header.Set("Content-Type", "application/json")

	regResp, err := li.HTTPClient.Do(regReq)
	if err != nil {
		return "", err
	}
	defer regResp.Body.Close()
	if regResp.StatusCode < 200 || regResp.StatusCode > 299 {
		respBody, _ := io.ReadAll(regResp.Body)
		return "", fmt.Errorf("registerUpload returned status %d: %s", regResp.StatusCode, respBody)
	}

	var reg transfer.LinkedInRegisterUploadResponse
	if err := json.NewDecoder(regResp.Body).Decode(&reg); err != nil {
		return "", err
	}
	uploadURL := reg.Value.UploadMechanism.MediaUploadHTTPRequest.UploadURL
	if uploadURL == "" || reg.Value.Asset == "" {
		return "", fmt.Errorf("registerUpload response missing upload URL or asset")
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(imageBytes))
	if err != nil {
		return "", err
	}
	putReq.Header.Set("Authorization", "Bearer "+accessToken)

	putResp, err := li.HTTPClient.Do(putReq)
	if err != nil {
		return "", err
	}
	defer putResp.Body.Close()
	if putResp.StatusCode < 200 || putResp.StatusCode > 299 {
		return "", fmt.Errorf("asset upload returned status %d", putResp.StatusCode)
	}

	return reg.Value.Asset, nil
}

func (li *LinkedIn) remoteError(status int, body []byte) error {
	var errResp struct {
		Message string `json:"message"`
	}
	msg := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		msg = errResp.Message
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &apperr.AuthError{Platform: li.Name(), Msg: msg}
	}
	return &apperr.PublishError{Platform: li.Name(), StatusCode: status, Msg: msg}
}
