package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/calebms/postbridge/internal/apperr"
	"github.com/calebms/postbridge/internal/models"
	"github.com/calebms/postbridge/internal/transfer"
)

const (
	instagramGraphURL = "https://graph.instagram.com/v21.0"

	// Containers need a moment on the remote side before media_publish
	// accepts them.
	instagramSettleDelay = 5 * time.Second

	carouselMinImages = 2
	carouselMaxImages = 10
)

// Instagram publishes through the two-phase container/publish model of the
// Graph API. BaseURL, HTTPClient and SettleDelay are injectable for tests.
type Instagram struct {
	BaseURL     string
	HTTPClient  *http.Client
	SettleDelay time.Duration
}

func NewInstagram() *Instagram {
	return &Instagram{
		BaseURL:     instagramGraphURL,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		SettleDelay: instagramSettleDelay,
	}
}

func (ig *Instagram) Name() string { return models.PlatformInstagram }

func (ig *Instagram) Publish(ctx context.Context, req *PublishRequest) (*PublishResult, error) {
	if err := checkToken(ig.Name(), req); err != nil {
		return nil, err
	}

	switch req.PostType {
	case models.PostTypeSingleImage:
		if len(req.ImageURLs) == 0 {
			return nil, apperr.Validation("single image post needs an image URL")
		}
		return ig.publishSingle(ctx, req, req.ImageURLs[0])
	case models.PostTypeCarousel:
		return ig.publishCarousel(ctx, req)
	case models.PostTypeStory:
		if len(req.ImageURLs) == 0 {
			return nil, apperr.Validation("story post needs an image URL")
		}
		return ig.publishStory(ctx, req, req.ImageURLs[0])
	default:
		return nil, apperr.Validation("instagram does not support post type %q", req.PostType)
	}
}

func (ig *Instagram) publishSingle(ctx context.Context, req *PublishRequest, imageURL string) (*PublishResult, error) {
	containerID, err := ig.createContainer(ctx, req, map[string]any{
		"image_url": imageURL,
		"caption":   req.Caption,
	})
	if err != nil {
		return nil, err
	}

	if err := settle(ctx, ig.SettleDelay); err != nil {
		return nil, err
	}

	mediaID, err := ig.publishContainer(ctx, req, containerID)
	if err != nil {
		return nil, err
	}

	return &PublishResult{
		ExternalPostID: mediaID,
		Permalink:      ig.fetchPermalink(ctx, req, mediaID),
	}, nil
}

func (ig *Instagram) publishCarousel(ctx context.Context, req *PublishRequest) (*PublishResult, error) {
	if n := len(req.ImageURLs); n < carouselMinImages || n > carouselMaxImages {
		return nil, apperr.Validation("carousel needs %d-%d images, got %d",
			carouselMinImages, carouselMaxImages, n)
	}

	childIDs := make([]string, 0, len(req.ImageURLs))
	for _, imageURL := range req.ImageURLs {
		childID, err := ig.createContainer(ctx, req, map[string]any{
			"image_url":        imageURL,
			"is_carousel_item": true,
		})
		if err != nil {
			return nil, err
		}
		childIDs = append(childIDs, childID)
	}

	if err := settle(ctx, ig.SettleDelay); err != nil {
		return nil, err
	}

	parentID, err := ig.createContainer(ctx, req, map[string]any{
		"media_type": "CAROUSEL",
		"caption":    req.Caption,
		"children":   childIDs,
	})
	if err != nil {
		return nil, err
	}

	mediaID, err := ig.publishContainer(ctx, req, parentID)
	if err != nil {
		return nil, err
	}

	return &PublishResult{
		ExternalPostID: mediaID,
		Permalink:      ig.fetchPermalink(ctx, req, mediaID),
	}, nil
}

func (ig *Instagram) publishStory(ctx context.Context, req *PublishRequest, imageURL string) (*PublishResult, error) {
	containerID, err := ig.createContainer(ctx, req, map[string]any{
		"image_url":  imageURL,
		"media_type": "STORIES",
	})
	if err != nil {
		return nil, err
	}

	if err := settle(ctx, ig.SettleDelay); err != nil {
		return nil, err
	}

	mediaID, err := ig.publishContainer(ctx, req, containerID)
	if err != nil {
		return nil, err
	}

	// Stories have no permalink.
	return &PublishResult{ExternalPostID: mediaID}, nil
}

func (ig *Instagram) createContainer(ctx context.Context, req *PublishRequest, payload map[string]any) (string, error) {
	payload["access_token"] = req.AccessToken
	endpoint := fmt.Sprintf("%s/%s/media", ig.BaseURL, req.AccountID)
	return ig.postForID(ctx, endpoint, payload)
}

func (ig *Instagram) publishContainer(ctx context.Context, req *PublishRequest, containerID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media_publish", ig.BaseURL, req.AccountID)
	return ig.postForID(ctx, endpoint, map[string]any{
		"creation_id":  containerID,
		"access_token": req.AccessToken,
	})
}

func (ig *Instagram) postForID(ctx context.Context, endpoint string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := ig.HTTPClient.Do(httpReq)
	if err != nil {
		return "", &apperr.PublishError{Platform: ig.Name(), Msg: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", ig.remoteError(resp.StatusCode, respBody)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.ID == "" {
		return "", &apperr.PublishError{Platform: ig.Name(), Msg: "no media ID returned"}
	}
	return result.ID, nil
}

// fetchPermalink is best-effort. A failed fetch leaves the permalink empty,
// it never fails the publish.
func (ig *Instagram) fetchPermalink(ctx context.Context, req *PublishRequest, mediaID string) string {
	endpoint := fmt.Sprintf("%s/%s?fields=permalink&access_token=%s",
		ig.BaseURL, mediaID, url.QueryEscape(req.AccessToken))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		slog.Info(err.Error())
		return ""
	}

	resp, err := ig.HTTPClient.Do(httpReq)
	if err != nil {
		slog.Info(err.Error())
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Info(fmt.Sprintf("permalink fetch returned status %d", resp.StatusCode))
		return ""
	}

	var result struct {
		Permalink string `json:"permalink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return ""
	}
	return result.Permalink
}

func (ig *Instagram) remoteError(status int, body []byte) error {
	var errResp transfer.InstagramErrorResponse
	msg := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &apperr.AuthError{Platform: ig.Name(), Msg: msg}
	}
	return &apperr.PublishError{Platform: ig.Name(), StatusCode: status, Msg: msg}
}
