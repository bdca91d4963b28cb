package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebms/postbridge/internal/apperr"
	"github.com/calebms/postbridge/internal/models"
)

type fakeGraph struct {
	server       *httptest.Server
	requests     atomic.Int64
	containers   atomic.Int64
	published    []string
	failStatus   int
	failMessage  string
	permalink    string
	permalinkErr bool
}

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()
	fg := &fakeGraph{permalink: "https://www.instagram.com/p/abc123/"}

	fg.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fg.requests.Add(1)

		if fg.failStatus != 0 {
			w.WriteHeader(fg.failStatus)
			fmt.Fprintf(w, `{"error":{"message":%q,"type":"OAuthException","code":100}}`, fg.failMessage)
			return
		}

		switch {
		case strings.HasSuffix(r.URL.Path, "/media_publish"):
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			creation, _ := body["creation_id"].(string)
			fg.published = append(fg.published, creation)
			fmt.Fprint(w, `{"id":"media-99"}`)
		case strings.HasSuffix(r.URL.Path, "/media"):
			n := fg.containers.Add(1)
			fmt.Fprintf(w, `{"id":"container-%d"}`, n)
		default: // permalink fetch
			if fg.permalinkErr {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":{"message":"nope"}}`)
				return
			}
			fmt.Fprintf(w, `{"permalink":%q}`, fg.permalink)
		}
	}))
	t.Cleanup(fg.server.Close)
	return fg
}

func (fg *fakeGraph) adapter() *Instagram {
	return &Instagram{
		BaseURL:     fg.server.URL,
		HTTPClient:  fg.server.Client(),
		SettleDelay: 0,
	}
}

func validRequest(postType string, images ...string) *PublishRequest {
	return &PublishRequest{
		AccountID:      "17841400000000000",
		AccountType:    models.AccountTypeBusiness,
		AccessToken:    "valid-token",
		TokenExpiresAt: time.Now().Add(time.Hour),
		PostType:       postType,
		Caption:        "hello world",
		ImageURLs:      images,
	}
}

func TestInstagram_PublishSingle(t *testing.T) {
	fg := newFakeGraph(t)

	result, err := fg.adapter().Publish(context.Background(),
		validRequest(models.PostTypeSingleImage, "https://cdn.example.com/a.jpg"))
	require.NoError(t, err)

	assert.Equal(t, "media-99", result.ExternalPostID)
	assert.Equal(t, "https://www.instagram.com/p/abc123/", result.Permalink)
	assert.Equal(t, []string{"container-1"}, fg.published)
	// container + publish + permalink
	assert.EqualValues(t, 3, fg.requests.Load())
}

func TestInstagram_PermalinkFailureIsNotFatal(t *testing.T) {
	fg := newFakeGraph(t)
	fg.permalinkErr = true

	result, err := fg.adapter().Publish(context.Background(),
		validRequest(models.PostTypeSingleImage, "https://cdn.example.com/a.jpg"))
	require.NoError(t, err)

	assert.Equal(t, "media-99", result.ExternalPostID)
	assert.Empty(t, result.Permalink)
}

func TestInstagram_CarouselBounds(t *testing.T) {
	fg := newFakeGraph(t)
	adapter := fg.adapter()

	one := []string{"https://cdn.example.com/a.jpg"}
	_, err := adapter.Publish(context.Background(), validRequest(models.PostTypeCarousel, one...))
	assert.True(t, apperr.IsValidation(err), "1 image: want ValidationError, got %v", err)

	eleven := make([]string, 11)
	for i := range eleven {
		eleven[i] = fmt.Sprintf("https://cdn.example.com/%d.jpg", i)
	}
	_, err = adapter.Publish(context.Background(), validRequest(models.PostTypeCarousel, eleven...))
	assert.True(t, apperr.IsValidation(err), "11 images: want ValidationError, got %v", err)

	// Bounds are checked before any remote call.
	assert.EqualValues(t, 0, fg.requests.Load())
}

func TestInstagram_CarouselPublish(t *testing.T) {
	fg := newFakeGraph(t)

	result, err := fg.adapter().Publish(context.Background(), validRequest(models.PostTypeCarousel,
		"https://cdn.example.com/1.jpg",
		"https://cdn.example.com/2.jpg",
		"https://cdn.example.com/3.jpg"))
	require.NoError(t, err)

	assert.Equal(t, "media-99", result.ExternalPostID)
	// the parent container (created last) is the one published
	assert.Equal(t, []string{"container-4"}, fg.published)
	// 3 children + parent + publish + permalink
	assert.EqualValues(t, 6, fg.requests.Load())
}

func TestInstagram_Story(t *testing.T) {
	fg := newFakeGraph(t)

	result, err := fg.adapter().Publish(context.Background(),
		validRequest(models.PostTypeStory, "https://cdn.example.com/a.jpg"))
	require.NoError(t, err)

	assert.Equal(t, "media-99", result.ExternalPostID)
	assert.Empty(t, result.Permalink)
}

func TestInstagram_ExpiredToken(t *testing.T) {
	fg := newFakeGraph(t)

	req := validRequest(models.PostTypeSingleImage, "https://cdn.example.com/a.jpg")
	req.TokenExpiresAt = time.Now().Add(-time.Minute)

	_, err := fg.adapter().Publish(context.Background(), req)
	assert.True(t, apperr.IsAuth(err), "want AuthError, got %v", err)
	assert.EqualValues(t, 0, fg.requests.Load())
}

func TestInstagram_RemoteRejection(t *testing.T) {
	fg := newFakeGraph(t)
	fg.failStatus = http.StatusBadRequest
	fg.failMessage = "Media posted before business account conversion"

	_, err := fg.adapter().Publish(context.Background(),
		validRequest(models.PostTypeSingleImage, "https://cdn.example.com/a.jpg"))
	require.Error(t, err)

	var pe *apperr.PublishError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.Contains(t, pe.Msg, "business account conversion")
}

func TestInstagram_RemoteUnauthorized(t *testing.T) {
	fg := newFakeGraph(t)
	fg.failStatus = http.StatusUnauthorized
	fg.failMessage = "Error validating access token"

	_, err := fg.adapter().Publish(context.Background(),
		validRequest(models.PostTypeSingleImage, "https://cdn.example.com/a.jpg"))
	assert.True(t, apperr.IsAuth(err), "want AuthError, got %v", err)
}
