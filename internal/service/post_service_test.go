package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calebms/postbridge/internal/apperr"
	"github.com/calebms/postbridge/internal/models"
	"github.com/calebms/postbridge/internal/transfer"
)

func newPostEnv() (*fakePostRepo, *fakeHistoryRepo, PostService) {
	posts := newFakePostRepo()
	history := &fakeHistoryRepo{}
	return posts, history, NewPostService(posts, history)
}

func TestCreateDraftPost(t *testing.T) {
	posts, _, svc := newPostEnv()

	id, delay, err := svc.Create(context.Background(), 7, &transfer.PostCreation{
		Platform:  models.PlatformInstagram,
		PostType:  models.PostTypeSingleImage,
		Caption:   "hello",
		ImageURLs: []string{"https://cdn.example.com/a.jpg"},
	})
	require.NoError(t, err)
	require.Zero(t, delay)

	stored := posts.get(id)
	require.Equal(t, models.PostStatusDraft, stored.Status)
	require.True(t, stored.ScheduledTime.IsZero())
}

func TestCreateScheduledPostReturnsDelay(t *testing.T) {
	posts, _, svc := newPostEnv()

	scheduledTime := time.Now().Add(time.Hour).UTC()
	id, delay, err := svc.Create(context.Background(), 7, &transfer.PostCreation{
		Platform:      models.PlatformInstagram,
		PostType:      models.PostTypeSingleImage,
		ImageURLs:     []string{"https://cdn.example.com/a.jpg"},
		ScheduledTime: scheduledTime.Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.InDelta(t, time.Hour, delay, float64(time.Minute))

	stored := posts.get(id)
	require.Equal(t, models.PostStatusScheduled, stored.Status)
	require.WithinDuration(t, scheduledTime, stored.ScheduledTime, time.Second)
}

func TestCreatePastScheduleStaysDraft(t *testing.T) {
	posts, _, svc := newPostEnv()

	id, delay, err := svc.Create(context.Background(), 7, &transfer.PostCreation{
		Platform:      models.PlatformInstagram,
		PostType:      models.PostTypeSingleImage,
		ImageURLs:     []string{"https://cdn.example.com/a.jpg"},
		ScheduledTime: time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.Zero(t, delay)
	require.Equal(t, models.PostStatusDraft, posts.get(id).Status)
}

func TestCreateRejectsBadPayloads(t *testing.T) {
	_, _, svc := newPostEnv()

	cases := map[string]*transfer.PostCreation{
		"unsupported platform": {
			Platform: "myspace", PostType: models.PostTypeText, Caption: "hi",
		},
		"single image without image": {
			Platform: models.PlatformInstagram, PostType: models.PostTypeSingleImage,
		},
		"carousel with one image": {
			Platform: models.PlatformInstagram, PostType: models.PostTypeCarousel,
			ImageURLs: []string{"https://cdn.example.com/a.jpg"},
		},
		"text without caption": {
			Platform: models.PlatformLinkedIn, PostType: models.PostTypeText,
		},
		"bad timestamp": {
			Platform: models.PlatformLinkedIn, PostType: models.PostTypeText,
			Caption: "hi", ScheduledTime: "tomorrow at noon",
		},
	}

	for name, pc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.Create(context.Background(), 7, pc)
			require.True(t, apperr.IsValidation(err))
		})
	}
}

func TestRemoveOnlyWhileEditable(t *testing.T) {
	posts, _, svc := newPostEnv()

	draft := posts.add(&models.Post{UserID: 7, Status: models.PostStatusDraft})
	published := posts.add(&models.Post{UserID: 7, Status: models.PostStatusPublished})

	require.ErrorIs(t, svc.Remove(context.Background(), 99, draft.ID), apperr.ErrNotFound)

	err := svc.Remove(context.Background(), 7, published.ID)
	require.True(t, apperr.IsValidation(err))

	require.NoError(t, svc.Remove(context.Background(), 7, draft.ID))
	got, err := posts.GetByID(context.Background(), draft.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestHistoryRequiresOwnership(t *testing.T) {
	posts, history, svc := newPostEnv()

	post := posts.add(&models.Post{UserID: 7, Status: models.PostStatusPublished})
	_, err := history.Create(context.Background(), &models.PublishHistory{
		UserID: 7, PostID: post.ID, AccountID: 1,
	})
	require.NoError(t, err)

	_, err = svc.History(context.Background(), post.ID, 99)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	entries, err := svc.History(context.Background(), post.ID, 7)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
