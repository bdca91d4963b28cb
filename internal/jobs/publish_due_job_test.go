package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calebms/postbridge/internal/apperr"
	"github.com/calebms/postbridge/internal/models"
	"github.com/calebms/postbridge/internal/repository"
	"github.com/calebms/postbridge/internal/transfer"
)

// duePostRepo only answers ListDue; the job touches nothing else on the
// repository.
type duePostRepo struct {
	repository.PostRepository
	posts []*models.Post
}

func (r *duePostRepo) ListDue(_ context.Context, until time.Time, limit int) ([]*models.Post, error) {
	var out []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusScheduled && !p.ScheduledTime.After(until) {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	postIDs []int64
	failID  int64
}

func (f *fakePublisher) Publish(_ context.Context, _, postID, _ int64, _ bool) (*transfer.PublishResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postIDs = append(f.postIDs, postID)
	if postID == f.failID {
		return nil, &apperr.PublishError{Platform: models.PlatformInstagram, StatusCode: 400, Msg: "remote rejected"}
	}
	return &transfer.PublishResult{PostID: postID, ExternalID: "ext"}, nil
}

func TestRunPicksOnlyPostsInsideLookahead(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	repo := &duePostRepo{posts: []*models.Post{
		{ID: 1, Status: models.PostStatusScheduled, ScheduledTime: base.Add(-time.Minute)},
		{ID: 2, Status: models.PostStatusScheduled, ScheduledTime: base.Add(2 * time.Minute)},
		{ID: 3, Status: models.PostStatusScheduled, ScheduledTime: base.Add(10 * time.Minute)},
		{ID: 4, Status: models.PostStatusDraft, ScheduledTime: base.Add(-time.Hour)},
	}}
	publisher := &fakePublisher{}

	j := NewPublishDueJob(repo, publisher)
	j.now = func() time.Time { return base }

	report := j.Run(context.Background())
	require.Equal(t, 2, report.Processed)
	require.Equal(t, 2, report.Success)
	require.Zero(t, report.Failed)
	require.Empty(t, report.Errors)
	require.Equal(t, []int64{1, 2}, publisher.postIDs)
}

func TestRunIsolatesPerPostFailures(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	repo := &duePostRepo{posts: []*models.Post{
		{ID: 1, Status: models.PostStatusScheduled, ScheduledTime: base.Add(-2 * time.Minute)},
		{ID: 2, Status: models.PostStatusScheduled, ScheduledTime: base.Add(-time.Minute)},
	}}
	publisher := &fakePublisher{failID: 1}

	j := NewPublishDueJob(repo, publisher)
	j.now = func() time.Time { return base }

	report := j.Run(context.Background())
	require.Equal(t, 2, report.Processed)
	require.Equal(t, 1, report.Success)
	require.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	require.Contains(t, report.Errors[0], "post 1")
	require.Equal(t, []int64{1, 2}, publisher.postIDs)
}

func TestRunHonorsBatchLimit(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	repo := &duePostRepo{}
	for i := int64(1); i <= 5; i++ {
		repo.posts = append(repo.posts, &models.Post{
			ID:            i,
			Status:        models.PostStatusScheduled,
			ScheduledTime: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	publisher := &fakePublisher{}

	j := NewPublishDueJob(repo, publisher)
	j.now = func() time.Time { return base }
	j.BatchLimit = 3

	report := j.Run(context.Background())
	require.Equal(t, 3, report.Processed)
	require.Len(t, publisher.postIDs, 3)
}
