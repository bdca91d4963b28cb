package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/calebms/postbridge/internal/models"
	"github.com/calebms/postbridge/internal/platform"
)

// fakeAccountRepo mirrors the repository contract in memory. Upsert holds
// the same invariant the SQL version enforces in its serializable
// transaction: at most one active default per (user, platform, org).
type fakeAccountRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*models.SocialAccount
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: map[int64]*models.SocialAccount{}}
}

func (f *fakeAccountRepo) Upsert(_ context.Context, sa *models.SocialAccount) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.accounts {
		if existing.UserID == sa.UserID && existing.Platform == sa.Platform &&
			existing.AccountID == sa.AccountID && existing.OrgID == sa.OrgID {
			existing.AccountType = sa.AccountType
			existing.AccountName = sa.AccountName
			existing.AccountUsername = sa.AccountUsername
			existing.AccessToken = sa.AccessToken
			existing.RefreshToken = sa.RefreshToken
			existing.TokenExpiresAt = sa.TokenExpiresAt
			existing.Metadata = sa.Metadata
			existing.IsActive = true
			return existing.ID, nil
		}
	}

	isDefault := true
	for _, existing := range f.accounts {
		if existing.UserID == sa.UserID && existing.Platform == sa.Platform &&
			existing.OrgID == sa.OrgID && existing.IsActive && existing.IsDefault {
			isDefault = false
			break
		}
	}

	f.nextID++
	stored := *sa
	stored.ID = f.nextID
	stored.IsActive = true
	stored.IsDefault = isDefault
	f.accounts[stored.ID] = &stored
	return stored.ID, nil
}

func (f *fakeAccountRepo) GetByID(_ context.Context, id int64) (*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sa, ok := f.accounts[id]; ok {
		clone := *sa
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeAccountRepo) GetDefault(_ context.Context, userID int64, platform string, orgID int64) (*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sa := range f.accounts {
		if sa.UserID == userID && sa.Platform == platform && sa.OrgID == orgID &&
			sa.IsActive && sa.IsDefault {
			clone := *sa
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeAccountRepo) ListInfoByUserID(_ context.Context, userID int64) ([]*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SocialAccount
	for _, sa := range f.accounts {
		if sa.UserID == userID && sa.IsActive {
			clone := *sa
			clone.AccessToken = ""
			clone.RefreshToken = ""
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) ListExpiring(_ context.Context, until time.Time) ([]*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SocialAccount
	for _, sa := range f.accounts {
		if sa.IsActive && !sa.TokenExpiresAt.After(until) {
			clone := *sa
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) CheckByUserID(_ context.Context, accountID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sa, ok := f.accounts[accountID]
	return ok && sa.UserID == userID && sa.IsActive, nil
}

func (f *fakeAccountRepo) SetToken(_ context.Context, accountID int64, sa *models.SocialAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.accounts[accountID]; ok {
		if sa.AccessToken != "" {
			existing.AccessToken = sa.AccessToken
		}
		if sa.RefreshToken != "" {
			existing.RefreshToken = sa.RefreshToken
		}
		existing.TokenExpiresAt = sa.TokenExpiresAt
	}
	return nil
}

func (f *fakeAccountRepo) Deactivate(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sa, ok := f.accounts[id]; ok {
		sa.IsActive = false
		sa.IsDefault = false
	}
	return nil
}

func (f *fakeAccountRepo) activeDefaults(userID int64, platform string, orgID int64) []*models.SocialAccount {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SocialAccount
	for _, sa := range f.accounts {
		if sa.UserID == userID && sa.Platform == platform && sa.OrgID == orgID &&
			sa.IsActive && sa.IsDefault {
			out = append(out, sa)
		}
	}
	return out
}

type fakePostRepo struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*models.Post
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: map[int64]*models.Post{}}
}

func (f *fakePostRepo) add(post *models.Post) *models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	post.ID = f.nextID
	if post.Status == "" {
		post.Status = models.PostStatusDraft
	}
	f.posts[post.ID] = post
	return post
}

func (f *fakePostRepo) Create(_ context.Context, post *models.Post) (int64, error) {
	clone := *post
	return f.add(&clone).ID, nil
}

func (f *fakePostRepo) GetByID(_ context.Context, id int64) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if post, ok := f.posts[id]; ok {
		clone := *post
		return &clone, nil
	}
	return nil, nil
}

func (f *fakePostRepo) ListByUserID(_ context.Context, userID int64) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Post
	for _, post := range f.posts {
		if post.UserID == userID {
			clone := *post
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakePostRepo) ListDue(_ context.Context, until time.Time, limit int) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Post
	for _, post := range f.posts {
		if post.Status == models.PostStatusScheduled && !post.ScheduledTime.After(until) {
			clone := *post
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePostRepo) ClaimForPublish(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return false, nil
	}
	if post.Status != models.PostStatusDraft && post.Status != models.PostStatusScheduled {
		return false, nil
	}
	post.Status = models.PostStatusPublishing
	return true, nil
}

func (f *fakePostRepo) MarkScheduled(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if post, ok := f.posts[id]; ok &&
		(post.Status == models.PostStatusDraft || post.Status == models.PostStatusFailed) {
		post.Status = models.PostStatusScheduled
	}
	return nil
}

func (f *fakePostRepo) MarkPublished(_ context.Context, id int64, externalID, permalink string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if post, ok := f.posts[id]; ok {
		post.Status = models.PostStatusPublished
		post.ExternalID = externalID
		post.Permalink = permalink
		post.LastError = ""
		post.AttemptCount++
		post.LastAttemptAt = time.Now()
	}
	return nil
}

func (f *fakePostRepo) MarkFailed(_ context.Context, id int64, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if post, ok := f.posts[id]; ok {
		post.Status = models.PostStatusFailed
		post.LastError = message
		post.AttemptCount++
		post.LastAttemptAt = time.Now()
	}
	return nil
}

func (f *fakePostRepo) ReleaseClaim(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if post, ok := f.posts[id]; ok && post.Status == models.PostStatusPublishing {
		post.Status = models.PostStatusScheduled
	}
	return nil
}

func (f *fakePostRepo) CheckByUserID(_ context.Context, postID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[postID]
	return ok && post.UserID == userID, nil
}

func (f *fakePostRepo) Remove(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.posts, id)
	return nil
}

func (f *fakePostRepo) get(id int64) *models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *f.posts[id]
	return &clone
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*models.PublishHistory
}

func (f *fakeHistoryRepo) Create(_ context.Context, h *models.PublishHistory) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *h
	clone.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, &clone)
	return clone.ID, nil
}

func (f *fakeHistoryRepo) ListByPostID(_ context.Context, postID int64) ([]*models.PublishHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PublishHistory
	for _, h := range f.entries {
		if h.PostID == postID {
			clone := *h
			out = append(out, &clone)
		}
	}
	return out, nil
}

// fakeAdapter records publish calls and answers with a canned result or
// error.
type fakeAdapter struct {
	name   string
	mu     sync.Mutex
	calls  []*platform.PublishRequest
	result *platform.PublishResult
	err    error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Publish(_ context.Context, req *platform.PublishRequest) (*platform.PublishResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &platform.PublishResult{ExternalPostID: "ext-1"}, nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
