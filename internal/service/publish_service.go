package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calebms/postbridge/internal/apperr"
	"github.com/calebms/postbridge/internal/models"
	"github.com/calebms/postbridge/internal/platform"
	"github.com/calebms/postbridge/internal/repository"
	"github.com/calebms/postbridge/internal/transfer"
	"github.com/calebms/postbridge/internal/vault"
)

type PublishService interface {
	Publish(ctx context.Context, userID, postID, accountID int64, publishNow bool) (*transfer.PublishResult, error)
}

type publishService struct {
	p     repository.PostRepository
	sa    repository.SocialAccountRepository
	ph    repository.PublishHistoryRepository
	vault *vault.Vault

	adapters map[string]platform.Adapter

	now func() time.Time
}

func NewPublishService(
	p repository.PostRepository,
	sa repository.SocialAccountRepository,
	ph repository.PublishHistoryRepository,
	v *vault.Vault,
	adapters ...platform.Adapter) PublishService {

	byName := make(map[string]platform.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	return &publishService{
		p:        p,
		sa:       sa,
		ph:       ph,
		vault:    v,
		adapters: byName,
		now:      time.Now,
	}
}

// Publish drives one post through the state machine. Only a confirmed
// adapter success moves a post to published; a cancelled call releases the
// claim and leaves the post as it was.
func (s *publishService) Publish(ctx context.Context, userID, postID, accountID int64, publishNow bool) (*transfer.PublishResult, error) {
	post, err := s.p.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || (userID != 0 && post.UserID != userID) {
		return nil, fmt.Errorf("%w: post %d", apperr.ErrNotFound, postID)
	}

	// Duplicate-request guard: a published post is terminal and its
	// attempt bookkeeping stays untouched.
	if post.Status == models.PostStatusPublished {
		return nil, apperr.Validation("post %d is already published", post.ID)
	}

	account, err := s.resolveAccount(ctx, post, accountID)
	if err != nil {
		return nil, err
	}

	if !publishNow && !post.ScheduledTime.IsZero() && post.ScheduledTime.After(s.now()) {
		if err := s.p.MarkScheduled(ctx, post.ID); err != nil {
			return nil, err
		}
		return &transfer.PublishResult{PostID: post.ID, Scheduled: true}, nil
	}

	claimed, err := s.p.ClaimForPublish(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, apperr.Validation("post %d is already being published", post.ID)
	}

	caption, images, err := extractContent(post)
	if err != nil {
		return nil, s.fail(ctx, post, account, err)
	}

	if account.TokenExpired(s.now()) {
		err := &apperr.AuthError{Platform: account.Platform, Msg: "access token expired, account needs re-linking"}
		return nil, s.fail(ctx, post, account, err)
	}

	accessToken, err := s.vault.Decrypt(account.AccessToken)
	if err != nil {
		// Vault failures surface as-is; a corrupt credential is never
		// papered over with a plaintext fallback.
		return nil, s.fail(ctx, post, account, fmt.Errorf("stored credential unusable: %w", err))
	}

	adapter, ok := s.adapters[account.Platform]
	if !ok {
		return nil, s.fail(ctx, post, account, apperr.Validation("no adapter for platform %q", account.Platform))
	}

	result, err := adapter.Publish(ctx, &platform.PublishRequest{
		AccountID:      account.AccountID,
		AccountType:    account.AccountType,
		AccessToken:    accessToken,
		TokenExpiresAt: account.TokenExpiresAt,
		PostType:       post.PostType,
		Caption:        caption,
		ImageURLs:      images,
		Metadata:       account.Metadata,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Outcome unknown, no confirmed success: put the post back
			// instead of guessing.
			if relErr := s.p.ReleaseClaim(ctx, post.ID); relErr != nil {
				slog.Info(relErr.Error())
			}
			return nil, err
		}
		return nil, s.fail(ctx, post, account, err)
	}

	if err := s.p.MarkPublished(ctx, post.ID, result.ExternalPostID, result.Permalink); err != nil {
		return nil, err
	}
	s.record(ctx, post, account, "")

	return &transfer.PublishResult{
		PostID:     post.ID,
		ExternalID: result.ExternalPostID,
		Permalink:  result.Permalink,
	}, nil
}

// resolveAccount picks the explicit account when given, otherwise the
// owner's active default for the post's platform.
func (s *publishService) resolveAccount(ctx context.Context, post *models.Post, accountID int64) (*models.SocialAccount, error) {
	if accountID == 0 {
		accountID = post.AccountID
	}

	if accountID != 0 {
		account, err := s.sa.GetByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if account == nil || account.UserID != post.UserID || !account.IsActive {
			return nil, fmt.Errorf("%w: no linked account %d", apperr.ErrNotFound, accountID)
		}
		if account.Platform != post.Platform {
			return nil, apperr.Validation("account %d is a %s account, post targets %s",
				accountID, account.Platform, post.Platform)
		}
		return account, nil
	}

	account, err := s.sa.GetDefault(ctx, post.UserID, post.Platform, post.OrgID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: no linked %s account", apperr.ErrNotFound, post.Platform)
	}
	return account, nil
}

// fail records the failed attempt and hands the underlying error back to
// the caller.
func (s *publishService) fail(ctx context.Context, post *models.Post, account *models.SocialAccount, cause error) error {
	if err := s.p.MarkFailed(ctx, post.ID, cause.Error()); err != nil {
		slog.Info(err.Error())
	}
	s.record(ctx, post, account, cause.Error())
	return cause
}

func (s *publishService) record(ctx context.Context, post *models.Post, account *models.SocialAccount, errMsg string) {
	history := &models.PublishHistory{
		UserID:       post.UserID,
		PostID:       post.ID,
		AccountID:    account.ID,
		ErrorMessage: errMsg,
	}
	if _, err := s.ph.Create(ctx, history); err != nil {
		slog.Info(err.Error())
	}
}

// extractContent applies the subtype-specific rules to the opaque payload.
// Required fields fail loudly instead of falling through alternatives.
func extractContent(post *models.Post) (string, []string, error) {
	switch post.PostType {
	case models.PostTypeSingleImage:
		if len(post.ImageURLs) == 0 {
			return "", nil, apperr.Validation("single image post needs an image URL")
		}
		return post.Caption, post.ImageURLs[:1], nil

	case models.PostTypeCarousel:
		if n := len(post.ImageURLs); n < 2 || n > 10 {
			return "", nil, apperr.Validation("carousel needs 2-10 images, got %d", n)
		}
		return post.Caption, post.ImageURLs, nil

	case models.PostTypeText:
		if post.Caption == "" {
			return "", nil, apperr.Validation("text post needs a caption")
		}
		if len(post.ImageURLs) > 1 {
			return "", nil, apperr.Validation("text post takes at most one image")
		}
		return post.Caption, post.ImageURLs, nil

	case models.PostTypeStory:
		if len(post.ImageURLs) == 0 {
			return "", nil, apperr.Validation("story post needs an image URL")
		}
		return post.Caption, post.ImageURLs[:1], nil

	default:
		return "", nil, apperr.Validation("unknown post type %q", post.PostType)
	}
}
