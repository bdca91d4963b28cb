package service

import (
	"context"
	"fmt"
	"time"

	"github.com/calebms/postbridge/internal/apperr"
	"github.com/calebms/postbridge/internal/models"
	"github.com/calebms/postbridge/internal/repository"
	"github.com/calebms/postbridge/internal/transfer"
)

type PostService interface {
	Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (int64, time.Duration, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error)
	History(ctx context.Context, postID, userID int64) ([]*models.PublishHistory, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	p  repository.PostRepository
	ph repository.PublishHistoryRepository
}

func NewPostService(p repository.PostRepository, ph repository.PublishHistoryRepository) PostService {
	return &postService{p: p, ph: ph}
}

// Create validates the payload shape up front and stores the post as draft,
// or as scheduled when a future timestamp is attached. The returned delay
// is how long a queued publish task should wait.
func (s *postService) Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (int64, time.Duration, error) {
	if userID == 0 {
		return 0, 0, apperr.Validation("UserID is not valid")
	}

	switch pc.Platform {
	case models.PlatformInstagram, models.PlatformLinkedIn:
	default:
		return 0, 0, apperr.Validation("unsupported platform %q", pc.Platform)
	}

	post := &models.Post{
		UserID:    userID,
		OrgID:     pc.OrgID,
		Platform:  pc.Platform,
		PostType:  pc.PostType,
		Caption:   pc.Caption,
		ImageURLs: pc.ImageURLs,
		AccountID: pc.AccountID,
		Status:    models.PostStatusDraft,
	}

	// Same subtype rules the orchestrator applies, but at intake so the
	// user hears about a bad payload before publish time.
	if _, _, err := extractContent(post); err != nil {
		return 0, 0, err
	}

	var delay time.Duration
	if pc.ScheduledTime != "" {
		scheduledTime, err := time.Parse(time.RFC3339, pc.ScheduledTime)
		if err != nil {
			return 0, 0, apperr.Validation("scheduled_time must be RFC 3339, got %q", pc.ScheduledTime)
		}
		post.ScheduledTime = scheduledTime
		if until := time.Until(scheduledTime); until > 0 {
			post.Status = models.PostStatusScheduled
			delay = until
		}
	}

	id, err := s.p.Create(ctx, post)
	if err != nil {
		return 0, 0, fmt.Errorf("error saving post: %w", err)
	}
	return id, delay, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	if userID == 0 {
		return nil, apperr.Validation("UserID is not valid")
	}
	return s.p.ListByUserID(ctx, userID)
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error) {
	post, err := s.p.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	return post, nil
}

func (s *postService) History(ctx context.Context, postID, userID int64) ([]*models.PublishHistory, error) {
	owned, err := s.p.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, apperr.ErrNotFound
	}
	return s.ph.ListByPostID(ctx, postID)
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	post, err := s.p.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil || post.UserID != userID {
		return apperr.ErrNotFound
	}
	if !post.Editable() {
		return apperr.Validation("post %d can no longer be removed", postID)
	}
	return s.p.Remove(ctx, postID)
}
