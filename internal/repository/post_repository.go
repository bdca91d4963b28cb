package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/calebms/postbridge/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	ListDue(ctx context.Context, until time.Time, limit int) ([]*models.Post, error)
	ClaimForPublish(ctx context.Context, id int64) (bool, error)
	MarkScheduled(ctx context.Context, id int64) error
	MarkPublished(ctx context.Context, id int64, externalID, permalink string) error
	MarkFailed(ctx context.Context, id int64, message string) error
	ReleaseClaim(ctx context.Context, id int64) error
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, org_id, platform, post_type, caption, image_urls,
	scheduled_time, account_id, status, external_post_id, permalink, last_error,
	attempt_count, last_attempt_at, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	var p models.Post
	var images []byte
	var scheduled, lastAttempt sql.NullTime
	err := row.Scan(&p.ID, &p.UserID, &p.OrgID, &p.Platform, &p.PostType, &p.Caption,
		&images, &scheduled, &p.AccountID, &p.Status, &p.ExternalID, &p.Permalink,
		&p.LastError, &p.AttemptCount, &lastAttempt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if scheduled.Valid {
		p.ScheduledTime = scheduled.Time
	}
	if lastAttempt.Valid {
		p.LastAttemptAt = lastAttempt.Time
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.ImageURLs); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
	}
	return &p, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (int64, error) {
	images, err := json.Marshal(post.ImageURLs)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	var scheduled any
	if !post.ScheduledTime.IsZero() {
		scheduled = post.ScheduledTime
	}

	query := `
		INSERT INTO posts (user_id, org_id, platform, post_type, caption, image_urls,
			scheduled_time, account_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err = r.db.QueryRowContext(ctx, query, post.UserID, post.OrgID, post.Platform,
		post.PostType, post.Caption, images, scheduled, post.AccountID, post.Status).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ListDue returns scheduled posts due at or before the window edge, oldest
// first.
func (r *postRepository) ListDue(ctx context.Context, until time.Time, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND scheduled_time <= $2
		ORDER BY scheduled_time ASC
		LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, until, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ClaimForPublish atomically moves a draft or scheduled post into the
// transient publishing status. Returns false when the row was not
// claimable, which is how overlapping runs lose the race instead of
// double-publishing.
func (r *postRepository) ClaimForPublish(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE posts
		SET status = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status IN ($3, $4)`
	result, err := r.db.ExecContext(ctx, query, id, models.PostStatusPublishing,
		models.PostStatusDraft, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) MarkScheduled(ctx context.Context, id int64) error {
	query := `UPDATE posts
		SET status = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status IN ($3, $4)`
	_, err := r.db.ExecContext(ctx, query, id, models.PostStatusScheduled,
		models.PostStatusDraft, models.PostStatusFailed)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkPublished(ctx context.Context, id int64, externalID, permalink string) error {
	query := `UPDATE posts
		SET status = $2,
			external_post_id = $3,
			permalink = $4,
			last_error = '',
			attempt_count = attempt_count + 1,
			last_attempt_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, models.PostStatusPublished, externalID, permalink)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkFailed(ctx context.Context, id int64, message string) error {
	query := `UPDATE posts
		SET status = $2,
			last_error = $3,
			attempt_count = attempt_count + 1,
			last_attempt_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, models.PostStatusFailed, message)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ReleaseClaim puts a claimed post back to scheduled without counting an
// attempt. Used when the claim succeeded but no remote call was made.
func (r *postRepository) ReleaseClaim(ctx context.Context, id int64) error {
	query := `UPDATE posts
		SET status = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $3`
	_, err := r.db.ExecContext(ctx, query, id, models.PostStatusScheduled, models.PostStatusPublishing)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := `SELECT 1 FROM posts WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
