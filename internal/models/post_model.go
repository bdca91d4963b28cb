package models

import "time"

// Post is one piece of content destined for exactly one platform. The
// caption and image URLs are produced upstream; nothing here interprets
// them beyond subtype extraction at publish time.
type Post struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	OrgID         int64     `db:"org_id" json:"org_id,omitempty"`
	Platform      string    `db:"platform" json:"platform"`
	PostType      string    `db:"post_type" json:"post_type"`
	Caption       string    `db:"caption" json:"caption"`
	ImageURLs     []string  `db:"image_urls" json:"image_urls"`
	ScheduledTime time.Time `db:"scheduled_time" json:"scheduled_time"`
	AccountID     int64     `db:"account_id" json:"account_id,omitempty"`
	Status        string    `db:"status" json:"status"`
	ExternalID    string    `db:"external_post_id" json:"external_post_id,omitempty"`
	Permalink     string    `db:"permalink" json:"permalink,omitempty"`
	LastError     string    `db:"last_error" json:"last_error,omitempty"`
	AttemptCount  int       `db:"attempt_count" json:"attempt_count"`
	LastAttemptAt time.Time `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusDraft      = "draft"
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing" // transient claim, guards overlapping runs
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"

	PostTypeSingleImage = "single_image"
	PostTypeCarousel    = "carousel"
	PostTypeText        = "text"
	PostTypeStory       = "story"
)

// Editable reports whether the owner may still change content and schedule
// fields. Once a publish attempt starts only the orchestrator writes.
func (p *Post) Editable() bool {
	return p.Status == PostStatusDraft || p.Status == PostStatusScheduled
}
