package transfer

// PostCreation is the inbound shape for creating a post.
type PostCreation struct {
	Platform      string   `json:"platform"`
	PostType      string   `json:"post_type"`
	Caption       string   `json:"caption"`
	ImageURLs     []string `json:"image_urls"`
	ScheduledTime string   `json:"scheduled_time"`
	AccountID     int64    `json:"account_id"`
	OrgID         int64    `json:"org_id"`
}

// PublishRequest is the inbound shape for the interactive publish endpoint.
type PublishRequest struct {
	PostID     int64 `json:"post_id"`
	AccountID  int64 `json:"account_id"`
	PublishNow bool  `json:"publish_now"`
}

// PublishResult is what a completed publish returns to the caller.
// Permalink is best-effort and may be empty. Scheduled is true when the
// post was deferred instead of sent.
type PublishResult struct {
	PostID     int64  `json:"post_id"`
	ExternalID string `json:"external_post_id,omitempty"`
	Permalink  string `json:"permalink,omitempty"`
	Scheduled  bool   `json:"scheduled,omitempty"`
}

// RunReport aggregates one scheduler batch.
type RunReport struct {
	Processed int      `json:"processed"`
	Success   int      `json:"success"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}
