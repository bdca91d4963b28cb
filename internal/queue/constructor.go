package queue

import (
	"github.com/calebms/postbridge/internal/service"
)

// Queue handles the delayed one-shot publish tasks enqueued when a post is
// created with a scheduled time. The cron sweep remains the safety net for
// tasks that never fire; the claim step makes that overlap safe.
type Queue struct {
	ps service.PublishService
}

func NewQueue(ps service.PublishService) *Queue {
	return &Queue{ps: ps}
}

const TaskTypeSchedulePost = "schedule:post"

type SchedulePostPayload struct {
	PostID int64 `json:"post_id"`
}
