package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/hibiken/asynq"

	"github.com/calebms/postbridge/internal/apperr"
)

func (q *Queue) HandleSchedulePostTask(ctx context.Context, task *asynq.Task) error {
	var payload SchedulePostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	_, err := q.ps.Publish(ctx, 0, payload.PostID, 0, true)
	if err != nil {
		// A claim miss or a deleted post means someone else already
		// handled it; retrying the task would just duplicate work.
		if apperr.IsValidation(err) || apperr.IsAuth(err) || errors.Is(err, apperr.ErrNotFound) {
			log.Printf("dropping publish task for post %d: %v", payload.PostID, err)
			return nil
		}
		return err
	}

	return nil
}
