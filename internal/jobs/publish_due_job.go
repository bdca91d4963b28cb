package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calebms/postbridge/internal/repository"
	"github.com/calebms/postbridge/internal/service"
	"github.com/calebms/postbridge/internal/transfer"
)

const (
	defaultLookahead  = 5 * time.Minute
	defaultBatchLimit = 100
	runTimeout        = 10 * time.Minute
)

// PublishDueJob publishes scheduled posts whose time has come. Posts are
// processed one at a time so a remote failure stays isolated to its post.
type PublishDueJob struct {
	p  repository.PostRepository
	ps service.PublishService

	Lookahead  time.Duration
	BatchLimit int

	now func() time.Time
}

func NewPublishDueJob(p repository.PostRepository, ps service.PublishService) *PublishDueJob {
	return &PublishDueJob{
		p:          p,
		ps:         ps,
		Lookahead:  defaultLookahead,
		BatchLimit: defaultBatchLimit,
		now:        time.Now,
	}
}

// Run processes one batch in ascending scheduled-time order and reports the
// outcome. Per-post errors are collected, never aborting the batch.
func (j *PublishDueJob) Run(ctx context.Context) *transfer.RunReport {
	report := &transfer.RunReport{Errors: []string{}}

	due, err := j.p.ListDue(ctx, j.now().Add(j.Lookahead), j.BatchLimit)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("selecting due posts: %v", err))
		return report
	}

	for _, post := range due {
		report.Processed++

		_, err := j.ps.Publish(ctx, 0, post.ID, 0, true)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("post %d: %v", post.ID, err))
			continue
		}
		report.Success++
	}

	return report
}

// RunOnce is the cron entrypoint.
func (j *PublishDueJob) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	report := j.Run(ctx)
	slog.Info(fmt.Sprintf("publish sweep: processed=%d success=%d failed=%d",
		report.Processed, report.Success, report.Failed))
}
