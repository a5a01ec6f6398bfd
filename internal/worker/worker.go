// Package worker runs background jobs pulled from the Redis queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eblago/backend/pkg/queue"
)

// ImageDeleter removes a stored image by its public URL.
type ImageDeleter interface {
	Delete(ctx context.Context, url string) error
}

// JobSource hands out jobs and takes back the ones that failed.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ImageCleanupProcessor deletes images that were replaced or whose owner row was removed.
type ImageCleanupProcessor struct {
	images  ImageDeleter
	jobs    JobSource
	logger  *zap.Logger
	backoff time.Duration
}

// NewImageCleanupProcessor creates an image cleanup processor.
func NewImageCleanupProcessor(images ImageDeleter, jobs JobSource, logger *zap.Logger) *ImageCleanupProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageCleanupProcessor{images: images, jobs: jobs, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one image delete job.
func (p *ImageCleanupProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeImageDelete {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ImageDeletePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.URL == "" {
		p.logger.Warn("image delete job without url", zap.String("job_id", job.ID))
		return nil
	}
	if err := p.images.Delete(ctx, payload.URL); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	p.logger.Info("image deleted", zap.String("url", payload.URL), zap.String("reason", payload.Reason))
	return nil
}

// sleep waits for d or until ctx is done. It reports whether the wait completed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Run starts the worker loop: dequeue, process, retry on error. It returns when ctx is done.
func (p *ImageCleanupProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("image cleanup worker stopping")
			return
		default:
		}

		job, _, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, p.backoff)
		}
	}
}
