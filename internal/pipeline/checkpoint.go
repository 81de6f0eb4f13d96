package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	"github.com/amankumarsingh77/clip-splitter/pkg/logger"
	"github.com/amankumarsingh77/clip-splitter/pkg/utils"
)

// Checkpointer is the only writer of task progress during processing.
// Store failures are retried, logged and then dropped.
type Checkpointer struct {
	store   tasks.Repository
	retry   utils.RetryOptions
	timeout time.Duration
	logger  logger.Logger
}

func NewCheckpointer(store tasks.Repository, retry utils.RetryOptions, timeout time.Duration, log logger.Logger) *Checkpointer {
	retry.ShouldRetry = func(err error) bool {
		return !errors.Is(err, tasks.ErrNotFound)
	}
	return &Checkpointer{store: store, retry: retry, timeout: timeout, logger: log}
}

func (c *Checkpointer) Checkpoint(ctx context.Context, taskID string, update *models.TaskUpdate) {
	if taskID == "" || update.Empty() {
		return
	}
	_, err := utils.Retry(ctx, c.retry, func(ctx context.Context) (*models.Task, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		return c.store.Update(ctx, taskID, update)
	})
	if err != nil {
		c.logger.Warnf("Checkpoint - %s error on task %s: %v", KindPersistence, taskID, err)
	}
}
