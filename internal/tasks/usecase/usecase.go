package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/amankumarsingh77/clip-splitter/internal/config"
	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/internal/queue"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	"github.com/amankumarsingh77/clip-splitter/pkg/logger"
	"github.com/amankumarsingh77/clip-splitter/pkg/utils"
	"github.com/google/uuid"
)

type taskUC struct {
	cfg      *config.Config
	taskRepo tasks.Repository
	queue    queue.Enqueuer
	logger   logger.Logger
}

func NewTaskUseCase(cfg *config.Config, taskRepo tasks.Repository, q queue.Enqueuer, log logger.Logger) tasks.UseCase {
	return &taskUC{
		cfg:      cfg,
		taskRepo: taskRepo,
		queue:    q,
		logger:   log,
	}
}

// Submit stores the upload under <uploadDir>/<taskId>/, records the task and
// queues audio extraction.
func (u *taskUC) Submit(ctx context.Context, input *models.SubmitInput, file io.Reader) (*models.Task, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: input is nil", tasks.ErrInvalidInput)
	}
	if err := utils.ValidateStruct(ctx, input); err != nil {
		u.logger.Errorf("Submit - ValidateStruct error: %v", err)
		return nil, fmt.Errorf("%w: %v", tasks.ErrInvalidInput, err)
	}
	filename := filepath.Base(input.Filename)
	if filename == "." || filename == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: bad filename %q", tasks.ErrInvalidInput, input.Filename)
	}

	taskID := uuid.NewString()
	dir := filepath.Join(u.cfg.Server.UploadDir, taskID)
	path, err := saveUpload(dir, filename, file)
	if err != nil {
		u.logger.Errorf("Submit - saveUpload error: %v", err)
		_ = os.RemoveAll(dir)
		return nil, err
	}

	task := &models.Task{
		ID:           taskID,
		Status:       models.TaskStatusInProgress,
		OriginalFile: path,
		CreatedAt:    time.Now(),
	}
	if created, err := u.taskRepo.Create(ctx, task); err != nil {
		// processing continues without a stored record
		u.logger.Errorf("Submit - Create task %s error: %v", taskID, err)
	} else {
		task = created
	}

	job := models.Job{
		ID:       taskID,
		Filename: filename,
		Filepath: path,
		MimeType: input.MimeType,
		Encoding: input.Encoding,
	}
	if _, err := u.queue.Enqueue(ctx, queue.Extract, models.StageExtract.JobName(filename), job); err != nil {
		u.logger.Errorf("Submit - Enqueue error: %v", err)
		if _, uerr := u.taskRepo.Update(ctx, taskID, models.OnStageFailed(models.StageExtract)); uerr != nil {
			u.logger.Warnf("Submit - Update task %s error: %v", taskID, uerr)
		}
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to queue task: %w", err)
	}

	u.logger.Infof("task %s created for %s", taskID, filename)
	return task, nil
}

func (u *taskUC) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := u.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func saveUpload(dir, filename string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	path := filepath.Join(dir, filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to close upload: %w", err)
	}
	return path, nil
}
