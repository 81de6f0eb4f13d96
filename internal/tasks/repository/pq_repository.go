package repository

import (
	"context"
	"database/sql"

	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type taskRepo struct {
	db *sqlx.DB
}

func NewTaskRepo(db *sqlx.DB) tasks.Repository {
	return &taskRepo{db: db}
}

func (r *taskRepo) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	created := &models.Task{}
	if err := r.db.QueryRowxContext(
		ctx,
		createTaskQuery,
		task.ID,
		task.Status,
		task.UploadStatus,
		task.OriginalFile,
		task.Outputs,
	).StructScan(created); err != nil {
		return nil, errors.Wrap(err, "taskRepo.Create.StructScan")
	}
	return created, nil
}

func (r *taskRepo) GetByID(ctx context.Context, id string) (*models.Task, error) {
	task := &models.Task{}
	if err := r.db.GetContext(ctx, task, getTaskByIDQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tasks.ErrNotFound
		}
		return nil, errors.Wrap(err, "taskRepo.GetByID.GetContext")
	}
	return task, nil
}

func (r *taskRepo) Update(ctx context.Context, id string, update *models.TaskUpdate) (*models.Task, error) {
	var status, uploadStatus string
	if update.Status != nil {
		status = string(*update.Status)
	}
	if update.UploadStatus != nil {
		uploadStatus = string(*update.UploadStatus)
	}
	task := &models.Task{}
	if err := r.db.GetContext(ctx, task, updateTaskQuery, id, status, uploadStatus, update.Outputs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tasks.ErrNotFound
		}
		return nil, errors.Wrapf(err, "taskRepo.Update.GetContext(%s)", id)
	}
	return task, nil
}
