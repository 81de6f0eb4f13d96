package tasks

import (
	"context"
	"errors"

	"github.com/amankumarsingh77/clip-splitter/internal/models"
)

var (
	ErrNotFound     = errors.New("task not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Repository is the task store. Update merges the non-nil fields of the
// update into the stored task and never moves a status backwards.
type Repository interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	GetByID(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, id string, update *models.TaskUpdate) (*models.Task, error)
}
