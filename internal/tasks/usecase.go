package tasks

import (
	"context"
	"io"

	"github.com/amankumarsingh77/clip-splitter/internal/models"
)

type UseCase interface {
	Submit(ctx context.Context, input *models.SubmitInput, file io.Reader) (*models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
}
