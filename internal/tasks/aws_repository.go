package tasks

import (
	"context"

	"github.com/amankumarsingh77/clip-splitter/internal/models"
)

// AWSRepository stores finished clips and returns an address clients can fetch.
type AWSRepository interface {
	Upload(ctx context.Context, filePath, folder string) (*models.UploadResult, error)
}
