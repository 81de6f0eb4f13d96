package pipeline

import (
	"context"
	"path/filepath"

	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/pkg/utils"
	"github.com/google/uuid"
)

type extractInput struct {
	Filepath string `validate:"required"`
}

// Extract writes the audio track next to the source video under a fresh name.
func (p *Pipeline) Extract(ctx context.Context, job models.Job) (models.Job, error) {
	if err := utils.ValidateStruct(ctx, extractInput{Filepath: job.Filepath}); err != nil {
		return job, validationError(models.StageExtract, "validate input", err)
	}

	audioPath := filepath.Join(filepath.Dir(job.Filepath), uuid.NewString()+".mp3")
	err := withTimeout(ctx, p.opts.FFmpegTimeout, func(ctx context.Context) error {
		return p.engine.ExtractAudio(ctx, job.Filepath, audioPath)
	})
	if err != nil {
		return job, externalError(models.StageExtract, "extract audio", err)
	}
	return job.WithAudio(audioPath), nil
}
