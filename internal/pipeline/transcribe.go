package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/internal/transcribe"
)

func (p *Pipeline) Transcribe(ctx context.Context, job models.Job) (models.Job, error) {
	if job.AudioPath == "" {
		return job, validationError(models.StageTranscribe, "validate input", fmt.Errorf("audio path is empty"))
	}
	if _, err := os.Stat(job.AudioPath); err != nil {
		return job, validationError(models.StageTranscribe, "validate input", fmt.Errorf("audio file %s: %w", job.AudioPath, err))
	}

	var raw []transcribe.RawSegment
	err := withTimeout(ctx, p.opts.TranscribeTimeout, func(ctx context.Context) error {
		var err error
		raw, err = p.transcriber.Transcribe(ctx, job.AudioPath)
		return err
	})
	if err != nil {
		return job, externalError(models.StageTranscribe, "transcribe", err)
	}
	return job.WithTranscriptions(transcribe.NormalizeSegments(raw)), nil
}
