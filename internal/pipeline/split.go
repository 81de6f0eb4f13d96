package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/amankumarsingh77/clip-splitter/internal/media"
	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/pkg/utils"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type splitInput struct {
	Filepath       string                     `validate:"required_without_all=AudioPath Transcriptions"`
	AudioPath      string
	Transcriptions []models.TranscriptSegment
}

// ClipDuration is the clip length in whole seconds, rounded up so the end
// of the last word is kept.
func ClipDuration(start, end float64) int {
	hundredths := math.Round((end - start) * 100)
	if hundredths <= 0 {
		return 0
	}
	return int(math.Ceil(hundredths / 100))
}

// Split cuts one video and one audio clip per spoken segment, uploads them
// and checkpoints the growing output list after every segment. The task
// upload directory is removed unless the queue will retry this attempt.
func (p *Pipeline) Split(ctx context.Context, job models.Job, willRetry func(error) bool) (out models.Job, err error) {
	in := splitInput{Filepath: job.Filepath, AudioPath: job.AudioPath, Transcriptions: job.Transcriptions}
	if verr := utils.ValidateStruct(ctx, in); verr != nil {
		err = validationError(models.StageSplit, "validate input", verr)
	}
	defer func() {
		if err != nil && willRetry != nil && willRetry(err) {
			return
		}
		p.cleanup(job.ID)
	}()
	if err != nil {
		return job, err
	}

	workDir := filepath.Dir(job.Filepath)
	if job.Filepath == "" {
		workDir = filepath.Dir(job.AudioPath)
	}
	videoDir := filepath.Join(workDir, "video")
	audioDir := filepath.Join(workDir, "audio")
	for _, dir := range []string{videoDir, audioDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return job, infrastructureError(models.StageSplit, "create output dir", err)
		}
	}

	outputs := make([]models.OutputSegment, 0, len(job.Transcriptions))
	for _, seg := range job.Transcriptions {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		output, err := p.splitSegment(ctx, job, seg, videoDir, audioDir)
		if err != nil {
			return job, err
		}
		outputs = append(outputs, output)
		p.checkpoint.Checkpoint(ctx, job.ID, &models.TaskUpdate{
			Outputs:      append(models.OutputSegments(nil), outputs...),
			UploadStatus: models.StatusPtr(models.TaskStatusInProgress),
		})
	}

	p.checkpoint.Checkpoint(ctx, job.ID, &models.TaskUpdate{
		UploadStatus: models.StatusPtr(models.TaskStatusCompleted),
	})
	return job.WithOutputs(outputs), nil
}

func (p *Pipeline) splitSegment(ctx context.Context, job models.Job, seg models.TranscriptSegment, videoDir, audioDir string) (models.OutputSegment, error) {
	if job.Filepath == "" {
		return models.OutputSegment{}, validationError(models.StageSplit, "cut video", errors.New("source video path is empty"))
	}
	audioSource := job.AudioPath
	if audioSource == "" {
		audioSource = job.Filepath
	}

	duration := ClipDuration(seg.Start, seg.End)
	stem := fmt.Sprintf("%d_%s", seg.ID, uuid.NewString())
	videoPath := filepath.Join(videoDir, stem+".mp4")
	audioPath := filepath.Join(audioDir, stem+".mp3")

	err := withTimeout(ctx, p.opts.FFmpegTimeout, func(ctx context.Context) error {
		return p.engine.CutSegment(ctx, job.Filepath, videoPath, seg.Start, duration, p.engine.ClipCodec())
	})
	if err != nil {
		return models.OutputSegment{}, externalError(models.StageSplit, "cut video", err)
	}
	err = withTimeout(ctx, p.opts.FFmpegTimeout, func(ctx context.Context) error {
		return p.engine.CutSegment(ctx, audioSource, audioPath, seg.Start, duration, media.Codec{})
	})
	if err != nil {
		return models.OutputSegment{}, externalError(models.StageSplit, "cut audio", err)
	}

	var videoURL, audioURL string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := p.upload(gctx, videoPath, job.ID)
		if err != nil {
			return err
		}
		videoURL = res.SecureURL
		return nil
	})
	g.Go(func() error {
		res, err := p.upload(gctx, audioPath, job.ID)
		if err != nil {
			return err
		}
		audioURL = res.SecureURL
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.OutputSegment{}, externalError(models.StageSplit, "upload", err)
	}

	return models.OutputSegment{
		ID:    seg.ID,
		Text:  seg.Text,
		Video: models.MediaRef{Path: videoURL, MimeType: models.MimeTypeVideoMP4},
		Audio: models.MediaRef{Path: audioURL, MimeType: models.MimeTypeAudioMP3},
	}, nil
}

func (p *Pipeline) upload(ctx context.Context, path, folder string) (*models.UploadResult, error) {
	return utils.Retry(ctx, p.opts.Retry, func(ctx context.Context) (*models.UploadResult, error) {
		var res *models.UploadResult
		err := withTimeout(ctx, p.opts.UploadTimeout, func(ctx context.Context) error {
			var err error
			res, err = p.uploader.Upload(ctx, path, folder)
			return err
		})
		return res, err
	})
}
