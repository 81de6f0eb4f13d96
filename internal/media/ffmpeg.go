package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/amankumarsingh77/clip-splitter/internal/config"
)

const stderrTail = 2048

// Codec selects encoders for a cut. Empty fields let ffmpeg pick from the
// output extension.
type Codec struct {
	Video string
	Audio string
}

type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s interrupted: %w", name, ctxErr)
		}
		return fmt.Errorf("%s failed: %v, stderr: %s", name, err, tail(stderr.String()))
	}
	return nil
}

type Engine struct {
	bin    string
	runner commandRunner
	clip   Codec
}

func NewEngine(cfg config.FFmpegConfig) *Engine {
	bin := cfg.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Engine{
		bin:    bin,
		runner: execRunner{},
		clip:   Codec{Video: cfg.VideoCodec, Audio: cfg.AudioCodec},
	}
}

// ClipCodec is the codec pair used for video clips.
func (e *Engine) ClipCodec() Codec {
	return e.clip
}

// ExtractAudio writes the audio track of videoPath to audioPath as mp3.
func (e *Engine) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	if videoPath == "" || audioPath == "" {
		return errors.New("extract audio: input and output paths are required")
	}
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", videoPath,
		"-vn",
		"-c:a", "libmp3lame",
		"-q:a", "2",
		audioPath,
	}
	if err := e.runner.Run(ctx, e.bin, args...); err != nil {
		return fmt.Errorf("extract audio from %s: %w", videoPath, err)
	}
	return nil
}

// CutSegment copies [start, start+duration) of input into output.
func (e *Engine) CutSegment(ctx context.Context, input, output string, start float64, duration int, codec Codec) error {
	if duration < 0 {
		return fmt.Errorf("cut segment: negative duration %d", duration)
	}
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-ss", strconv.FormatFloat(start, 'f', 2, 64),
		"-i", input,
		"-t", strconv.Itoa(duration),
	}
	if codec.Video != "" {
		args = append(args, "-c:v", codec.Video)
	}
	if codec.Audio != "" {
		args = append(args, "-c:a", codec.Audio)
	}
	args = append(args, output)
	if err := e.runner.Run(ctx, e.bin, args...); err != nil {
		return fmt.Errorf("cut segment %s at %.2fs: %w", input, start, err)
	}
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		return s[len(s)-stderrTail:]
	}
	return s
}
