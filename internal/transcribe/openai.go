package transcribe

import (
	"context"
	"fmt"
	"math"

	"github.com/amankumarsingh77/clip-splitter/internal/config"
	"github.com/amankumarsingh77/clip-splitter/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// RawSegment is a segment as returned by the speech-to-text service.
type RawSegment struct {
	ID    int
	Start float64
	End   float64
	Text  string
}

type Client struct {
	api    *openai.Client
	model  string
	prompt string
}

func NewClient(cfg config.OpenAIConfig) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &Client{
		api:    openai.NewClientWithConfig(clientCfg),
		model:  model,
		prompt: cfg.Prompt,
	}
}

// Transcribe returns the segments of audioPath in the order the service
// produced them.
func (c *Client) Transcribe(ctx context.Context, audioPath string) ([]RawSegment, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: audioPath,
		Prompt:   c.prompt,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	segments := make([]RawSegment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, RawSegment{ID: s.ID, Start: s.Start, End: s.End, Text: s.Text})
	}
	return segments, nil
}

// NormalizeSegments rounds timestamps to two decimals and keeps id, text and order.
func NormalizeSegments(raw []RawSegment) []models.TranscriptSegment {
	out := make([]models.TranscriptSegment, 0, len(raw))
	for _, s := range raw {
		out = append(out, models.TranscriptSegment{
			ID:    s.ID,
			Start: round2(s.Start),
			End:   round2(s.End),
			Text:  s.Text,
		})
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
