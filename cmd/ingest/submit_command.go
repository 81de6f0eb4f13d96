package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/amankumarsingh77/clip-splitter/internal/bus"
	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks/usecase"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

const pollInterval = 2 * time.Second

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var mimeFlag string
	var watch bool

	cmd := &cobra.Command{
		Use:   "submit <path>",
		Short: "Submit a local video file for splitting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}

			mimeType := mimeFlag
			if mimeType == "" {
				mtype, err := mimetype.DetectFile(absPath)
				if err != nil {
					return fmt.Errorf("detect mime type: %w", err)
				}
				mimeType = mtype.String()
			}

			return ctx.withBackend(func(b *backend) error {
				f, err := os.Open(absPath)
				if err != nil {
					return err
				}
				defer f.Close()

				uc := usecase.NewTaskUseCase(b.cfg, b.store, b.queue, b.logger)
				task, err := uc.Submit(cmd.Context(), &models.SubmitInput{
					Filename: info.Name(),
					MimeType: mimeType,
					Size:     info.Size(),
				}, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as task %s\n", info.Name(), task.ID)
				if !watch {
					return nil
				}
				return watchTask(cmd.Context(), cmd.OutOrStdout(), b, task.ID)
			})
		},
	}
	cmd.Flags().StringVar(&mimeFlag, "mime", "", "MIME type of the file (detected when empty)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Wait until the task finishes")
	return cmd
}

// watchTask follows lifecycle events when NATS is configured and otherwise
// polls the task store. It returns once the task is terminal.
func watchTask(ctx context.Context, out io.Writer, b *backend, taskID string) error {
	if b.cfg.Nats.URL != "" {
		client, err := bus.Connect(b.cfg.Nats.URL)
		if err != nil {
			return err
		}
		defer client.Close()

		done := make(chan struct{})
		sub, err := client.SubscribeJSON(b.cfg.Nats.Subject, func(_ context.Context, data []byte) {
			ev, ok := bus.DecodeEvent(data)
			if !ok || ev.TaskID != taskID {
				return
			}
			fmt.Fprintf(out, "%s %s attempt %d %s\n", ev.At.Format(time.RFC3339), ev.Stage, ev.Attempt, ev.State)
			if ev.Terminal() {
				select {
				case <-done:
				default:
					close(done)
				}
			}
		})
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		return printTask(ctx, out, b, taskID)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		task, err := b.store.GetByID(ctx, taskID)
		if err == nil && task.Status.IsTerminal() {
			return printTask(ctx, out, b, taskID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
