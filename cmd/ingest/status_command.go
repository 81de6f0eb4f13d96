package main

import (
	"context"
	"fmt"
	"io"

	"github.com/amankumarsingh77/clip-splitter/internal/queue"
	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <taskId>",
		Short: "Show the status and clips of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b *backend) error {
				return printTask(cmd.Context(), cmd.OutOrStdout(), b, args[0])
			})
		},
	}
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show job counts per stage queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b *backend) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-12s %8s %8s %8s %8s\n", "QUEUE", "WAITING", "ACTIVE", "DELAYED", "FAILED")
				for _, name := range []string{queue.Extract, queue.Transcribe, queue.Split} {
					c, err := b.queue.Counts(cmd.Context(), name)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%-12s %8d %8d %8d %8d\n", name, c.Waiting, c.Active, c.Delayed, c.Failed)
				}
				return nil
			})
		},
	}
}

func printTask(ctx context.Context, out io.Writer, b *backend, taskID string) error {
	task, err := b.store.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("task %s: %w", taskID, err)
	}
	fmt.Fprintf(out, "Task %s\n  status: %s\n", task.ID, task.Status)
	if task.UploadStatus != "" {
		fmt.Fprintf(out, "  upload: %s\n", task.UploadStatus)
	}
	for i, seg := range task.Outputs {
		fmt.Fprintf(out, "  clip %d: %s\n", i+1, seg.Text)
		fmt.Fprintf(out, "    video: %s\n    audio: %s\n", seg.Video.Path, seg.Audio.Path)
	}
	return nil
}
