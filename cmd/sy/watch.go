package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/client"
	"github.com/zulandar/switchyard/internal/models"
)

func newWatchCmd() *cobra.Command {
	var (
		r           remote
		clearScreen bool
	)

	cmd := &cobra.Command{
		Use:   "watch <board-id>",
		Short: "Follow a board in real-time",
		Long:  "Subscribes to a board and re-renders it every time anyone changes it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runWatch(ctx, cmd, &r, args[0], clearScreen)
		},
	}

	r.addFlags(cmd)
	cmd.Flags().BoolVar(&clearScreen, "clear", true, "clear the screen before each render")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, r *remote, boardID string, clearScreen bool) error {
	c, err := r.client(true)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	stream, err := c.Subscribe(ctx, boardID)
	if err != nil {
		return err
	}
	defer stream.Close()

	session := client.NewBoard(c, boardID)
	session.OnChange(func(d *models.BoardDetail) {
		if clearScreen {
			fmt.Fprint(out, "\033[H\033[2J")
		}
		printBoard(out, d)
		fmt.Fprintf(out, "\nWatching %s, updated %s (Ctrl+C to stop)\n", d.Name, time.Now().Format("15:04:05"))
	})
	if err := session.Refresh(ctx); err != nil {
		return err
	}

	err = session.Watch(ctx, stream.C)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := stream.Err(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Server closed the connection.")
	return nil
}
