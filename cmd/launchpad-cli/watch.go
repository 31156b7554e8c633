package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"launchpad/rpc"
	"launchpad/rpc/client"
)

func newWatchCmd() *cobra.Command {
	var (
		fromHeight uint64
		eventType  string
		limit      int
		interval   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the event journal and print new events as they are recorded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			conn, err := s.client.Dial(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			err = watchEvents(cmd.Context(), conn, rpc.EventQuery{Type: eventType, FromHeight: fromHeight}, interval, limit, func(evt rpc.EventResult) error {
				return s.print(evt)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().Uint64Var(&fromHeight, "from-height", 0, "Start at this ledger height")
	cmd.Flags().StringVar(&eventType, "type", "", "Only show events of this type")
	cmd.Flags().IntVar(&limit, "limit", 0, "Exit after this many events")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")
	return cmd
}

type eventPoller interface {
	Events(ctx context.Context, query rpc.EventQuery) ([]rpc.EventResult, error)
}

var _ eventPoller = (*client.Conn)(nil)

// watchEvents repeatedly queries the journal from the last seen height. Every
// transaction occupies its own height and is journaled atomically, so the
// cursor can advance past the highest height returned.
func watchEvents(ctx context.Context, src eventPoller, query rpc.EventQuery, interval time.Duration, limit int, fn func(rpc.EventResult) error) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seen := 0
	for {
		batch, err := src.Events(ctx, query)
		if err != nil {
			return err
		}
		for _, evt := range batch {
			if err := fn(evt); err != nil {
				return err
			}
			if evt.Height >= query.FromHeight {
				query.FromHeight = evt.Height + 1
			}
			seen++
			if limit > 0 && seen >= limit {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
