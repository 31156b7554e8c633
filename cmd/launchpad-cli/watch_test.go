package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"launchpad/rpc"
)

type scriptedPoller struct {
	queries []rpc.EventQuery
	batches [][]rpc.EventResult
}

func (p *scriptedPoller) Events(_ context.Context, query rpc.EventQuery) ([]rpc.EventResult, error) {
	p.queries = append(p.queries, query)
	if len(p.batches) == 0 {
		return nil, nil
	}
	next := p.batches[0]
	p.batches = p.batches[1:]
	return next, nil
}

func TestWatchEventsAdvancesCursor(t *testing.T) {
	poller := &scriptedPoller{batches: [][]rpc.EventResult{
		{{Type: "token.approved", Height: 2}, {Type: "token.approved", Height: 3}},
		nil,
		{{Type: "presale.purchased", Height: 7}},
	}}
	var got []uint64
	err := watchEvents(context.Background(), poller, rpc.EventQuery{Type: "x", FromHeight: 1}, time.Millisecond, 3, func(evt rpc.EventResult) error {
		got = append(got, evt.Height)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 3, 7}, got)
	require.Len(t, poller.queries, 3)
	require.Equal(t, uint64(1), poller.queries[0].FromHeight)
	require.Equal(t, uint64(4), poller.queries[1].FromHeight)
	require.Equal(t, uint64(4), poller.queries[2].FromHeight)
	require.Equal(t, "x", poller.queries[2].Type)
}

func TestWatchEventsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := watchEvents(ctx, &scriptedPoller{}, rpc.EventQuery{}, time.Hour, 0, func(rpc.EventResult) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
