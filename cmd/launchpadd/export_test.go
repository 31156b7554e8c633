package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"launchpad/core/types"
	"launchpad/storage/journal"
)

func TestExportEventsWritesParquet(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "journal.db")
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf("DataDir = %q\nJournalPath = %q\n", dir, journalPath)), 0o600))

	dsn, err := journal.FileDSN(journalPath)
	require.NoError(t, err)
	j, err := journal.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, j.RecordReceipt(context.Background(), &types.Receipt{
		TxHash:  common.HexToHash("0x0a"),
		Type:    "vesting-claim",
		Height:  4,
		Success: true,
		Events:  []types.Event{{Type: "vesting.claimed", Attributes: map[string]string{"amount": "10"}}},
	}))
	require.NoError(t, j.Close())

	out := filepath.Join(dir, "events.parquet")
	require.NoError(t, exportEvents(configPath, out, journal.EventFilter{Type: "vesting.claimed"}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("PAR1")))

	leftovers, err := filepath.Glob(filepath.Join(dir, ".events-*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}
