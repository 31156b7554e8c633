package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"launchpad/config"
	"launchpad/storage/journal"
)

// exportEvents dumps the receipt journal to a Parquet file for offline audit.
func exportEvents(configFile, path string, filter journal.EventFilter) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dsn, err := cfg.JournalSource()
	if err != nil {
		return err
	}
	receipts, err := journal.Open(dsn)
	if err != nil {
		return fmt.Errorf("open receipt journal: %w", err)
	}
	defer receipts.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".events-*.parquet")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	rows, err := receipts.ExportEvents(context.Background(), tmp, filter)
	if err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "exported %d events to %s\n", rows, path)
	return nil
}
