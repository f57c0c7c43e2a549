package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"notelend/services/loans/journal"
)

// runExportJournal copies journaled events into a Parquet file for offline
// analysis. It reads the journal database directly.
func runExportJournal(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export-journal", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var driver, dsn, out string
	var after uint64
	fs.StringVar(&driver, "driver", journal.DriverSQLite, "journal driver (sqlite or postgres)")
	fs.StringVar(&dsn, "dsn", "", "journal data source name")
	fs.StringVar(&out, "out", "", "output parquet file")
	fs.Uint64Var(&after, "after", 0, "export events with a sequence number above this value")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(dsn) == "" || strings.TrimSpace(out) == "" {
		fmt.Fprintln(stderr, "Error: --dsn and --out are required")
		return 1
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	j, err := journal.Open(driver, dsn, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer j.Close()

	rows, last, err := j.ExportParquet(context.Background(), out, after)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "exported %d events to %s (last seq %d)\n", rows, out, last)
	return 0
}
