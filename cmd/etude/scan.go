package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"etude/internal/library"
	"etude/internal/logging"
	"etude/internal/store"
)

// scanCmd indexes the data directory
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the data directory into the database",
	Long: `Walks the data directory and writes every song folder into the
database: the main document, the single measures and the measure ranges.

The serve command does this on startup and re-scans on changes; scan is for
one-off indexing without a running server.`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}
	if err := logging.Initialize(ws); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseAll()

	dir := resolvePath(ws, cfg.Library.DataDir)
	dbPath := resolvePath(ws, cfg.Server.DatabasePath)

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	logger.Info("Scanning library", zap.String("dataDir", dir))
	n, err := library.Sync(ctx, st, dir)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	songs, err := st.ListSongs()
	if err != nil {
		return fmt.Errorf("failed to list songs: %w", err)
	}
	fmt.Printf("Indexed %d song folder(s) from %s\n", n, dir)
	for _, s := range songs {
		fmt.Printf("  %4d  %-40s %3d measures\n", s.ID, s.Title, s.TotalMeasures)
	}
	return nil
}
