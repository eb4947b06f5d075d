package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"etude/internal/library"
	"etude/internal/logging"
	"etude/internal/server"
	"etude/internal/store"
)

var (
	serveHost string
	servePort int
	noWatch   bool
)

// serveCmd runs the HTTP API server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the practice API server",
	Long: `Serves the song index, raw notation bytes, next-fragment
recommendations and practice recording over HTTP, and keeps the database in
sync with the data directory while running.

The practice interface and the songs/sessions commands talk to this server.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	// Index whatever is on disk before accepting requests.
	n, err := library.Sync(ctx, st, dir)
	if err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}
	logger.Info("Library indexed", zap.Int("songs", n), zap.String("dataDir", dir))

	srv := &http.Server{
		Addr:              cfg.GetServerAddr(),
		Handler:           server.NewRouter(st, dir),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if !noWatch {
		w, err := library.NewWatcher(st, dir)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		w.SetDebounce(cfg.GetWatchDebounce())
		g.Go(func() error {
			if err := w.Start(gctx); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			<-gctx.Done()
			w.Stop()
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Serving practice API", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	fmt.Printf("Practice API listening on http://%s (Ctrl+C to stop)\n", srv.Addr)
	return g.Wait()
}
