// Package app wires the scoresws daemon together: config, history with
// its snapshot, the API fetcher, the websocket hub and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/osukit/scoresws/config"
	"github.com/osukit/scoresws/fetch"
	"github.com/osukit/scoresws/history"
	"github.com/osukit/scoresws/score"
	"github.com/osukit/scoresws/ws"
)

const (
	fetchQueueSize  = 256
	trimInterval    = time.Minute
	shutdownTimeout = 10 * time.Second
)

// Run starts the daemon from the config at cfgPath and blocks until
// SIGINT/SIGTERM or a fatal server error. A final snapshot is written on
// the way out.
func Run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %q: %w", cfgPath, err)
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Logging.Level))
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	hist := history.New()
	snapPath := cfg.History.Snapshot.Path
	if n, err := hist.LoadSnapshot(snapPath); err != nil {
		log.Warn("snapshot restore failed, starting empty", "path", snapPath, "error", err)
	} else if n > 0 {
		log.Info("snapshot restored", "path", snapPath, "scores", n)
	}

	out := make(chan score.Score, fetchQueueSize)
	fetcher := fetch.New(&http.Client{Timeout: 15 * time.Second}, fetch.Config{
		ScoresURL:    cfg.API.ScoresURL,
		TokenURL:     cfg.API.TokenURL,
		ClientID:     cfg.API.ClientID,
		ClientSecret: cfg.API.ClientSecret,
		Interval:     cfg.Interval(),
	}, hist, out, log)

	// Resume paging from the newest retained score instead of refetching
	// everything the snapshot already holds.
	if id, ok := hist.Newest(); ok {
		fetcher.SetCursor(id)
	}

	hub := ws.NewHub(hist, log)

	var retentionNs atomic.Int64
	retentionNs.Store(int64(cfg.Retention()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := fetcher.Run(ctx); err != nil {
			log.Error("fetcher stopped", "error", err)
		}
	}()
	go hub.Run(ctx, out)
	go trimLoop(ctx, hist, &retentionNs, log)

	if cfg.Reload.Enabled {
		debounce := time.Duration(cfg.Reload.DebounceMs) * time.Millisecond
		closer, err := config.Watch(cfgPath, debounce, log, func(next *config.Config) {
			level.Set(parseLevel(next.Logging.Level))
			fetcher.SetInterval(next.Interval())
			retentionNs.Store(int64(next.Retention()))
		})
		if err != nil {
			return fmt.Errorf("watch config %q: %w", cfgPath, err)
		}
		defer func() { _ = closer.Close() }()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      ws.NewRouter(hub, hist),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutMs) * time.Millisecond,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve %q: %w", cfg.Server.Listen, err)
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}

	if err := hist.SaveSnapshot(snapPath, cfg.SnapshotCodec()); err != nil {
		return fmt.Errorf("save snapshot %q: %w", snapPath, err)
	}
	log.Info("snapshot saved", "path", snapPath, "scores", hist.Len())

	return nil
}

func trimLoop(ctx context.Context, hist *history.History, retentionNs *atomic.Int64, log *slog.Logger) {
	ticker := time.NewTicker(trimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := hist.Trim(time.Duration(retentionNs.Load())); n > 0 {
				log.Debug("trimmed expired scores", "count", n, "retained", hist.Len())
			}
		}
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
