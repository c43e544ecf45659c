// Command jaild runs the detention lifecycle server: sentencing, booking,
// jail time, bail, release and parole for detained characters, exposed over
// HTTP and websockets.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SirTidez/Behind-Bars-sub007/internal/engine"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/infra/cache"
	"github.com/SirTidez/Behind-Bars-sub007/internal/infra/storage"
	"github.com/SirTidez/Behind-Bars-sub007/internal/network"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/config"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/metrics"
)

const snapshotInterval = time.Minute

func main() {
	cfg := config.Load()
	log := logger.NewLogger(cfg.Debug)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg, log)
	if err != nil {
		log.Errorf("storage: %v", err)
		os.Exit(1)
	}
	defer repo.Close()

	eventLog := events.NewEventLog(storage.NewEventPersister(repo))
	eng := engine.New(cfg, engine.DefaultLayout(), eventLog, log, m, nil)

	if err := restore(ctx, repo, eng, log); err != nil {
		log.Warnf("partial restore, corrupt records replaced with defaults: %v", err)
	}

	var custody *cache.CustodyCache
	if cfg.RedisURL != "" {
		custody, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			log.Warnf("custody cache disabled: %v", err)
		} else {
			defer custody.Close()
		}
	}

	hub := network.NewHub(eventLog, log, m)
	api := network.NewAPI(eng, custody, hub, log)

	// The engine outlives the signal context: the final persist still needs
	// a running dispatcher after shutdown begins.
	engCtx, engCancel := context.WithCancel(context.Background())
	defer engCancel()
	eng.Start(engCtx)
	go hub.Run(ctx)
	go persistLoop(ctx, repo, eng, log)

	mux := api.Routes()
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		persist(repo, eng, log)
		engCancel()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Infof("jaild listening on :%d", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("server: %v", err)
		os.Exit(1)
	}
}

// openRepository selects Postgres when configured, embedded SQLite otherwise.
func openRepository(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.Repository, error) {
	if cfg.DatabaseURL != "" {
		log.Info("using postgres storage")
		return storage.NewPostgres(ctx, cfg.DatabaseURL)
	}
	log.Infof("using sqlite storage at %s", cfg.SQLitePath)
	return storage.NewSQLite(cfg.SQLitePath)
}

// restore loads the previous snapshot and criminal histories into the engine.
func restore(ctx context.Context, repo storage.Repository, eng *engine.Engine, log *logger.Logger) error {
	rows, err := repo.LoadHistories(ctx)
	if err != nil {
		return fmt.Errorf("load histories: %w", err)
	}
	for _, row := range rows {
		eng.RestoreRecords(row.SubjectID, row.Entries, row.Violations)
	}

	snap, ok, err := repo.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		log.Info("no snapshot found, starting fresh")
		return nil
	}
	log.Infof("restoring snapshot: minute %.0f, %d jailed, %d on parole",
		snap.GameMinutes, len(snap.JailTime), len(snap.Parole))
	return eng.Restore(snap)
}

// persistLoop writes durable state on an interval until shutdown.
func persistLoop(ctx context.Context, repo storage.Repository, eng *engine.Engine, log *logger.Logger) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			persist(repo, eng, log)
		}
	}
}

func persist(repo storage.Repository, eng *engine.Engine, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repo.SaveSnapshot(ctx, eng.Snapshot()); err != nil {
		log.Errorf("save snapshot: %v", err)
	}
	for _, h := range eng.AllHistories() {
		row := storage.HistoryRow{SubjectID: h.SubjectID, Entries: h.Entries, Violations: h.Violations}
		if err := repo.SaveHistory(ctx, row); err != nil {
			log.Errorf("save history for %s: %v", h.SubjectID, err)
		}
	}
}
