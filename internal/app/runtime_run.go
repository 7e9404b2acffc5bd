package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("jira-bridge starting", "addr", r.cfg.HTTPAddr, "environment", r.cfg.Environment)

	cleanup, err := r.startStateCleanup(ctx)
	if err != nil {
		return err
	}
	defer cleanup.Stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := r.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		r.cache.Sweep(groupCtx, time.Duration(r.cfg.CacheSweepSec)*time.Second)
		return nil
	})
	if r.cfg.CardsWatch {
		group.Go(func() error {
			return r.cards.Watch(groupCtx, r.logger.With("component", "cards-watcher"))
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// startStateCleanup schedules the periodic purge of abandoned dialog state.
func (r *Runtime) startStateCleanup(ctx context.Context) (*cron.Cron, error) {
	scheduler := cron.New()
	staleAfter := time.Duration(r.cfg.StateStaleHours) * time.Hour
	logger := r.logger.With("component", "state-cleanup")

	_, err := scheduler.AddFunc(r.cfg.StateCleanupCron, func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		purged, err := r.store.PurgeStaleDialogState(runCtx, time.Now().UTC().Add(-staleAfter))
		if err != nil {
			logger.Error("stale state purge failed", "error", err)
			return
		}
		if purged > 0 {
			logger.Info("purged stale dialog state", "conversations", purged)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule state cleanup %q: %w", r.cfg.StateCleanupCron, err)
	}
	scheduler.Start()
	return scheduler, nil
}
