package application

import (
	"context"
	"log/slog"
	"time"
)

// runRequest represents a manual batch run trigger.
type runRequest struct {
	repos []string
	done  chan runResponse
}

type runResponse struct {
	result *BatchResult
	err    error
}

// Scheduler drives periodic batch alert dispatch across all enabled
// repositories.
type Scheduler struct {
	alerts   *AlertService
	interval time.Duration
	runCh    chan runRequest
}

// NewScheduler creates a Scheduler that dispatches on the given interval.
func NewScheduler(alerts *AlertService, interval time.Duration) *Scheduler {
	return &Scheduler{
		alerts:   alerts,
		interval: interval,
		runCh:    make(chan runRequest),
	}
}

// Start begins the dispatch loop. It runs an immediate batch, then dispatches
// on the configured interval. It also listens for manual run requests. Start
// blocks until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	if _, err := s.alerts.DispatchAll(ctx, nil); err != nil {
		slog.Error("initial alert run failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("alert scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.alerts.DispatchAll(ctx, nil); err != nil {
				slog.Error("scheduled alert run failed", "error", err)
			}
		case req := <-s.runCh:
			result, err := s.alerts.DispatchAll(ctx, req.repos)
			req.done <- runResponse{result: result, err: err}
		}
	}
}

// RunNow triggers a manual batch run for the listed repositories (all enabled
// repositories when empty), bypassing the interval. It blocks until the run
// completes or the context is canceled.
func (s *Scheduler) RunNow(ctx context.Context, repos []string) (*BatchResult, error) {
	done := make(chan runResponse, 1)
	req := runRequest{repos: repos, done: done}

	select {
	case s.runCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-done:
		return resp.result, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
