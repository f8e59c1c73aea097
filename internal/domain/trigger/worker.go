package trigger

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// sweepTimeout bounds one full worker pass.
const sweepTimeout = 5 * time.Minute

// Worker runs the trigger processor on a fixed interval.
type Worker struct {
	service  *Service
	interval time.Duration
	stopCh   chan struct{}
}

// NewWorker creates a trigger worker
func NewWorker(service *Service, interval time.Duration) *Worker {
	if interval == 0 {
		interval = 24 * time.Hour
	}
	return &Worker{
		service:  service,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background worker
func (w *Worker) Start() {
	log.Info().Dur("interval", w.interval).Msg("Starting trigger worker...")
	go w.loop()
}

// Stop gracefully stops the background worker
func (w *Worker) Stop() {
	log.Info().Msg("Stopping trigger worker...")
	close(w.stopCh)
}

func (w *Worker) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	w.sweep()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	now := time.Now()

	if _, err := w.service.ProcessDueTriggers(ctx, now); err != nil {
		log.Error().Err(err).Msg("Failed to process due triggers")
	}

	if _, err := w.service.SweepStaleGroups(ctx, now); err != nil {
		log.Error().Err(err).Msg("Failed to sweep stale groups")
	}
}
