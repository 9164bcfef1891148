package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/itstheanurag/judgexec/internal/metrics"
	"github.com/itstheanurag/judgexec/internal/queue"
	"github.com/itstheanurag/judgexec/internal/records"
)

const (
	saveTimeout  = 5 * time.Second
	drainTimeout = 10 * time.Second
)

// Worker delivers queued run records to every sink. A failing sink is logged
// and counted; it never blocks delivery to the others.
type Worker struct {
	id      int
	manager *queue.Manager
	sinks   []records.Sink
	logger  *zerolog.Logger
}

func NewWorker(id int, manager *queue.Manager, sinks []records.Sink, logger *zerolog.Logger) *Worker {
	return &Worker{
		id:      id,
		manager: manager,
		sinks:   sinks,
		logger:  logger,
	}
}

// Start blocks until ctx is done, then delivers what is still buffered.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().Int("worker_id", w.id).Int("sinks", len(w.sinks)).Msg("worker started")
	for {
		select {
		case rec := <-w.manager.Next():
			w.manager.UpdateQueueMetric()
			w.deliver(ctx, rec)
		case <-ctx.Done():
			w.drain(context.WithoutCancel(ctx))
			w.logger.Info().Int("worker_id", w.id).Msg("worker stopping")
			return
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	for {
		select {
		case rec := <-w.manager.Next():
			w.manager.UpdateQueueMetric()
			w.deliver(ctx, rec)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, rec *records.Record) {
	for _, sink := range w.sinks {
		saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
		err := sink.Save(saveCtx, rec)
		cancel()
		if err != nil {
			metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
			w.logger.Error().
				Err(err).
				Int("worker_id", w.id).
				Str("sink", sink.Name()).
				Str("request_id", rec.ID).
				Msg("failed to deliver run record")
		}
	}
}
