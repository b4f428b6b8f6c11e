package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchStats tallies the outcomes of one ingest pass.
type BatchStats struct {
	Completed int
	Skipped   int
	Paused    int
	Failed    int
}

// Total returns how many records the pass touched.
func (s BatchStats) Total() int {
	return s.Completed + s.Skipped + s.Paused + s.Failed
}

// RunBatch pulls one batch of pending records and processes them across the
// configured worker pool. Record-level failures are tallied, not returned:
// the failed records carry their own error state for the sweep to retry.
func (o *Orchestrator) RunBatch(ctx context.Context) (BatchStats, error) {
	var stats BatchStats

	ids, err := o.records.ListPending(ctx, o.cfg.Ingest.BatchSize)
	if err != nil {
		return stats, eris.Wrap(err, "pipeline: list pending records")
	}
	if len(ids) == 0 {
		zap.L().Info("pipeline: no pending records")
		return stats, nil
	}

	workers := o.cfg.Ingest.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(ids) {
		workers = len(ids)
	}

	zap.L().Info("pipeline: ingest pass starting",
		zap.Int("records", len(ids)),
		zap.Int("workers", workers),
	)

	queue := make(chan string)
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for id := range queue {
				outcome, procErr := o.Process(gCtx, id)
				mu.Lock()
				switch outcome {
				case OutcomeCompleted:
					stats.Completed++
				case OutcomeSkipped:
					stats.Skipped++
				case OutcomePaused:
					stats.Paused++
				default:
					stats.Failed++
				}
				mu.Unlock()
				if procErr != nil {
					zap.L().Warn("pipeline: record failed",
						zap.String("record_id", id),
						zap.Error(procErr),
					)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(queue)
		for _, id := range ids {
			select {
			case queue <- id:
			case <-gCtx.Done():
				return gCtx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return stats, eris.Wrap(err, "pipeline: ingest pass interrupted")
	}

	zap.L().Info("pipeline: ingest pass finished",
		zap.Int("completed", stats.Completed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("paused", stats.Paused),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}
