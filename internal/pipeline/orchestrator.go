package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docmill/docmill/internal/discover"
	"github.com/docmill/docmill/internal/docid"
)

// Orchestrator runs a batch of work items through a bounded pool of
// workers. Discovery completes before dispatch, so the queue is fully
// materialized up front and workers simply drain it.
type Orchestrator struct {
	worker   *Worker
	workers  int
	docIDKey string
	log      *slog.Logger
}

// New wires an orchestrator around a prototype worker. workers bounds
// in-flight documents (and therefore concurrent extractor calls).
func New(worker *Worker, workers int, docIDKey string, log *slog.Logger) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{worker: worker, workers: workers, docIDKey: docIDKey, log: log}
}

// Run processes every discovered item and returns the aggregated
// summary. Per-document failures are recorded, never propagated:
// Run itself only observes cancellation. Cancelling ctx stops new
// items from starting; in-flight items run to completion.
func (o *Orchestrator) Run(ctx context.Context, items []discover.Item) *Summary {
	start := time.Now()

	work := o.buildItems(items)
	queue := make(chan WorkItem, len(work))
	for _, item := range work {
		queue <- item
	}
	close(queue)

	results := make(chan Outcome, len(work))

	// In-flight documents are allowed to finish after cancellation, so
	// stage calls get a context that only carries values.
	itemCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	for range o.workers {
		g.Go(func() error {
			for item := range queue {
				if ctx.Err() != nil {
					return nil
				}
				results <- o.worker.Process(itemCtx, item)
			}
			return nil
		})
	}

	// Single collector owns the summary; workers never touch it.
	summary := &Summary{Failed: []Failure{}, NoEnrichment: []string{}}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for out := range results {
			summary.record(out)
		}
	}()

	g.Wait()
	close(results)
	<-done

	summary.finalize()
	summary.Elapsed = time.Since(start)

	o.log.Info("run complete",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"failed", len(summary.Failed),
		"no_enrichment", len(summary.NoEnrichment),
		"elapsed", summary.Elapsed.Round(time.Millisecond),
	)
	return summary
}

// buildItems assigns document identifiers, disambiguating collisions
// so two sources can never share an output folder.
func (o *Orchestrator) buildItems(items []discover.Item) []WorkItem {
	seen := make(map[string]bool, len(items))
	work := make([]WorkItem, 0, len(items))
	for _, it := range items {
		id := docid.Resolve(it.SourcePath, o.docIDKey)
		if seen[id] {
			h := sha256.Sum256([]byte(it.SourcePath))
			id = fmt.Sprintf("%s-%x", id, h[:4])
		}
		seen[id] = true
		work = append(work, WorkItem{SourcePath: it.SourcePath, DocID: id, Pages: it.Pages})
	}
	return work
}
