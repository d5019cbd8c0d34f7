package risk

import (
	"context"

	"motorisk/internal/feature"
	"motorisk/internal/metadata"
	"motorisk/internal/model"

	"golang.org/x/sync/errgroup"
)

// Item is one listing of a batch.
type Item struct {
	Row          feature.Row
	ClaimedPrice float64
}

// Outcome is the result for one Item: either a Report or the error that prevented it.
type Outcome struct {
	Report Report
	Err    error
}

// ScoreBatch evaluates every item independently with at most workers concurrent
// predictions. Outcomes are returned in item order. A failing item does not stop
// the others; only ctx cancellation does, through the predictor.
func (s *Scorer) ScoreBatch(ctx context.Context, predictor model.Predictor, meta *metadata.Metadata, items []Item, workers int) []Outcome {
	outcomes := make([]Outcome, len(items))
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range items {
		g.Go(func() error {
			report, err := s.Evaluate(ctx, predictor, meta, items[i].Row, items[i].ClaimedPrice)
			outcomes[i] = Outcome{Report: report, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
