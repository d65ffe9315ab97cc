package application

import (
	"context"

	"github.com/rustaceanrob/coinline/internal/core/domain"
	"github.com/rustaceanrob/coinline/pkg/wallet"
	"golang.org/x/sync/errgroup"
)

// Aggregator scans both chains of the wallet in parallel and merges the
// results.
type Aggregator struct {
	scanner *Scanner
}

// NewAggregator ...
func NewAggregator(scanner *Scanner) *Aggregator {
	return &Aggregator{scanner}
}

// Aggregate runs the external and internal scans concurrently. A failing
// branch does not cancel the other one, the first error is returned once
// both are done.
func (a *Aggregator) Aggregate(ctx context.Context) (*domain.Aggregate, error) {
	var external, internal *domain.ScanResult

	var g errgroup.Group
	g.Go(func() (err error) {
		external, err = a.scanner.Scan(ctx, wallet.External)
		return
	})
	g.Go(func() (err error) {
		internal, err = a.scanner.Scan(ctx, wallet.Internal)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return domain.NewAggregate(external, internal), nil
}
