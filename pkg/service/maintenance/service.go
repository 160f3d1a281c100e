package maintenance

import (
	"context"

	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

// Report is the outcome of one maintenance pass.
type Report struct {
	// Skipped is true when another pass held the lock.
	Skipped       bool
	Compaction    *CompactionResult
	Consolidation *ConsolidationResult
}

// Service runs compaction then consolidation under the maintenance lock.
type Service struct {
	locker       interfaces.Locker
	cfg          Config
	compactor    *Compactor
	consolidator *Consolidator
}

func New(store interfaces.Store, gen interfaces.Generator, cfg Config, opts ...CompactorOption) *Service {
	return &Service{
		locker:       store,
		cfg:          cfg,
		compactor:    NewCompactor(store, gen, cfg, opts...),
		consolidator: NewConsolidator(store, gen, cfg),
	}
}

func (s *Service) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	acquired, err := WithLock(ctx, s.locker, s.cfg.LockKey, s.cfg.LockTTL, func(ctx context.Context) error {
		compaction, err := s.compactor.Run(ctx)
		if err != nil {
			return goerr.Wrap(err, "compaction failed")
		}
		report.Compaction = compaction

		consolidation, err := s.consolidator.Run(ctx)
		if err != nil {
			return goerr.Wrap(err, "consolidation failed")
		}
		report.Consolidation = consolidation
		return nil
	})
	if err != nil {
		return report, err
	}

	report.Skipped = !acquired
	return report, nil
}
