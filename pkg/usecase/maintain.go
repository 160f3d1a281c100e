package usecase

import (
	"context"
	"log/slog"

	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/service/maintenance"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Maintain runs one maintenance pass inline, bypassing the runner.
func (u *UseCases) Maintain(ctx context.Context) (*maintenance.Report, error) {
	if u.maintainer == nil {
		return nil, goerr.New("maintenance is not configured", goerr.T(errs.TagInternal))
	}

	report, err := u.maintainer.Run(ctx)
	if err != nil {
		return report, goerr.Wrap(err, "maintenance failed")
	}
	logReport(ctx, report)
	return report, nil
}

// Wait blocks until detached maintenance has finished.
func (u *UseCases) Wait() {
	u.runner.Wait()
}

func logReport(ctx context.Context, report *maintenance.Report) {
	logger := logging.From(ctx)
	if report.Skipped {
		logger.Debug("maintenance skipped, lock is held elsewhere")
		return
	}

	attrs := []any{}
	if c := report.Compaction; c != nil {
		attrs = append(attrs, slog.Group("compaction",
			"log_len", c.LogLen,
			"summarised", c.Summarised,
			"trim", c.Trim,
			"removed", c.Removed,
			"reason", c.Reason,
		))
	}
	if c := report.Consolidation; c != nil {
		attrs = append(attrs, slog.Group("consolidation",
			"memories", c.Memories,
			"merged", c.Merged,
			"carried", c.Carried,
			"reason", c.Reason,
		))
	}
	logger.Info("maintenance finished", attrs...)
}
