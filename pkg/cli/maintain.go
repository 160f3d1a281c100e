package cli

import (
	"context"

	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMaintain() *cli.Command {
	var turnCfg turnConfig

	return &cli.Command{
		Name:  "maintain",
		Usage: "Run one compaction and consolidation pass over the log",
		Flags: turnCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			logging.From(ctx).Debug("maintain options", "config", turnCfg)

			uc, closer, err := turnCfg.configure(ctx)
			defer closer()
			if err != nil {
				return err
			}

			report, err := uc.Maintain(ctx)
			if err != nil {
				return err
			}
			if report.Skipped {
				logging.From(ctx).Warn("maintenance is already running elsewhere, nothing done")
			}
			return nil
		},
	}
}
