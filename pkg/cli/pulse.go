package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/kazanshin/website/pkg/utils/request_id"
	"github.com/urfave/cli/v3"
)

func cmdPulse() *cli.Command {
	var turnCfg turnConfig

	return &cli.Command{
		Name:  "pulse",
		Usage: "Record one reflective turn, for use from an external scheduler",
		Flags: turnCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, reqID := request_id.Generate(ctx)
			ctx, logger := logging.WithAttrs(ctx, "request_id", reqID, "trigger", "command")
			logger.Debug("pulse options", "config", turnCfg)

			uc, closer, err := turnCfg.configure(ctx)
			defer closer()
			if err != nil {
				return err
			}

			pulse, err := uc.Pulse(ctx)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(os.Stdout, pulse)
			return nil
		},
	}
}
