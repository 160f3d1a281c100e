package cli

import (
	"context"

	"github.com/kazanshin/website/pkg/cli/config"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func Run(ctx context.Context, args []string) error {
	if err := newApp().Run(ctx, args); err != nil {
		logging.Default().Error("failed to run app", "error", err)
		return err
	}

	return nil
}

func newApp() *cli.Command {
	var loggerCfg config.Logger
	var closer func()
	return &cli.Command{
		Name:  "echo",
		Usage: "Conversation service keeping one long-lived, self-compacting log",
		Flags: loggerCfg.Flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			f, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closer = f

			logging.Default().Debug("base options", "logger", loggerCfg)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if closer != nil {
				closer()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdChat(),
			cmdPulse(),
			cmdMaintain(),
			cmdLog(),
		},
	}
}
