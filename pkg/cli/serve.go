package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/kazanshin/website/pkg/cli/config"
	server "github.com/kazanshin/website/pkg/controller/http"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func cmdServe() *cli.Command {
	var (
		addr            string
		bodyLimit       int64
		shutdownTimeout time.Duration
		turnCfg         turnConfig
		authCfg         config.Auth
		pulseCfg        config.Pulse
		sentryCfg       config.Sentry
	)

	flags := joinFlags(
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Aliases:     []string{"a"},
				Sources:     cli.EnvVars("ECHO_ADDR"),
				Usage:       "Listen address (default: 127.0.0.1:8080)",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.Int64Flag{
				Name:        "body-limit",
				Sources:     cli.EnvVars("ECHO_BODY_LIMIT"),
				Usage:       "Maximum request body size in bytes",
				Value:       server.DefaultBodyLimit,
				Destination: &bodyLimit,
			},
			&cli.DurationFlag{
				Name:        "shutdown-timeout",
				Sources:     cli.EnvVars("ECHO_SHUTDOWN_TIMEOUT"),
				Usage:       "Grace period for in-flight requests on shutdown",
				Value:       10 * time.Second,
				Destination: &shutdownTimeout,
			},
		},
		turnCfg.Flags(),
		authCfg.Flags(),
		pulseCfg.Flags(),
		sentryCfg.Flags(),
	)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logging.Default().Info("starting server",
				"addr", addr,
				"body_limit", bodyLimit,
				"config", turnCfg,
				"auth", authCfg,
				"pulse", pulseCfg,
				"sentry", sentryCfg,
			)

			if authCfg.Secret() == "" || authCfg.CronSecret() == "" {
				logging.Default().Warn("secret is not set, the corresponding endpoints reject every request",
					"auth", authCfg)
			}

			flush, err := sentryCfg.Configure()
			if err != nil {
				return err
			}
			defer flush()

			uc, closer, err := turnCfg.configure(ctx)
			defer closer()
			if err != nil {
				return err
			}

			sched, err := pulseCfg.Configure(uc)
			if err != nil {
				return err
			}

			baseCtx := ctx
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			httpServer := http.Server{
				Addr: addr,
				Handler: server.New(uc,
					server.WithSecret(authCfg.Secret()),
					server.WithCronSecret(authCfg.CronSecret()),
					server.WithBodyLimit(bodyLimit),
				),
				ReadTimeout:       30 * time.Second,
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext: func(l net.Listener) context.Context {
					return baseCtx
				},
			}

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "failed to serve", goerr.V("addr", addr))
				}
				return nil
			})
			eg.Go(func() error {
				<-ctx.Done()
				logging.Default().Info("shutting down server")

				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server")
				}
				return nil
			})
			if sched != nil {
				eg.Go(func() error {
					return sched.Run(ctx)
				})
			}

			return eg.Wait()
		},
	}
}
