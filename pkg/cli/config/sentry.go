package config

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Sentry receives the errors that have no caller to return to, such as
// failures of detached maintenance and scheduled pulses.
type Sentry struct {
	dsn          string `masq:"secret"`
	env          string
	release      string
	flushTimeout time.Duration
}

func (x *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN (reporting is off when unset)",
			Category:    "Sentry",
			Sources:     cli.EnvVars("ECHO_SENTRY_DSN"),
			Destination: &x.dsn,
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			Category:    "Sentry",
			Sources:     cli.EnvVars("ECHO_SENTRY_ENV"),
			Destination: &x.env,
		},
		&cli.StringFlag{
			Name:        "sentry-release",
			Usage:       "Release reported with each event",
			Category:    "Sentry",
			Sources:     cli.EnvVars("ECHO_SENTRY_RELEASE"),
			Destination: &x.release,
		},
		&cli.DurationFlag{
			Name:        "sentry-flush-timeout",
			Usage:       "Wait for buffered events on shutdown",
			Category:    "Sentry",
			Value:       2 * time.Second,
			Sources:     cli.EnvVars("ECHO_SENTRY_FLUSH_TIMEOUT"),
			Destination: &x.flushTimeout,
		},
	}
}

func (x Sentry) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", x.dsn != ""),
		slog.String("env", x.env),
		slog.String("release", x.release),
	)
}

// Configure initializes the Sentry client and returns a function flushing
// buffered events. The flush function is a no-op when Sentry is off.
func (x *Sentry) Configure() (func(), error) {
	if x.dsn == "" {
		logging.Default().Warn("Sentry is not configured")
		return func() {}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         x.dsn,
		Environment: x.env,
		Release:     x.release,
	}); err != nil {
		return func() {}, goerr.Wrap(err, "failed to initialize sentry")
	}

	return func() {
		if !sentry.Flush(x.flushTimeout) {
			logging.Default().Warn("some Sentry events were not sent before shutdown",
				"timeout", x.flushTimeout)
		}
	}, nil
}
