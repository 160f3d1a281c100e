package config

import (
	"log/slog"

	"github.com/urfave/cli/v3"
)

// Auth holds the shared secrets of the HTTP interface. An unset secret
// rejects every request of its route group.
type Auth struct {
	secret     string `masq:"secret"`
	cronSecret string `masq:"secret"`
}

func (x *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "secret",
			Usage:       "Shared secret of the conversation endpoint",
			Category:    "Auth",
			Sources:     cli.EnvVars("ECHO_SECRET"),
			Destination: &x.secret,
		},
		&cli.StringFlag{
			Name:        "cron-secret",
			Usage:       "Shared secret of the operator endpoints",
			Category:    "Auth",
			Sources:     cli.EnvVars("ECHO_CRON_SECRET"),
			Destination: &x.cronSecret,
		},
	}
}

func (x Auth) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("secret_set", x.secret != ""),
		slog.Bool("cron_secret_set", x.cronSecret != ""),
	)
}

func (x *Auth) Secret() string     { return x.secret }
func (x *Auth) CronSecret() string { return x.cronSecret }
