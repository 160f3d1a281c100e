package config

import (
	"log/slog"

	"github.com/kazanshin/website/pkg/controller/scheduler"
	"github.com/urfave/cli/v3"
)

// Pulse configures the in-process pulse schedule of the serve command.
type Pulse struct {
	schedule string
}

func (x *Pulse) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "pulse-schedule",
			Usage:       "Cron expression firing pulses while serving, e.g. '0 */6 * * *' or '@every 12h' (empty disables)",
			Category:    "Pulse",
			Sources:     cli.EnvVars("ECHO_PULSE_SCHEDULE"),
			Destination: &x.schedule,
		},
	}
}

func (x Pulse) LogValue() slog.Value {
	return slog.GroupValue(slog.String("schedule", x.schedule))
}

// Configure returns the scheduler, or nil when no schedule is set.
func (x *Pulse) Configure(pulser scheduler.Pulser) (*scheduler.Scheduler, error) {
	if x.schedule == "" {
		return nil, nil
	}
	return scheduler.New(x.schedule, pulser)
}
