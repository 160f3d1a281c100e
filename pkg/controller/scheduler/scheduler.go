package scheduler

import (
	"context"

	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/kazanshin/website/pkg/utils/request_id"
	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
)

// Pulser produces one reflective turn.
type Pulser interface {
	Pulse(ctx context.Context) (string, error)
}

// Scheduler fires pulses on a cron schedule inside the serving process.
// A pulse that is still running when the next one is due is skipped.
type Scheduler struct {
	spec   string
	pulser Pulser
	cron   *cron.Cron
}

// New validates spec, a standard five-field expression or a descriptor
// such as @every 12h.
func New(spec string, pulser Pulser) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, goerr.Wrap(err, "invalid pulse schedule",
			goerr.V("schedule", spec), goerr.T(errs.TagValidation))
	}

	return &Scheduler{
		spec:   spec,
		pulser: pulser,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}, nil
}

// Run starts the schedule and blocks until ctx is cancelled. A pulse in
// flight is allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.fire(ctx) }); err != nil {
		return goerr.Wrap(err, "failed to register pulse", goerr.V("schedule", s.spec))
	}

	s.cron.Start()
	logging.From(ctx).Info("pulse scheduler started", "schedule", s.spec)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	logging.From(ctx).Info("pulse scheduler stopped")
	return nil
}

func (s *Scheduler) fire(ctx context.Context) {
	ctx, reqID := request_id.Generate(context.WithoutCancel(ctx))
	ctx, logger := logging.WithAttrs(ctx, "request_id", reqID, "trigger", "schedule")

	pulse, err := s.pulser.Pulse(ctx)
	if err != nil {
		errs.Handle(ctx, goerr.Wrap(err, "scheduled pulse failed"))
		return
	}
	logger.Info("scheduled pulse recorded", "chars", len(pulse))
}
