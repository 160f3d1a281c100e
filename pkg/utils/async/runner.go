package async

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/kazanshin/website/pkg/utils/request_id"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// Mode selects how a Runner executes submitted tasks.
type Mode string

const (
	// ModeSync runs the task inline; Submit returns after it finishes.
	ModeSync Mode = "sync"
	// ModeAsync detaches the task from the caller's lifecycle.
	ModeAsync Mode = "async"
)

func (m Mode) Validate() error {
	switch m {
	case ModeSync, ModeAsync:
		return nil
	default:
		return goerr.New("unknown runner mode", goerr.V("mode", m), goerr.T(errs.TagValidation))
	}
}

// Runner executes background work such as log maintenance. Failures are
// never returned to the submitter: they are logged and reported through
// errs.Handle, which is the error channel of detached work.
type Runner struct {
	mode  Mode
	group errgroup.Group
}

// NewRunner creates a runner. In async mode at most workers tasks run at
// once; extra submissions are dropped.
func NewRunner(mode Mode, workers int) *Runner {
	r := &Runner{mode: mode}
	if workers < 1 {
		workers = 1
	}
	r.group.SetLimit(workers)
	return r
}

func (r *Runner) Mode() Mode {
	return r.mode
}

// Submit runs task according to the runner mode. It returns
// errs.ErrMaintenanceBusy when an async task was dropped because every
// worker slot is in use; task errors are handled internally.
func (r *Runner) Submit(ctx context.Context, name string, task func(ctx context.Context) error) error {
	logger := logging.From(ctx).With(slog.String("task", name))

	if r.mode != ModeAsync {
		_ = run(logging.With(ctx, logger), task)
		return nil
	}

	bgCtx := logging.With(newBackgroundContext(ctx), logger)
	if !r.group.TryGo(func() error {
		_ = run(bgCtx, task)
		return nil
	}) {
		logger.Debug("background task dropped, all workers busy")
		return errs.ErrMaintenanceBusy
	}
	return nil
}

// Wait blocks until every detached task has finished.
func (r *Runner) Wait() {
	_ = r.group.Wait()
}

// run invokes task and reports its failure or panic through errs.Handle.
func run(ctx context.Context, task func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			err = goerr.New("panic in async handler",
				goerr.V("recover", r),
				goerr.V("stack", string(stack)))
			errs.Handle(ctx, err)
		}
	}()

	if err = task(ctx); err != nil {
		errs.Handle(ctx, err)
	}
	return err
}

// newBackgroundContext detaches from the request's cancellation while
// keeping the logger and request ID.
func newBackgroundContext(ctx context.Context) context.Context {
	newCtx := context.Background()
	newCtx = logging.With(newCtx, logging.From(ctx))
	if reqID := request_id.FromContext(ctx); reqID != "" {
		newCtx = request_id.With(newCtx, reqID)
	}
	return newCtx
}
