package scheduler

import "context"

func (s *Scheduler) Fire(ctx context.Context) {
	s.fire(ctx)
}
