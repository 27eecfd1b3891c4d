package file

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// step is one action of a multi-store mutation together with the action
// that reverses it.
type step struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
	// keepOn skips undo when a later step fails with an error matching it.
	keepOn error
}

// run executes steps in order. When a step fails, the completed steps are
// undone in reverse order and the failing step's error is returned.
func (s *Service) run(ctx context.Context, steps []step) error {
	for i, st := range steps {
		if err := st.do(ctx); err != nil {
			s.log.Warn("step failed, rolling back",
				zap.String("step", st.name),
				zap.Error(err),
			)
			for j := i - 1; j >= 0; j-- {
				if steps[j].keepOn != nil && errors.Is(err, steps[j].keepOn) {
					s.log.Warn("rollback skipped", zap.String("step", steps[j].name), zap.Error(err))
					continue
				}
				s.undo(ctx, steps[j].name, steps[j].undo)
			}
			return err
		}
	}
	return nil
}

// undo runs a compensating action. It ignores cancellation of the request
// so a client disconnect does not leave the stores half-updated.
func (s *Service) undo(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		s.log.Error("rollback failed", zap.String("step", name), zap.Error(err))
	}
}
