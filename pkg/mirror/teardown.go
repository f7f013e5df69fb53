package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odvcencio/respview/pkg/browser"
	"github.com/odvcencio/respview/pkg/observability"
)

type teardownStep struct {
	name string
	run  func(ctx context.Context) error
}

// runTeardown runs every step in order regardless of earlier failures.
// Failures that mean the resource is already gone are logged but not returned.
func runTeardown(ctx context.Context, log *observability.Logger, steps []teardownStep) error {
	var errs []error
	for _, step := range steps {
		err := step.run(ctx)
		log.TeardownStep(step.name, err)
		if err == nil || browser.IsGone(err) {
			continue
		}
		teardownFailures.WithLabelValues(step.name).Inc()
		errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
	}
	return errors.Join(errs...)
}

// stop tears the runtime down once. Later calls return the first result.
func (r *Runtime) stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		started := time.Now()
		r.stopping.Store(true)
		ctx, cancel := context.WithTimeout(ctx, r.opts.TeardownTimeout)
		defer cancel()
		r.stopErr = runTeardown(ctx, r.log, r.teardownSteps())
		r.log.SessionStopped(r.key, time.Since(started), r.stopErr)
	})
	return r.stopErr
}

func (r *Runtime) teardownSteps() []teardownStep {
	steps := []teardownStep{{
		name: "cancel capture",
		run: func(context.Context) error {
			r.cancel()
			r.schedule.Cancel()
			return nil
		},
	}}

	for _, d := range r.order {
		d := d
		steps = append(steps, teardownStep{
			name: "detach " + d.ID,
			run: func(ctx context.Context) error {
				// Waits for any input command still holding the device.
				d.mu.Lock()
				defer d.mu.Unlock()
				if !d.attached || d.client == nil {
					return nil
				}
				return d.client.Conn().Detach(ctx)
			},
		})
	}

	steps = append(steps,
		teardownStep{
			name: "close targets",
			run: func(ctx context.Context) error {
				targets := make([]browser.TargetID, 0, len(r.order))
				for _, d := range r.order {
					targets = append(targets, d.Target)
				}
				if len(targets) == 0 {
					return nil
				}
				return r.host.CloseTargets(ctx, targets)
			},
		},
		teardownStep{
			name: "remove surface",
			run: func(ctx context.Context) error {
				if r.surface == "" {
					return nil
				}
				return r.host.RemoveSurface(ctx, r.surface)
			},
		},
	)
	return steps
}
