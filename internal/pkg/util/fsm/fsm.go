package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// WrapEvent adapts a callback that returns an error into a looplab callback.
// A non-nil error cancels the transition when used in a before_ hook.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Cancel(err)
		}
	}
}

// Fire triggers event and treats a transition to the current state as success.
func Fire(ctx context.Context, m *fsm.FSM, event string, args ...any) error {
	err := m.Event(ctx, event, args...)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}

// IsRejected reports whether err means the event is not valid in the
// current state or was cancelled by a callback.
func IsRejected(err error) bool {
	var invalid fsm.InvalidEventError
	var canceled fsm.CanceledError
	return errors.As(err, &invalid) || errors.As(err, &canceled)
}
