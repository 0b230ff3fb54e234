package engine

import (
	"context"

	"github.com/weft-io/weft/internal/state"
)

// Refresh reconciles the tracked state against the live platform and
// returns the result. When anything changed the serial is bumped once
// and the state persisted; an unchanged pass leaves the file untouched.
func (e *Engine) Refresh(ctx context.Context) (st *state.State, err error) {
	lock := state.NewLock(e.statePath)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil && err == nil {
			st, err = nil, rerr
		}
	}()

	st, err = e.loadState()
	if err != nil {
		return nil, err
	}
	changed, err := e.refreshInPlace(ctx, st)
	if err != nil {
		return nil, err
	}
	if changed {
		st.Serial++
		if err := st.Save(e.statePath); err != nil {
			return nil, err
		}
	}
	return st, nil
}
