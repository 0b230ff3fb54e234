package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/weft-io/weft/internal/logging"
	"github.com/weft-io/weft/internal/resource"
	"github.com/weft-io/weft/internal/state"
)

// Apply executes a plan's changes in their recorded order, persisting
// state after every single change. The plan must still match the live
// state (lineage, serial, digest); any divergence fails with
// StalePlanError before a handler is touched. On a handler failure or
// cancellation the returned error carries the partial ApplyResult:
// everything applied, and durably saved, before the stop.
func (e *Engine) Apply(ctx context.Context, plan *Plan) (result *ApplyResult, err error) {
	lock := state.NewLock(e.statePath)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil && err == nil {
			result, err = nil, rerr
		}
	}()

	st, err := e.loadStateForApply(plan)
	if err != nil {
		return nil, err
	}

	if st.Lineage != plan.Metadata.StateLineage {
		return nil, &StalePlanError{Reason: "state lineage changed, run plan again"}
	}
	if st.Serial != plan.Metadata.StateSerial {
		return nil, &StalePlanError{Reason: "state serial changed, run plan again"}
	}
	if state.Digest(st) != plan.Metadata.StateDigest {
		return nil, &StalePlanError{Reason: "state digest changed, run plan again"}
	}

	scope := e.scope()
	applied := &ApplyResult{Applied: make([]*ResourceChange, 0, len(plan.Changes))}

	for _, change := range plan.Changes {
		if change.Action == ActionNoop {
			continue
		}
		// Cancellation is observed between operations, never mid-call.
		if cerr := ctx.Err(); cerr != nil {
			return nil, &CanceledError{Result: applied, Err: cerr}
		}

		logging.Debug("applying", "address", change.Address, "action", change.Action)
		if aerr := e.applyChange(ctx, scope, st, change); aerr != nil {
			return nil, &ApplyError{Address: change.Address, Result: applied, Err: aerr}
		}

		// Persist after every change so a later failure leaves completed
		// work durably recorded.
		st.Serial++
		if serr := st.Save(e.statePath); serr != nil {
			return nil, &ApplyError{Address: change.Address, Result: applied, Err: serr}
		}
		applied.Applied = append(applied.Applied, change)
	}

	// Outputs persist only once every change has landed.
	outputs := plan.Outputs
	if outputs == nil {
		outputs = make(map[string]any)
	}
	if !attributesEqual(outputs, st.Outputs) {
		st.Outputs = outputs
		st.Serial++
		if serr := st.Save(e.statePath); serr != nil {
			return nil, serr
		}
	}

	logging.Info("apply complete", "project", e.projectKey, "applied", len(applied.Applied))
	return applied, nil
}

// loadStateForApply loads the state, or bootstraps one from the plan's
// recorded lineage/serial when no file exists yet, so a plan built
// elsewhere can be applied in a fresh environment.
func (e *Engine) loadStateForApply(plan *Plan) (*state.State, error) {
	if _, err := os.Stat(e.statePath); os.IsNotExist(err) {
		st := state.New(e.projectKey)
		st.Lineage = plan.Metadata.StateLineage
		st.Serial = plan.Metadata.StateSerial
		return st, nil
	}
	return e.loadState()
}

// applyChange dispatches one change to its handler and mutates the
// in-memory state to match the outcome. The caller owns the serial bump
// and save.
func (e *Engine) applyChange(ctx context.Context, scope Scope, st *state.State, change *ResourceChange) error {
	reg, err := e.registry.Get(change.ResourceType)
	if err != nil {
		return err
	}

	switch change.Action {
	case ActionCreate:
		desired, err := desiredResource(reg, change)
		if err != nil {
			return err
		}
		attrs, err := reg.Handler.Create(ctx, scope, desired)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		st.Resources[change.Address] = &resource.Instance{
			Address:        change.Address,
			ResourceType:   change.ResourceType,
			Name:           desired.ResourceName(),
			Attributes:     attrs,
			AttributesHash: state.HashAttributes(attrs),
			Dependencies:   append([]string(nil), desired.Dependencies()...),
			CreatedAt:      now,
			UpdatedAt:      now,
		}

	case ActionUpdate:
		desired, err := desiredResource(reg, change)
		if err != nil {
			return err
		}
		prior, ok := st.Resources[change.Address]
		if !ok {
			return fmt.Errorf("no tracked instance for %s", change.Address)
		}
		attrs, err := reg.Handler.Update(ctx, scope, desired, prior)
		if err != nil {
			return err
		}
		prior.Attributes = attrs
		prior.AttributesHash = state.HashAttributes(attrs)
		prior.Dependencies = append([]string(nil), desired.Dependencies()...)
		prior.UpdatedAt = time.Now().UTC()

	case ActionDelete:
		prior, ok := st.Resources[change.Address]
		if !ok {
			return fmt.Errorf("no tracked instance for %s", change.Address)
		}
		if err := reg.Handler.Delete(ctx, scope, prior); err != nil {
			return err
		}
		delete(st.Resources, change.Address)

	default:
		return fmt.Errorf("unknown action %q", change.Action)
	}
	return nil
}

// desiredResource reconstructs the typed resource a change was planned
// from. The stored snapshot is authoritative; a missing snapshot or an
// address that reconstructs differently is a corrupted plan.
func desiredResource(reg Registration, change *ResourceChange) (resource.Resource, error) {
	if change.Desired == nil {
		return nil, fmt.Errorf("missing desired snapshot for %s", change.Address)
	}
	raw, err := json.Marshal(change.Desired)
	if err != nil {
		return nil, fmt.Errorf("invalid desired snapshot for %s: %w", change.Address, err)
	}
	r := reg.New()
	if err := json.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("invalid desired snapshot for %s: %w", change.Address, err)
	}
	if got := resource.Address(r); got != change.Address {
		return nil, fmt.Errorf("desired snapshot for %s reconstructs to %s", change.Address, got)
	}
	return r, nil
}
