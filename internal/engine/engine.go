// Package engine computes and executes plans: it diffs desired resources
// against tracked state in dependency order, and applies the resulting
// changes through per-type handlers while keeping the state file durable
// and staleness-checked.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/weft-io/weft/internal/logging"
	"github.com/weft-io/weft/internal/resource"
	"github.com/weft-io/weft/internal/state"
	"github.com/weft-io/weft/internal/version"
)

// Engine orchestrates plan, apply and refresh for one project scope and
// one state file. Execution is single-threaded: handler calls and state
// writes are never parallelized, so the only coordination needed is the
// cross-process state lock.
type Engine struct {
	registry   *Registry
	projectKey string
	statePath  string
}

// New constructs an engine scoped to projectKey, persisting state at
// statePath.
func New(registry *Registry, projectKey, statePath string) *Engine {
	return &Engine{
		registry:   registry,
		projectKey: projectKey,
		statePath:  statePath,
	}
}

// ProjectKey returns the scope this engine operates in.
func (e *Engine) ProjectKey() string { return e.projectKey }

// StatePath returns the state file location.
func (e *Engine) StatePath() string { return e.statePath }

// PlanOptions controls plan computation. The zero value plans a normal
// converge without refreshing tracked state first.
type PlanOptions struct {
	// Destroy plans the deletion of every tracked resource.
	Destroy bool
	// Refresh reconciles tracked state against the live platform before
	// diffing. Requires the state lock since drift is persisted.
	Refresh bool
	// Outputs are the configuration's static outputs, recorded on the
	// plan so apply persists them. Ignored on destroy plans.
	Outputs map[string]any
}

func (e *Engine) scope() Scope {
	return Scope{ProjectKey: e.projectKey}
}

// loadState loads or synthesizes the state and enforces scope.
func (e *Engine) loadState() (*state.State, error) {
	st, err := state.LoadOrCreate(e.statePath, e.projectKey)
	if err != nil {
		return nil, err
	}
	if st.ProjectKey != e.projectKey {
		return nil, &ScopeMismatchError{Expected: e.projectKey, Got: st.ProjectKey}
	}
	return st, nil
}

// Plan computes the ordered set of changes that converges the tracked
// state to desired. Only the refresh pass may write state; a plan
// without refresh runs lock-free since it only reads.
func (e *Engine) Plan(ctx context.Context, desired []resource.Resource, opts PlanOptions) (plan *Plan, err error) {
	if opts.Refresh {
		lock := state.NewLock(e.statePath)
		if err := lock.Acquire(); err != nil {
			return nil, err
		}
		defer func() {
			if rerr := lock.Release(); rerr != nil && err == nil {
				plan, err = nil, rerr
			}
		}()
	}
	return e.plan(ctx, desired, opts)
}

func (e *Engine) plan(ctx context.Context, desired []resource.Resource, opts PlanOptions) (*Plan, error) {
	logging.Debug("planning", "project", e.projectKey, "resources", len(desired),
		"destroy", opts.Destroy, "refresh", opts.Refresh)

	st, err := e.loadState()
	if err != nil {
		return nil, err
	}

	if opts.Refresh {
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
	}

	// Validate the desired set before any further work: unique addresses,
	// every type registered.
	desiredByAddr := make(map[string]resource.Resource, len(desired))
	addrs := make([]string, 0, len(desired))
	for _, r := range desired {
		addr := resource.Address(r)
		if _, dup := desiredByAddr[addr]; dup {
			return nil, &DuplicateAddressError{Address: addr}
		}
		if _, err := e.registry.Get(r.ResourceType()); err != nil {
			return nil, err
		}
		desiredByAddr[addr] = r
		addrs = append(addrs, addr)
	}

	// Dependency edges outside the desired set never block ordering.
	depMap := make(map[string][]string, len(addrs))
	priorities := make(map[string]int, len(addrs))
	for addr, r := range desiredByAddr {
		var deps []string
		for _, d := range r.Dependencies() {
			if _, ok := desiredByAddr[d]; ok {
				deps = append(deps, d)
			}
		}
		depMap[addr] = deps
		priorities[addr] = r.PlanPriority()
	}
	order, err := NewGraph(addrs, depMap, priorities).TopologicalOrder()
	if err != nil {
		return nil, err
	}

	var changes []*ResourceChange
	if opts.Destroy {
		changes, err = e.deleteChanges(st, allAddresses(st))
		if err != nil {
			return nil, err
		}
	} else {
		for _, addr := range order {
			r := desiredByAddr[addr]
			change, err := e.changeFor(addr, r, st)
			if err != nil {
				return nil, err
			}
			changes = append(changes, change)
		}

		// Resources tracked in state but no longer desired get deleted,
		// dependents first.
		abandoned := make(map[string]struct{})
		for addr := range st.Resources {
			if _, ok := desiredByAddr[addr]; !ok {
				abandoned[addr] = struct{}{}
			}
		}
		deletes, err := e.deleteChanges(st, abandoned)
		if err != nil {
			return nil, err
		}
		changes = append(changes, deletes...)
	}

	configResources := desired
	if opts.Destroy {
		configResources = nil
	}
	cfgDigest, err := configDigest(configResources)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Metadata: PlanMetadata{
			ProjectKey:    e.projectKey,
			CreatedAt:     time.Now().UTC(),
			Destroy:       opts.Destroy,
			Refresh:       opts.Refresh,
			StateLineage:  st.Lineage,
			StateSerial:   st.Serial,
			StateDigest:   state.Digest(st),
			ConfigDigest:  cfgDigest,
			EngineVersion: version.Version,
		},
		Changes: changes,
	}
	if !opts.Destroy {
		p.Outputs = opts.Outputs
	}
	summary := p.Summary()
	logging.Debug("plan complete",
		"create", summary[ActionCreate], "update", summary[ActionUpdate],
		"delete", summary[ActionDelete], "noop", summary[ActionNoop])
	return p, nil
}

// changeFor computes the CREATE/UPDATE/NOOP change for one desired
// resource against its tracked instance.
func (e *Engine) changeFor(addr string, r resource.Resource, st *state.State) (*ResourceChange, error) {
	attrs, err := resource.Attributes(r)
	if err != nil {
		return nil, err
	}
	planned := resource.Planned(attrs)

	prior, tracked := st.Resources[addr]
	if !tracked {
		return &ResourceChange{
			Address:      addr,
			ResourceType: r.ResourceType(),
			Action:       ActionCreate,
			Desired:      attrs,
			Planned:      planned,
		}, nil
	}

	diff := diffAttributes(planned, prior.Attributes)
	change := &ResourceChange{
		Address:      addr,
		ResourceType: r.ResourceType(),
		Action:       ActionNoop,
		Desired:      attrs,
		Prior:        maps.Clone(prior.Attributes),
		Planned:      planned,
	}
	if len(diff) > 0 {
		change.Action = ActionUpdate
		change.Diff = diff
	}
	return change, nil
}

// deleteChanges emits DELETE changes for the given tracked addresses,
// ordered by the state's recorded dependencies so a resource is deleted
// only after everything depending on it.
func (e *Engine) deleteChanges(st *state.State, toDelete map[string]struct{}) ([]*ResourceChange, error) {
	if len(toDelete) == 0 {
		return nil, nil
	}
	nodes := make([]string, 0, len(toDelete))
	depMap := make(map[string][]string, len(toDelete))
	for addr := range toDelete {
		inst := st.Resources[addr]
		var deps []string
		for _, d := range inst.Dependencies {
			if _, ok := toDelete[d]; ok {
				deps = append(deps, d)
			}
		}
		nodes = append(nodes, addr)
		depMap[addr] = deps
	}
	order, err := NewGraph(nodes, depMap, nil).ReverseTopologicalOrder()
	if err != nil {
		return nil, err
	}

	changes := make([]*ResourceChange, 0, len(order))
	for _, addr := range order {
		inst := st.Resources[addr]
		// Fail early if the plan would need a handler we don't have.
		if _, err := e.registry.Get(inst.ResourceType); err != nil {
			return nil, err
		}
		changes = append(changes, &ResourceChange{
			Address:      addr,
			ResourceType: inst.ResourceType,
			Action:       ActionDelete,
			Prior:        maps.Clone(inst.Attributes),
		})
	}
	return changes, nil
}

// refreshInPlace reconciles every tracked instance against the live
// platform: vanished resources drop out of state, changed attributes
// rewrite the tracked entry. Reports whether anything changed; the
// caller owns the serial bump and save.
func (e *Engine) refreshInPlace(ctx context.Context, st *state.State) (bool, error) {
	changed := false
	scope := e.scope()

	for _, addr := range allAddressesSorted(st) {
		inst := st.Resources[addr]
		reg, err := e.registry.Get(inst.ResourceType)
		if err != nil {
			return changed, err
		}
		attrs, found, err := reg.Handler.Read(ctx, scope, inst)
		if err != nil {
			return changed, fmt.Errorf("failed to read %s: %w", addr, err)
		}
		if !found {
			logging.Info("resource vanished, dropping from state", "address", addr)
			delete(st.Resources, addr)
			changed = true
			continue
		}

		newHash := state.HashAttributes(attrs)
		if newHash != inst.AttributesHash || !attributesEqual(attrs, inst.Attributes) {
			logging.Debug("drift detected", "address", addr)
			inst.Attributes = attrs
			inst.AttributesHash = newHash
			inst.UpdatedAt = time.Now().UTC()
			changed = true
		}
	}
	return changed, nil
}

func allAddresses(st *state.State) map[string]struct{} {
	set := make(map[string]struct{}, len(st.Resources))
	for addr := range st.Resources {
		set[addr] = struct{}{}
	}
	return set
}

func allAddressesSorted(st *state.State) []string {
	addrs := make([]string, 0, len(st.Resources))
	for addr := range st.Resources {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// configDigest fingerprints the desired configuration: the canonical
// JSON of every resource's address, type and planned snapshot, sorted
// by address.
func configDigest(resources []resource.Resource) (string, error) {
	items := make([]map[string]any, 0, len(resources))
	for _, r := range resources {
		attrs, err := resource.Attributes(r)
		if err != nil {
			return "", err
		}
		items = append(items, map[string]any{
			"address":       resource.Address(r),
			"resource_type": r.ResourceType(),
			"planned":       resource.Planned(attrs),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i]["address"].(string) < items[j]["address"].(string)
	})
	payload, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to serialize config digest input: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
