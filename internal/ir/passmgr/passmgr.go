// Package passmgr schedules Pass implementations by declared dependency,
// generalizing the teacher's OptimizationPipeline (kanso/internal/ir/
// optimizations.go: Name()/Description()/Apply(program) in a fixed list) into
// a need()/invalidate()-driven topological order with fixpoint re-run.
package passmgr

import (
	"fmt"

	"kiln/internal/ir/edit"
)

// Pass is the interface every transformation implements. The pass manager
// holds them by name (spec §9's "dynamic dispatch across passes... by name,
// not by type").
type Pass interface {
	// Name identifies the pass for scheduling and diagnostics.
	Name() string
	// Need lists the passes that must have already run, in some order, before
	// this one.
	Need() []string
	// Invalidate lists the passes whose results this pass's edits make stale:
	// whenever this pass reports a change, the listed passes run again in the
	// next sweep, whether they ran before or after it in this one.
	Invalidate() []string
	// Run computes its edit plan in full and submits it to e in one batch, per
	// spec §7: a pass that fails mid-way must leave the function invariant-
	// preserving, achieved here by computing everything before the first
	// Submit.
	Run(e *edit.Editor) (changed bool, err error)
}

// Manager runs a registered set of passes to a schedule fixpoint: the first
// sweep runs every pass in topological order over Need(); each later sweep
// runs only the passes named in the Invalidate() list of a pass that changed
// the function during the previous sweep, until a sweep produces no changes.
type Manager struct {
	passes map[string]Pass
	order  []string
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{passes: make(map[string]Pass)}
}

// Register adds a pass, preserving registration order as the tie-break for
// otherwise-unconstrained scheduling.
func (m *Manager) Register(p Pass) {
	if _, exists := m.passes[p.Name()]; !exists {
		m.order = append(m.order, p.Name())
	}
	m.passes[p.Name()] = p
}

func (m *Manager) schedule() ([]string, error) {
	visited := make(map[string]int) // 0 unvisited, 1 in-progress, 2 done
	var out []string
	var visit func(name string) error
	visit = func(name string) error {
		switch visited[name] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("passmgr: dependency cycle involving %q", name)
		}
		visited[name] = 1
		p, ok := m.passes[name]
		if !ok {
			return fmt.Errorf("passmgr: unknown pass %q in a Need() list", name)
		}
		for _, dep := range p.Need() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visited[name] = 2
		out = append(out, name)
		return nil
	}
	for _, name := range m.order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Run executes every registered pass in dependency order, then re-runs the
// passes invalidated by any pass that changed the function, repeating until a
// sweep makes no changes.
func (m *Manager) Run(e *edit.Editor) error {
	order, err := m.schedule()
	if err != nil {
		return err
	}

	stale := make(map[string]bool, len(order))
	for _, name := range order {
		stale[name] = true
	}

	for {
		anyChanged := false
		invalidated := make(map[string]bool)
		for _, name := range order {
			if !stale[name] {
				continue
			}
			p := m.passes[name]
			changed, err := p.Run(e)
			if err != nil {
				return fmt.Errorf("passmgr: pass %q failed: %w", name, err)
			}
			if changed {
				anyChanged = true
				for _, inv := range p.Invalidate() {
					invalidated[inv] = true
				}
			}
		}
		if !anyChanged {
			return nil
		}
		stale = invalidated
		if len(stale) == 0 {
			return nil
		}
	}
}
