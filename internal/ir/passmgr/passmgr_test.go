package passmgr

import (
	"testing"

	"kiln/internal/ir/edit"
)

type recordingPass struct {
	name       string
	need       []string
	invalidate []string
	runs       *[]string
	fire       int
}

func (p *recordingPass) Name() string       { return p.name }
func (p *recordingPass) Need() []string       { return p.need }
func (p *recordingPass) Invalidate() []string { return p.invalidate }
func (p *recordingPass) Run(e *edit.Editor) (bool, error) {
	*p.runs = append(*p.runs, p.name)
	changed := p.fire > 0
	if p.fire > 0 {
		p.fire--
	}
	return changed, nil
}

func TestManager_RunsInDependencyOrder(t *testing.T) {
	var runs []string
	m := NewManager()
	m.Register(&recordingPass{name: "b", need: []string{"a"}, runs: &runs})
	m.Register(&recordingPass{name: "a", runs: &runs})

	if err := m.Run(edit.NewEditor(nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) < 2 {
		t.Fatalf("expected at least 2 runs, got %v", runs)
	}
	if runs[0] != "a" || runs[1] != "b" {
		t.Fatalf("expected a before b, got %v", runs[:2])
	}
}

func TestManager_ReRunsInvalidatedPass(t *testing.T) {
	var runs []string
	m := NewManager()
	m.Register(&recordingPass{name: "mem2reg", invalidate: []string{"dce"}, runs: &runs, fire: 1})
	m.Register(&recordingPass{name: "dce", need: []string{"mem2reg"}, runs: &runs})

	if err := m.Run(edit.NewEditor(nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count := 0
	for _, r := range runs {
		if r == "dce" {
			count++
		}
	}
	if count < 2 {
		t.Fatalf("expected dce to re-run after mem2reg reported a change, got runs: %v", runs)
	}
}

func TestManager_DetectsCycle(t *testing.T) {
	m := NewManager()
	var runs []string
	m.Register(&recordingPass{name: "x", need: []string{"y"}, runs: &runs})
	m.Register(&recordingPass{name: "y", need: []string{"x"}, runs: &runs})

	if err := m.Run(edit.NewEditor(nil)); err == nil {
		t.Fatalf("expected a dependency-cycle error")
	}
}
