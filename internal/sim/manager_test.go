package sim

import (
	"fmt"
	"testing"

	"simulearn/internal/tester"
)

func newTestManager(t *testing.T, maxRuns int) *Manager {
	t.Helper()
	m, err := NewManager(ManagerOptions{
		Turns:   &scriptedTurns{},
		Visuals: &scriptedVisuals{},
		MaxRuns: maxRuns,
	})
	tester.NoErr(t, err)
	return m
}

func TestManagerStartAndGet(t *testing.T) {
	m := newTestManager(t, 0)

	run := m.Start(ScenarioPhysics, "orbits", "")
	tester.True(t, run.RunID() != "")

	got, ok := m.Get(run.RunID())
	tester.True(t, ok)
	tester.True(t, got == run)

	_, ok = m.Get("no-such-run")
	tester.False(t, ok)

	m.Remove(run.RunID())
	_, ok = m.Get(run.RunID())
	tester.False(t, ok)
}

func TestManagerEvictsOldestRun(t *testing.T) {
	m := newTestManager(t, 2)

	first := m.Start(ScenarioCustom, "one", "")
	m.Start(ScenarioCustom, "two", "")
	m.Start(ScenarioCustom, "three", "")

	tester.Eq(t, m.Len(), 2)
	_, ok := m.Get(first.RunID())
	tester.False(t, ok, "oldest run aged out")
}

func TestManagerRunIDsAreUnique(t *testing.T) {
	m := newTestManager(t, 16)
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		run := m.Start(ScenarioCustom, fmt.Sprintf("topic %d", i), "")
		tester.False(t, seen[run.RunID()])
		seen[run.RunID()] = true
	}
}
