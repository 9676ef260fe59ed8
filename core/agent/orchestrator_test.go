package agent

import (
	"sync"
	"testing"

	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/attention"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCycleOrdersByPriorityWithinBatch(t *testing.T) {
	s, b := newStoreAndBank()
	cfg := DefaultOrchestratorConfig()
	cfg.MaxConcurrent = 1 // force strictly sequential batches to make order observable
	orch := NewOrchestrator(cfg, s, b)

	var mu sync.Mutex
	var order []string

	makeAgent := func(name string, priority int) *Agent {
		return New(Config{Name: name, Priority: priority, Enabled: true, Frequency: 1}, func(*atomspace.Store, *attention.Bank) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		})
	}

	orch.Add(makeAgent("low", 1))
	orch.Add(makeAgent("high", 10))
	orch.Add(makeAgent("mid", 5))

	orch.RunCycle()
	require.Len(t, order, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, order)
}

func TestRunCycleSkipsDisabledAndIneligible(t *testing.T) {
	s, b := newStoreAndBank()
	orch := NewOrchestrator(DefaultOrchestratorConfig(), s, b)

	calls := 0
	everyOther := New(Config{Name: "every-other", Frequency: 2, Enabled: true}, func(*atomspace.Store, *attention.Bank) (any, error) {
		calls++
		return nil, nil
	})
	disabled := New(Config{Name: "disabled", Frequency: 1, Enabled: false}, func(*atomspace.Store, *attention.Bank) (any, error) {
		calls++
		return nil, nil
	})
	orch.Add(everyOther)
	orch.Add(disabled)

	orch.RunCycle() // cycle 1
	assert.Equal(t, 0, calls)
	orch.RunCycle() // cycle 2
	assert.Equal(t, 1, calls)
}

func TestRunCycleIsolatesAgentFailures(t *testing.T) {
	s, b := newStoreAndBank()
	orch := NewOrchestrator(DefaultOrchestratorConfig(), s, b)

	failing := New(Config{Name: "failing", Enabled: true, Frequency: 1}, func(*atomspace.Store, *attention.Bank) (any, error) {
		panic("boom")
	})
	ok := New(Config{Name: "ok", Enabled: true, Frequency: 1}, func(*atomspace.Store, *attention.Bank) (any, error) {
		return "fine", nil
	})
	orch.Add(failing)
	orch.Add(ok)

	summary := orch.RunCycle()
	require.Len(t, summary.Results, 2)

	var sawFailure, sawSuccess bool
	for _, r := range summary.Results {
		if r.Status == StatusFailure {
			sawFailure = true
		}
		if r.Status == StatusSuccess {
			sawSuccess = true
		}
	}
	assert.True(t, sawFailure)
	assert.True(t, sawSuccess)
}

func TestCycleCounterIncrementsFromOne(t *testing.T) {
	s, b := newStoreAndBank()
	orch := NewOrchestrator(DefaultOrchestratorConfig(), s, b)
	summary := orch.RunCycle()
	assert.Equal(t, 1, summary.Cycle)
	summary = orch.RunCycle()
	assert.Equal(t, 2, summary.Cycle)
}
