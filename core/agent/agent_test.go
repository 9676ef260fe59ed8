package agent

import (
	"errors"
	"testing"

	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/attention"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreAndBank() (*atomspace.Store, *attention.Bank) {
	s := atomspace.New(atomspace.DefaultConfig(), nil)
	b := attention.New(attention.DefaultConfig(), s, nil)
	return s, b
}

func TestAgentSkippedWhenDisabled(t *testing.T) {
	s, b := newStoreAndBank()
	a := New(DefaultConfig(), func(*atomspace.Store, *attention.Bank) (any, error) { return nil, nil })
	a.Disable()

	res := a.Execute(s, b, 1)
	assert.Equal(t, StatusSkipped, res.Status)
}

func TestAgentFrequencyGating(t *testing.T) {
	s, b := newStoreAndBank()
	calls := 0
	a := New(Config{Frequency: 3, Enabled: true}, func(*atomspace.Store, *attention.Bank) (any, error) {
		calls++
		return nil, nil
	})

	for cycle := 1; cycle <= 9; cycle++ {
		a.Execute(s, b, cycle)
	}
	assert.Equal(t, 3, calls, "frequency=3 should run on cycles 3,6,9 only")
}

func TestAgentCapturesError(t *testing.T) {
	s, b := newStoreAndBank()
	a := New(DefaultConfig(), func(*atomspace.Store, *attention.Bank) (any, error) {
		return nil, errors.New("boom")
	})
	res := a.Execute(s, b, 1)
	assert.Equal(t, StatusFailure, res.Status)
	require.Error(t, res.Err)
}

func TestAgentCapturesPanic(t *testing.T) {
	s, b := newStoreAndBank()
	a := New(DefaultConfig(), func(*atomspace.Store, *attention.Bank) (any, error) {
		panic("kaboom")
	})
	res := a.Execute(s, b, 1)
	assert.Equal(t, StatusFailure, res.Status)
	require.Error(t, res.Err)
}

func TestAgentCountersOnlyUpdateOnNonSkipped(t *testing.T) {
	s, b := newStoreAndBank()
	a := New(Config{Frequency: 2, Enabled: true}, func(*atomspace.Store, *attention.Bank) (any, error) { return nil, nil })

	a.Execute(s, b, 1) // skipped
	a.Execute(s, b, 2) // runs
	stats := a.Stats()
	assert.Equal(t, 1, stats.RunCount)
}

func TestAgentIDDefaultsToUUID(t *testing.T) {
	a1 := New(DefaultConfig(), func(*atomspace.Store, *attention.Bank) (any, error) { return nil, nil })
	a2 := New(DefaultConfig(), func(*atomspace.Store, *attention.Bank) (any, error) { return nil, nil })
	assert.NotEmpty(t, a1.ID())
	assert.NotEqual(t, a1.ID(), a2.ID())
}
