// Package attention implements the attention bank: the importance economy
// layered over an atomspace.Store. It owns STI/LTI accounting, decay,
// normalisation and spreading; the store itself only ever stores the raw
// numbers through the gateway methods attention calls.
//
// Grounded on core/_opencog.disabled/atomspace.go's AttentionBank and
// AtomSpace.SpreadAttention, generalized from its fixed int16 ECAN fields to
// the spec's configurable float64 bank with explicit normalisation targets.
package attention

import "github.com/cogpy/atomspace/core/atomspace"

// Config holds the bank's tunables (spec.md §6.3).
type Config struct {
	TargetSTI float64
	TargetLTI float64
	// DecayRate is the fraction of STI *retained* per decaySTI call, i.e.
	// sti' = sti - sti*(1-DecayRate), matching spec.md §4.2's "subtract
	// sti·(1−decayRate)" phrasing.
	DecayRate   float64
	STIMin      float64
	STIMax      float64
	FocusSize   int
	RentEnabled bool
}

// DefaultConfig returns the bank's default configuration.
func DefaultConfig() Config {
	return Config{
		TargetSTI:   1000,
		TargetLTI:   1000,
		DecayRate:   0.9,
		STIMin:      -1000,
		STIMax:      1000,
		FocusSize:   10,
		RentEnabled: true,
	}
}

// store is the narrow surface the bank needs from atomspace.Store, named so
// the bank package never imports more of atomspace than its attention
// gateway.
type store interface {
	STI(h atomspace.Handle) (float64, bool)
	SetSTI(h atomspace.Handle, v float64) bool
	LTI(h atomspace.Handle) (float64, bool)
	SetLTI(h atomspace.Handle, v float64) bool
	VLTI(h atomspace.Handle) (bool, bool)
	SetVLTI(h atomspace.Handle, v bool) bool
	Outgoing(h atomspace.Handle) ([]atomspace.Handle, bool)
	Incoming(h atomspace.Handle) ([]atomspace.Handle, bool)
	Focus(k int) []atomspace.Handle
	AllWithSTI() []struct {
		Handle atomspace.Handle
		STI    float64
	}
	Subscribe() (<-chan atomspace.Event, func())
}
