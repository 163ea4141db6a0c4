// Package lifecycle holds the group lifecycle rules: the ordered phase
// catalog, section gating, viewer capabilities, vote tallies and the
// phase pipeline. Everything here is pure and safe for concurrent use.
package lifecycle

import (
	"errors"
	"math"
	"strings"
)

// Phase is one stage of a group's lifecycle.
type Phase string

const (
	PhaseInitial        Phase = "initial"
	PhasePendingMembers Phase = "pending_members"
	PhaseVoteAdmins     Phase = "vote_admins"
	PhaseNegotiation    Phase = "negotiation"
	PhaseContracting    Phase = "contracting"
	PhaseSupervised     Phase = "supervised"
	PhaseClosed         Phase = "closed"

	// PhaseUnknown is returned for any value outside the catalog.
	PhaseUnknown Phase = "unknown"
)

// ErrUnknownPhase is returned when a stored phase is not in the catalog.
var ErrUnknownPhase = errors.New("unknown group phase")

// ErrNoNextPhase is returned when advancing from the last phase.
var ErrNoNextPhase = errors.New("phase has no successor")

var phaseOrder = []Phase{
	PhaseInitial,
	PhasePendingMembers,
	PhaseVoteAdmins,
	PhaseNegotiation,
	PhaseContracting,
	PhaseSupervised,
	PhaseClosed,
}

// Phases returns the catalog in lifecycle order.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// ParsePhase maps a stored value onto the catalog.
func ParsePhase(raw string) (Phase, error) {
	p := Phase(strings.TrimSpace(raw))
	if p.Index() < 0 {
		return PhaseUnknown, ErrUnknownPhase
	}
	return p, nil
}

// Index returns the position of p in the catalog, or -1.
func (p Phase) Index() int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Known reports whether p is part of the catalog.
func (p Phase) Known() bool {
	return p.Index() >= 0
}

// Next returns the phase that follows p.
func (p Phase) Next() (Phase, error) {
	idx := p.Index()
	if idx < 0 {
		return PhaseUnknown, ErrUnknownPhase
	}
	if idx == len(phaseOrder)-1 {
		return p, ErrNoNextPhase
	}
	return phaseOrder[idx+1], nil
}

// Before reports whether p comes strictly before other. Unknown phases
// are never before anything.
func (p Phase) Before(other Phase) bool {
	a, b := p.Index(), other.Index()
	return a >= 0 && b >= 0 && a < b
}

// Progress is (index+1)/len*100 rounded to one decimal; unknown is 0.
func Progress(p Phase) float64 {
	idx := p.Index()
	if idx < 0 {
		return 0
	}
	return round1(float64(idx+1) / float64(len(phaseOrder)) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
