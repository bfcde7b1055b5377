package queue

import (
	"time"

	"github.com/clinicq/clinicq/internal/domain/patient"
)

// EmergencyScore is the sentinel maximum written by an emergency override.
// It bypasses the scoring formula so that an overridden patient outranks any
// normally-scored patient regardless of configured weights.
const EmergencyScore = 9999

// Weights are the scoring coefficients. Higher score serves first.
type Weights struct {
	Priority float64
	Wait     float64
}

// DefaultWeights returns the standard clinic weighting.
func DefaultWeights() Weights {
	return Weights{Priority: 10, Wait: 2}
}

func visitBonus(v patient.VisitType) float64 {
	switch v {
	case patient.VisitEmergency:
		return 20
	case patient.VisitFollowUp:
		return -5
	default:
		return 0
	}
}

// Score computes the patient's queue priority at the given instant. Pure:
// it reads only its arguments, and the wait component is derived from the
// arrival timestamp every time rather than cached, so callers must re-invoke
// it whenever ordering has to reflect current state.
func (w Weights) Score(p *patient.Patient, now time.Time) float64 {
	waitMin := now.Sub(p.ArrivalAt).Minutes()
	if waitMin < 0 {
		waitMin = 0
	}
	return w.Priority*float64(p.PriorityLevel) + w.Wait*waitMin + visitBonus(p.VisitType)
}
