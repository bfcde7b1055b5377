package queue

import (
	"time"

	"github.com/clinicq/clinicq/internal/domain/patient"
)

// DefaultFallbackSlotMin is the flat per-patient estimate used for patients
// without an assigned staff member.
const DefaultFallbackSlotMin = 15

// StatusReport is the answer to a patient status query: the durable record
// plus the derived queue position and wait estimate. QueuePosition is nil for
// patients outside the index.
type StatusReport struct {
	Patient          *patient.Patient `json:"patient"`
	QueuePosition    *int             `json:"queue_position,omitempty"`
	EstimatedWaitMin int              `json:"estimated_wait_min"`
}

// estimateAssignedWait sums the estimated service minutes of the patients
// ahead of p in its staff member's queue. First in line waits zero.
func estimateAssignedWait(p *patient.Patient, staffQueue []*patient.Patient) int {
	wait := 0
	for _, q := range staffQueue {
		if q.ID == p.ID {
			break
		}
		wait += q.EstimatedServiceMin
	}
	return wait
}

// estimateUnassignedWait applies the coarse heuristic for pool patients:
// a flat slot estimate per patient ahead, discounted by the time already
// spent in the queue so the estimate trends toward zero instead of standing
// still.
func estimateUnassignedWait(p *patient.Patient, rank, slotMin int, now time.Time) int {
	inQueue := 0
	if p.QueueEnteredAt != nil {
		inQueue = int(now.Sub(*p.QueueEnteredAt).Minutes())
		if inQueue < 0 {
			inQueue = 0
		}
	}
	wait := (rank-1)*slotMin - inQueue
	if wait < 0 {
		wait = 0
	}
	return wait
}
