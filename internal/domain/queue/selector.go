package queue

import (
	"time"

	"github.com/clinicq/clinicq/internal/domain/staff"
)

// Selection is the outcome of picking a staff member for assignment.
// OutsideWindow marks the graceful-degradation path: nobody was inside their
// shift window, so the lowest-workload active staff was chosen anyway.
type Selection struct {
	Staff         *staff.Staff
	OutsideWindow bool
}

// FindBestStaff picks the assignment target from the given staff list:
// active, inside the shift window, lowest workload. Workload ties keep the
// first candidate in list order, which the staff repository fixes as
// (created_at, id). If no active staff is inside their window the filter is
// dropped and the lowest-workload active staff wins; nil is returned only
// when there are no active staff at all.
func FindBestStaff(list []*staff.Staff, now time.Time) *Selection {
	var best, fallback *staff.Staff
	for _, s := range list {
		if !s.Active {
			continue
		}
		if fallback == nil || s.WorkloadMin < fallback.WorkloadMin {
			fallback = s
		}
		if !s.Available(now) {
			continue
		}
		if best == nil || s.WorkloadMin < best.WorkloadMin {
			best = s
		}
	}
	if best != nil {
		return &Selection{Staff: best}
	}
	if fallback != nil {
		return &Selection{Staff: fallback, OutsideWindow: true}
	}
	return nil
}
