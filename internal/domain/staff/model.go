package staff

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Staff maps to the staff table. QueueIDs holds the ordered list of patients
// currently assigned to this staff member; WorkloadMin is the sum of their
// estimated service minutes and must stay in lockstep with the list.
type Staff struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Active      bool        `db:"active" json:"active"`
	ShiftStart  string      `db:"shift_start" json:"shift_start"`
	ShiftEnd    string      `db:"shift_end" json:"shift_end"`
	QueueIDs    []uuid.UUID `db:"queue_ids" json:"queue_ids"`
	WorkloadMin int         `db:"workload_min" json:"workload_min"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// parseClock parses a "HH:MM" time-of-day into minutes since midnight.
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time-of-day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time-of-day %q", s)
	}
	return h*60 + m, nil
}

// ValidShift reports whether the staff member's shift window parses and is
// wrap-free (start before or equal to end on the same day).
func (s *Staff) ValidShift() error {
	start, err := parseClock(s.ShiftStart)
	if err != nil {
		return err
	}
	end, err := parseClock(s.ShiftEnd)
	if err != nil {
		return err
	}
	if start > end {
		return fmt.Errorf("shift_start %q is after shift_end %q", s.ShiftStart, s.ShiftEnd)
	}
	return nil
}

// Available reports whether now's local time-of-day falls inside the shift
// window. The window is same-day only; a malformed window counts as closed.
func (s *Staff) Available(now time.Time) bool {
	start, err := parseClock(s.ShiftStart)
	if err != nil {
		return false
	}
	end, err := parseClock(s.ShiftEnd)
	if err != nil {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	return start <= minute && minute <= end
}

// HasQueued reports whether id is already present in the assignment queue.
func (s *Staff) HasQueued(id uuid.UUID) bool {
	for _, q := range s.QueueIDs {
		if q == id {
			return true
		}
	}
	return false
}

// Enqueue appends id to the assignment queue exactly once and grows the
// workload. A duplicate append is a no-op.
func (s *Staff) Enqueue(id uuid.UUID, serviceMin int) {
	if s.HasQueued(id) {
		return
	}
	s.QueueIDs = append(s.QueueIDs, id)
	s.WorkloadMin += serviceMin
}

// Dequeue removes id from the assignment queue and shrinks the workload,
// floored at zero. Removing an absent id is a no-op.
func (s *Staff) Dequeue(id uuid.UUID, serviceMin int) {
	for i, q := range s.QueueIDs {
		if q == id {
			s.QueueIDs = append(s.QueueIDs[:i], s.QueueIDs[i+1:]...)
			s.WorkloadMin -= serviceMin
			if s.WorkloadMin < 0 {
				s.WorkloadMin = 0
			}
			return
		}
	}
}
