package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicq/clinicq/internal/domain/patient"
)

func TestEstimateAssignedWait(t *testing.T) {
	first := &patient.Patient{ID: uuid.New(), EstimatedServiceMin: 30}
	second := &patient.Patient{ID: uuid.New(), EstimatedServiceMin: 20}
	third := &patient.Patient{ID: uuid.New(), EstimatedServiceMin: 10}
	queue := []*patient.Patient{first, second, third}

	tests := []struct {
		name string
		p    *patient.Patient
		want int
	}{
		{"first waits zero", first, 0},
		{"second waits first's duration", second, 30},
		{"third waits both ahead", third, 50},
		{"absent patient waits the whole queue", &patient.Patient{ID: uuid.New()}, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateAssignedWait(tt.p, queue); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEstimateUnassignedWait(t *testing.T) {
	now := time.Now()
	entered := now.Add(-10 * time.Minute)

	tests := []struct {
		name    string
		entered *time.Time
		rank    int
		want    int
	}{
		{"rank 1 waits zero", &entered, 1, 0},
		{"rank 3 discounted by time in queue", &entered, 3, 20},
		{"discount floors at zero", &entered, 1, 0},
		{"no entry timestamp uses full estimate", nil, 3, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &patient.Patient{ID: uuid.New(), QueueEnteredAt: tt.entered}
			if got := estimateUnassignedWait(p, tt.rank, DefaultFallbackSlotMin, now); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEstimateUnassignedWait_FutureEntryClampsToZeroElapsed(t *testing.T) {
	now := time.Now()
	future := now.Add(5 * time.Minute)
	p := &patient.Patient{ID: uuid.New(), QueueEnteredAt: &future}
	if got := estimateUnassignedWait(p, 2, DefaultFallbackSlotMin, now); got != DefaultFallbackSlotMin {
		t.Errorf("got %d, want %d", got, DefaultFallbackSlotMin)
	}
}
