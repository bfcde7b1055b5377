package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicq/clinicq/internal/domain/patient"
	"github.com/clinicq/clinicq/internal/domain/staff"
)

// -- Mock Repositories --

type mockPatientRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*patient.Patient
	seq      int
	failOn   map[uuid.UUID]bool // Update fails for these ids
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[uuid.UUID]*patient.Patient), failOn: make(map[uuid.UUID]bool)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *patient.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.seq++
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *patient.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn[p.ID] {
		return fmt.Errorf("storage failure")
	}
	if _, ok := m.patients[p.ID]; !ok {
		return fmt.Errorf("not found")
	}
	p.UpdatedAt = time.Now()
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.patients, id)
	return nil
}

func (m *mockPatientRepo) sorted() []*patient.Patient {
	var all []*patient.Patient
	for _, p := range m.patients {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all
}

func (m *mockPatientRepo) ListByStatus(_ context.Context, statuses []patient.Status, limit, offset int) ([]*patient.Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*patient.Patient
	for _, p := range m.sorted() {
		for _, s := range statuses {
			if p.Status == s {
				cp := *p
				result = append(result, &cp)
				break
			}
		}
	}
	return result, len(result), nil
}

func (m *mockPatientRepo) ListByAssignedStaff(_ context.Context, staffID uuid.UUID) ([]*patient.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*patient.Patient
	for _, p := range m.sorted() {
		if p.AssignedStaffID != nil && *p.AssignedStaffID == staffID {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *mockPatientRepo) ListActive(_ context.Context) ([]*patient.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*patient.Patient
	for _, p := range m.sorted() {
		if p.Status == patient.StatusWaiting || p.Status == patient.StatusScheduled {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *mockPatientRepo) CountByStatus(_ context.Context) (map[patient.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[patient.Status]int)
	for _, p := range m.patients {
		counts[p.Status]++
	}
	return counts, nil
}

func (m *mockPatientRepo) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.patients), nil
}

type mockStaffRepo struct {
	mu         sync.Mutex
	staff      map[uuid.UUID]*staff.Staff
	failDelete bool // Delete fails while set
}

func newMockStaffRepo() *mockStaffRepo {
	return &mockStaffRepo{staff: make(map[uuid.UUID]*staff.Staff)}
}

func (m *mockStaffRepo) Create(_ context.Context, s *staff.Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()
	cp := *s
	m.staff[s.ID] = &cp
	return nil
}

func (m *mockStaffRepo) GetByID(_ context.Context, id uuid.UUID) (*staff.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *s
	cp.QueueIDs = append([]uuid.UUID(nil), s.QueueIDs...)
	return &cp, nil
}

func (m *mockStaffRepo) Update(_ context.Context, s *staff.Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.staff[s.ID]; !ok {
		return fmt.Errorf("not found")
	}
	s.UpdatedAt = time.Now()
	cp := *s
	cp.QueueIDs = append([]uuid.UUID(nil), s.QueueIDs...)
	m.staff[s.ID] = &cp
	return nil
}

func (m *mockStaffRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete {
		return fmt.Errorf("storage failure")
	}
	if _, ok := m.staff[id]; !ok {
		return fmt.Errorf("not found")
	}
	delete(m.staff, id)
	return nil
}

func (m *mockStaffRepo) sorted() []*staff.Staff {
	var all []*staff.Staff
	for _, s := range m.staff {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return all
}

func (m *mockStaffRepo) List(_ context.Context, limit, offset int) ([]*staff.Staff, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *mockStaffRepo) ListActive(_ context.Context) ([]*staff.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*staff.Staff
	for _, s := range m.sorted() {
		if s.Active {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *mockStaffRepo) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.staff), nil
}

func (m *mockStaffRepo) CountActive(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.staff {
		if s.Active {
			n++
		}
	}
	return n, nil
}

// -- Fixtures --

type fixture struct {
	svc      *Service
	patients *mockPatientRepo
	staff    *mockStaffRepo
	index    *Index
}

func newFixture(opts ...Option) *fixture {
	patients := newMockPatientRepo()
	st := newMockStaffRepo()
	ix := NewIndex()
	svc := NewService(patients, st, ix, zerolog.Nop(), opts...)
	return &fixture{svc: svc, patients: patients, staff: st, index: ix}
}

func (f *fixture) addPatient(t *testing.T, name string, visit patient.VisitType, priority, serviceMin int) *patient.Patient {
	t.Helper()
	p := &patient.Patient{Name: name, VisitType: visit, PriorityLevel: priority, EstimatedServiceMin: serviceMin}
	if err := f.svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

func (f *fixture) addStaff(t *testing.T, name string, active bool, start, end string) *staff.Staff {
	t.Helper()
	s := &staff.Staff{Name: name, Active: active, ShiftStart: start, ShiftEnd: end}
	if err := f.staff.Create(context.Background(), s); err != nil {
		t.Fatalf("create staff: %v", err)
	}
	// keep creation order distinct for deterministic selector ties
	time.Sleep(time.Millisecond)
	return s
}

func (f *fixture) book(t *testing.T, id uuid.UUID, req BookRequest) *patient.Patient {
	t.Helper()
	p, err := f.svc.BookQueueEntry(context.Background(), id, req)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return p
}

func allDayStaff(f *fixture, t *testing.T, name string) *staff.Staff {
	return f.addStaff(t, name, true, "00:00", "23:59")
}

// -- Lifecycle tests --

func TestCreatePatient_DefaultsInactive(t *testing.T) {
	f := newFixture()
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	if p.Status != patient.StatusInactive {
		t.Errorf("expected inactive, got %s", p.Status)
	}
	if f.index.Size() != 0 {
		t.Errorf("inactive patient must not enter the index")
	}
}

func TestCreatePatient_FastPathWaiting(t *testing.T) {
	f := newFixture()
	p := &patient.Patient{Name: "Ada", VisitType: patient.VisitRegular, PriorityLevel: 3, EstimatedServiceMin: 20, Status: patient.StatusWaiting}
	if err := f.svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.QueueEnteredAt == nil {
		t.Error("fast-path creation must set the queue-entry timestamp")
	}
	if _, ok := f.index.Position(p.ID); !ok {
		t.Error("fast-path waiting patient must be indexed")
	}
}

func TestCreatePatient_Validation(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		p    *patient.Patient
	}{
		{"missing name", &patient.Patient{VisitType: patient.VisitRegular, PriorityLevel: 3, EstimatedServiceMin: 20}},
		{"priority too high", &patient.Patient{Name: "x", VisitType: patient.VisitRegular, PriorityLevel: 6, EstimatedServiceMin: 20}},
		{"priority too low", &patient.Patient{Name: "x", VisitType: patient.VisitRegular, PriorityLevel: 0, EstimatedServiceMin: 20}},
		{"zero duration", &patient.Patient{Name: "x", VisitType: patient.VisitRegular, PriorityLevel: 3}},
		{"unknown visit type", &patient.Patient{Name: "x", VisitType: "walk_in", PriorityLevel: 3, EstimatedServiceMin: 20}},
		{"bad initial status", &patient.Patient{Name: "x", VisitType: patient.VisitRegular, PriorityLevel: 3, EstimatedServiceMin: 20, Status: patient.StatusServing}},
	}
	for _, tt := range tests {
		if err := f.svc.CreatePatient(context.Background(), tt.p); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", tt.name, err)
		}
	}
}

func TestBookQueueEntry(t *testing.T) {
	f := newFixture()
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	booked := f.book(t, p.ID, BookRequest{})
	if booked.Status != patient.StatusWaiting {
		t.Errorf("expected waiting, got %s", booked.Status)
	}
	if booked.QueueEnteredAt == nil {
		t.Error("expected queue-entry timestamp")
	}
	if booked.Score <= 0 {
		t.Errorf("expected positive score, got %f", booked.Score)
	}
	if _, ok := f.index.Position(p.ID); !ok {
		t.Error("booked patient must be indexed")
	}
}

func TestBookQueueEntry_EmergencyForcesPriority(t *testing.T) {
	f := newFixture()
	p := f.addPatient(t, "Eve", patient.VisitEmergency, 2, 15)
	booked := f.book(t, p.ID, BookRequest{VisitType: patient.VisitEmergency})
	if booked.PriorityLevel != 5 {
		t.Errorf("emergency booking must force priority 5, got %d", booked.PriorityLevel)
	}
}

func TestBookQueueEntry_AlreadyActive(t *testing.T) {
	f := newFixture()
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})
	_, err := f.svc.BookQueueEntry(context.Background(), p.ID, BookRequest{})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for double booking, got %v", err)
	}
}

func TestBookQueueEntry_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.BookQueueEntry(context.Background(), uuid.New(), BookRequest{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBookQueueEntry_Rebook(t *testing.T) {
	f := newFixture()
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})
	if _, err := f.svc.MarkCancelled(context.Background(), p.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	booked := f.book(t, p.ID, BookRequest{})
	if booked.Status != patient.StatusWaiting {
		t.Errorf("cancelled patient must be bookable again, got %s", booked.Status)
	}
}

func TestBookQueueEntry_PreferredStaff(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	booked := f.book(t, p.ID, BookRequest{PreferredStaffID: &st.ID})
	if booked.AssignedStaffID == nil || *booked.AssignedStaffID != st.ID {
		t.Fatal("expected immediate assignment to preferred staff")
	}
	if booked.Status != patient.StatusScheduled {
		t.Errorf("expected scheduled, got %s", booked.Status)
	}
	got, _ := f.staff.GetByID(context.Background(), st.ID)
	if got.WorkloadMin != 20 {
		t.Errorf("expected workload 20, got %d", got.WorkloadMin)
	}
}

func TestBookQueueEntry_PreferredStaffFailure_NonEmergencyStaysWaiting(t *testing.T) {
	f := newFixture()
	missing := uuid.New()
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	booked := f.book(t, p.ID, BookRequest{PreferredStaffID: &missing})
	if booked.Status != patient.StatusWaiting {
		t.Errorf("non-emergency preferred failure must stay waiting, got %s", booked.Status)
	}
	if booked.AssignedStaffID != nil {
		t.Error("expected no assignment")
	}
}

func TestBookQueueEntry_PreferredStaffFailure_EmergencyAutoAssigns(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")
	missing := uuid.New()
	p := f.addPatient(t, "Eve", patient.VisitEmergency, 5, 15)
	booked := f.book(t, p.ID, BookRequest{VisitType: patient.VisitEmergency, PreferredStaffID: &missing})
	if booked.AssignedStaffID == nil || *booked.AssignedStaffID != st.ID {
		t.Error("emergency must fall back to auto assignment")
	}
}

func TestScheduleAuto(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})

	scheduled, err := f.svc.ScheduleAuto(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scheduled.Status != patient.StatusScheduled {
		t.Errorf("expected scheduled, got %s", scheduled.Status)
	}
	if scheduled.AssignedStaffID == nil || *scheduled.AssignedStaffID != st.ID {
		t.Error("expected assignment to the only active staff")
	}
	if _, ok := f.index.Position(p.ID); !ok {
		t.Error("scheduled patient remains in the index")
	}
}

func TestScheduleAuto_NoEligibleStaff(t *testing.T) {
	f := newFixture()
	f.addStaff(t, "Dr. Off", false, "09:00", "17:00")
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})

	_, err := f.svc.ScheduleAuto(context.Background(), p.ID)
	if !errors.Is(err, ErrNoEligibleStaff) {
		t.Errorf("expected ErrNoEligibleStaff, got %v", err)
	}
}

func TestScheduleAuto_WindowFallback(t *testing.T) {
	f := newFixture()
	// Window that can never contain now.
	st := f.addStaff(t, "Dr. Night", true, "00:00", "00:00")
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})

	scheduled, err := f.svc.ScheduleAuto(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("fallback selection must succeed: %v", err)
	}
	if scheduled.AssignedStaffID == nil || *scheduled.AssignedStaffID != st.ID {
		t.Error("expected fallback assignment to active staff outside window")
	}
}

func TestScheduleAuto_Terminal(t *testing.T) {
	f := newFixture()
	allDayStaff(f, t, "Dr. Grey")
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})
	if _, err := f.svc.MarkCancelled(context.Background(), p.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := f.svc.ScheduleAuto(context.Background(), p.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAssignStaff_MovesBetweenQueues(t *testing.T) {
	f := newFixture()
	first := allDayStaff(f, t, "Dr. A")
	second := allDayStaff(f, t, "Dr. B")
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})

	if _, err := f.svc.AssignStaff(context.Background(), p.ID, first.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.svc.AssignStaff(context.Background(), p.ID, second.ID); err != nil {
		t.Fatalf("re-assign: %v", err)
	}

	a, _ := f.staff.GetByID(context.Background(), first.ID)
	b, _ := f.staff.GetByID(context.Background(), second.ID)
	if len(a.QueueIDs) != 0 || a.WorkloadMin != 0 {
		t.Errorf("first staff must be emptied: queue=%d workload=%d", len(a.QueueIDs), a.WorkloadMin)
	}
	if len(b.QueueIDs) != 1 || b.WorkloadMin != 20 {
		t.Errorf("second staff must hold the patient: queue=%d workload=%d", len(b.QueueIDs), b.WorkloadMin)
	}
}

func TestAssignStaff_DuplicateGuard(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. A")
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})

	for i := 0; i < 2; i++ {
		if _, err := f.svc.AssignStaff(context.Background(), p.ID, st.ID); err != nil {
			t.Fatalf("assign %d: %v", i, err)
		}
	}
	got, _ := f.staff.GetByID(context.Background(), st.ID)
	if len(got.QueueIDs) != 1 {
		t.Errorf("expected exactly one queue entry, got %d", len(got.QueueIDs))
	}
	if got.WorkloadMin != 20 {
		t.Errorf("expected workload 20, got %d", got.WorkloadMin)
	}
}

func TestWorkloadAccounting(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})

	if _, err := f.svc.AssignStaff(context.Background(), p.ID, st.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got, _ := f.staff.GetByID(context.Background(), st.ID)
	if got.WorkloadMin != 20 {
		t.Fatalf("expected workload 20 after assignment, got %d", got.WorkloadMin)
	}

	if _, err := f.svc.MarkServing(context.Background(), p.ID); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if _, err := f.svc.MarkCompleted(context.Background(), p.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ = f.staff.GetByID(context.Background(), st.ID)
	if got.WorkloadMin != 0 {
		t.Errorf("expected workload 0 after completion, got %d", got.WorkloadMin)
	}
	if len(got.QueueIDs) != 0 {
		t.Errorf("expected empty queue after completion, got %d", len(got.QueueIDs))
	}
}

func TestMarkServing_RemovesFromIndex(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})
	if _, err := f.svc.AssignStaff(context.Background(), p.ID, st.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.svc.MarkServing(context.Background(), p.ID); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if _, ok := f.index.Position(p.ID); ok {
		t.Error("serving patient must leave the index")
	}
	// still occupies the staff queue slot while being served
	got, _ := f.staff.GetByID(context.Background(), st.ID)
	if len(got.QueueIDs) != 1 {
		t.Errorf("serving patient should keep the queue slot, got %d entries", len(got.QueueIDs))
	}
}

func TestMarkServing_RequiresScheduled(t *testing.T) {
	f := newFixture()
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})
	_, err := f.svc.MarkServing(context.Background(), p.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition from waiting, got %v", err)
	}
}

func TestCancelAndNoShow_ReleaseStaff(t *testing.T) {
	for _, op := range []string{"cancel", "no_show"} {
		f := newFixture()
		st := allDayStaff(f, t, "Dr. Grey")
		p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 25)
		f.book(t, p.ID, BookRequest{})
		if _, err := f.svc.AssignStaff(context.Background(), p.ID, st.ID); err != nil {
			t.Fatalf("assign: %v", err)
		}

		var err error
		if op == "cancel" {
			_, err = f.svc.MarkCancelled(context.Background(), p.ID)
		} else {
			_, err = f.svc.MarkNoShow(context.Background(), p.ID)
		}
		if err != nil {
			t.Fatalf("%s: %v", op, err)
		}

		got, _ := f.staff.GetByID(context.Background(), st.ID)
		if got.WorkloadMin != 0 || len(got.QueueIDs) != 0 {
			t.Errorf("%s: staff not released: workload=%d queue=%d", op, got.WorkloadMin, len(got.QueueIDs))
		}
		if _, ok := f.index.Position(p.ID); ok {
			t.Errorf("%s: terminal patient must leave the index", op)
		}
	}
}

func TestReassignToPool(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})
	if _, err := f.svc.AssignStaff(context.Background(), p.ID, st.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	back, err := f.svc.ReassignToPool(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if back.Status != patient.StatusWaiting || back.AssignedStaffID != nil {
		t.Errorf("expected unassigned waiting, got %s assigned=%v", back.Status, back.AssignedStaffID)
	}
	got, _ := f.staff.GetByID(context.Background(), st.ID)
	if got.WorkloadMin != 0 || len(got.QueueIDs) != 0 {
		t.Errorf("staff not released: workload=%d queue=%d", got.WorkloadMin, len(got.QueueIDs))
	}
}

func TestReassignToPool_Idempotent(t *testing.T) {
	f := newFixture()
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})

	for i := 0; i < 2; i++ {
		back, err := f.svc.ReassignToPool(context.Background(), p.ID)
		if err != nil {
			t.Fatalf("reassign %d: %v", i, err)
		}
		if back.Status != patient.StatusWaiting || back.AssignedStaffID != nil {
			t.Errorf("reassign %d: expected unassigned waiting", i)
		}
	}
	if f.index.Size() != 1 {
		t.Errorf("expected a single index entry, got %d", f.index.Size())
	}
}

func TestEmergencyOverride_TopRank(t *testing.T) {
	f := newFixture()
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		p := f.addPatient(t, fmt.Sprintf("p%d", i), patient.VisitRegular, 5, 20)
		f.book(t, p.ID, BookRequest{})
		ids = append(ids, p.ID)
	}

	last := ids[len(ids)-1]
	p, err := f.svc.EmergencyOverride(context.Background(), last)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if p.Score != EmergencyScore {
		t.Errorf("expected sentinel score %d, got %f", EmergencyScore, p.Score)
	}
	if p.VisitType != patient.VisitEmergency || p.PriorityLevel != 5 {
		t.Errorf("override must force emergency/priority 5, got %s/%d", p.VisitType, p.PriorityLevel)
	}
	rank, ok := f.index.Position(last)
	if !ok || rank != 1 {
		t.Errorf("expected rank 1 after override, got %d (ok=%v)", rank, ok)
	}
}

func TestEmergencyOverride_KeepsAssignment(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})
	if _, err := f.svc.AssignStaff(context.Background(), p.ID, st.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	over, err := f.svc.EmergencyOverride(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if over.AssignedStaffID == nil || *over.AssignedStaffID != st.ID {
		t.Error("override must not change staff assignment")
	}
}

func TestEmergencyOverride_TerminalRejected(t *testing.T) {
	f := newFixture()
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})
	if _, err := f.svc.MarkCancelled(context.Background(), p.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := f.svc.EmergencyOverride(context.Background(), p.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestOptimizeQueue(t *testing.T) {
	f := newFixture()
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})

	// Backdate the arrival so the recomputed score grows.
	stored := f.patients.patients[p.ID]
	stored.ArrivalAt = stored.ArrivalAt.Add(-time.Hour)
	before := stored.Score

	n, err := f.svc.OptimizeQueue(context.Background())
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 rescored patient, got %d", n)
	}
	after := f.patients.patients[p.ID].Score
	if after <= before {
		t.Errorf("expected score to grow with elapsed wait: before=%f after=%f", before, after)
	}
}

func TestOptimizeQueue_PreservesSentinel(t *testing.T) {
	f := newFixture()
	p := f.addPatient(t, "Eve", patient.VisitEmergency, 5, 15)
	f.book(t, p.ID, BookRequest{VisitType: patient.VisitEmergency})
	if _, err := f.svc.EmergencyOverride(context.Background(), p.ID); err != nil {
		t.Fatalf("override: %v", err)
	}
	if _, err := f.svc.OptimizeQueue(context.Background()); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if got := f.patients.patients[p.ID].Score; got != EmergencyScore {
		t.Errorf("optimize must keep the sentinel score, got %f", got)
	}
}

func TestDeleteStaff_Redistributes(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")
	var ids []uuid.UUID
	for i := 0; i < 2; i++ {
		p := f.addPatient(t, fmt.Sprintf("p%d", i), patient.VisitRegular, 3, 20)
		f.book(t, p.ID, BookRequest{})
		if _, err := f.svc.AssignStaff(context.Background(), p.ID, st.ID); err != nil {
			t.Fatalf("assign: %v", err)
		}
		ids = append(ids, p.ID)
	}

	// A patient this staff member already finished: keeps the assignment
	// reference for history and must stay out of the redistribution.
	finished := f.addPatient(t, "done", patient.VisitRegular, 3, 15)
	f.book(t, finished.ID, BookRequest{})
	if _, err := f.svc.AssignStaff(context.Background(), finished.ID, st.ID); err != nil {
		t.Fatalf("assign finished: %v", err)
	}
	if _, err := f.svc.MarkServing(context.Background(), finished.ID); err != nil {
		t.Fatalf("serve finished: %v", err)
	}
	if _, err := f.svc.MarkCompleted(context.Background(), finished.ID); err != nil {
		t.Fatalf("complete finished: %v", err)
	}

	if err := f.svc.DeleteStaff(context.Background(), st.ID); err != nil {
		t.Fatalf("delete staff: %v", err)
	}
	if _, err := f.staff.GetByID(context.Background(), st.ID); err == nil {
		t.Error("staff record should be gone")
	}
	for _, id := range ids {
		p := f.patients.patients[id]
		if p.Status != patient.StatusWaiting {
			t.Errorf("patient %s: expected waiting, got %s", id, p.Status)
		}
		if p.AssignedStaffID != nil {
			t.Errorf("patient %s: assigned staff must be cleared", id)
		}
		if _, ok := f.index.Position(id); !ok {
			t.Errorf("patient %s: must re-enter the index", id)
		}
	}

	got := f.patients.patients[finished.ID]
	if got.Status != patient.StatusCompleted {
		t.Errorf("completed patient must stay completed, got %s", got.Status)
	}
	if got.AssignedStaffID == nil || *got.AssignedStaffID != st.ID {
		t.Error("completed patient keeps the staff reference")
	}
	if _, ok := f.index.Position(finished.ID); ok {
		t.Error("completed patient must not re-enter the index")
	}
}

func TestDeleteStaff_RollbackOnFailure(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")
	var ids []uuid.UUID
	for i := 0; i < 2; i++ {
		p := f.addPatient(t, fmt.Sprintf("p%d", i), patient.VisitRegular, 3, 20)
		f.book(t, p.ID, BookRequest{})
		if _, err := f.svc.AssignStaff(context.Background(), p.ID, st.ID); err != nil {
			t.Fatalf("assign: %v", err)
		}
		ids = append(ids, p.ID)
	}
	// Second patient's update fails mid-redistribution.
	f.patients.failOn[ids[1]] = true

	err := f.svc.DeleteStaff(context.Background(), st.ID)
	if err == nil {
		t.Fatal("expected deletion to fail")
	}
	if _, stErr := f.staff.GetByID(context.Background(), st.ID); stErr != nil {
		t.Error("staff must survive a failed deletion")
	}
	first := f.patients.patients[ids[0]]
	if first.AssignedStaffID == nil || *first.AssignedStaffID != st.ID {
		t.Error("first patient must be rolled back to the staff queue")
	}
}

func TestDeleteStaff_RollbackOnDeleteFailure(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")
	var ids []uuid.UUID
	for i := 0; i < 2; i++ {
		p := f.addPatient(t, fmt.Sprintf("p%d", i), patient.VisitRegular, 3, 20)
		f.book(t, p.ID, BookRequest{})
		if _, err := f.svc.AssignStaff(context.Background(), p.ID, st.ID); err != nil {
			t.Fatalf("assign: %v", err)
		}
		ids = append(ids, p.ID)
	}
	// Every patient redistributes fine, then the staff delete itself fails.
	f.staff.failDelete = true

	err := f.svc.DeleteStaff(context.Background(), st.ID)
	if err == nil {
		t.Fatal("expected deletion to fail")
	}
	got, stErr := f.staff.GetByID(context.Background(), st.ID)
	if stErr != nil {
		t.Fatal("staff must survive a failed deletion")
	}
	if len(got.QueueIDs) != 2 || got.WorkloadMin != 40 {
		t.Errorf("staff queue must be intact: queue=%d workload=%d", len(got.QueueIDs), got.WorkloadMin)
	}
	for _, id := range ids {
		p := f.patients.patients[id]
		if p.Status != patient.StatusScheduled {
			t.Errorf("patient %s: expected scheduled after rollback, got %s", id, p.Status)
		}
		if p.AssignedStaffID == nil || *p.AssignedStaffID != st.ID {
			t.Errorf("patient %s: must be rolled back to the staff queue", id)
		}
	}
}

func TestDeleteStaff_NotFound(t *testing.T) {
	f := newFixture()
	err := f.svc.DeleteStaff(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// staffRepoGate holds every caller at the selection read until all expected
// callers arrive, forcing the widest possible window between reading the
// staff roster and writing the assignment back.
type staffRepoGate struct {
	*mockStaffRepo
	selected *sync.WaitGroup
}

func (g *staffRepoGate) ListActive(ctx context.Context) ([]*staff.Staff, error) {
	out, err := g.mockStaffRepo.ListActive(ctx)
	g.selected.Done()
	g.selected.Wait()
	return out, err
}

func TestScheduleAuto_ConcurrentAssignmentsSerialize(t *testing.T) {
	patients := newMockPatientRepo()
	inner := newMockStaffRepo()
	var selected sync.WaitGroup
	selected.Add(2)
	gate := &staffRepoGate{mockStaffRepo: inner, selected: &selected}
	svc := NewService(patients, gate, NewIndex(), zerolog.Nop())

	st := &staff.Staff{Name: "Dr. Grey", Active: true, ShiftStart: "00:00", ShiftEnd: "23:59"}
	if err := inner.Create(context.Background(), st); err != nil {
		t.Fatalf("create staff: %v", err)
	}

	var ids []uuid.UUID
	for i := 0; i < 2; i++ {
		p := &patient.Patient{Name: fmt.Sprintf("p%d", i), VisitType: patient.VisitRegular, PriorityLevel: 3, EstimatedServiceMin: 20}
		if err := svc.CreatePatient(context.Background(), p); err != nil {
			t.Fatalf("create patient: %v", err)
		}
		if _, err := svc.BookQueueEntry(context.Background(), p.ID, BookRequest{}); err != nil {
			t.Fatalf("book: %v", err)
		}
		ids = append(ids, p.ID)
	}

	errs := make(chan error, len(ids))
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := svc.ScheduleAuto(context.Background(), id)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}

	got, err := inner.GetByID(context.Background(), st.ID)
	if err != nil {
		t.Fatalf("get staff: %v", err)
	}
	if got.WorkloadMin != 40 {
		t.Errorf("expected workload 40 after both assignments, got %d", got.WorkloadMin)
	}
	if len(got.QueueIDs) != 2 {
		t.Errorf("expected 2 queued patients, got %d", len(got.QueueIDs))
	}
}

// flakyStaffRepo fails the next n GetByID calls, then behaves normally.
type flakyStaffRepo struct {
	*mockStaffRepo
	mu       sync.Mutex
	failGets int
}

func (r *flakyStaffRepo) GetByID(ctx context.Context, id uuid.UUID) (*staff.Staff, error) {
	r.mu.Lock()
	fail := r.failGets > 0
	if fail {
		r.failGets--
	}
	r.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("transient storage failure")
	}
	return r.mockStaffRepo.GetByID(ctx, id)
}

func TestMarkCompleted_StaffReadFailureIsRetryable(t *testing.T) {
	patients := newMockPatientRepo()
	inner := newMockStaffRepo()
	flaky := &flakyStaffRepo{mockStaffRepo: inner}
	svc := NewService(patients, flaky, NewIndex(), zerolog.Nop())

	st := &staff.Staff{Name: "Dr. Grey", Active: true, ShiftStart: "00:00", ShiftEnd: "23:59"}
	if err := inner.Create(context.Background(), st); err != nil {
		t.Fatalf("create staff: %v", err)
	}
	p := &patient.Patient{Name: "Ada", VisitType: patient.VisitRegular, PriorityLevel: 3, EstimatedServiceMin: 20}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	if _, err := svc.BookQueueEntry(context.Background(), p.ID, BookRequest{}); err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := svc.AssignStaff(context.Background(), p.ID, st.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.MarkServing(context.Background(), p.ID); err != nil {
		t.Fatalf("serve: %v", err)
	}

	flaky.failGets = 1
	if _, err := svc.MarkCompleted(context.Background(), p.ID); err == nil {
		t.Fatal("expected error when the staff read fails")
	}
	// Nothing moved: the patient is still serving and the slot still held.
	if got := patients.patients[p.ID]; got.Status != patient.StatusServing {
		t.Errorf("patient must stay serving after a failed release, got %s", got.Status)
	}
	held, _ := inner.GetByID(context.Background(), st.ID)
	if held.WorkloadMin != 20 || len(held.QueueIDs) != 1 {
		t.Errorf("staff slot must stay held: workload=%d queue=%d", held.WorkloadMin, len(held.QueueIDs))
	}

	if _, err := svc.MarkCompleted(context.Background(), p.ID); err != nil {
		t.Fatalf("retry must succeed: %v", err)
	}
	released, _ := inner.GetByID(context.Background(), st.ID)
	if released.WorkloadMin != 0 || len(released.QueueIDs) != 0 {
		t.Errorf("staff slot must be released on retry: workload=%d queue=%d", released.WorkloadMin, len(released.QueueIDs))
	}
	if got := patients.patients[p.ID]; got.Status != patient.StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
}

// -- Ordering & reporting --

func TestBasicOrderingScenario(t *testing.T) {
	f := newFixture()
	regular := f.addPatient(t, "Reg", patient.VisitRegular, 3, 20)
	emergency := f.addPatient(t, "Emg", patient.VisitEmergency, 5, 15)
	followUp := f.addPatient(t, "Fup", patient.VisitFollowUp, 2, 10)

	f.book(t, regular.ID, BookRequest{VisitType: patient.VisitRegular})
	f.book(t, emergency.ID, BookRequest{VisitType: patient.VisitEmergency})
	f.book(t, followUp.ID, BookRequest{VisitType: patient.VisitFollowUp})

	rankEmg, _ := f.index.Position(emergency.ID)
	rankReg, _ := f.index.Position(regular.ID)
	rankFup, _ := f.index.Position(followUp.ID)

	if rankEmg != 1 {
		t.Errorf("emergency must rank #1, got %d", rankEmg)
	}
	if rankReg >= rankFup {
		t.Errorf("regular (rank %d) must outrank follow-up (rank %d)", rankReg, rankFup)
	}
}

func TestIndexMembership_ExactlyActivePatients(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")

	waiting := f.addPatient(t, "w", patient.VisitRegular, 3, 20)
	f.book(t, waiting.ID, BookRequest{})

	scheduled := f.addPatient(t, "s", patient.VisitRegular, 3, 20)
	f.book(t, scheduled.ID, BookRequest{})
	if _, err := f.svc.AssignStaff(context.Background(), scheduled.ID, st.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	serving := f.addPatient(t, "v", patient.VisitRegular, 3, 20)
	f.book(t, serving.ID, BookRequest{})
	if _, err := f.svc.AssignStaff(context.Background(), serving.ID, st.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.svc.MarkServing(context.Background(), serving.ID); err != nil {
		t.Fatalf("serve: %v", err)
	}

	f.addPatient(t, "i", patient.VisitRegular, 3, 20) // inactive

	if f.index.Size() != 2 {
		t.Fatalf("expected exactly 2 indexed patients, got %d", f.index.Size())
	}
	for _, id := range []uuid.UUID{waiting.ID, scheduled.ID} {
		if _, ok := f.index.Position(id); !ok {
			t.Errorf("active patient %s missing from index", id)
		}
	}
	if _, ok := f.index.Position(serving.ID); ok {
		t.Error("serving patient must not be indexed")
	}
}

func TestPatientStatus_RoundTrip(t *testing.T) {
	f := newFixture()
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})

	report, err := f.svc.PatientStatus(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if report.QueuePosition == nil || *report.QueuePosition < 1 {
		t.Error("expected queue_position >= 1 right after booking")
	}
	if report.EstimatedWaitMin < 0 {
		t.Errorf("expected non-negative wait, got %d", report.EstimatedWaitMin)
	}
}

func TestPatientStatus_AssignedWaitSumsPrecedingDurations(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")
	first := f.addPatient(t, "first", patient.VisitRegular, 3, 30)
	second := f.addPatient(t, "second", patient.VisitRegular, 3, 20)
	f.book(t, first.ID, BookRequest{})
	f.book(t, second.ID, BookRequest{})
	if _, err := f.svc.AssignStaff(context.Background(), first.ID, st.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.svc.AssignStaff(context.Background(), second.ID, st.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	reportFirst, err := f.svc.PatientStatus(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if reportFirst.EstimatedWaitMin != 0 {
		t.Errorf("first in staff queue waits 0, got %d", reportFirst.EstimatedWaitMin)
	}
	reportSecond, err := f.svc.PatientStatus(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if reportSecond.EstimatedWaitMin != 30 {
		t.Errorf("second waits the first's 30 minutes, got %d", reportSecond.EstimatedWaitMin)
	}
}

func TestPatientStatus_TerminalReportsNoPosition(t *testing.T) {
	f := newFixture()
	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})
	if _, err := f.svc.MarkCancelled(context.Background(), p.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	report, err := f.svc.PatientStatus(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if report.QueuePosition != nil {
		t.Error("terminal patient must report no queue position")
	}
	if report.EstimatedWaitMin != 0 {
		t.Errorf("terminal patient must report zero wait, got %d", report.EstimatedWaitMin)
	}
}

func TestStaffQueueStatus(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")
	first := f.addPatient(t, "first", patient.VisitRegular, 3, 30)
	second := f.addPatient(t, "second", patient.VisitRegular, 3, 20)
	for _, p := range []*patient.Patient{first, second} {
		f.book(t, p.ID, BookRequest{})
		if _, err := f.svc.AssignStaff(context.Background(), p.ID, st.ID); err != nil {
			t.Fatalf("assign: %v", err)
		}
	}

	report, err := f.svc.StaffQueueStatus(context.Background(), st.ID)
	if err != nil {
		t.Fatalf("staff queue status: %v", err)
	}
	if len(report.Patients) != 2 {
		t.Fatalf("expected 2 queued patients, got %d", len(report.Patients))
	}
	if report.Patients[0].ID != first.ID || report.Patients[1].ID != second.ID {
		t.Error("queue order must be preserved in the report")
	}
	if report.Staff.WorkloadMin != 50 {
		t.Errorf("expected workload 50, got %d", report.Staff.WorkloadMin)
	}
}

func TestAggregateStats(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")
	f.addStaff(t, "Dr. Off", false, "09:00", "17:00")

	p := f.addPatient(t, "Ada", patient.VisitRegular, 3, 20)
	f.book(t, p.ID, BookRequest{})
	if _, err := f.svc.AssignStaff(context.Background(), p.ID, st.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	f.addPatient(t, "Idle", patient.VisitRegular, 3, 10)

	stats, err := f.svc.AggregateStats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalPatients != 2 {
		t.Errorf("expected 2 patients, got %d", stats.TotalPatients)
	}
	if stats.TotalStaff != 2 || stats.ActiveStaff != 1 {
		t.Errorf("expected staff 2/1, got %d/%d", stats.TotalStaff, stats.ActiveStaff)
	}
	if stats.StatusCounts[patient.StatusScheduled] != 1 || stats.StatusCounts[patient.StatusInactive] != 1 {
		t.Errorf("unexpected status counts: %v", stats.StatusCounts)
	}
	if stats.TotalWorkloadMin != 20 {
		t.Errorf("expected total workload 20, got %d", stats.TotalWorkloadMin)
	}
	if stats.IndexSize != 1 {
		t.Errorf("expected index size 1, got %d", stats.IndexSize)
	}
}

func TestWorkloadInvariant_AfterEveryMutation(t *testing.T) {
	f := newFixture()
	st := allDayStaff(f, t, "Dr. Grey")

	check := func(step string) {
		t.Helper()
		got, _ := f.staff.GetByID(context.Background(), st.ID)
		sum := 0
		for _, id := range got.QueueIDs {
			sum += f.patients.patients[id].EstimatedServiceMin
		}
		if got.WorkloadMin != sum {
			t.Errorf("%s: workload %d != queue sum %d", step, got.WorkloadMin, sum)
		}
	}

	a := f.addPatient(t, "a", patient.VisitRegular, 3, 20)
	b := f.addPatient(t, "b", patient.VisitRegular, 3, 35)
	f.book(t, a.ID, BookRequest{})
	f.book(t, b.ID, BookRequest{})
	check("after booking")

	f.svc.AssignStaff(context.Background(), a.ID, st.ID)
	check("after first assignment")
	f.svc.AssignStaff(context.Background(), b.ID, st.ID)
	check("after second assignment")
	f.svc.ReassignToPool(context.Background(), a.ID)
	check("after reassign to pool")
	f.svc.MarkServing(context.Background(), b.ID)
	check("after serve")
	f.svc.MarkCompleted(context.Background(), b.ID)
	check("after completion")
}
