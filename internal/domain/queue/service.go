package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicq/clinicq/internal/domain/patient"
	"github.com/clinicq/clinicq/internal/domain/staff"
)

// EventPublisher receives a notification after every successful mutation so
// dashboards can refresh. Implementations must not block the engine.
type EventPublisher interface {
	PublishQueueEvent(ctx context.Context, eventType string, patientID uuid.UUID)
}

// MetricsRecorder counts engine operations and tracks the live queue size.
type MetricsRecorder interface {
	RecordOperation(op, outcome string)
	SetQueueSize(n int64)
}

// Service is the scheduling engine. It owns the ordering index outright:
// nothing else constructs, rebuilds, or queries it, and every mutating
// operation here finishes with a full rebuild so readers never observe an
// index missing a change that was already persisted.
type Service struct {
	patients patient.Repository
	staff    staff.Repository
	index    *Index
	weights  Weights
	slotMin  int
	logger   zerolog.Logger
	events   EventPublisher
	metrics  MetricsRecorder

	// locks serializes mutations per patient/staff record. Storage calls are
	// plain read-modify-write, so without this two interleaved requests for
	// the same record could both observe the pre-update state. Operations
	// take the patient lock first and nest the staff lock inside once the
	// target staff id is known; the staff record is re-read under its lock.
	locks recordLocks
}

// Option configures optional collaborators on the Service.
type Option func(*Service)

func WithWeights(w Weights) Option         { return func(s *Service) { s.weights = w } }
func WithFallbackSlotMin(m int) Option     { return func(s *Service) { s.slotMin = m } }
func WithEvents(p EventPublisher) Option   { return func(s *Service) { s.events = p } }
func WithMetrics(m MetricsRecorder) Option { return func(s *Service) { s.metrics = m } }

func NewService(patients patient.Repository, st staff.Repository, index *Index, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		patients: patients,
		staff:    st,
		index:    index,
		weights:  DefaultWeights(),
		slotMin:  DefaultFallbackSlotMin,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// recordLocks hands out one mutex per record id. Multi-id acquisitions lock
// in sorted id order; nested acquisitions always go patient first, staff
// second, so no two operations can deadlock against each other.
type recordLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (r *recordLocks) get(id uuid.UUID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locks == nil {
		r.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	m, ok := r.locks[id]
	if !ok {
		m = &sync.Mutex{}
		r.locks[id] = m
	}
	return m
}

func (r *recordLocks) lock(ids ...uuid.UUID) func() {
	sorted := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, id := range sorted {
		m := r.get(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (s *Service) record(op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordOperation(op, outcome)
}

func (s *Service) publish(ctx context.Context, eventType string, patientID uuid.UUID) {
	if s.events != nil {
		s.events.PublishQueueEvent(ctx, eventType, patientID)
	}
}

// rebuildIndex replaces the index contents from durable state: exactly the
// patients whose status is waiting or scheduled. Every mutating operation
// ends here before returning.
func (s *Service) rebuildIndex(ctx context.Context) error {
	active, err := s.patients.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active patients: %w", err)
	}
	entries := make([]Entry, 0, len(active))
	for _, p := range active {
		entered := p.ArrivalAt
		if p.QueueEnteredAt != nil {
			entered = *p.QueueEnteredAt
		}
		entries = append(entries, Entry{PatientID: p.ID, Score: p.Score, EnteredAt: entered})
	}
	s.index.Rebuild(entries)
	if s.metrics != nil {
		s.metrics.SetQueueSize(int64(s.index.Size()))
	}
	return nil
}

// WarmIndex populates the in-memory ordering index from durable state.
// Called once at startup before the server accepts traffic.
func (s *Service) WarmIndex(ctx context.Context) error {
	return s.rebuildIndex(ctx)
}

func (s *Service) getPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: patient %s", ErrNotFound, id)
	}
	return p, nil
}

func (s *Service) getStaff(ctx context.Context, id uuid.UUID) (*staff.Staff, error) {
	st, err := s.staff.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: staff %s", ErrNotFound, id)
	}
	return st, nil
}

// CreatePatient registers a new patient record. The default entry point
// creates the record inactive; the admin fast-path may pass status waiting to
// drop the patient straight into the queue.
func (s *Service) CreatePatient(ctx context.Context, p *patient.Patient) (err error) {
	defer func() { s.record("create_patient", err) }()

	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := validateIntake(p); err != nil {
		return err
	}
	if p.Status == "" {
		p.Status = patient.StatusInactive
	}
	if p.Status != patient.StatusInactive && p.Status != patient.StatusWaiting {
		return fmt.Errorf("%w: patients are created inactive or waiting, not %q", ErrValidation, p.Status)
	}

	now := time.Now()
	if p.ArrivalAt.IsZero() {
		p.ArrivalAt = now
	}
	if p.Status == patient.StatusWaiting {
		p.QueueEnteredAt = &now
		if p.VisitType == patient.VisitEmergency {
			p.PriorityLevel = 5
		}
		p.Score = s.weights.Score(p, now)
	}
	if err = s.patients.Create(ctx, p); err != nil {
		return err
	}
	if p.Status == patient.StatusWaiting {
		if err = s.rebuildIndex(ctx); err != nil {
			return err
		}
	}
	s.publish(ctx, "patient.created", p.ID)
	return nil
}

func validateIntake(p *patient.Patient) error {
	if p.VisitType == "" {
		p.VisitType = patient.VisitRegular
	}
	if !patient.ValidVisitType(p.VisitType) {
		return fmt.Errorf("%w: unknown visit type %q", ErrValidation, p.VisitType)
	}
	if p.PriorityLevel < 1 || p.PriorityLevel > 5 {
		return fmt.Errorf("%w: priority level %d outside 1-5", ErrValidation, p.PriorityLevel)
	}
	if p.EstimatedServiceMin <= 0 {
		return fmt.Errorf("%w: estimated service minutes must be positive", ErrValidation)
	}
	return nil
}

// BookRequest carries the queue-entry parameters for an existing patient.
type BookRequest struct {
	VisitType        patient.VisitType `json:"visit_type"`
	PriorityLevel    int               `json:"priority_level"`
	PreferredStaffID *uuid.UUID        `json:"preferred_staff_id,omitempty"`
}

// BookQueueEntry moves a patient into the live queue. Emergencies are forced
// to the top priority level. If a preferred staff member is named, assignment
// is attempted immediately; on failure an emergency falls back to automatic
// selection while anyone else stays waiting with a logged warning.
func (s *Service) BookQueueEntry(ctx context.Context, patientID uuid.UUID, req BookRequest) (p *patient.Patient, err error) {
	defer func() { s.record("book", err) }()

	unlock := s.locks.lock(patientID)
	defer unlock()

	p, err = s.getPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.Active() || p.Status == patient.StatusServing || p.Status == patient.StatusBooked {
		return nil, fmt.Errorf("%w: patient %s is already active (%s)", ErrInvalidTransition, p.ID, p.Status)
	}
	if !patient.CanTransition(patient.ActionBook, p.Status) {
		return nil, fmt.Errorf("%w: cannot book from %s", ErrInvalidTransition, p.Status)
	}

	if req.VisitType != "" {
		p.VisitType = req.VisitType
	}
	if req.PriorityLevel != 0 {
		p.PriorityLevel = req.PriorityLevel
	}
	if p.VisitType == patient.VisitEmergency {
		p.PriorityLevel = 5
	}
	if req.PreferredStaffID != nil {
		p.PreferredStaffID = req.PreferredStaffID
	}
	if err = validateIntake(p); err != nil {
		return nil, err
	}

	now := time.Now()
	p.ArrivalAt = now
	p.QueueEnteredAt = &now
	p.Status = patient.StatusWaiting
	p.AssignedStaffID = nil
	p.Score = s.weights.Score(p, now)
	if err = s.patients.Update(ctx, p); err != nil {
		return nil, err
	}

	if p.PreferredStaffID != nil {
		if assignErr := s.assignLocked(ctx, p, *p.PreferredStaffID); assignErr != nil {
			if p.VisitType == patient.VisitEmergency {
				s.logger.Warn().Err(assignErr).
					Str("patient_id", p.ID.String()).
					Str("preferred_staff_id", p.PreferredStaffID.String()).
					Msg("preferred staff assignment failed for emergency, falling back to auto selection")
				if autoErr := s.scheduleLocked(ctx, p, now); autoErr != nil {
					s.logger.Warn().Err(autoErr).
						Str("patient_id", p.ID.String()).
						Msg("emergency auto-assignment fallback failed, patient stays waiting")
				}
			} else {
				s.logger.Warn().Err(assignErr).
					Str("patient_id", p.ID.String()).
					Str("preferred_staff_id", p.PreferredStaffID.String()).
					Msg("preferred staff assignment failed, patient stays unassigned")
			}
		}
	}

	if err = s.rebuildIndex(ctx); err != nil {
		return nil, err
	}
	s.publish(ctx, "patient.booked", p.ID)
	return p, nil
}

// ScheduleAuto assigns a waiting patient to the best eligible staff member.
func (s *Service) ScheduleAuto(ctx context.Context, patientID uuid.UUID) (p *patient.Patient, err error) {
	defer func() { s.record("schedule_auto", err) }()

	unlock := s.locks.lock(patientID)
	defer unlock()

	p, err = s.getPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.Terminal() {
		return nil, fmt.Errorf("%w: patient %s is %s", ErrInvalidTransition, p.ID, p.Status)
	}
	if !patient.CanTransition(patient.ActionSchedule, p.Status) {
		return nil, fmt.Errorf("%w: cannot schedule from %s", ErrInvalidTransition, p.Status)
	}

	if err = s.scheduleLocked(ctx, p, time.Now()); err != nil {
		return nil, err
	}
	if err = s.rebuildIndex(ctx); err != nil {
		return nil, err
	}
	s.publish(ctx, "patient.scheduled", p.ID)
	return p, nil
}

// scheduleLocked runs selection and assignment for a patient whose lock is
// already held.
func (s *Service) scheduleLocked(ctx context.Context, p *patient.Patient, now time.Time) error {
	candidates, err := s.staff.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active staff: %w", err)
	}
	sel := FindBestStaff(candidates, now)
	if sel == nil {
		return ErrNoEligibleStaff
	}
	if sel.OutsideWindow {
		s.logger.Warn().
			Str("staff_id", sel.Staff.ID.String()).
			Str("patient_id", p.ID.String()).
			Msg("no staff inside shift window, assigning lowest-workload active staff")
	}
	return s.attach(ctx, p, sel.Staff.ID)
}

// AssignStaff manually assigns a patient to an explicit staff member,
// detaching them from any current staff queue first.
func (s *Service) AssignStaff(ctx context.Context, patientID, staffID uuid.UUID) (p *patient.Patient, err error) {
	defer func() { s.record("assign_staff", err) }()

	unlock := s.locks.lock(patientID)
	defer unlock()

	p, err = s.getPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !patient.CanTransition(patient.ActionAssign, p.Status) {
		return nil, fmt.Errorf("%w: cannot assign from %s", ErrInvalidTransition, p.Status)
	}
	if err = s.assignLocked(ctx, p, staffID); err != nil {
		return nil, err
	}
	if err = s.rebuildIndex(ctx); err != nil {
		return nil, err
	}
	s.publish(ctx, "patient.assigned", p.ID)
	return p, nil
}

func (s *Service) assignLocked(ctx context.Context, p *patient.Patient, staffID uuid.UUID) error {
	if _, err := s.getStaff(ctx, staffID); err != nil {
		return err
	}
	if err := s.detach(ctx, p); err != nil {
		return err
	}
	return s.attach(ctx, p, staffID)
}

// attach appends the patient to the staff queue (duplicate-guarded), updates
// the workload, and marks the patient scheduled. The staff record is
// re-read under its lock so concurrent assignments to the same staff member
// cannot lose each other's enqueue.
func (s *Service) attach(ctx context.Context, p *patient.Patient, staffID uuid.UUID) error {
	unlockStaff := s.locks.lock(staffID)
	defer unlockStaff()

	st, err := s.getStaff(ctx, staffID)
	if err != nil {
		return err
	}
	st.Enqueue(p.ID, p.EstimatedServiceMin)
	if err := s.staff.Update(ctx, st); err != nil {
		return fmt.Errorf("update staff %s: %w", st.ID, err)
	}
	p.AssignedStaffID = &st.ID
	p.Status = patient.StatusScheduled
	if err := s.patients.Update(ctx, p); err != nil {
		return fmt.Errorf("update patient %s: %w", p.ID, err)
	}
	return nil
}

// detach removes the patient from their current staff queue, if any.
// Idempotent: an already-detached patient is a no-op.
func (s *Service) detach(ctx context.Context, p *patient.Patient) error {
	if p.AssignedStaffID == nil {
		return nil
	}
	staffID := *p.AssignedStaffID
	unlockStaff := s.locks.lock(staffID)
	defer unlockStaff()

	st, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		// The staff record is gone; clearing the dangling reference is all
		// that is left to do.
		p.AssignedStaffID = nil
		return nil
	}
	st.Dequeue(p.ID, p.EstimatedServiceMin)
	if err := s.staff.Update(ctx, st); err != nil {
		return fmt.Errorf("update staff %s: %w", st.ID, err)
	}
	p.AssignedStaffID = nil
	return nil
}

// MarkServing starts the consult for a scheduled patient.
func (s *Service) MarkServing(ctx context.Context, patientID uuid.UUID) (*patient.Patient, error) {
	return s.transition(ctx, patientID, "serve", patient.ActionServe, patient.StatusServing, false)
}

// MarkCompleted finishes the consult and releases the staff queue slot.
func (s *Service) MarkCompleted(ctx context.Context, patientID uuid.UUID) (*patient.Patient, error) {
	return s.transition(ctx, patientID, "complete", patient.ActionComplete, patient.StatusCompleted, true)
}

// MarkCancelled cancels a queued patient and releases the staff queue slot.
func (s *Service) MarkCancelled(ctx context.Context, patientID uuid.UUID) (*patient.Patient, error) {
	return s.transition(ctx, patientID, "cancel", patient.ActionCancel, patient.StatusCancelled, true)
}

// MarkNoShow records a no-show and releases the staff queue slot.
func (s *Service) MarkNoShow(ctx context.Context, patientID uuid.UUID) (*patient.Patient, error) {
	return s.transition(ctx, patientID, "no_show", patient.ActionNoShow, patient.StatusNoShow, true)
}

func (s *Service) transition(ctx context.Context, patientID uuid.UUID, op string, action patient.Action, to patient.Status, release bool) (p *patient.Patient, err error) {
	defer func() { s.record(op, err) }()

	unlock := s.locks.lock(patientID)
	defer unlock()

	p, err = s.getPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !patient.CanTransition(action, p.Status) {
		return nil, fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, p.Status)
	}

	if release && p.AssignedStaffID != nil {
		// The patient has not gone terminal yet, so a failed release can be
		// retried by repeating the transition.
		if err = s.releaseSlot(ctx, p, *p.AssignedStaffID); err != nil {
			return nil, err
		}
	}

	p.Status = to
	if err = s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	if err = s.rebuildIndex(ctx); err != nil {
		return nil, err
	}
	s.publish(ctx, "patient."+string(to), p.ID)
	return p, nil
}

// releaseSlot frees the patient's staff queue slot without clearing the
// assignment reference, which terminal records keep for history.
func (s *Service) releaseSlot(ctx context.Context, p *patient.Patient, staffID uuid.UUID) error {
	unlockStaff := s.locks.lock(staffID)
	defer unlockStaff()

	st, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		return fmt.Errorf("read staff %s: %w", staffID, err)
	}
	st.Dequeue(p.ID, p.EstimatedServiceMin)
	if err := s.staff.Update(ctx, st); err != nil {
		return fmt.Errorf("update staff %s: %w", st.ID, err)
	}
	return nil
}

// ReassignToPool detaches a patient from their staff member and returns them
// to the waiting pool with a fresh score. Calling it on an already-unassigned
// waiting patient is a harmless repeat of the same state.
func (s *Service) ReassignToPool(ctx context.Context, patientID uuid.UUID) (p *patient.Patient, err error) {
	defer func() { s.record("reassign", err) }()

	unlock := s.locks.lock(patientID)
	defer unlock()

	p, err = s.getPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !patient.CanTransition(patient.ActionReassign, p.Status) {
		return nil, fmt.Errorf("%w: cannot reassign from %s", ErrInvalidTransition, p.Status)
	}

	if err = s.detach(ctx, p); err != nil {
		return nil, err
	}
	now := time.Now()
	p.Status = patient.StatusWaiting
	if p.Score != EmergencyScore {
		p.Score = s.weights.Score(p, now)
	}
	if err = s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	if err = s.rebuildIndex(ctx); err != nil {
		return nil, err
	}
	s.publish(ctx, "patient.reassigned", p.ID)
	return p, nil
}

// EmergencyOverride forces a patient to the top of the queue: emergency visit
// type, top priority level, sentinel score. Staff assignment is left as is.
func (s *Service) EmergencyOverride(ctx context.Context, patientID uuid.UUID) (p *patient.Patient, err error) {
	defer func() { s.record("override", err) }()

	unlock := s.locks.lock(patientID)
	defer unlock()

	p, err = s.getPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.Terminal() {
		return nil, fmt.Errorf("%w: patient %s is %s", ErrInvalidTransition, p.ID, p.Status)
	}
	if !patient.CanTransition(patient.ActionOverride, p.Status) {
		return nil, fmt.Errorf("%w: cannot override from %s", ErrInvalidTransition, p.Status)
	}

	now := time.Now()
	if p.ArrivalAt.IsZero() {
		p.ArrivalAt = now
	}
	if p.QueueEnteredAt == nil {
		p.QueueEnteredAt = &now
	}
	p.VisitType = patient.VisitEmergency
	p.PriorityLevel = 5
	p.Score = EmergencyScore
	p.Status = patient.StatusWaiting
	if err = s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	if err = s.rebuildIndex(ctx); err != nil {
		return nil, err
	}
	s.publish(ctx, "patient.override", p.ID)
	return p, nil
}

// OptimizeQueue recomputes scores for every active patient and rebuilds the
// index, compensating for the staleness that accumulates between individual
// mutations as real time advances. Sentinel emergency scores are preserved so
// an override keeps its rank until the patient leaves the queue.
func (s *Service) OptimizeQueue(ctx context.Context) (n int, err error) {
	defer func() { s.record("optimize", err) }()

	active, err := s.patients.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active patients: %w", err)
	}
	now := time.Now()
	for _, p := range active {
		if p.Score == EmergencyScore {
			continue
		}
		p.Score = s.weights.Score(p, now)
		if err = s.patients.Update(ctx, p); err != nil {
			return 0, fmt.Errorf("update patient %s: %w", p.ID, err)
		}
	}
	if err = s.rebuildIndex(ctx); err != nil {
		return 0, err
	}
	s.publish(ctx, "queue.optimized", uuid.Nil)
	return len(active), nil
}

// DeleteStaff removes a staff member after redistributing every patient in
// their queue back to the waiting pool. If any patient update fails, already
// redistributed patients are restored so the caller never sees a half-emptied
// staff member deleted.
func (s *Service) DeleteStaff(ctx context.Context, staffID uuid.UUID) (err error) {
	defer func() { s.record("delete_staff", err) }()

	unlock := s.locks.lock(staffID)
	defer unlock()

	st, err := s.getStaff(ctx, staffID)
	if err != nil {
		return err
	}
	queued, err := s.patients.ListByAssignedStaff(ctx, staffID)
	if err != nil {
		return fmt.Errorf("list patients for staff %s: %w", staffID, err)
	}

	now := time.Now()
	var done []*patient.Patient
	var prior []patient.Patient
	rollback := func() {
		for i, d := range done {
			restored := prior[i]
			if rbErr := s.patients.Update(ctx, &restored); rbErr != nil {
				s.logger.Error().Err(rbErr).
					Str("patient_id", d.ID.String()).
					Msg("rollback of staff deletion failed")
			}
		}
	}
	for _, p := range queued {
		// Terminal patients keep the assignment reference for history and
		// must never re-enter the queue.
		if p.Terminal() {
			continue
		}
		snapshot := *p
		p.AssignedStaffID = nil
		p.Status = patient.StatusWaiting
		if p.Score != EmergencyScore {
			p.Score = s.weights.Score(p, now)
		}
		if err = s.patients.Update(ctx, p); err != nil {
			rollback()
			return fmt.Errorf("redistribute patient %s: %w", p.ID, err)
		}
		done = append(done, p)
		prior = append(prior, snapshot)
	}

	if err = s.staff.Delete(ctx, st.ID); err != nil {
		// The staff record survived, so the redistributed patients go back to
		// its queue too.
		rollback()
		return fmt.Errorf("delete staff %s: %w", st.ID, err)
	}
	if err = s.rebuildIndex(ctx); err != nil {
		return err
	}
	s.publish(ctx, "staff.deleted", uuid.Nil)
	return nil
}

// PatientStatus reports the patient record with its derived queue position
// and wait estimate. Patients outside the active queue report no position and
// zero wait.
func (s *Service) PatientStatus(ctx context.Context, patientID uuid.UUID) (*StatusReport, error) {
	p, err := s.getPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	report := &StatusReport{Patient: p}
	if !p.Active() {
		return report, nil
	}

	rank, ok := s.index.Position(p.ID)
	if !ok {
		return report, nil
	}
	report.QueuePosition = &rank

	now := time.Now()
	if p.AssignedStaffID != nil {
		st, err := s.staff.GetByID(ctx, *p.AssignedStaffID)
		if err == nil {
			ordered, err := s.staffQueuePatients(ctx, st)
			if err != nil {
				return nil, err
			}
			report.EstimatedWaitMin = estimateAssignedWait(p, ordered)
			return report, nil
		}
	}
	report.EstimatedWaitMin = estimateUnassignedWait(p, rank, s.slotMin, now)
	return report, nil
}

// StaffQueueReport is the answer to a staff queue query.
type StaffQueueReport struct {
	Staff    *staff.Staff       `json:"staff"`
	Patients []*patient.Patient `json:"patients"`
}

// StaffQueueStatus returns the staff record and its queued patients in queue
// order.
func (s *Service) StaffQueueStatus(ctx context.Context, staffID uuid.UUID) (*StaffQueueReport, error) {
	st, err := s.getStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	ordered, err := s.staffQueuePatients(ctx, st)
	if err != nil {
		return nil, err
	}
	return &StaffQueueReport{Staff: st, Patients: ordered}, nil
}

// staffQueuePatients resolves the staff queue id list into patient records,
// preserving queue order and skipping ids that no longer resolve.
func (s *Service) staffQueuePatients(ctx context.Context, st *staff.Staff) ([]*patient.Patient, error) {
	assigned, err := s.patients.ListByAssignedStaff(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("list patients for staff %s: %w", st.ID, err)
	}
	byID := make(map[uuid.UUID]*patient.Patient, len(assigned))
	for _, p := range assigned {
		byID[p.ID] = p
	}
	ordered := make([]*patient.Patient, 0, len(st.QueueIDs))
	for _, id := range st.QueueIDs {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// Stats is the aggregate dashboard snapshot.
type Stats struct {
	TotalPatients    int                    `json:"total_patients"`
	TotalStaff       int                    `json:"total_staff"`
	ActiveStaff      int                    `json:"active_staff"`
	StatusCounts     map[patient.Status]int `json:"status_counts"`
	TotalWorkloadMin int                    `json:"total_workload_min"`
	AvgEstimatedWait float64                `json:"avg_estimated_wait_min"`
	IndexSize        int                    `json:"index_size"`
}

// AggregateStats collects queue-wide figures for dashboards.
func (s *Service) AggregateStats(ctx context.Context) (*Stats, error) {
	totalPatients, err := s.patients.Count(ctx)
	if err != nil {
		return nil, err
	}
	statusCounts, err := s.patients.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	totalStaff, err := s.staff.Count(ctx)
	if err != nil {
		return nil, err
	}
	activeStaff, err := s.staff.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	allStaff, _, err := s.staff.List(ctx, totalStaff, 0)
	if err != nil {
		return nil, err
	}
	workload := 0
	for _, st := range allStaff {
		workload += st.WorkloadMin
	}

	active, err := s.patients.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var waitSum float64
	for _, p := range active {
		report, err := s.PatientStatus(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		waitSum += float64(report.EstimatedWaitMin)
	}
	avgWait := 0.0
	if len(active) > 0 {
		avgWait = waitSum / float64(len(active))
	}

	return &Stats{
		TotalPatients:    totalPatients,
		TotalStaff:       totalStaff,
		ActiveStaff:      activeStaff,
		StatusCounts:     statusCounts,
		TotalWorkloadMin: workload,
		AvgEstimatedWait: avgWait,
		IndexSize:        s.index.Size(),
	}, nil
}
