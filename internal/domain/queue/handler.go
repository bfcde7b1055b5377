package queue

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicq/clinicq/internal/domain/patient"
	"github.com/clinicq/clinicq/internal/domain/staff"
	"github.com/clinicq/clinicq/internal/platform/auth"
	"github.com/clinicq/clinicq/pkg/pagination"
)

type Handler struct {
	svc      *Service
	patients patient.Repository
	staff    staff.Repository
}

func NewHandler(svc *Service, patients patient.Repository, st staff.Repository) *Handler {
	return &Handler{svc: svc, patients: patients, staff: st}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "physician", "nurse", "registrar"))
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/:id/status", h.PatientStatus)
	read.GET("/staff", h.ListStaff)
	read.GET("/staff/:id/queue", h.StaffQueueStatus)
	read.GET("/queue/stats", h.Stats)

	write := api.Group("", auth.RequireRole("admin", "physician", "nurse", "registrar"))
	write.POST("/patients", h.CreatePatient)
	write.POST("/patients/:id/book", h.Book)
	write.POST("/patients/:id/schedule", h.ScheduleAuto)
	write.POST("/patients/:id/assign", h.AssignStaff)
	write.POST("/patients/:id/serve", h.MarkServing)
	write.POST("/patients/:id/complete", h.MarkCompleted)
	write.POST("/patients/:id/no-show", h.MarkNoShow)
	write.POST("/patients/:id/cancel", h.MarkCancelled)
	write.POST("/patients/:id/reassign", h.ReassignToPool)
	write.POST("/patients/:id/override", h.EmergencyOverride)
	write.POST("/queue/optimize", h.Optimize)
	write.POST("/staff", h.CreateStaff)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.DELETE("/staff/:id", h.DeleteStaff)
}

// httpError maps engine error kinds to response statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNoEligibleStaff):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p patient.Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	statuses := []patient.Status{
		patient.StatusInactive, patient.StatusWaiting, patient.StatusScheduled,
		patient.StatusServing, patient.StatusCompleted, patient.StatusCancelled,
		patient.StatusNoShow, patient.StatusBooked, patient.StatusFollowUp,
	}
	if q := c.QueryParam("status"); q != "" {
		st := patient.Status(q)
		if !patient.ValidStatus(st) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		statuses = []patient.Status{st}
	}
	items, total, err := h.patients.ListByStatus(c.Request().Context(), statuses, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Book(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.BookQueueEntry(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ScheduleAuto(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.ScheduleAuto(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) AssignStaff(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req struct {
		StaffID uuid.UUID `json:"staff_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.StaffID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "staff_id is required")
	}
	p, err := h.svc.AssignStaff(c.Request().Context(), id, req.StaffID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) MarkServing(c echo.Context) error   { return h.mark(c, h.svc.MarkServing) }
func (h *Handler) MarkCompleted(c echo.Context) error { return h.mark(c, h.svc.MarkCompleted) }
func (h *Handler) MarkNoShow(c echo.Context) error    { return h.mark(c, h.svc.MarkNoShow) }
func (h *Handler) MarkCancelled(c echo.Context) error { return h.mark(c, h.svc.MarkCancelled) }

func (h *Handler) ReassignToPool(c echo.Context) error {
	return h.mark(c, h.svc.ReassignToPool)
}

func (h *Handler) EmergencyOverride(c echo.Context) error {
	return h.mark(c, h.svc.EmergencyOverride)
}

func (h *Handler) mark(c echo.Context, op func(ctx context.Context, id uuid.UUID) (*patient.Patient, error)) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := op(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Optimize(c echo.Context) error {
	n, err := h.svc.OptimizeQueue(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"rescored": n})
}

func (h *Handler) PatientStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	report, err := h.svc.PatientStatus(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) CreateStaff(c echo.Context) error {
	var st staff.Staff
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if st.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if st.ShiftStart == "" || st.ShiftEnd == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "shift_start and shift_end are required")
	}
	if err := st.ValidShift(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st.QueueIDs = nil
	st.WorkloadMin = 0
	if err := h.staff.Create(c.Request().Context(), &st); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *Handler) ListStaff(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.staff.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) StaffQueueStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	report, err := h.svc.StaffQueueStatus(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) DeleteStaff(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteStaff(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.svc.AggregateStats(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}
