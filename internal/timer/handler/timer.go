package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/shift-timer/internal/reconcile"
	"github.com/medflow/shift-timer/internal/timer/service"
	"github.com/medflow/shift-timer/pkg/errors"
	"github.com/medflow/shift-timer/pkg/httputil"
	"github.com/medflow/shift-timer/pkg/logger"
	"github.com/medflow/shift-timer/pkg/session"
)

// TimerHandler handles timer endpoints
type TimerHandler struct {
	service         *service.TimerService
	defaultTimezone string
	logger          *logger.Logger
}

// NewTimerHandler creates a new timer handler
func NewTimerHandler(svc *service.TimerService, defaultTimezone string, log *logger.Logger) *TimerHandler {
	return &TimerHandler{
		service:         svc,
		defaultTimezone: defaultTimezone,
		logger:          log,
	}
}

// Routes registers the timer endpoints on r
func (h *TimerHandler) Routes(r chi.Router) {
	r.Route("/users/{id}", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Post("/sessions", h.OpenSession)
		r.Put("/sessions/timezone", h.ChangeTimezone)
		r.Delete("/sessions", h.CloseSession)
		r.Post("/refresh", h.Refresh)
		r.Get("/hours", h.GetHours)
		r.Get("/hours/export", h.ExportHours)
	})
}

// userParam reads the {id} parameter and checks the caller may see that user
func (h *TimerHandler) userParam(r *http.Request) (int, error) {
	userID, err := httputil.IntParam(r, "id")
	if err != nil {
		return 0, err
	}

	caller, err := session.FromContext(r.Context())
	if err != nil {
		return 0, errors.Unauthorized("user not authenticated")
	}
	if !caller.CanView(userID) {
		return 0, errors.Forbidden("only admins may view another user's timer")
	}
	return userID, nil
}

// GetStatus returns the timer snapshot, opening a session if needed
// GET /users/{id}/status?tz=
func (h *TimerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	status, err := h.service.Status(r.Context(), userID, r.URL.Query().Get("tz"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, status)
}

// OpenSessionRequest is the body of POST /users/{id}/sessions
type OpenSessionRequest struct {
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
}

// OpenSession starts a timer session
// POST /users/{id}/sessions
func (h *TimerHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req OpenSessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	sess, err := h.service.Open(r.Context(), userID, req.Timezone)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, sess.Status())
}

// ChangeTimezoneRequest is the body of PUT /users/{id}/sessions/timezone
type ChangeTimezoneRequest struct {
	From string `json:"from" validate:"required,timezone"`
	To   string `json:"to" validate:"required,timezone,nefield=From"`
}

// ChangeTimezone moves a session to another display zone
// PUT /users/{id}/sessions/timezone
func (h *TimerHandler) ChangeTimezone(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req ChangeTimezoneRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	sess, err := h.service.SetTimezone(r.Context(), userID, req.From, req.To)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().
		Int("user_id", userID).
		Str("from", req.From).
		Str("to", req.To).
		Msg("timer timezone changed")

	httputil.JSON(w, http.StatusOK, sess.Status())
}

// CloseSession tears a session down
// DELETE /users/{id}/sessions?tz=
func (h *TimerHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if !h.service.Close(userID, r.URL.Query().Get("tz")) {
		httputil.Error(w, errors.NotFound("timer session"))
		return
	}

	httputil.NoContent(w)
}

// Refresh refetches the entries of the user's sessions
// POST /users/{id}/refresh
func (h *TimerHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	n, err := h.service.RefreshEntries(r.Context(), userID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int{"refreshed": n})
}

// dateRange reads ?start= and ?end=, each defaulting to today
func dateRange(r *http.Request) (start, end time.Time, err error) {
	today, _ := reconcile.EntryRange(time.Now(), reconcile.RangeDay)

	start, ok, err := httputil.DateQuery(r, "start")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !ok {
		start = today
	}

	end, ok, err = httputil.DateQuery(r, "end")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !ok {
		end = today
	}

	return start.UTC(), end.UTC(), nil
}

// GetHours totals worked hours over a date range
// GET /users/{id}/hours?start=&end=
func (h *TimerHandler) GetHours(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	start, end, err := dateRange(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	report, err := h.service.Hours(r.Context(), userID, start, end)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// ExportHours serves the hours report as a spreadsheet
// GET /users/{id}/hours/export?start=&end=&tz=
func (h *TimerHandler) ExportHours(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	loc, err := reconcile.LoadZone(r.URL.Query().Get("tz"), h.defaultTimezone)
	if err != nil {
		httputil.Error(w, errors.Validation(map[string]string{"tz": "unknown timezone"}))
		return
	}

	start, end, err := dateRange(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	report, err := h.service.Hours(r.Context(), userID, start, end)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var buf bytes.Buffer
	if err := service.WriteHoursXLSX(&buf, report, loc); err != nil {
		h.logger.Error().Err(err).Int("user_id", userID).Msg("failed to generate hours report")
		httputil.Error(w, errors.Internal("failed to generate report"))
		return
	}

	filename := fmt.Sprintf("hours-%d-%s-%s.xlsx", userID, start.Format(httputil.DateLayout), end.Format(httputil.DateLayout))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.Write(buf.Bytes())
}
