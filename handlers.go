package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"clinic-queue/internal/announce"
	"clinic-queue/internal/queue"
	"clinic-queue/internal/remote"
)

type Handlers struct {
	queueService        *QueueService
	callService         *CallService
	notificationService *NotificationService
	display             *remote.Display
	announcer           *announce.Announcer
	pubNub              Pubnub
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, queue.ErrCounterNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrCounterInactive),
		errors.Is(err, queue.ErrNothingToRepeat),
		errors.Is(err, queue.ErrInvalidTicket):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail answers with the status err maps to. Rejected operations are routine
// for the operator UI and only logged at info.
func fail(c echo.Context, op string, err error) error {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error(op, "error", err)
	} else {
		slog.Info(op+" rejected", "reason", err)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

func (h *Handlers) ListCounters(c echo.Context) error {
	return c.JSON(http.StatusOK, h.queueService.Counters())
}

func (h *Handlers) GetCounter(c echo.Context) error {
	counterID := c.Param("id")

	counter, err := h.queueService.Counter(counterID)
	if err != nil {
		return fail(c, fmt.Sprintf("h.queueService.Counter(%v)", counterID), err)
	}

	return c.JSON(http.StatusOK, counter)
}

func (h *Handlers) call(c echo.Context, action queue.ActionKind, ticket int) error {
	counterID := c.Param("id")
	ctx := c.Request().Context()

	rec, err := h.callService.Call(ctx, counterID, action, ticket)
	if err != nil {
		return fail(c, fmt.Sprintf("h.callService.Call(counter: %v, action: %v)", counterID, action), err)
	}

	counter, err := h.queueService.Counter(counterID)
	if err != nil {
		return fail(c, fmt.Sprintf("h.queueService.Counter(%v)", counterID), err)
	}

	return c.JSON(http.StatusOK, CallResponse{Call: rec, Counter: counter})
}

func (h *Handlers) Next(c echo.Context) error {
	return h.call(c, queue.ActionAdvance, 0)
}

func (h *Handlers) Previous(c echo.Context) error {
	return h.call(c, queue.ActionPrevious, 0)
}

func (h *Handlers) Repeat(c echo.Context) error {
	return h.call(c, queue.ActionRepeat, 0)
}

func (h *Handlers) Specific(c echo.Context) error {
	var req SpecificRequest
	if err := c.Bind(&req); err != nil || req.TicketNumber == nil {
		return badRequest(c, "ticket_number is required")
	}

	return h.call(c, queue.ActionSpecific, *req.TicketNumber)
}

func (h *Handlers) counterOp(c echo.Context, name string, op func(ctx context.Context, id string) (queue.Counter, error)) error {
	counterID := c.Param("id")

	counter, err := op(c.Request().Context(), counterID)
	if err != nil {
		return fail(c, fmt.Sprintf("h.queueService.%v(%v)", name, counterID), err)
	}

	return c.JSON(http.StatusOK, counter)
}

func (h *Handlers) Reset(c echo.Context) error {
	return h.counterOp(c, "Reset", h.queueService.Reset)
}

func (h *Handlers) Pause(c echo.Context) error {
	return h.counterOp(c, "Pause", h.queueService.Pause)
}

func (h *Handlers) Resume(c echo.Context) error {
	return h.counterOp(c, "Resume", h.queueService.Resume)
}

func (h *Handlers) Enqueue(c echo.Context) error {
	var req EnqueueRequest
	if err := c.Bind(&req); err != nil || req.Number == nil {
		return badRequest(c, "number is required")
	}

	return h.counterOp(c, "Enqueue", func(ctx context.Context, id string) (queue.Counter, error) {
		return h.queueService.Enqueue(ctx, id, *req.Number)
	})
}

func (h *Handlers) Dequeue(c echo.Context) error {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		return badRequest(c, "number must be an integer")
	}

	return h.counterOp(c, "Dequeue", func(ctx context.Context, id string) (queue.Counter, error) {
		return h.queueService.Dequeue(ctx, id, number)
	})
}

func (h *Handlers) CounterStats(c echo.Context) error {
	counterID := c.Param("id")

	stats, err := h.queueService.CounterStats(counterID)
	if err != nil {
		return fail(c, fmt.Sprintf("h.queueService.CounterStats(%v)", counterID), err)
	}

	return c.JSON(http.StatusOK, stats)
}

func (h *Handlers) CounterHistory(c echo.Context) error {
	limit, err := queryInt(c, "limit", 10)
	if err != nil {
		return badRequest(c, err.Error())
	}

	counterID := c.Param("id")
	if _, err := h.queueService.Counter(counterID); err != nil {
		return fail(c, fmt.Sprintf("h.queueService.Counter(%v)", counterID), err)
	}

	return c.JSON(http.StatusOK, HistoryResponse{Events: h.queueService.CounterHistory(counterID, limit)})
}

func (h *Handlers) EstimatedWait(c echo.Context) error {
	counterID := c.Param("id")
	ticket, err := strconv.Atoi(c.QueryParam("ticket"))
	if err != nil {
		return badRequest(c, "ticket must be an integer")
	}

	wait, err := h.queueService.EstimatedWait(counterID, ticket)
	if err != nil {
		return fail(c, fmt.Sprintf("h.queueService.EstimatedWait(%v)", counterID), err)
	}

	return c.JSON(http.StatusOK, WaitResponse{
		CounterID:            counterID,
		TicketNumber:         ticket,
		EstimatedWaitMinutes: wait,
	})
}

func (h *Handlers) OverallStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.queueService.OverallStats())
}

func (h *Handlers) History(c echo.Context) error {
	limit, err := queryInt(c, "limit", 10)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.JSON(http.StatusOK, HistoryResponse{Events: h.queueService.History(limit)})
}

func (h *Handlers) LatestCall(c echo.Context) error {
	rec, ok, err := h.callService.LatestCall(c.Request().Context())
	if err != nil {
		return fail(c, "h.callService.LatestCall()", err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no calls yet"})
	}

	return c.JSON(http.StatusOK, rec)
}

func (h *Handlers) AnnouncerStatus(c echo.Context) error {
	if h.announcer == nil {
		return c.JSON(http.StatusOK, AnnouncerStatus{})
	}
	return c.JSON(http.StatusOK, AnnouncerStatus{
		Enabled: true,
		Busy:    h.announcer.Busy(),
		Rate:    h.announcer.Rate(),
	})
}

func (h *Handlers) StopAnnouncement(c echo.Context) error {
	if h.announcer == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "announcer is disabled"})
	}

	h.announcer.Stop()
	return c.JSON(http.StatusOK, "success")
}

func (h *Handlers) SetRate(c echo.Context) error {
	var req RateRequest
	if err := c.Bind(&req); err != nil || req.Rate <= 0 {
		return badRequest(c, "rate must be a positive number")
	}
	if h.announcer == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "announcer is disabled"})
	}

	h.announcer.SetRate(req.Rate)
	if err := h.display.SaveSettings(c.Request().Context(), map[string]any{"rate": h.announcer.Rate()}); err != nil {
		slog.Error("h.display.SaveSettings(rate)", "error", err)
	}

	return c.JSON(http.StatusOK, AnnouncerStatus{Enabled: true, Busy: h.announcer.Busy(), Rate: h.announcer.Rate()})
}

// Instant asks every display to play a pre-recorded file from its instant
// audio directory.
func (h *Handlers) Instant(c echo.Context) error {
	var req InstantRequest
	if err := c.Bind(&req); err != nil || req.Filename == "" {
		return badRequest(c, "filename is required")
	}
	if filepath.Base(req.Filename) != req.Filename {
		return badRequest(c, "filename must not contain a path")
	}

	ia, err := h.display.SetInstantAudio(c.Request().Context(), req.Filename)
	if err != nil {
		return fail(c, fmt.Sprintf("h.display.SetInstantAudio(%v)", req.Filename), err)
	}

	return c.JSON(http.StatusOK, ia)
}

func (h *Handlers) GetDisplayName(c echo.Context) error {
	name, ok, err := h.display.DisplayName(c.Request().Context())
	if err != nil {
		return fail(c, "h.display.DisplayName()", err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "display name not set"})
	}

	return c.JSON(http.StatusOK, name)
}

func (h *Handlers) SetDisplayName(c echo.Context) error {
	var req DisplayNameRequest
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return badRequest(c, "name is required")
	}

	ctx := c.Request().Context()
	if err := h.display.SetDisplayName(ctx, req.Name); err != nil {
		return fail(c, "h.display.SetDisplayName()", err)
	}

	name, _, err := h.display.DisplayName(ctx)
	if err != nil {
		return fail(c, "h.display.DisplayName()", err)
	}

	return c.JSON(http.StatusOK, name)
}

func (h *Handlers) DisplayToken(c echo.Context) error {
	if h.pubNub == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "pubnub is not configured"})
	}

	token, err := h.pubNub.GenGrantToken(c.Request().Context())
	if err != nil {
		return fail(c, "h.pubNub.GenGrantToken()", err)
	}

	return c.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (h *Handlers) ClearAll(c echo.Context) error {
	if err := h.callService.ClearAll(c.Request().Context()); err != nil {
		return fail(c, "h.callService.ClearAll()", err)
	}

	return c.JSON(http.StatusOK, "success")
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}
