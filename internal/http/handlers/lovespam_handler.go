// Love-spam HTTP handlers.
//
// This file exposes the cron-facing worker endpoint and the session toggle:
//   - GET      /love-spam/worker  (one tick: insert a love log while active)
//   - GET|POST /love-spam/toggle  (action=start|stop|status)
//
// The worker endpoint is invoked by an external scheduler; it no-ops cheaply
// when no session is active so the cron cadence can stay aggressive.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ourlittleworld/go-couple-backend/internal/lovespam"
)

// SpamStatusResponse wraps a session status for JSON responses.
type SpamStatusResponse struct {
	Active           bool   `json:"active"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	Message          string `json:"message,omitempty"`
}

func spamStatus(st lovespam.Status, msg string) SpamStatusResponse {
	return SpamStatusResponse{
		Active:           st.Active,
		RemainingSeconds: st.RemainingSeconds,
		Message:          msg,
	}
}

// SpamWorkerTick runs one worker invocation. Without an active session it
// reports an idle status instead of an error, so schedulers see a 200 either
// way.
func (h *Handlers) SpamWorkerTick(c *gin.Context) {
	st, err := h.worker.Tick(c.Request.Context())
	switch {
	case errors.Is(err, lovespam.ErrNoSession):
		ok(c, http.StatusOK, spamStatus(st, "no active session"))
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		ok(c, http.StatusOK, spamStatus(st, "sent"))
	}
}

// SpamToggle starts, stops, or reads the spam session depending on the
// "action" parameter (query or form).
func (h *Handlers) SpamToggle(c *gin.Context) {
	action := strings.ToLower(strings.TrimSpace(c.Query("action")))
	if action == "" {
		action = strings.ToLower(strings.TrimSpace(c.PostForm("action")))
	}

	switch action {
	case "start":
		st, err := h.worker.Start()
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
			return
		}
		ok(c, http.StatusOK, spamStatus(st, "started"))
	case "stop":
		st, err := h.worker.Stop()
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
			return
		}
		ok(c, http.StatusOK, spamStatus(st, "stopped"))
	case "status", "":
		ok(c, http.StatusOK, spamStatus(h.worker.StatusNow(), ""))
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "action must be start, stop, or status")
	}
}
