package http

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cv-generator/internal/adapter/notify"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const heartbeatEvery = 15 * time.Second

// Events streams job updates as server-sent events. The current status is
// sent first; the stream ends after a terminal status. The subscription is
// opened before the status is read so no update falls between the two.
func (h *Handler) Events(c *fiber.Ctx) error {
	if h.events == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorBody("EVENTS_DISABLED", "live updates are not configured"))
	}
	jobID := c.Params("id")

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := h.events.Subscribe(ctx, jobID)
	if err != nil {
		cancel()
		h.logger.Error("event subscription failed", "job_id", jobID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorBody("EVENTS_UNAVAILABLE", "live updates are unavailable"))
	}
	v, err := h.svc.Status(c.UserContext(), jobID, UserID(c))
	if err != nil {
		cancel()
		return h.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		if err := writeEvent(w, "status", v); err != nil || v.Status.Terminal() {
			return
		}
		ticker := time.NewTicker(heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				if err := writeEvent(w, "update", ev); err != nil {
					return
				}
				if ev.Terminal() {
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func writeEvent(w *bufio.Writer, name string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b); err != nil {
		return err
	}
	return w.Flush()
}

var _ Subscriber = (*notify.RedisNotifier)(nil)
