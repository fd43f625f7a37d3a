package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/eris-support/triage-service/internal/events"
)

// Subscriber registers a handler for ticket change events.
type Subscriber interface {
	Subscribe(handler events.EventHandler) (unsubscribe func())
}

// EventsHandler streams ticket changes to operator UIs.
type EventsHandler struct {
	subscriber Subscriber
	logger     *zap.Logger
	heartbeat  time.Duration
	buffer     int
}

// NewEventsHandler constructs handler.
func NewEventsHandler(subscriber Subscriber, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{subscriber: subscriber, logger: logger, heartbeat: 15 * time.Second, buffer: 64}
}

// Stream GET /api/tickets/events. Events that arrive faster than the client
// reads them are dropped; clients refetch the table on reconnect.
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ch := make(chan events.Event, h.buffer)
	unsubscribe := h.subscriber.Subscribe(func(_ context.Context, e events.Event) error {
		select {
		case ch <- e:
		default:
			h.logger.Debug("sse client lagging; event dropped", zap.String("event_id", e.ID))
		}
		return nil
	})

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case e := <-ch:
				body, err := json.Marshal(e)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, body)
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
	return nil
}
