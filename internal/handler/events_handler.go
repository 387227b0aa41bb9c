package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ultrathink/discovery-web/pkg/log"
	"github.com/ultrathink/discovery-web/pkg/pubsub"
	"github.com/ultrathink/discovery-web/pkg/response"
)

const (
	// EventState is the first event of every stream, carrying the full state.
	EventState = "state"
	// EventPing keeps idle connections open through proxies.
	EventPing = "ping"

	heartbeatInterval = 25 * time.Second
)

// EventsHandler streams store changes to the browser.
type EventsHandler struct {
	sessions *SessionMiddleware
	bus      pubsub.Subscriber
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(sessions *SessionMiddleware, bus pubsub.Subscriber) *EventsHandler {
	return &EventsHandler{
		sessions: sessions,
		bus:      bus,
	}
}

// RegisterRoutes registers all routes.
func (h *EventsHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/v1/events", h.sessions.RequireSession(), h.Stream)
}

// Stream sends a state event, then one event per store change until the
// client goes away.
func (h *EventsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	sess := GetSession(c)

	sub, err := h.bus.Subscribe(ctx, pubsub.SessionChannel(sess.ID))
	if err != nil {
		l.Error().Err(err).Msg("failed to subscribe to session events")
		response.InternalError(c, "failed to subscribe to events")
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent(EventState, sess.State())
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			l.Debug().Msg("event stream closed by client")
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			c.SSEvent(evt.Type, evt.Payload)
			c.Writer.Flush()
		case <-heartbeat.C:
			c.SSEvent(EventPing, time.Now().Unix())
			c.Writer.Flush()
		}
	}
}
