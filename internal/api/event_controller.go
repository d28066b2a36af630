package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/ironsheep/inverif/internal/intake"
	"github.com/ironsheep/inverif/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type eventController struct {
	service *intake.Service
	log     logger.Logger
}

func newEventController(svc *intake.Service, log logger.Logger) *eventController {
	return &eventController{service: svc, log: log}
}

func (h *eventController) RegisterRoutes(r fiber.Router) {
	r.Get("/ws/forms/:id", h.Stream)
}

// Stream upgrades to a WebSocket that first sends the current snapshot and
// then every event of the form.
func (h *eventController) Stream(c *fiber.Ctx) error {
	formID := c.Params("id")
	snap, err := h.service.Get(formID)
	if err != nil {
		return err
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.log.Info("api", "event stream opened", map[string]interface{}{"form": formID})
		h.serve(conn, snap)
		h.log.Info("api", "event stream closed", map[string]interface{}{"form": formID})
	})(c)
}

func (h *eventController) serve(conn *websocket.Conn, snap intake.Snapshot) {
	defer conn.Close()

	events, cancel, err := h.service.Subscribe(snap.ID)
	if err != nil {
		_ = conn.WriteJSON(FailedResponse(err.Error()))
		return
	}
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	first := intake.Event{Type: intake.EventSnapshot, FormID: snap.ID, Snapshot: snap, Time: time.Now().UTC()}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(first); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
