package handlers

import (
	"context"
	"net/http"
	"slices"
	"time"

	"anesthesia_controller/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMsgSize      = 1 << 12
	defaultInterval = time.Second
	minInterval     = 100 * time.Millisecond // one control tick
	maxInterval     = 10 * time.Second
)

// Envelope types pushed on /ws.
const (
	wsTypeStatus = "status"
	wsTypeAlarm  = "alarm"
	wsTypeError  = "error"
)

type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// wsAlarm is pushed whenever the alarm level or its causes change.
type wsAlarm struct {
	Level    string    `json:"level"`
	Previous string    `json:"previous"`
	Causes   []string  `json:"causes,omitempty"`
	State    string    `json:"state"`
	At       time.Time `json:"at"`
}

// The stream is read-only.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// statusFeed remembers what a client has seen.
type statusFeed struct {
	changesOnly bool
	last        *models.Status
}

// next turns a freshly read status into the envelopes to push. Alarm
// envelopes precede the status they belong to.
func (f *statusFeed) next(st models.Status) []wsEnvelope {
	var out []wsEnvelope
	prev := f.last
	if prev != nil && (prev.AlarmLevel != st.AlarmLevel || !slices.Equal(prev.AlarmCauses, st.AlarmCauses)) {
		out = append(out, wsEnvelope{Type: wsTypeAlarm, Data: wsAlarm{
			Level:    st.AlarmLevel,
			Previous: prev.AlarmLevel,
			Causes:   st.AlarmCauses,
			State:    st.State,
			At:       st.UpdatedAt,
		}})
	}
	if prev == nil || !f.changesOnly || !prev.UpdatedAt.Equal(st.UpdatedAt) {
		out = append(out, wsEnvelope{Type: wsTypeStatus, Data: st})
	}
	f.last = &st
	return out
}

// @Summary      Status stream
// @Description  WebSocket upgrade. Pushes {"type":"status"} every interval (?interval=500ms, 100ms..10s) and {"type":"alarm"} when the alarm changes. ?changes=1 skips unchanged statuses.
// @Tags         control
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := parseInterval(c.Query("interval"))
	feed := &statusFeed{changesOnly: c.Query("changes") == "1"}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.drainReads(conn, done)

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	ctx := c.Request.Context()
	if err := h.push(ctx, conn, feed); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}
	if h.log != nil {
		h.log.Infow("ws_client_connected", "remote", c.ClientIP(), "interval", interval)
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case <-ticker.C:
			if err := h.push(ctx, conn, feed); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// parseInterval accepts a Go duration within [minInterval, maxInterval].
func parseInterval(s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d >= minInterval && d <= maxInterval {
		return d
	}
	return defaultInterval
}

// drainReads handles control frames and reports closure.
func (h *Handler) drainReads(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// push reads the latest status and writes whatever the feed yields. A failed
// lookup is reported to the client and keeps the connection open.
func (h *Handler) push(ctx context.Context, conn *websocket.Conn, feed *statusFeed) error {
	st, err := h.services.Monitoring.GetStatus(ctx)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_get_status_failed", "err", err)
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(wsEnvelope{Type: wsTypeError, Error: errGetStatus})
	}
	for _, env := range feed.next(st) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(env); err != nil {
			return err
		}
	}
	return nil
}
