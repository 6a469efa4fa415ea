package chartd

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// stream pushes every new scheduler frame as JSON. Frames that render while
// a write is in progress are skipped; the client always gets the newest.
func (a *API) stream(w http.ResponseWriter, r *http.Request) {
	if a.sched == nil {
		http.Error(w, `{"error":"render clock not running"}`, http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("ws upgrade failed", slog.String("err", err.Error()))
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go a.readPump(conn, done)

	poll := time.NewTicker(a.sched.Interval())
	ping := time.NewTicker(pingInterval)
	defer poll.Stop()
	defer ping.Stop()

	var sent uint64
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			out := a.sched.Latest()
			if out == nil || out.Frame.Seq == sent {
				continue
			}
			resp := frameResponse{Frame: out.Frame, TookMs: float64(out.Took.Microseconds()) / 1000}
			if out.Err != nil {
				resp.Error = out.Err.Error()
			}
			msg, err := json.Marshal(resp)
			if err != nil {
				a.log.Error("marshal frame", slog.String("err", err.Error()))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			sent = out.Frame.Seq
		}
	}
}

// readPump discards client messages and keeps the read deadline fresh.
func (a *API) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
