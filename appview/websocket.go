package appview

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/yuuzone/yuuzone/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from the app origin; auth is carried by
	// the token, not the origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleEventStream upgrades to a websocket and forwards feed events as
// JSON frames. An optional ?thread=<name> query restricts the stream
// to one subthread.
func (s *Server) handleEventStream(c echo.Context) error {
	var filter func(*events.FeedEvent) bool
	if raw := c.QueryParam("thread"); raw != "" {
		st, err := s.users.GetSubthreadByName(c.Request().Context(), raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "subthread not found")
		}
		filter = events.ThreadFilter(st.ID)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := s.events.Subscribe(filter)
	defer s.events.Unsubscribe(sub)

	// Reader goroutine: we never expect inbound frames, but reading is
	// the only way to notice a closed peer.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				return nil
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		}
	}
}
