package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GoPolymarket/housevault/internal/pkg/logger"
	"github.com/GoPolymarket/housevault/internal/treasury"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
)

// StreamHandler pushes a NAV snapshot to websocket clients at a fixed
// interval. Clients only read.
type StreamHandler struct {
	treasury *treasury.Treasury
	interval time.Duration
	upgrader websocket.Upgrader
}

func NewStreamHandler(t *treasury.Treasury, interval time.Duration, allowedOrigins []string) *StreamHandler {
	if interval <= 0 {
		interval = time.Second
	}
	return &StreamHandler{
		treasury: t,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker accepts requests without an Origin header (non-browser
// clients), same-origin requests and origins in allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if set[strings.ToLower(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

func (h *StreamHandler) NAV(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("nav stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The read loop only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.push(conn); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			if err := h.push(conn); err != nil {
				return
			}
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait))
		}
	}
}

func (h *StreamHandler) push(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(h.treasury.Snapshot())
}
