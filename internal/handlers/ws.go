package handlers

import (
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"typing-duel/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	maxFrame   = 4 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocket upgrades a player holding a valid session token for :code.
func (h *Handler) WebSocket(c echo.Context) error {
	code := matchCode(c)
	claims, err := h.tokens.Verify(c.QueryParam("token"))
	if err != nil || claims.Code != code {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid session token")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Debug().Err(err).Str("code", code).Msg("websocket upgrade")
		return nil
	}
	conn := newWSConn(ws)

	sess := session.New(h.svc, h.bus, h.rateLimiter, code, claims.PlayerID)
	if err := sess.Run(c.Request().Context(), conn); err != nil {
		log.Info().Err(err).Str("code", code).Str("pid", claims.PlayerID).Msg("session closed")
	}
	if h.rateLimiter != nil {
		h.rateLimiter.Forget(code + ":" + claims.PlayerID)
	}
	return nil
}

// wsConn adapts a gorilla connection to session.Conn. Writes are
// serialized and a ping loop keeps the read deadline alive.
type wsConn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	once   sync.Once
	closed chan struct{}
}

func newWSConn(ws *websocket.Conn) *wsConn {
	c := &wsConn{ws: ws, closed: make(chan struct{})}
	ws.SetReadLimit(maxFrame)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.pingLoop()
	return c
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, msg, err := c.ws.ReadMessage()
	if err == nil {
		return msg, nil
	}
	select {
	case <-c.closed:
		return nil, io.EOF
	default:
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) && (ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway) {
		return nil, io.EOF
	}
	return nil, err
}

func (c *wsConn) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		c.mu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.mu.Unlock()
		err = c.ws.Close()
	})
	return err
}
