package game

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	pongWait      = time.Minute
	closeGraceDur = time.Second
)

type WebsocketConnection struct {
	socket *websocket.Conn
	once   sync.Once
}

func (wc *WebsocketConnection) Write(data []byte) error {
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *WebsocketConnection) Ping() error {
	return wc.socket.WriteMessage(websocket.PingMessage, nil)
}

func (wc *WebsocketConnection) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	return p, err
}

// Close sends a close frame and tears the socket down. It may race a
// blocked Write or Ping, so the frame goes out via WriteControl, the
// only write gorilla allows concurrently with other writers. Idempotent.
func (wc *WebsocketConnection) Close(reason string) {
	wc.once.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		wc.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGraceDur))
		wc.socket.Close()
	})
}

func NewWebsocketConnection(conn *websocket.Conn) *WebsocketConnection {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return &WebsocketConnection{socket: conn}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are already enforced by the router middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	gateway *Gateway
}

func NewHandler(gateway *Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// ServeWS upgrades the request and runs the session until it ends.
func (h *Handler) ServeWS(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.gateway.HandleSession(NewWebsocketConnection(conn))
}
