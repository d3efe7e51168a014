package server

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/damione1/poker-rooms/internal/config"
)

// wsConn adapts a websocket connection to the coordinator's Conn
// contract. Writes are serialized so the room broadcast loop and the ping
// ticker never interleave frames.
type wsConn struct {
	id   string
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		conn: conn,
	}
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, config.WriteTimeout)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

func (c *wsConn) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, config.WriteTimeout)
	defer cancel()
	return c.conn.Ping(pingCtx)
}

func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	})
}
