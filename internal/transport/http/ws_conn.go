package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/behex/chat-server/internal/proto"
	"github.com/behex/chat-server/internal/realtime"
)

const writeTimeout = 10 * time.Second

// wsConn adapts a websocket connection to realtime.SessionConn. Frames are
// decoded here rather than via wsjson so a malformed payload surfaces as a
// typed error instead of closing the connection.
type wsConn struct {
	conn *websocket.Conn

	// lifetime spans the whole connection; Send is called from dispatcher
	// goroutines that have no request context of their own.
	lifetime context.Context

	writeMu sync.Mutex
}

func newWSConn(lifetime context.Context, conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn, lifetime: lifetime}
}

func (c *wsConn) ReadEnvelope(ctx context.Context) (proto.Inbound, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return proto.Inbound{}, err
	}

	var inbound proto.Inbound
	if err := json.Unmarshal(data, &inbound); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return proto.Inbound{}, fmt.Errorf("%w: %v", realtime.ErrInvalidFormat, err)
		}
		return proto.Inbound{}, fmt.Errorf("%w: %v", realtime.ErrInvalidJSON, err)
	}
	return inbound, nil
}

func (c *wsConn) Send(env proto.Outbound) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal outbound: %w", err)
	}

	// One writer at a time keeps per-connection delivery order equal to
	// dispatch order.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(c.lifetime, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() {
	_ = c.conn.Close(websocket.StatusNormalClosure, "connection closed")
}
