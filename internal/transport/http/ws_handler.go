package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/behex/chat-server/internal/auth"
	"github.com/behex/chat-server/internal/realtime"
)

// WSHandler upgrades HTTP connections, authenticates the bearer token from
// the query string, and drives a realtime session for the connection.
type WSHandler struct {
	hub     *realtime.Hub
	chat    realtime.ChatService
	authSvc *auth.Service
	log     *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *realtime.Hub, chat realtime.ChatService, authSvc *auth.Service, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, chat: chat, authSvc: authSvc, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	user, err := h.authSvc.Authenticate(ctx, r.URL.Query().Get("token"))
	if err != nil {
		h.log.Debug().Err(err).Msg("ws handshake rejected")
		conn.Close(websocket.StatusPolicyViolation, "policy violation")
		return
	}

	session := realtime.NewSession(h.hub, h.chat, user, newWSConn(ctx, conn), h.log)
	err = session.Run(ctx)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Int64("user_id", user.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}
