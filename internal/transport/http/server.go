package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/behex/chat-server/internal/auth"
	"github.com/behex/chat-server/internal/chat"
	"github.com/behex/chat-server/internal/config"
	"github.com/behex/chat-server/internal/realtime"
	"github.com/behex/chat-server/internal/store"
)

const timeFormat = time.RFC3339Nano

// NewServer builds the HTTP server: REST API, health check, and the
// websocket endpoint for realtime sessions.
func NewServer(hub *realtime.Hub, chatService *chat.Service, authService *auth.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, chatService, authService, logger)))

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, logger)
	conversationHandlers := NewConversationHandlers(chatService, logger)
	friendHandlers := NewFriendHandlers(st, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)
	api.POST("/guest", apiHandlers.GuestLogin)

	authorized := api.Group("")
	authorized.Use(AuthMiddleware(authService, logger))
	authorized.GET("/me", userHandlers.Me)
	authorized.GET("/users/:username", userHandlers.Lookup)
	authorized.GET("/conversations", conversationHandlers.ListConversations)
	authorized.POST("/conversations", conversationHandlers.CreateConversation)
	authorized.GET("/conversations/:id/messages", conversationHandlers.ListMessages)
	authorized.POST("/friends/:id/request", friendHandlers.SendRequest)
	authorized.POST("/friends/:id/accept", friendHandlers.Accept)
	authorized.POST("/friends/:id/decline", friendHandlers.Decline)
	authorized.GET("/friends", friendHandlers.List)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
