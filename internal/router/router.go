package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"go-chat-vault/internal/config"
	"go-chat-vault/internal/handler"
	"go-chat-vault/internal/metrics"
	"go-chat-vault/internal/middleware"
)

const (
	downloadMaxDuration = 30 * time.Minute
	// downloadIdleTimeout aborts a download whose client stopped reading.
	downloadIdleTimeout = 60 * time.Second
)

type Handlers struct {
	Auth       *handler.AuthHandler
	Chat       *handler.ChatHandler
	Attachment *handler.AttachmentHandler
	Websocket  *handler.WebsocketHandler
	Health     *handler.HealthHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(metrics.Middleware)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		// bounded JSON endpoints
		api.Group(func(bounded chi.Router) {
			bounded.Use(middleware.Timeout(cfg.RequestTimeout))

			bounded.Route("/auth", func(auth chi.Router) {
				auth.Post("/register", h.Auth.Register)
				auth.Post("/login", h.Auth.Login)
				auth.Post("/forgot-password", h.Auth.ForgotPassword)
				auth.Post("/reset-password", h.Auth.ResetPassword)
				auth.With(authMiddleware.RequireAuth).Put("/change-password", h.Auth.ChangePassword)
				auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
			})

			bounded.Route("/chats", func(chats chi.Router) {
				chats.Use(authMiddleware.RequireAuth)
				chats.Get("/", h.Chat.List)
				chats.Post("/", h.Chat.Save)
				chats.Get("/{chatID}", h.Chat.Get)
				chats.Delete("/{chatID}", h.Chat.Delete)
			})
		})

		// http.TimeoutHandler buffers the body and cannot hijack, so uploads,
		// downloads and the websocket stay outside the group above.
		api.With(authMiddleware.RequireAuth).Post("/files", h.Attachment.Upload)
		api.With(authMiddleware.RequireAuth, middleware.StreamingTimeout(downloadMaxDuration, downloadIdleTimeout)).
			Get("/files/{fileID}", h.Attachment.Download)
		api.With(authMiddleware.RequireAuth).Get("/ws", h.Websocket.Serve)
	})

	return r
}
