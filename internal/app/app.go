package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-chat-vault/internal/config"
	"go-chat-vault/internal/database"
	"go-chat-vault/internal/event"
	"go-chat-vault/internal/handler"
	"go-chat-vault/internal/middleware"
	"go-chat-vault/internal/repository"
	"go-chat-vault/internal/router"
	"go-chat-vault/internal/service"
	"go-chat-vault/internal/storage"
	"go-chat-vault/internal/token"
	"go-chat-vault/internal/websocket"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

type stores struct {
	users   repository.UserStore
	chats   repository.ChatStore
	cleanup func()
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		st.cleanup()
		return nil, fmt.Errorf("failed to initialize attachment storage: %w", err)
	}

	tokens, err := token.NewService(cfg.JWTSecret, token.WithTTL(cfg.JWTTTL))
	if err != nil {
		st.cleanup()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	authService, err := service.NewAuthService(st.users, tokens, service.AuthOptions{
		BcryptCost: cfg.BcryptCost,
		ResetTTL:   cfg.ResetTokenTTL,
		DemoMode:   cfg.DemoMode,
	})
	if err != nil {
		st.cleanup()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(tokens, st.users)

	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	hubCtx, hubCancel := context.WithCancel(ctx)
	go hub.Run(hubCtx)

	chatService := service.NewChatService(st.chats, bus)
	attachmentService := service.NewAttachmentService(blobs, bus, cfg.MaxUploadSize)

	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		Chat:       handler.NewChatHandler(chatService),
		Attachment: handler.NewAttachmentHandler(attachmentService, cfg.MaxUploadSize),
		Websocket:  handler.NewWebsocketHandler(hub, cfg.CORSOrigins),
		Health:     handler.NewHealthHandler(st.users, st.chats, cfg.DemoMode),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	slog.Info("application ready",
		"store_driver", cfg.StoreDriver,
		"attachment_backend", cfg.AttachmentBackend,
		"demo_mode", cfg.DemoMode,
	)

	return &App{
		server: server,
		cleanupFuncs: []func(){
			hubCancel,
			st.cleanup,
		},
	}, nil
}

// openStores connects the configured backend. When it cannot be reached and
// demo mode is on, the server starts against repository.Offline instead.
func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	var (
		st  stores
		err error
	)

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		st, err = openPostgres(ctx, cfg)
	case config.StoreDriverMongo:
		st, err = openMongo(ctx, cfg)
	default:
		slog.Warn("using in-memory stores; data is lost on restart")
		return stores{
			users:   repository.NewMemoryUserRepository(),
			chats:   repository.NewMemoryChatRepository(),
			cleanup: func() {},
		}, nil
	}

	if err == nil {
		return st, nil
	}
	if !cfg.DemoMode {
		return stores{}, err
	}

	slog.Warn("store unreachable, serving in demo mode", "driver", cfg.StoreDriver, "error", err)
	offline := repository.Offline{}
	return stores{users: offline, chats: offline, cleanup: func() {}}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (stores, error) {
	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, database.PoolOptions{
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		ConnectTimeout: cfg.StoreTimeout,
	})
	if err != nil {
		return stores{}, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return stores{}, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	slog.Info("database ready")
	return stores{
		users:   repository.NewUserRepository(db.Pool, cfg.StoreTimeout),
		chats:   repository.NewChatRepository(db.Pool, cfg.StoreTimeout),
		cleanup: db.Close,
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config) (stores, error) {
	slog.Info("connecting to MongoDB")
	m, err := database.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.StoreTimeout)
	if err != nil {
		return stores{}, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	closeMongo := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Close(closeCtx); err != nil {
			slog.Warn("mongo disconnect failed", "error", err)
		}
	}

	users := repository.NewMongoUserRepository(m.Database, cfg.StoreTimeout)
	chats := repository.NewMongoChatRepository(m.Database, cfg.StoreTimeout)
	if err := users.EnsureIndexes(ctx); err != nil {
		closeMongo()
		return stores{}, fmt.Errorf("failed to ensure user indexes: %w", err)
	}
	if err := chats.EnsureIndexes(ctx); err != nil {
		closeMongo()
		return stores{}, fmt.Errorf("failed to ensure chat indexes: %w", err)
	}

	return stores{users: users, chats: chats, cleanup: closeMongo}, nil
}

func openBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if cfg.AttachmentBackend == config.AttachmentBackendS3 {
		s3Store, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return s3Store, nil
	}

	local, err := storage.NewLocal(cfg.AttachmentRoot)
	if err != nil {
		return nil, err
	}
	return local, nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-stop:
	case err := <-serveErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return runErr
}
