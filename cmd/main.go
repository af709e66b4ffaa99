package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/flowdeck/chat-core/internal/access"
	"github.com/flowdeck/chat-core/internal/auth"
	"github.com/flowdeck/chat-core/internal/cache"
	"github.com/flowdeck/chat-core/internal/config"
	"github.com/flowdeck/chat-core/internal/handler"
	"github.com/flowdeck/chat-core/internal/hub"
	"github.com/flowdeck/chat-core/internal/presence"
	"github.com/flowdeck/chat-core/internal/repository"
	"github.com/flowdeck/chat-core/internal/service"
	"github.com/flowdeck/chat-core/pkg/database"
	"github.com/flowdeck/chat-core/pkg/jwt"
	"github.com/flowdeck/chat-core/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.L().Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Init(cfg.Log)
	l := log.L()

	if cfg.Auth.TokenSecret == "" {
		l.Fatal().Msg("auth.token_secret must be set")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, repository.Models()...); err != nil {
		l.Fatal().Err(err).Msg("failed to migrate database")
	}
	store := repository.NewGormStore(db)
	l.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	var historyCache cache.HistoryCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisHistoryCache(cfg.Redis)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisCache.Close()
		historyCache = redisCache
		l.Info().Str("address", cfg.Redis.Address).Msg("history cache ready")
	}

	tracker := presence.NewTracker()
	typing := presence.NewTypingTracker()
	wsHub := hub.NewHub(tracker, cfg.WebSocket)

	tokens := jwt.NewManager(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	resolver := auth.NewResolver(tokens, store)
	authorizer := access.NewAuthorizer(store)

	chatSvc := service.NewChatService(store, authorizer, tracker, typing, wsHub, service.Limits{
		MaxContentLength: cfg.Chat.MaxContentLength,
		SnippetLength:    cfg.Chat.SnippetLength,
	})
	historySvc := service.NewHistoryService(store, historyCache, cfg.Chat.HistoryCacheTTL)

	wsHandler := handler.NewWSHandler(wsHub, resolver, chatSvc, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(store, authorizer, historySvc, tracker, cfg.Chat.HistoryPageSize)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), log.GinMiddleware(l))

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	router.GET("/chat/ws", gin.WrapF(wsHandler.HandleWebSocket))

	api := router.Group("/api", handler.RequireAuth(resolver))
	httpHandler.RegisterRoutes(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go wsHub.Run()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info().Str("addr", server.Addr).Msg("chat-core listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		l.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		l.Fatal().Err(err).Msg("server error")
	}
	l.Info().Msg("chat-core stopped")
}
