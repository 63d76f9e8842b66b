package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/WalidA2D/NEURALINKED/auth"
	"github.com/WalidA2D/NEURALINKED/config"
	"github.com/WalidA2D/NEURALINKED/crypto"
	"github.com/WalidA2D/NEURALINKED/game"
	"github.com/WalidA2D/NEURALINKED/logger"
	"github.com/WalidA2D/NEURALINKED/migrations"
	"github.com/WalidA2D/NEURALINKED/rooms"
	"github.com/WalidA2D/NEURALINKED/storage"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})
	r.GET("/health", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"ok": true}) })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Setup(false)
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Setup(cfg.Debug)

	migrations.Migrate(cfg.PostgresURL)

	pgRepo, err := storage.NewPostgresRepo(context.Background(), cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pgRepo.Close()

	tokenAge := time.Hour * 24 * 7
	passwordHasher := crypto.NewArgon2idHasher(3, 1024*64, 32, 16, 1)
	tokenManager := crypto.NewJWTManager(cfg.JWTKey, tokenAge)

	authService := auth.NewService(pgRepo, passwordHasher, tokenManager)
	authHandler := auth.NewHandler(authService, int(tokenAge.Seconds()), !cfg.Debug)

	roomsHandler := rooms.NewHandler(rooms.NewService(pgRepo))

	gateway := game.NewGateway(pgRepo)
	wsHandler := game.NewHandler(gateway)

	r := CreateServer(cfg.AllowedOrigins)

	r.GET("/health/db", func(ctx *gin.Context) {
		if err := pgRepo.Ping(ctx.Request.Context()); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"ok": true})
	})

	{
		authGroup := r.Group("/auth")
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/me", authHandler.RequireAuth(), authHandler.Me)
	}

	{
		roomsGroup := r.Group("/rooms")
		roomsGroup.Use(authHandler.RequireAuth())
		roomsGroup.POST("", roomsHandler.Create)
		roomsGroup.POST("/join", roomsHandler.Join)
		roomsGroup.GET("/:code", roomsHandler.Get)
		roomsGroup.POST("/:code/start", roomsHandler.Start)
		roomsGroup.POST("/:code/leave", roomsHandler.Leave)
		roomsGroup.GET("/:code/messages", roomsHandler.Messages)
	}

	r.GET("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	<-sigCh

	log.Info().Msg("shutdown signal received, draining connections")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown did not complete cleanly")
	}
}
