package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/quipround/quipround/internal/api"
	"github.com/quipround/quipround/internal/auth"
	"github.com/quipround/quipround/internal/config"
	"github.com/quipround/quipround/internal/game"
	"github.com/quipround/quipround/internal/gateway"
	"github.com/quipround/quipround/internal/store/postgres"
)

const version = "v1.0.0"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Quipround - Real-time party game server

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT                  Port to listen on (default: 8080)
  DATABASE_URL          PostgreSQL DSN; omit to run with in-memory state only
  ALLOWED_ORIGINS       Comma-separated CORS origins (default: *)
  MAX_PLAYERS_PER_ROOM  Default room capacity (default: 8)
  DEFAULT_ROUNDS        Rounds per game (default: 5)
  ANSWER_TIME_LIMIT     Answering phase seconds, 0 disables (default: 60)
  VOTE_TIME_LIMIT       Voting phase seconds, 0 disables (default: 45)
`, os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Quipround %s\n", version)
		return
	}

	cfg := config.FromEnv()
	port := *portFlag
	if port == "" {
		port = cfg.Port
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	log := zerologlog.Logger

	// Durable store, if configured. The state machine stays authoritative
	// either way; the store is write-through.
	var store game.Store
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			cancel()
			log.Fatal().Err(err).Msg("postgres connect failed")
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatal().Err(err).Msg("postgres schema setup failed")
		}
		cancel()
		defer pg.Close()
		store = pg
		log.Info().Msg("postgres store enabled")
	}

	manager := game.NewManager(game.ManagerConfig{
		Store: store,
		Defaults: game.RoomConfig{
			MaxPlayers:  cfg.MaxPlayers,
			TotalRounds: cfg.DefaultRounds,
			AnswerTime:  cfg.AnswerTime,
			VoteTime:    cfg.VoteTime,
		},
		Logger: log,
	})

	registry := auth.NewRegistry()
	gw := gateway.New(manager, registry, gateway.DefaultConfig(), log)
	manager.SetSink(gw)

	// Gin setup with custom logger (skip /ws noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/ws") {
			return
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		log.Info().Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC(), "rooms": manager.RoomCount()})
	})

	api.New(manager, registry, log).Register(r, gw.HandleWS)

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler,
	}

	go func() {
		log.Info().Str("port", port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
