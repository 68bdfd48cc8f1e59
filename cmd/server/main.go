// Command server runs the couple backend: the entity stores with their live
// change feed, the media upload proxy, and the love-spam worker endpoints.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ourlittleworld/go-couple-backend/internal/config"
	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
	httpapi "github.com/ourlittleworld/go-couple-backend/internal/http"
	"github.com/ourlittleworld/go-couple-backend/internal/http/handlers"
	"github.com/ourlittleworld/go-couple-backend/internal/lovespam"
	"github.com/ourlittleworld/go-couple-backend/internal/media"
	"github.com/ourlittleworld/go-couple-backend/internal/notify"
	"github.com/ourlittleworld/go-couple-backend/internal/observability"
	"github.com/ourlittleworld/go-couple-backend/internal/session"
	"github.com/ourlittleworld/go-couple-backend/internal/store"
	"github.com/ourlittleworld/go-couple-backend/internal/sysutil"
	"github.com/ourlittleworld/go-couple-backend/internal/ws"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	role, err := domain.ParseRole(cfg.Role)
	if err != nil {
		log.Fatal().Err(err).Str("role", cfg.Role).Msg("invalid APP_ROLE")
	}

	db, err := gateway.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if cfg.OTEL.Enabled {
		if err := gateway.UseTracing(db); err != nil {
			log.Warn().Err(err).Msg("db tracing setup failed")
		}
	}
	if err := gateway.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	bus := gateway.NewBus()
	gw := gateway.NewGorm(db, bus)

	sess, err := session.Open(cfg.SessionPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.SessionPath).Msg("open session cache failed")
	}

	notifier := notify.New(gw)

	var (
		mediaStore *media.Store
		cleaner    store.MediaCleaner
		mediaAPI   handlers.MediaStore
	)
	if cfg.Media.Bucket != "" {
		mediaStore, err = media.New(ctx, media.Config{
			Region:        cfg.Media.Region,
			Bucket:        cfg.Media.Bucket,
			Endpoint:      cfg.Media.Endpoint,
			AccessKey:     cfg.Media.AccessKey,
			SecretKey:     cfg.Media.SecretKey,
			PublicBaseURL: cfg.Media.PublicBaseURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("media store setup failed")
		}
		cleaner = mediaStore
		mediaAPI = mediaStore
	} else {
		log.Info().Msg("no media bucket configured; upload endpoints disabled")
	}

	provider, err := store.Open(ctx, gw, notifier, sess, role, cleaner)
	if err != nil {
		log.Fatal().Err(err).Msg("open stores failed")
	}
	defer provider.Close()

	worker := lovespam.New(gw, sess, role)

	hub := ws.NewHub(bus)
	defer hub.Close()

	r := gin.New()
	h := handlers.New(mediaAPI, worker, hub, role, cfg.CORS.AllowedOrigins)
	httpapi.RegisterRoutes(r, h, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("role", role.Storage()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown failed")
	}
	bus.Close()
}
