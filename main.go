package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/catcatch/assets"
	"github.com/robalobadob/catcatch/internal/catapi"
	"github.com/robalobadob/catcatch/internal/config"
	"github.com/robalobadob/catcatch/internal/db"
	"github.com/robalobadob/catcatch/internal/gallery"
	"github.com/robalobadob/catcatch/internal/httpserver"
	"github.com/robalobadob/catcatch/internal/prefs"
	"github.com/robalobadob/catcatch/internal/session"
	"github.com/robalobadob/catcatch/internal/ticket"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer conn.Close()
	if err := db.Migrate(conn, assets.Migrations()); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	client := catapi.New(cfg.CatAPIURL, cfg.CatAPIKey, cfg.CatHosts)
	store := prefs.NewStore(conn)
	sessions := session.NewRegistry(client, cfg.GameBatch)
	defer sessions.Close()

	srv := httpserver.New(httpserver.Deps{
		Sessions:     sessions,
		Prefs:        store,
		Gallery:      gallery.New(client, store, cfg.GalleryBatch),
		Tickets:      ticket.NewSigner(cfg.TicketSecret),
		ClientOrigin: cfg.ClientOrigin,
		Production:   cfg.Production,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sweep(ctx, sessions, cfg.SessionIdle)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting catcatch server")
		if err := srv.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}

// sweep drops sessions nobody has touched for maxIdle.
func sweep(ctx context.Context, sessions *session.Registry, maxIdle time.Duration) {
	t := time.NewTicker(maxIdle / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sessions.Sweep(maxIdle)
		}
	}
}
