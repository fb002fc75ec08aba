package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mobiledjay/backend/internal/config"
	"github.com/mobiledjay/backend/internal/handler"
	"github.com/mobiledjay/backend/internal/handler/live"
	"github.com/mobiledjay/backend/internal/metrics"
	"github.com/mobiledjay/backend/internal/middleware"
	model "github.com/mobiledjay/backend/internal/model/catalogue"
	"github.com/mobiledjay/backend/internal/service/catalogue"
	"github.com/mobiledjay/backend/internal/service/coordination"
	"github.com/mobiledjay/backend/internal/service/delivery"
	"github.com/mobiledjay/backend/internal/service/rotation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Catalogues fall back to sample data, so startup only fails on config.
	songs := model.NewMemoryStore(catalogue.LoadSongs(cfg.Catalogue.SongsXML), model.SongFields)
	karaoke := model.NewMemoryStore(catalogue.LoadKaraoke(cfg.Catalogue.KaraokeCSV), model.KaraokeFields)

	store := coordination.NewStore()

	gateway, err := delivery.NewGateway(delivery.Config{
		Endpoint:     cfg.Delivery.Endpoint,
		Timeout:      cfg.Delivery.Timeout,
		MaxRedirects: cfg.Delivery.MaxRedirects,
		UserAgent:    cfg.Delivery.UserAgent,
		Disabled:     !cfg.Delivery.Enabled,
	}, nil)
	if err != nil {
		log.Fatalf("failed to configure delivery gateway: %v", err)
	}
	if cfg.Delivery.Enabled {
		log.Printf("delivering submissions to %s (timeout %s per hop, max redirects %d)", gateway.Endpoint(), cfg.Delivery.Timeout, cfg.Delivery.MaxRedirects)
	} else {
		log.Println("delivery disabled, submissions are recorded locally only")
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		defer limiter.Stop()
	}

	router := handler.NewRouter(handler.Dependencies{
		Store:     store,
		Songs:     songs,
		Karaoke:   karaoke,
		Deliverer: gateway,
		Limiter:   limiter,
		Live: live.Config{
			DisplayInterval:   cfg.Polling.Display,
			DashboardInterval: cfg.Polling.Dashboard,
			BellInterval:      cfg.Polling.Bell,
			Timing:            rotation.TimingFor(cfg.Rotation.TimeUnit),
		},
		Metrics: metrics.Handler(metrics.NewRegistry(store)),
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("MobileDJay backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
