package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Rendezvous/internal/adapters/http"
	"github.com/dkeye/Rendezvous/internal/adapters/rtc"
	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/app/orch"
	"github.com/dkeye/Rendezvous/internal/auth"
	"github.com/dkeye/Rendezvous/internal/config"
	"github.com/dkeye/Rendezvous/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.InitLogger(cfg)
	cfg.Watch(func(next *config.Config) {
		config.SetLogLevel(next.Log.Level)
	})

	authn, err := auth.New(auth.Options{
		Secret:        cfg.Auth.Secret,
		RequireExpiry: cfg.Auth.RequireExpiry,
		Leeway:        cfg.Auth.Leeway,
		SubjectClaims: cfg.Auth.SubjectClaims,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("auth setup (set HUB_AUTH_SECRET or JWT_SECRET)")
	}
	iceServers, err := rtc.ICEServers(cfg.ICEServers)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ice_servers")
	}
	policy, err := app.PolicyFromString(cfg.Signaling.SlowClientPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid slow client policy")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	o := orch.New(orch.Options{
		IceServers:     iceServers,
		ValidateRelays: cfg.Signaling.ValidateRelays,
		MaxTitleLen:    cfg.Live.MaxTitleLen,
		InboxSize:      cfg.InboxSize,
	}, policy, m)
	orchDone := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(orchDone)
	}()

	r := router.SetupRouter(ctx, cfg, router.Deps{Orch: o, Auth: authn, Metrics: m, Gatherer: reg})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Rendezvous hub started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	<-orchDone
	log.Info().Msg("Server exited gracefully")
}
