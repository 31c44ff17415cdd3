package http

import (
	"context"

	"github.com/dkeye/Rendezvous/internal/adapters/rtc"
	"github.com/dkeye/Rendezvous/internal/adapters/signal"
	"github.com/dkeye/Rendezvous/internal/app/orch"
	"github.com/dkeye/Rendezvous/internal/auth"
	"github.com/dkeye/Rendezvous/internal/config"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Deps struct {
	Orch     *orch.Orchestrator
	Auth     *auth.Authenticator
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	switch cfg.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == gin.DebugMode {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	ctrl := signal.NewSignalWSController(
		deps.Orch,
		signal.Decoder{Validator: rtc.Validator{Strict: cfg.Signaling.ValidateSDP}},
		signal.NewConnRateLimiter(cfg.Signaling.RateLimit, cfg.Signaling.RateInterval),
		deps.Metrics,
		signal.Options{
			SendBuffer: cfg.SendBuffer,
			ReadLimit:  cfg.ReadLimit,
			PingPeriod: cfg.PingPeriod,
			PongWait:   cfg.PongWait,
			WriteWait:  cfg.WriteWait,
		},
	)
	h := &handlers{orch: deps.Orch}

	r.GET("/healthz", healthz)
	if cfg.Metrics.Enabled && deps.Gatherer != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	authed := r.Group("/", AuthMiddleware(deps.Auth, deps.Metrics))
	authed.GET("/ws", func(c *gin.Context) {
		uid := userID(c)
		log.Debug().Str("module", "adapters.http").Str("user", string(uid)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c.Writer, c.Request, uid)
	})

	api := authed.Group("/api")
	api.GET("/streams", h.streams)
	api.GET("/presence", h.presence)
	api.GET("/presence/:userId", h.userPresence)
	api.GET("/ice-servers", h.iceServers)

	log.Info().Str("module", "adapters.http").Bool("metrics", cfg.Metrics.Enabled).Msg("router setup")
	return r
}
