package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/railzwaylabs/paygate/internal/config"
	"github.com/railzwaylabs/paygate/internal/observability"
	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxWebhookBody = 1 << 20

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	DB         *gorm.DB
	PaymentSvc domain.Service
	WebhookSvc domain.WebhookService
	Metrics    *observability.Metrics `optional:"true"`
	Registry   *prometheus.Registry   `optional:"true"`
	Redis      *redis.Client          `optional:"true"`
}

type Server struct {
	cfg        config.Config
	log        *zap.Logger
	db         *gorm.DB
	paymentSvc domain.Service
	webhookSvc domain.WebhookService
	metrics    *observability.Metrics
	gatherer   prometheus.Gatherer
	redis      *redis.Client
	engine     *gin.Engine
}

func NewServer(p Params) *Server {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if p.Registry != nil {
		// The gorm metrics plugin registers on the default registry.
		gatherer = prometheus.Gatherers{p.Registry, prometheus.DefaultGatherer}
	}
	s := &Server{
		cfg:        p.Cfg,
		log:        p.Log.Named("server"),
		db:         p.DB,
		paymentSvc: p.PaymentSvc,
		webhookSvc: p.WebhookSvc,
		metrics:    p.Metrics,
		gatherer:   gatherer,
		redis:      p.Redis,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.requestLogger(), s.instrument())

	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.POST("/webhooks/:provider", s.HandleWebhook)
	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/:id", s.GetOrder)
	api.POST("/orders/:id/payments", s.CreatePayment)
	api.GET("/transactions/:id", s.GetTransaction)
	api.GET("/providers/:provider/statuses/:token", s.LookupStatus)

	r.NoRoute(func(c *gin.Context) { AbortWithError(c, ErrNotFound) })
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestIDFromContext(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			s.log.Error("request failed", fields...)
		case status == http.StatusUnauthorized:
			s.log.Warn("request rejected", fields...)
		default:
			s.log.Debug("request served", fields...)
		}
	}
}

func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.metrics == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		s.metrics.HTTPRequestLatency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Health reports whether the database, and Redis when enabled, answer.
// GET /healthz
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "down"
		healthy = false
	} else {
		checks["database"] = "up"
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
			healthy = false
		} else {
			checks["redis"] = "up"
		}
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks, "version": s.cfg.App.Version})
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(registerHTTPServer),
)

func registerHTTPServer(lc fx.Lifecycle, s *Server, cfg config.Config) {
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
