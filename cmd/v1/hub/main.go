// Command hub runs the signaling hub: presence, rooms, chat, and call
// setup over a websocket, plus the thin HTTP collaborators (TURN
// credentials, push public key, health, static assets) that sit outside
// the websocket core. Wiring follows a gin router, CORS, correlation-id
// middleware, Prometheus /metrics, and a context-timeout graceful
// shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Preon1/lrcom/internal/v1/bus"
	"github.com/Preon1/lrcom/internal/v1/config"
	"github.com/Preon1/lrcom/internal/v1/health"
	"github.com/Preon1/lrcom/internal/v1/hub"
	"github.com/Preon1/lrcom/internal/v1/logging"
	"github.com/Preon1/lrcom/internal/v1/middleware"
	"github.com/Preon1/lrcom/internal/v1/push"
	"github.com/Preon1/lrcom/internal/v1/ratelimit"
	"github.com/Preon1/lrcom/internal/v1/turn"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		// Logging isn't initialized yet; this is the one place a bare
		// stderr write beats a dropped startup error.
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		os.Stderr.WriteString("logger initialization failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	if cfg.StartupLog != "" {
		cfg.LogStartup()
	}

	var busService *bus.Service
	if cfg.RedisAddr != "" {
		busService, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Error(nil, "redis bus unavailable, continuing single-process", zap.Error(err))
			busService = nil
		}
	}

	var sink push.Sink = push.NewNoop()
	if cfg.PushEnabled() && cfg.PushGatewayURL != "" {
		sink = push.NewHTTPSink(cfg.PushGatewayURL)
	}

	turnCfg := turn.Config{
		URLs:               cfg.TurnURLs,
		Secret:             cfg.TurnSecret,
		UsernameTTLSeconds: cfg.TurnUsernameTTLSeconds,
		RelayMinPort:       cfg.TurnRelayMinPort,
		RelayMaxPort:       cfg.TurnRelayMaxPort,
	}
	https := cfg.TLSKeyPath != "" && cfg.TLSCertPath != ""

	h := hub.New(turnCfg, https, sink, busService)

	ctx, cancelBus := context.WithCancel(context.Background())
	defer cancelBus()
	var busWG sync.WaitGroup
	h.RunBusSubscriber(ctx, &busWG)

	rateLimiter, err := ratelimit.New("20-M", "60-M", nil)
	if err != nil {
		logging.Error(nil, "failed to construct rate limiter", zap.Error(err))
		os.Exit(1)
	}

	healthHandler := health.NewHandler(busService)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.CorrelationID())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/turn", rateLimiter.HTTPMiddleware(), func(c *gin.Context) {
		ice := turn.BuildIceConfig(turnCfg, time.Now())
		c.JSON(http.StatusOK, ice)
	})

	router.GET("/api/push/public-key", rateLimiter.HTTPMiddleware(), func(c *gin.Context) {
		if !cfg.PushEnabled() {
			c.JSON(http.StatusOK, gin.H{"enabled": false, "publicKey": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"enabled": true, "publicKey": cfg.VapidPublicKey})
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(cfg.AllowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range cfg.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}

	router.GET("/ws", rateLimiter.ConnectMiddleware(), func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
			return
		}
		h.Accept(c.Request.Context(), conn, c.Request.RemoteAddr)
	})

	// Static assets are served from NoRoute rather than Static("/"): a
	// root-level wildcard would conflict with the registered API routes in
	// gin's routing tree.
	if cfg.PublicDir != "" {
		fileServer := http.FileServer(http.Dir(cfg.PublicDir))
		router.NoRoute(gin.WrapH(fileServer))
	}

	addr := cfg.Host + ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		var serveErr error
		if https {
			serveErr = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			serveErr = srv.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			logging.Fatal(nil, "server failed", zap.Error(serveErr))
		}
	}()
	logging.Info(nil, "signal hub listening", zap.String("addr", addr), zap.Bool("https", https))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info(nil, "shutdown signal received")
	h.Shutdown()
	cancelBus()
	busWG.Wait()
	if busService != nil {
		busService.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(nil, "graceful shutdown failed", zap.Error(err))
	}
}
