package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	"market-agent/src/helpers"
	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/metrics"
	"market-agent/src/models"
	"market-agent/src/relay"

	"github.com/gin-gonic/gin"
)

//go:embed static/index.html
var static embed.FS

const shutdownTimeout = 5 * time.Second

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

type APIServer struct {
	Config       *models.MConfig
	Logger       *logger.Logger
	Handler      interfaces.IChatHandler
	Hub          *relay.Hub // nil when events go to hosted Pusher
	Metrics      *metrics.Collector
	Capabilities []string

	engine *gin.Engine
	http   *http.Server
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, h interfaces.IChatHandler, hub *relay.Hub, m *metrics.Collector, capabilities []string, log *logger.Logger) *APIServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:       cfg,
		Logger:       log,
		Handler:      h,
		Hub:          hub,
		Metrics:      m,
		Capabilities: capabilities,
		engine:       gin.New(),
	}
	s.engine.Use(gin.Recovery(), corsMiddleware())
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	s.engine.GET("/", s.getIndex)

	api := s.engine.Group("/api")
	api.POST("/chat", s.postChat)
	api.GET("/config", s.getConfig)
	api.GET("/health", s.getHealth)

	if s.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}
	if s.Hub != nil {
		s.engine.GET("/ws", gin.WrapH(s.Hub))
	}
}

// Engine exposes the router, mainly for tests
func (s *APIServer) Engine() *gin.Engine {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves until ctx ends, then shuts down gracefully
func (s *APIServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.http = &http.Server{Addr: addr, Handler: s.engine}
	s.Logger.Info("Starting server on %s", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return helpers.NewNetworkError("http server", err)
	case <-ctx.Done():
		return s.Stop()
	}
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop() error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.Logger.Info("Stopping server")
	return s.http.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) postChat(c *gin.Context) {
	var req models.MChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, helpers.NewValidationError("invalid chat request", err))
		return
	}

	requestID, err := s.Handler.Handle(c.Request.Context(), req)
	if requestID != "" {
		c.Header("X-Request-Id", requestID)
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getConfig(c *gin.Context) {
	relayCfg := s.Config.Relay
	body := gin.H{
		"channel":                 relayCfg.Channel,
		"relay_driver":            relayCfg.Driver,
		"capabilities":            s.Capabilities,
		"loading_timeout_seconds": s.Config.Client.LoadingTimeoutSeconds,
	}
	// The browser connects to hosted Pusher itself, so it needs the public key
	if relayCfg.Driver == "pusher" {
		body["pusher_key"] = relayCfg.Key
		body["pusher_cluster"] = relayCfg.Cluster
	}
	c.JSON(http.StatusOK, body)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	connections := 0
	if s.Hub != nil {
		connections = s.Hub.Subscribers()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": connections,
		"channel":     s.Config.Relay.Channel,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getIndex(c *gin.Context) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}
