// Package server exposes the hedge pipeline over HTTP for callers that
// cannot run the CLI, such as an oracle node's external adapter.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"hedgeflow/config"
	"hedgeflow/hedge"
	"hedgeflow/internal/metrics"
	"hedgeflow/logger"
	"hedgeflow/models"
)

// Executor runs one hedge from raw invocation arguments.
type Executor interface {
	Execute(ctx context.Context, args []string) (models.RunRecord, error)
}

type hedgeRequest struct {
	Args []string `json:"args"`
}

// Server hosts the hedge endpoint. Requests are handled concurrently, each
// with its own pipeline run.
type Server struct {
	cfg        config.ServerConfig
	executor   Executor
	prometheus bool
	log        *logger.Log
	runs       *runStore
	logs       *logStore
	httpServer *http.Server
}

func NewServer(cfg config.ServerConfig, executor Executor, prometheus bool, log *logger.Log) *Server {
	cfg.Address = normalizeAddress(cfg.Address)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	return &Server{
		cfg:        cfg,
		executor:   executor,
		prometheus: prometheus,
		log:        log,
		runs:       newRunStore(200),
		logs:       newLogStore(200),
	}
}

// Address reports the network address the server listens on.
func (s *Server) Address() string {
	return s.cfg.Address
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails.
func (s *Server) Run(ctx context.Context) error {
	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	s.log.AddHook(s.logs)
	defer s.logs.close()

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}
	s.log.WithComponent("server").WithFields(logger.Fields{"address": s.cfg.Address}).Info("listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if s.prometheus {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	router.POST("/v1/hedge", s.handleHedge)

	router.GET("/api/runs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"runs": s.runs.snapshot()})
	})

	router.GET("/api/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"logs": s.logs.snapshot()})
	})

	return router, nil
}

func (s *Server) handleHedge(c *gin.Context) {
	var req hedgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error(), "stage": hedge.StageInput})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	rec, err := s.executor.Execute(ctx, req.Args)
	log := s.log.WithComponent("server").WithFields(logger.Fields{
		"remote":      c.ClientIP(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		stage := hedge.FailedStage(err)
		log.WithError(err).WithFields(logger.Fields{"stage": stage}).Warn("hedge request failed")
		s.runs.add(runSummary{Timestamp: start, RunID: rec.RunID, Stage: stage, Error: err.Error()})
		c.JSON(statusFor(stage), gin.H{"error": err.Error(), "stage": stage})
		return
	}

	log.WithFields(logger.Fields{"run_id": rec.RunID, "order_id": rec.Outcome.OrderID}).Info("hedge request served")
	s.runs.add(runSummary{Timestamp: start, RunID: rec.RunID, OrderID: rec.Outcome.OrderID, Result: rec.Payload})
	c.JSON(http.StatusOK, gin.H{"result": rec.Payload})
}

func statusFor(stage string) int {
	switch stage {
	case hedge.StageInput:
		return http.StatusBadRequest
	case hedge.StageStrikeSelection, hedge.StageInstrumentResolution:
		return http.StatusUnprocessableEntity
	case hedge.StageResultEncoding, "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil && parsed.Host != "" {
			addr = parsed.Host
		}
	}

	if strings.HasPrefix(addr, ":") && len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
		return "0.0.0.0" + addr
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if !strings.Contains(addr, ":") || net.ParseIP(addr) != nil {
		return net.JoinHostPort(addr, "8080")
	}
	return addr
}
