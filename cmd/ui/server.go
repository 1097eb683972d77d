package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIServer serves the portfolio API over HTTP.
type APIServer struct {
	server    *http.Server
	logger    *zap.Logger
	startTime time.Time
}

// NewAPIServer creates a new APIServer listening on port.
func NewAPIServer(port int, h *APIHandler, logger *zap.Logger) *APIServer {
	s := &APIServer{
		logger:    logger.Named("api-server"),
		startTime: time.Now(),
	}
	router := newRouter(h)
	router.GET("/api/status", s.statusHandler)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":       "portfolio-tracker",
		"start_time": s.startTime.Format(time.RFC3339),
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
	})
}
