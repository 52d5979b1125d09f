// Package statsrv serves a read-only HTTP view of a running chat
// server: liveness, the metrics snapshot and the current participants.
package statsrv

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"gochat/internal/metrics"
	"gochat/internal/registry"
	"gochat/internal/session"
	"gochat/util"
)

const shutdownTimeout = 2 * time.Second

// SessionResponse describes one participant in GET /sessions.
type SessionResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Remote   string `json:"remote"`
	JoinedAt string `json:"joined_at"`
}

// Server exposes registry and metrics state over HTTP.
type Server struct {
	registry *registry.Registry
	metrics  *metrics.Collector
	logger   *util.Logger
	engine   *gin.Engine
}

// New builds the router.  metrics may be nil.
func New(reg *registry.Registry, m *metrics.Collector, logger *util.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{registry: reg, metrics: m, logger: logger}
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", s.getMetrics)
	r.GET("/sessions", s.listSessions)

	s.engine = r
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(sctx) //nolint:errcheck
	}()

	s.logger.Verbose("stats endpoint on http://%s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) listSessions(c *gin.Context) {
	out := lo.Map(s.registry.Sessions(), func(sess *session.Session, _ int) SessionResponse {
		return SessionResponse{
			ID:       sess.ID.String(),
			Name:     sess.Name(),
			Remote:   sess.RemoteAddr(),
			JoinedAt: sess.JoinedAt().UTC().Format(time.RFC3339Nano),
		}
	})
	c.JSON(http.StatusOK, out)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s %d %v", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	}
}
