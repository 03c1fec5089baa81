// Package server exposes the script history ledger over a read-only HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/mongorun"
	"github.com/loykin/mongorun/internal/common"
	"github.com/loykin/mongorun/pkg/status"
)

// Options configures the server. A nil JWT leaves the history routes open.
type Options struct {
	JWT *JWTConfig
}

// Server serves GET /healthz, GET /history and GET /history/:id.
type Server struct {
	st     mongorun.Store
	engine *gin.Engine
}

// New builds the routes over st.
func New(st mongorun.Store, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	s := &Server{st: st, engine: engine}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	history := engine.Group("/history")
	if opts.JWT != nil {
		history.Use(RequireJWT(*opts.JWT))
	}
	history.GET("", s.list)
	history.GET("/:id", s.get)
	return s
}

// Handler returns the http.Handler of the server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) list(c *gin.Context) {
	filter := mongorun.Filter{Collection: c.Query("collection")}
	if v := c.Query("failed"); v != "" {
		failed, err := strconv.ParseBool(v)
		if err != nil {
			abort(c, http.StatusBadRequest, "failed must be a boolean")
			return
		}
		filter.FailedOnly = failed
	}
	recs, err := s.st.List(c.Request.Context(), filter)
	if err != nil {
		common.LogError("history list failed", err)
		abort(c, http.StatusInternalServerError, "history store unavailable")
		return
	}
	c.JSON(http.StatusOK, status.FromRecords(recs))
}

func (s *Server) get(c *gin.Context) {
	rec, ok, err := s.st.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.LogError("history get failed", err, "id", c.Param("id"))
		abort(c, http.StatusInternalServerError, "history store unavailable")
		return
	}
	if !ok {
		abort(c, http.StatusNotFound, "script not found")
		return
	}
	c.JSON(http.StatusOK, status.FromRecords([]mongorun.Record{rec}).History[0])
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	common.LogInfo("history server listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
