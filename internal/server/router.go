package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loykin/cpusentry/internal/config"
	"github.com/loykin/cpusentry/internal/monitor"
)

// Source is the read-only view the router exposes. *monitor.Monitor
// satisfies it.
type Source interface {
	Status() monitor.StatusSnapshot
	Config() *config.Config
}

// Router provides embeddable read-only HTTP handlers for the agent.
// Endpoints:
//
//	GET {basePath}/status   current window state and per-instance statistics
//	GET {basePath}/config   active configuration snapshot
//	GET {basePath}/healthz  liveness probe
//	GET {basePath}/metrics  prometheus exposition
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	src      Source
	basePath string
}

func NewRouter(src Source, basePath string) *Router {
	return &Router{src: src, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/config", r.handleConfig)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, src Source) *http.Server {
	r := NewRouter(src, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type statusResp struct {
	At            time.Time               `json:"at"`
	WindowStart   time.Time               `json:"window_start"`
	WindowElapsed string                  `json:"window_elapsed"`
	Capacity      int                     `json:"window_capacity"`
	Tracked       int                     `json:"tracked_instances"`
	Instances     []monitor.InstanceStats `json:"instances"`
}

func (r *Router) handleStatus(c *gin.Context) {
	s := r.src.Status()
	elapsed := time.Duration(0)
	if !s.WindowStart.IsZero() {
		elapsed = s.At.Sub(s.WindowStart)
	}
	c.JSON(http.StatusOK, statusResp{
		At:            s.At,
		WindowStart:   s.WindowStart,
		WindowElapsed: elapsed.String(),
		Capacity:      s.Capacity,
		Tracked:       len(s.Instances),
		Instances:     s.Instances,
	})
}

func (r *Router) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, r.src.Config())
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimSuffix(bp, "/")
}
