// Package server exposes the HTTP API for transmitting picodes and
// inspecting the daemon.
package server

import (
	"html/template"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/msageha/ookd/internal/config"
	"github.com/msageha/ookd/internal/events"
	"github.com/msageha/ookd/internal/lock"
	"github.com/msageha/ookd/internal/observability"
	"github.com/msageha/ookd/internal/txctl"
	"github.com/msageha/ookd/web"
)

type Server struct {
	cfg     config.Config
	log     zerolog.Logger
	sched   *txctl.Scheduler
	drvName string
	bus     *events.Bus
	stats   *Stats
	locks   *lock.Channels
}

func New(cfg config.Config, logger zerolog.Logger, sched *txctl.Scheduler, drvName string, bus *events.Bus, stats *Stats) *Server {
	return &Server{
		cfg:     cfg,
		log:     logger,
		sched:   sched,
		drvName: drvName,
		bus:     bus,
		stats:   stats,
		locks:   lock.NewChannels(),
	}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(s.log))
	r.Use(observability.RequestMetrics())
	r.Use(noCache())
	// The landing page posts cross-origin when framed.
	r.Use(cors.Default())

	r.SetHTMLTemplate(template.Must(template.ParseFS(web.FS, "logs.html")))

	r.GET("/", s.handleIndex)
	r.POST("/", s.handleSend)
	r.GET("/picode", s.handleSend)
	r.POST("/picode", s.handleSend)
	r.GET("/picode/:picode", s.handleSendPath)
	r.GET("/config", s.handleConfig)
	r.GET("/status", s.handleStatus)
	r.GET("/logs", s.handleLogs)
	r.GET("/logs/:file", s.handleLogFile)
	r.GET("/events", s.handleEvents)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		plain(c, http.StatusNotFound, "Error(404): Route not found %s", c.Request.URL.String())
	})
	r.NoMethod(func(c *gin.Context) {
		plain(c, http.StatusMethodNotAllowed,
			"Error(405) Method (%s) Not Allowed: The method is not allowed for the requested URL: %s",
			c.Request.Method, c.Request.URL.String())
	})

	return r
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

var indexHTML = mustRead("index.html")

func mustRead(name string) []byte {
	data, err := web.FS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return data
}

// plain writes the text/plain responses the API speaks, newline-terminated
// for shell callers.
func plain(c *gin.Context, status int, format string, args ...any) {
	c.String(status, format+"\n", args...)
}

func noCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
