package server

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/jobtracker/internal/job"
	"github.com/joshu-sajeev/jobtracker/internal/live"
	"github.com/joshu-sajeev/jobtracker/middleware"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Handler        job.JobHandlerInterface
	Hub            *live.Hub
	Logger         *slog.Logger
	RequestTimeout time.Duration
	// AllowedOrigins lists the CORS origins; empty or "*" allows any.
	AllowedOrigins []string
	// Checks are pinged by /healthz, keyed by the name reported back.
	Checks map[string]Pinger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(d.Logger),
		cors.New(corsConfig(d.AllowedOrigins)),
		middleware.ErrorHandler(),
	)

	// websocket streams outlive any request timeout
	if d.Hub != nil {
		r.GET("/ws", live.ServeWS(d.Hub, d.Logger))
	}

	bounded := r.Group("", middleware.TimeoutMiddleware(d.RequestTimeout))
	job.RegisterRoutes(bounded, d.Handler)
	bounded.GET("/healthz", health(d.Checks))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func health(checks map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))

		for name, p := range checks {
			if err := p.Ping(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		c.JSON(status, gin.H{"success": status == http.StatusOK, "checks": results})
	}
}
