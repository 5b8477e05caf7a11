package peer

import (
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/tensorwire/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminRouter exposes the peer's read-only operational surface: health,
// transfer stats and prometheus metrics.
func (p *Peer) AdminRouter(corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestMiddleware(p.name, p.log))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"name":   p.name,
			"rank":   p.rank,
			"uptime": time.Since(p.started).String(),
		})
	})
	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, p.Snapshot())
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		out = append(out, "http://localhost:3000")
	}
	return out
}
