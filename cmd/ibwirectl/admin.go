package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danmuck/ibwire/internal/gateway"
	"github.com/danmuck/ibwire/internal/observability"
)

const adminNode = "ibwirectl"

func newAdminRouter(conn *gateway.Conn, origins []string, log zerolog.Logger) *gin.Engine {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log, "/health", "/ready", "/metrics"))
	r.Use(observability.RequestMetricsMiddleware(adminNode))
	if len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	started := time.Now()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(started).String(),
			"node":   adminNode,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		state := conn.State()
		code := http.StatusOK
		if state != gateway.StateReady {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready": state == gateway.StateReady,
			"state": state.String(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/status", func(c *gin.Context) {
		out := conn.Outbound()
		c.JSON(http.StatusOK, gin.H{
			"state":          conn.State().String(),
			"session_id":     conn.SessionID(),
			"server_version": conn.ServerVersion(),
			"server_time":    conn.ServerTime(),
			"pending":        conn.PendingCount(),
			"outbound": gin.H{
				"messages": out.Messages,
				"bytes":    out.Bytes,
			},
		})
	})

	r.GET("/pending", func(c *gin.Context) {
		list := conn.Pending()
		items := make([]gin.H, 0, len(list))
		for _, p := range list {
			item := gin.H{
				"id":        p.ID,
				"issued_at": p.IssuedAt,
				"frames":    p.Frames,
			}
			if !p.Deadline.IsZero() {
				item["deadline"] = p.Deadline
			}
			items = append(items, item)
		}
		c.JSON(http.StatusOK, gin.H{"pending": items})
	})

	return r
}
