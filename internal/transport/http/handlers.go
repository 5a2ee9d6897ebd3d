// Package http serves the local debug and control endpoints of a running
// voice client.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicelink/internal/domain"
	"github.com/dkeye/voicelink/internal/session"
)

// Controller is the part of the session manager exposed over HTTP.
type Controller interface {
	Stats() session.Stats
	SendMessage(text string) error
	SetLocalIdentityMetadata(value string) error
}

type ChatRequest struct {
	Text string `json:"text"`
}

type NameRequest struct {
	Name string `json:"name"`
}

func SetupRouter(mode string, ctl Controller, gatherer prometheus.Gatherer) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")

	// GET /api/status: session snapshot
	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Stats())
	})

	// POST /api/chat: send a chat message to the room
	api.POST("/chat", func(c *gin.Context) {
		var req ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid text"})
			return
		}
		if err := ctl.SendMessage(req.Text); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusAccepted)
	})

	// PUT /api/name: publish a new display name
	api.PUT("/name", func(c *gin.Context) {
		var req NameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid name"})
			return
		}
		if err := ctl.SetLocalIdentityMetadata(req.Name); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusAccepted)
	})

	log.Info().Str("module", "transport.http").Str("mode", mode).Msg("router setup")
	return r
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUsernameEmpty), errors.Is(err, domain.ErrUsernameTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
