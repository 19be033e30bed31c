package http

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/telecare/consult/internal/adapters/signal"
	"github.com/telecare/consult/internal/analysis/speech"
	"github.com/telecare/consult/internal/app"
	"github.com/telecare/consult/internal/config"
	"github.com/telecare/consult/internal/domain"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller, reg *app.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ConsultSessions", store))
	r.Use(ClientTokenMiddleware())

	r.LoadHTMLGlob(filepath.Join(cfg.WebPath, "templates", "*.html"))
	r.Static("/static", filepath.Join(cfg.WebPath, "static"))

	r.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", nil)
	})
	r.GET("/doctor", func(c *gin.Context) {
		c.HTML(http.StatusOK, "doctor.html", nil)
	})
	r.GET("/patient", func(c *gin.Context) {
		c.HTML(http.StatusOK, "patient.html", nil)
	})
	r.GET("/consultation/:session_id", func(c *gin.Context) {
		c.HTML(http.StatusOK, "consultation.html", gin.H{
			"SessionID": c.Param("session_id"),
			"Role":      c.DefaultQuery("role", "patient"),
		})
	})

	log.Info().Str("module", "adapters.http").Str("web", cfg.WebPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("ct", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	api.GET("/sessions/:session_id/summary", func(c *gin.Context) {
		id := domain.SessionID(c.Param("session_id"))
		snap, ok := reg.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": id,
			"summary":    speech.Summarize(snap.Transcripts),
		})
	})

	return r
}
