// Package api serves the HTTP surface next to the Socket.IO transport.
package api

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/kiliankoe/promptheist/internal/game"
	"github.com/kiliankoe/promptheist/internal/identity"
	"github.com/kiliankoe/promptheist/internal/validation"
	"github.com/kiliankoe/promptheist/internal/xp"
	"github.com/rs/zerolog/log"
)

// Snapshotter reads the projected state of a room.
type Snapshotter interface {
	Snapshot(ctx context.Context, roomID string) (game.Snapshot, error)
}

// Deps are the collaborators behind the routes. Store may be nil when the
// leaderboard is disabled; Feed may be nil to skip the observer websocket.
type Deps struct {
	Games       Snapshotter
	Store       xp.Store
	Directory   *identity.Directory
	Verifier    identity.Verifier
	Feed        gin.HandlerFunc
	CORSOrigins []string
	Now         func() time.Time
}

var registerOnce sync.Once

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(d Deps) *gin.Engine {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Directory == nil {
		d.Directory = identity.NewDirectory()
	}
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			if err := validation.Register(v); err != nil {
				log.Error().Err(err).Msg("register validation rules")
			}
		}
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(cors.New(corsConfig(d.CORSOrigins)))

	h := &handlers{deps: d}
	r.GET("/health", h.health)
	r.POST("/api/profile/display-name", h.setDisplayName)
	r.GET("/api/leaderboard", h.leaderboard)
	r.GET("/api/rooms/:roomId/state", h.roomState)
	if d.Feed != nil {
		r.GET("/ws/rooms/:roomId", d.Feed)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// requestLogger logs every request except the Socket.IO polling noise.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("dur", time.Since(start)).
			Msg("http")
	}
}
