package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/promptheist/internal/game"
	"github.com/kiliankoe/promptheist/internal/identity"
	"github.com/kiliankoe/promptheist/internal/xp"
	"github.com/rs/zerolog/log"
)

const requestTimeout = 5 * time.Second

type handlers struct {
	deps Deps
}

type displayNameRequest struct {
	Wallet      string `json:"wallet" binding:"required,eth_addr"`
	DisplayName string `json:"displayName" binding:"required,handle"`
	Timestamp   int64  `json:"timestamp" binding:"required,gt=0"`
	Signature   string `json:"signature" binding:"required,min=10"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": h.deps.Now().UTC()})
}

func (h *handlers) setDisplayName(c *gin.Context) {
	var req displayNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	err := h.deps.Verifier.Verify(req.Wallet, req.DisplayName, req.Timestamp, req.Signature)
	switch {
	case errors.Is(err, identity.ErrWalletMismatch), errors.Is(err, identity.ErrStale):
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": err.Error()})
		return
	case errors.Is(err, identity.ErrBadSignature):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("wallet", req.Wallet).Msg("verify display name")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "verification failed"})
		return
	}

	wallet := game.NormalizeIdentity(req.Wallet)
	h.deps.Directory.Set(wallet, req.DisplayName)
	if h.deps.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		if err := h.deps.Store.UpsertPlayer(ctx, wallet, req.DisplayName); err != nil {
			log.Warn().Err(err).Str("wallet", wallet).Msg("persist display name")
		}
	}
	log.Info().Str("wallet", wallet).Str("displayName", req.DisplayName).Msg("display name set")
	c.JSON(http.StatusOK, gin.H{"ok": true, "wallet": wallet, "displayName": req.DisplayName})
}

func (h *handlers) leaderboard(c *gin.Context) {
	if h.deps.Store == nil {
		c.JSON(http.StatusOK, gin.H{"players": []xp.Player{}})
		return
	}
	limit := xp.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	players, err := h.deps.Store.TopPlayers(ctx, xp.ClampLimit(limit))
	if err != nil {
		log.Error().Err(err).Msg("read leaderboard")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard unavailable"})
		return
	}
	if players == nil {
		players = []xp.Player{}
	}
	c.JSON(http.StatusOK, gin.H{"players": players})
}

func (h *handlers) roomState(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	snap, err := h.deps.Games.Snapshot(ctx, c.Param("roomId"))
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, snap)
	}
}
