package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/auth"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/config"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/core"
)

// guestTokensPerMinute bounds unauthenticated token minting.
const guestTokensPerMinute = 120

// APIHandlers provides HTTP handlers for the REST boundary.
type APIHandlers struct {
	authService  *auth.Service
	hub          *core.Hub
	cfg          *config.Config
	log          *zerolog.Logger
	guestLimiter *rateLimiter
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) *APIHandlers {
	limiter := newRateLimiter(guestTokensPerMinute)
	limiter.startReset(make(chan struct{}))
	return &APIHandlers{
		authService:  authService,
		hub:          hub,
		cfg:          cfg,
		log:          logger,
		guestLimiter: limiter,
	}
}

// GuestRequest represents the guest token request body.
type GuestRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// AuthResponse represents the token response body.
type AuthResponse struct {
	Token string `json:"token"`
}

// JoinResponse hands back the signaling endpoint for a room.
type JoinResponse struct {
	RoomID      string   `json:"roomId"`
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	STUNServers []string `json:"stunServers,omitempty"`
}

// StatsResponse summarizes current hub occupancy.
type StatsResponse struct {
	Rooms   int `json:"rooms"`
	Members int `json:"members"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GuestToken issues a short-lived guest token for a display name.
// POST /api/auth/guest
func (h *APIHandlers) GuestToken(c *gin.Context) {
	if !h.guestLimiter.allow() {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
		return
	}

	var req GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid guest token request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.IssueGuestToken(req.Name)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidName) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid display name"})
			return
		}
		h.log.Error().Err(err).Msg("failed to issue guest token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("name", req.Name).Msg("guest token issued")
	c.JSON(http.StatusCreated, AuthResponse{Token: token})
}

// JoinRoom hands back the signaling endpoint URL for a room. Rooms are
// not pre-registered; any room id is accepted and materializes on the
// signaling channel when the first participant announces presence.
// POST /api/rooms/:room/join
func (h *APIHandlers) JoinRoom(c *gin.Context) {
	roomID := c.Param("room")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room id is required"})
		return
	}

	name, _ := c.Get(ContextKeyName)
	displayName, _ := name.(string)

	h.log.Debug().Str("room", roomID).Str("name", displayName).Msg("room join requested")
	c.JSON(http.StatusOK, JoinResponse{
		RoomID:      roomID,
		URL:         h.cfg.PublicURL,
		Name:        displayName,
		STUNServers: h.cfg.STUNServers,
	})
}

// Stats reports room and member counts.
// GET /api/stats
func (h *APIHandlers) Stats(c *gin.Context) {
	s := h.hub.Stats()
	c.JSON(http.StatusOK, StatsResponse{Rooms: s.Rooms, Members: s.Members})
}
