// Package api exposes the REST surface: guest credentials, room
// lifecycle and read-side projections. Realtime gameplay commands go
// over the WebSocket gateway; REST covers what a client needs before a
// socket exists and what it polls after one breaks.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quipround/quipround/internal/auth"
	"github.com/quipround/quipround/internal/game"
)

type Server struct {
	manager  *game.Manager
	registry *auth.Registry
	log      zerolog.Logger
}

func New(manager *game.Manager, registry *auth.Registry, log zerolog.Logger) *Server {
	return &Server{manager: manager, registry: registry, log: log}
}

// Register mounts all REST routes on the engine. ws is the already
// authenticated WebSocket entrypoint and is mounted alongside so the
// whole surface shares one router.
func (s *Server) Register(r *gin.Engine, ws http.HandlerFunc) {
	r.POST("/api/auth/guest", s.guestAuth)

	authed := r.Group("/api", s.requireAuth)
	authed.POST("/rooms", s.createRoom)
	authed.POST("/rooms/join", s.joinRoom)
	authed.GET("/rooms/:code", s.getRoom)
	authed.DELETE("/rooms/:code/leave", s.leaveRoom)
	authed.GET("/game/rounds/:id/answers", s.roundAnswers)
	authed.GET("/game/:code/leaderboard", s.leaderboard)

	if ws != nil {
		r.GET("/ws", gin.WrapF(ws))
	}
}

const identityKey = "identity"

// requireAuth resolves the bearer token to an identity and stores it on
// the request context for the handlers.
func (s *Server) requireAuth(c *gin.Context) {
	h := c.GetHeader("Authorization")
	if len(h) < 8 || h[:7] != "Bearer " {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing bearer token"})
		return
	}
	ident, err := s.registry.Verify(c.Request.Context(), h[7:])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid token"})
		return
	}
	c.Set(identityKey, ident)
	c.Next()
}

func identity(c *gin.Context) auth.Identity {
	return c.MustGet(identityKey).(auth.Identity)
}

// fail writes the stable error code with the matching HTTP status.
func fail(c *gin.Context, err error) {
	code := game.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case "not_found":
		status = http.StatusNotFound
	case "forbidden":
		status = http.StatusForbidden
	case "invalid_phase", "duplicate_submission", "precondition_failed", "capacity_exceeded":
		status = http.StatusConflict
	case "invalid_target", "invalid_argument":
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

type guestAuthRequest struct {
	Username string `json:"username" binding:"required"`
}

func (s *Server) guestAuth(c *gin.Context) {
	var req guestAuthRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_argument", "message": "username is required"})
		return
	}
	token, ident := s.registry.Issue(req.Username)
	c.JSON(http.StatusOK, gin.H{"token": token, "user": ident})
}

type createRoomRequest struct {
	MaxPlayers  int `json:"max_players"`
	TotalRounds int `json:"total_rounds"`
	AnswerTime  int `json:"answer_time"`
	VoteTime    int `json:"vote_time"`
}

func (s *Server) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_argument", "message": "malformed body"})
		return
	}
	ident := identity(c)
	room, err := s.manager.CreateRoom(c.Request.Context(), ident.ID, ident.Username, game.RoomConfig{
		MaxPlayers:  req.MaxPlayers,
		TotalRounds: req.TotalRounds,
		AnswerTime:  req.AnswerTime,
		VoteTime:    req.VoteTime,
	})
	if err != nil {
		fail(c, err)
		return
	}
	s.log.Info().Str("room", room.Code).Str("host", ident.ID).Msg("room created")
	c.JSON(http.StatusCreated, room.SnapshotFor(ident.ID))
}

type joinRoomRequest struct {
	RoomCode string `json:"room_code" binding:"required"`
}

func (s *Server) joinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_argument", "message": "room_code is required"})
		return
	}
	ident := identity(c)
	room, err := s.manager.Get(req.RoomCode)
	if err != nil {
		fail(c, err)
		return
	}
	if _, err := room.Join(c.Request.Context(), ident.ID, ident.Username); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room.SnapshotFor(ident.ID))
}

func (s *Server) getRoom(c *gin.Context) {
	room, err := s.manager.Get(c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room.SnapshotFor(identity(c).ID))
}

func (s *Server) leaveRoom(c *gin.Context) {
	ident := identity(c)
	if err := s.manager.Leave(c.Request.Context(), c.Param("code"), ident.ID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) roundAnswers(c *gin.Context) {
	ident := identity(c)
	room, err := s.manager.RoomByRound(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !room.IsMember(ident.ID) {
		fail(c, game.ErrNotMember)
		return
	}
	answers, err := room.RoundAnswers(c.Param("id"), ident.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answers": answers})
}

func (s *Server) leaderboard(c *gin.Context) {
	room, err := s.manager.Get(c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": room.Leaderboard(), "status": room.Status()})
}
