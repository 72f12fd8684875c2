package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type adminSessionURI struct {
	Code string `uri:"code" binding:"required,sessioncode"`
}

type adminNoticeRequest struct {
	Message string `json:"message" binding:"required,max=200"`
}

var adminNoticeMessages = bindMessages{
	"Message": {
		"required": "notice message is required",
		"max":      "notice message must be 200 characters or fewer",
	},
}

func (s *Server) adminRouter() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	registerValidators()
	router := gin.New()
	router.Use(gin.Recovery())
	api := router.Group("/admin/api", s.requireAdminToken)
	api.GET("/sessions", s.handleAdminListSessions)
	api.GET("/sessions/:code", s.handleAdminGetSession)
	api.POST("/sessions/:code/end", s.handleAdminEndSession)
	api.POST("/sessions/:code/notice", s.handleAdminNotifySession)
	return router
}

// requireAdminToken guards the admin surface with a bearer token.
// With no token configured the surface is disabled outright.
func (s *Server) requireAdminToken(c *gin.Context) {
	if s.cfg.AdminToken == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "admin surface disabled"})
		return
	}
	provided := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(provided)), []byte(s.cfg.AdminToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
		return
	}
	c.Next()
}

func (s *Server) handleAdminListSessions(c *gin.Context) {
	summaries := s.store.ListSummaries()
	payload := make([]gin.H, 0, len(summaries))
	for _, summary := range summaries {
		payload = append(payload, gin.H{
			"code":          summary.Code,
			"status":        summary.Status,
			"participants":  summary.Participants,
			"current_round": summary.CurrentRound,
			"total_rounds":  summary.TotalRounds,
			"connections":   s.ws.CountConnections(summary.Code),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": payload})
}

func (s *Server) handleAdminGetSession(c *gin.Context) {
	var uri adminSessionURI
	if !bindURI(c, &uri) {
		return
	}
	snap, err := s.snapshotSession(normalizeCode(uri.Code))
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": errorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleAdminEndSession force-finishes a session regardless of where
// the state machine is; remaining connections get GAME_ENDED.
func (s *Server) handleAdminEndSession(c *gin.Context) {
	var uri adminSessionURI
	if !bindURI(c, &uri) {
		return
	}
	code := normalizeCode(uri.Code)
	var leaderboard []PlayerResult
	session, err := s.store.Update(code, func(session *GameSession) error {
		if session.Status == statusFinished {
			return errSessionFinished
		}
		s.cancelRoundTimer(code)
		leaderboard = buildLeaderboard(session)
		session.Status = statusFinished
		session.LastActivity = s.clock.Now().UTC()
		return nil
	})
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": errorMessage(err)})
		return
	}
	if err := s.persistSessionFinished(session, leaderboard); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "persist finish failed"})
		return
	}
	log.Info().Str("code", code).Msg("session force-ended by admin")
	s.ws.Broadcast(code, gameEndedEvent{
		Type:        evtGameEnded,
		Leaderboard: leaderboard,
	}, nil)
	c.JSON(http.StatusOK, gin.H{"code": code, "status": statusFinished})
}

// handleAdminNotifySession pushes an operator message to every
// connection of a session.
func (s *Server) handleAdminNotifySession(c *gin.Context) {
	var uri adminSessionURI
	if !bindURI(c, &uri) {
		return
	}
	var req adminNoticeRequest
	if !bindJSON(c, &req, adminNoticeMessages, "invalid notice") {
		return
	}
	code := normalizeCode(uri.Code)
	if !s.store.ExistsByCode(code) {
		c.JSON(http.StatusNotFound, gin.H{"error": errorMessage(errSessionNotFound)})
		return
	}
	s.ws.Broadcast(code, serverNoticeEvent{
		Type:    evtServerNotice,
		Message: req.Message,
	}, nil)
	c.JSON(http.StatusOK, gin.H{"code": code, "delivered": s.ws.CountConnections(code)})
}
