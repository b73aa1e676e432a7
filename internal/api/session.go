package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/jansevak/internal/auth"
	"github.com/dharsanguruparan/jansevak/internal/model"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  model.Actor `json:"user"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	actor, err := s.opts.Directory.Login(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	token, err := s.opts.Issuer.Issue(actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Token: token, User: actor})
}

// handleRegister creates a USER account and signs it in.
func (s *Server) handleRegister(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	actor, err := s.opts.Directory.Register(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	token, err := s.opts.Issuer.Issue(actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{Token: token, User: actor})
}

func (s *Server) handleLogout(c *gin.Context) {
	token := auth.BearerToken(c.GetHeader("Authorization"))
	if err := s.opts.Revoker.Revoke(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleFile serves a demo-mode attachment behind a signed, expiring link.
func (s *Server) handleFile(c *gin.Context) {
	key := c.Query("key")
	if !s.opts.Files.Verify(key, c.Query("expires"), c.Query("signature")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid or expired link"})
		return
	}
	path, err := s.opts.Files.Path(key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("X-Content-Type-Options", "nosniff")
	c.File(path)
}
