// Package api exposes the complaint service over HTTP with gin.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/jansevak/internal/attachment"
	"github.com/dharsanguruparan/jansevak/internal/auth"
	"github.com/dharsanguruparan/jansevak/internal/complaint"
	"github.com/dharsanguruparan/jansevak/internal/model"
)

// FilesPath is where signed demo-mode downloads are served.
const FilesPath = "/api/files"

// TokenIssuer mints bearer tokens for logged-in users.
type TokenIssuer interface {
	Issue(actor model.Actor) (string, error)
}

// TokenRevoker logs a bearer token out.
type TokenRevoker interface {
	Revoke(ctx context.Context, token string) error
}

// Options wires the server's collaborators. Directory, Issuer and Files are
// only set in demo mode; leaving them nil disables login, registration and
// file download. A nil Revoker disables logout.
type Options struct {
	Address     string
	Service     *complaint.Service
	Auth        auth.Authenticator
	Attachments attachment.Store
	Limits      attachment.Limits
	Directory   *auth.Directory
	Issuer      TokenIssuer
	Revoker     TokenRevoker
	Files       *attachment.DiskStore
}

// Server exposes HTTP endpoints for complaints.
type Server struct {
	opts   Options
	router *gin.Engine
}

// New constructs a Server and its routes.
func New(opts Options) *Server {
	s := &Server{opts: opts}
	s.router = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), corsMiddleware())

	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	if s.opts.Directory != nil && s.opts.Issuer != nil {
		api.POST("/login", s.handleLogin)
		api.POST("/register", s.handleRegister)
	}
	if s.opts.Revoker != nil {
		api.POST("/logout", authMiddleware(s.opts.Auth), s.handleLogout)
	}
	if s.opts.Files != nil {
		api.GET("/files", s.handleFile)
	}

	complaints := api.Group("/complaints", authMiddleware(s.opts.Auth))
	{
		complaints.POST("", s.handleSubmit)
		complaints.GET("", s.handleListMine)
		complaints.GET("/all", s.handleListAll)
		complaints.GET("/stats", s.handleStats)
		complaints.GET("/:id", s.handleGet)
		complaints.PATCH("/:id/status", s.handleUpdateStatus)
	}
	return r
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	log.Printf("api listening on %s", s.opts.Address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
