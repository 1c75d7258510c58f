// Package server exposes the local case store over HTTP in the same shape
// as the case API, so the terminal client can run against either.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pders01/casedesk/internal/api"
	"github.com/pders01/casedesk/internal/backend"
	"github.com/pders01/casedesk/internal/debuglog"
	"github.com/pders01/casedesk/internal/storage"
	"github.com/pders01/casedesk/internal/validation"
)

// Backend is the narrow contract the HTTP API needs.
type Backend interface {
	LoadApplications(ctx context.Context, query string, page int) (backend.Listing, error)
	GetApplication(ctx context.Context, id uint64) (*storage.Application, error)
	StoreApplication(ctx context.Context, app *storage.Application) (*storage.Application, error)
	UpdateApplication(ctx context.Context, id uint64, app *storage.Application) (*storage.Application, error)
	DestroyApplication(ctx context.Context, id uint64) error
	Count() (int, error)
}

type Server struct {
	addr      string
	backend   Backend
	auth      *Auth
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	errs      chan error
	startTime time.Time
}

// NewServer creates a server. A nil auth leaves every route open.
func NewServer(addr string, b Backend, auth *Auth) *Server {
	if addr == "" {
		addr = "127.0.0.1:8000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		backend:   b,
		auth:      auth,
		ctx:       ctx,
		cancel:    cancel,
		errs:      make(chan error, 1),
		startTime: time.Now(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestID())

	apiGroup := r.Group("/api")
	apiGroup.GET("/health", s.handleHealth)
	apiGroup.POST("/auth/login", s.handleLogin)

	authed := apiGroup.Group("", s.auth.requireAuth())
	authed.GET("/auth/me", s.handleMe)
	authed.GET("/application/loadApplications", s.handleLoadApplications)
	authed.GET("/application/getApplication/:id", s.handleGetApplication)
	authed.POST("/application/storeApplication", s.handleStoreApplication)
	authed.POST("/application/updateApplication/:id", s.handleUpdateApplication)
	authed.PUT("/application/destroyApplication/:id", s.handleDestroyApplication)

	return r
}

// Start begins serving in the background.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debuglog.Errorf("http server: %v", err)
			s.errs <- err
		}
	}()
	debuglog.Infof("listening on %s", listener.Addr())
	return nil
}

// Err delivers the error that stopped the server, if it stopped on its own.
func (s *Server) Err() <-chan error {
	return s.errs
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(api.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(api.RequestIDHeader, id)

		start := time.Now()
		c.Next()

		debuglog.WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"request_id": id,
			"elapsed":    time.Since(start).Round(time.Millisecond),
		}).Debugf("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	count, err := s.backend.Count()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"uptime":       time.Since(s.startTime).String(),
		"applications": count,
		"auth":         s.auth != nil,
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "The given data was invalid.", "error": err.Error()})
		return
	}

	if s.auth == nil {
		c.JSON(http.StatusNotFound, api.MessageResponse{Message: "Login is not enabled on this server."})
		return
	}

	token, err := s.auth.Login(req.Gmail, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, api.MessageResponse{Message: "The provided credentials are incorrect."})
			return
		}
		c.JSON(http.StatusInternalServerError, api.MessageResponse{Message: "Server Error"})
		return
	}
	c.JSON(http.StatusOK, api.LoginResponse{User: api.User{Gmail: req.Gmail}, Token: token})
}

func (s *Server) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": api.User{Gmail: c.GetString(userKey)}})
}

func (s *Server) handleLoadApplications(c *gin.Context) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}

	listing, err := s.backend.LoadApplications(c.Request.Context(), c.Query("search"), page)
	if err != nil {
		debuglog.Errorf("load applications: %v", err)
		c.JSON(http.StatusInternalServerError, api.MessageResponse{Message: "Server Error"})
		return
	}

	c.JSON(http.StatusOK, api.ApplicationsResponse{Applications: &api.Paginator{
		CurrentPage: listing.CurrentPage,
		Data:        listing.Items,
		LastPage:    listing.LastPage,
		PerPage:     listing.PerPage,
		Total:       listing.Total,
	}})
}

func (s *Server) handleGetApplication(c *gin.Context) {
	id, ok := applicationID(c)
	if !ok {
		return
	}
	app, err := s.backend.GetApplication(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ApplicationResponse{Application: app})
}

func (s *Server) handleStoreApplication(c *gin.Context) {
	var app storage.Application
	if err := c.ShouldBindJSON(&app); err != nil {
		c.JSON(http.StatusBadRequest, api.MessageResponse{Message: "Malformed application: " + err.Error()})
		return
	}
	created, err := s.backend.StoreApplication(c.Request.Context(), &app)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ApplicationResponse{Message: "Application Successfully Submitted", Application: created})
}

func (s *Server) handleUpdateApplication(c *gin.Context) {
	id, ok := applicationID(c)
	if !ok {
		return
	}
	var app storage.Application
	if err := c.ShouldBindJSON(&app); err != nil {
		c.JSON(http.StatusBadRequest, api.MessageResponse{Message: "Malformed application: " + err.Error()})
		return
	}
	updated, err := s.backend.UpdateApplication(c.Request.Context(), id, &app)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ApplicationResponse{Message: "Application Successfully Updated.", Application: updated})
}

func (s *Server) handleDestroyApplication(c *gin.Context) {
	id, ok := applicationID(c)
	if !ok {
		return
	}
	if err := s.backend.DestroyApplication(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Application Successfully Deleted"})
}

func applicationID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, api.MessageResponse{Message: "Application not found."})
		return 0, false
	}
	return id, true
}

func (s *Server) writeError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, api.MessageResponse{Message: "Application not found."})
		return
	}
	if errors.Is(err, validation.ErrInvalidRecord) {
		c.JSON(http.StatusUnprocessableEntity, api.MessageResponse{Message: err.Error()})
		return
	}
	debuglog.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, api.MessageResponse{Message: "Server Error"})
}
