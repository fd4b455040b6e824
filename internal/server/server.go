package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"personaltasks/internal/auth"
	"personaltasks/internal/models"
	"personaltasks/internal/tasks"
)

// StoreFunc returns the task collection of one user.
type StoreFunc func(userID string) tasks.Store

// Pinger reports whether the backing database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server provides HTTP handlers for the personal task list.
type Server struct {
	engine *gin.Engine
	tasks  StoreFunc
	tokens *auth.Manager
	pinger Pinger
	logger *slog.Logger
}

// New constructs the HTTP server with routes and middleware configured.
// pinger may be nil.
func New(tasksFor StoreFunc, tokens *auth.Manager, pinger Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))
	router.Use(requestID())

	srv := &Server{
		engine: router,
		tasks:  tasksFor,
		tokens: tokens,
		pinger: pinger,
		logger: logger,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// HTTPServer returns an http.Server for the engine. Shutdown cancels the
// context of every in-flight request so open streams end right away instead
// of holding the shutdown until its deadline.
func (s *Server) HTTPServer(addr string) *http.Server {
	base, cancel := context.WithCancel(context.Background())
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	hs.RegisterOnShutdown(cancel)
	return hs
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		taskRoutes := api.Group("/tasks", s.authenticate())
		{
			taskRoutes.GET("", s.handleListTasks)
			taskRoutes.POST("", s.handleCreateTask)
			taskRoutes.GET("/stream", s.handleStreamTasks)
			taskRoutes.GET("/:id", s.handleGetTask)
			taskRoutes.PUT("/:id", s.handleUpdateTask)
			taskRoutes.PUT("/:id/status", s.handleSetStatus)
			taskRoutes.DELETE("/:id", s.handleDeleteTask)
			taskRoutes.POST("/:id/reactivate", s.handleReactivateTask)
		}
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	if s.pinger != nil {
		if err := s.pinger.Ping(c.Request.Context()); err != nil {
			s.respondError(c, http.StatusServiceUnavailable, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// fail maps err onto an HTTP status and responds with it.
func (s *Server) fail(c *gin.Context, err error) {
	s.respondError(c, statusFor(err), err)
}

func statusFor(err error) int {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, tasks.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tasks.ErrAuthenticationRequired),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type fieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// respondError logs the error and returns a JSON payload. Validation
// failures also list the offending fields.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	attrs := []any{
		slog.String("path", c.FullPath()),
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Warn("request rejected", attrs...)
	}

	body := gin.H{"error": err.Error()}
	if fes := models.FieldErrors(err); len(fes) > 0 {
		fields := make([]fieldError, 0, len(fes))
		for _, fe := range fes {
			fields = append(fields, fieldError{Field: fe.Field, Reason: fe.Reason})
		}
		body["field"] = fields[0].Field
		body["fields"] = fields
	}
	c.AbortWithStatusJSON(status, body)
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
