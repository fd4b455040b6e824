package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"personaltasks/internal/tasks"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	userIDKey       = "user_id"
)

// requestID tags every request with an id, reusing one sent by the client.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// authenticate resolves the bearer token into the user namespace. Browsers
// cannot set headers on EventSource, so the token may also arrive as the
// access_token query parameter.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" || s.tokens == nil {
			s.respondError(c, http.StatusUnauthorized, tasks.ErrAuthenticationRequired)
			return
		}

		userID, err := s.tokens.UserID(token)
		if err != nil {
			s.respondError(c, http.StatusUnauthorized, err)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// store returns the task collection of the authenticated user.
func (s *Server) store(c *gin.Context) tasks.Store {
	return s.tasks(c.GetString(userIDKey))
}
