package server

import (
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"

	"personaltasks/internal/tasks"
)

// handleStreamTasks serves a live query as Server-Sent Events. A "tasks"
// event carries every fresh list; an "error" event reports a failed refresh
// while the client keeps its last list.
func (s *Server) handleStreamTasks(c *gin.Context) {
	status, moreImportantFirst, query, err := listParams(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	sub := s.store(c).Watch(ctx, status, moreImportantFirst)
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	s.logger.Debug("stream opened",
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.String("status", string(status)))

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap, ok := <-sub.C:
			if !ok {
				return false
			}
			if snap.Err != nil {
				c.SSEvent("error", gin.H{"error": snap.Err.Error()})
				return true
			}
			c.SSEvent("tasks", gin.H{"tasks": tasks.Filter(snap.Tasks, query)})
			return true
		}
	})
}
