package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"personaltasks/internal/models"
	"personaltasks/internal/tasks"
)

type taskRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	DueDate     models.Date       `json:"due_date"`
	Importance  models.Importance `json:"importance"`
	Status      *models.Status    `json:"status"`
}

type statusRequest struct {
	Status string `json:"status"`
}

var errBadBody = errors.New("invalid request body")

// listParams reads the status, sort and q query parameters shared by the
// list and stream endpoints.
func listParams(c *gin.Context) (status models.Status, moreImportantFirst bool, query string, err error) {
	status = models.StatusActive
	if raw := c.Query("status"); raw != "" {
		if status, err = models.ParseStatus(raw); err != nil {
			return "", false, "", &models.ValidationError{Field: "status", Reason: "unknown status"}
		}
	}

	switch c.DefaultQuery("sort", "important") {
	case "important":
		moreImportantFirst = true
	case "light":
		moreImportantFirst = false
	default:
		return "", false, "", &models.ValidationError{Field: "sort", Reason: "use important or light"}
	}
	return status, moreImportantFirst, c.Query("q"), nil
}

// handleListTasks returns the tasks with one status, ordered and filtered.
func (s *Server) handleListTasks(c *gin.Context) {
	status, moreImportantFirst, query, err := listParams(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	list, err := s.store(c).ListByStatus(c.Request.Context(), status, moreImportantFirst)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks.Filter(list, query)})
}

// handleGetTask returns a single task.
func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := s.store(c).Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleCreateTask inserts a new active task.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, errBadBody)
		return
	}

	task := models.Task{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Importance:  req.Importance,
		Status:      models.StatusActive,
	}.WithDefaults()
	if err := models.Validate(task); err != nil {
		s.fail(c, err)
		return
	}

	store := s.store(c)
	id, err := store.Create(c.Request.Context(), task)
	if err != nil {
		s.fail(c, err)
		return
	}
	created, err := store.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": created})
}

// handleUpdateTask overwrites the editable fields of a task. The status is
// kept unless the body names one.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, errBadBody)
		return
	}

	store := s.store(c)
	task, err := store.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	task.Title = req.Title
	task.Description = req.Description
	task.DueDate = req.DueDate
	task.Importance = req.Importance
	if req.Status != nil {
		task.Status = *req.Status
	}
	task = task.WithDefaults()
	if err := models.Validate(task); err != nil {
		s.fail(c, err)
		return
	}

	if err := store.Update(c.Request.Context(), task); err != nil {
		s.fail(c, err)
		return
	}
	s.respondTask(c, store, id)
}

// handleSetStatus moves a task to the status named in the body.
func (s *Server) handleSetStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, errBadBody)
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		s.fail(c, &models.ValidationError{Field: "status", Reason: "unknown status"})
		return
	}
	s.changeStatus(c, id, status)
}

// handleDeleteTask moves a task to the deleted list. Nothing is erased.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store(c).SetStatus(c.Request.Context(), id, models.StatusDeleted); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleReactivateTask brings a task back to the active list.
func (s *Server) handleReactivateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	s.changeStatus(c, id, models.StatusActive)
}

func (s *Server) changeStatus(c *gin.Context, id int64, status models.Status) {
	store := s.store(c)
	if err := store.SetStatus(c.Request.Context(), id, status); err != nil {
		s.fail(c, err)
		return
	}
	s.respondTask(c, store, id)
}

func (s *Server) respondTask(c *gin.Context, store tasks.Store, id int64) {
	task, err := store.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}
