package viewmodel

import (
	"errors"
	"strings"
	"time"

	"personaltasks/internal/models"
)

// Mode selects what a task form is used for.
type Mode int

const (
	ModeNew Mode = iota
	ModeEdit
	ModeView
	ModeDeleteConfirm
)

func (m Mode) String() string {
	switch m {
	case ModeNew:
		return "New task"
	case ModeEdit:
		return "Edit task"
	case ModeView:
		return "Task details"
	case ModeDeleteConfirm:
		return "Delete task?"
	default:
		return "Task"
	}
}

// Form holds the raw field text of the task detail screen. Due dates are
// typed as dd/mm/yyyy.
type Form struct {
	Mode        Mode
	Title       string
	Description string
	DueDate     string
	Importance  models.Importance
	Status      models.Status

	original models.Task
	initial  [5]string
	today    models.Date
}

// NewTaskForm starts an empty form due today.
func NewTaskForm(today time.Time) *Form {
	f := &Form{
		Mode:       ModeNew,
		DueDate:    models.DateOf(today).Display(),
		Importance: models.ImportanceMedium,
		Status:     models.StatusActive,
		today:      models.DateOf(today),
	}
	f.initial = f.fields()
	return f
}

// TaskForm opens t in mode.
func TaskForm(mode Mode, t models.Task, today time.Time) *Form {
	t = t.WithDefaults()
	f := &Form{
		Mode:        mode,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate.Display(),
		Importance:  t.Importance,
		Status:      t.Status,
		original:    t,
		today:       models.DateOf(today),
	}
	f.initial = f.fields()
	return f
}

// Editable reports whether the fields accept input.
func (f *Form) Editable() bool {
	return f.Mode == ModeNew || f.Mode == ModeEdit
}

// Original returns the task the form was opened with.
func (f *Form) Original() models.Task {
	return f.original
}

// Changed reports whether any field differs from what the form opened with.
// Screens ask for confirmation before discarding a changed form.
func (f *Form) Changed() bool {
	return f.Editable() && f.fields() != f.initial
}

// CycleImportance moves to the next importance level, wrapping around.
func (f *Form) CycleImportance(step int) {
	idx := 0
	for i, imp := range models.Importances {
		if imp == f.Importance {
			idx = i
		}
	}
	n := len(models.Importances)
	f.Importance = models.Importances[((idx+step)%n+n)%n]
}

// ToggleCompleted flips the status field between ACTIVE and COMPLETED.
func (f *Form) ToggleCompleted() {
	if f.Status == models.StatusCompleted {
		f.Status = models.StatusActive
		return
	}
	f.Status = models.StatusCompleted
}

// Task builds the task described by the form. Field problems come back as
// joined *models.ValidationError values. A newly chosen due date may not be
// in the past.
func (f *Form) Task() (models.Task, error) {
	t := f.original
	t.Title = strings.TrimSpace(f.Title)
	t.Description = strings.TrimSpace(f.Description)
	t.Importance = f.Importance
	t.Status = f.Status
	if f.Mode == ModeNew {
		t.ID = 0
		t.Status = models.StatusActive
	}

	var dateErr error
	if strings.TrimSpace(f.DueDate) != "" {
		due, err := models.ParseDate(f.DueDate)
		switch {
		case err != nil:
			dateErr = &models.ValidationError{Field: "due_date", Reason: "use dd/mm/yyyy"}
		case due != f.original.DueDate && due.Before(f.today):
			dateErr = &models.ValidationError{Field: "due_date", Reason: "must not be in the past"}
		default:
			t.DueDate = due
		}
	} else {
		t.DueDate = models.Date{}
	}

	err := models.Validate(t)
	if dateErr != nil {
		// Validate reports an unset date; the parse failure is more useful.
		var kept []error
		for _, fe := range models.FieldErrors(err) {
			if fe.Field != "due_date" {
				kept = append(kept, fe)
			}
		}
		err = errors.Join(append(kept, dateErr)...)
	}
	if err != nil {
		return models.Task{}, err
	}
	return t, nil
}

func (f *Form) fields() [5]string {
	return [5]string{f.Title, f.Description, f.DueDate, string(f.Importance), string(f.Status)}
}
