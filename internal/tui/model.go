// Package tui is the terminal screen of the task list. It renders the views
// published by a viewmodel.TaskList and turns key presses into view model
// calls, running each one as a tea.Cmd so the screen never blocks.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"personaltasks/internal/models"
	"personaltasks/internal/viewmodel"
)

// TaskList is the part of viewmodel.TaskList the screen drives.
type TaskList interface {
	Updates() <-chan viewmodel.View
	Current() viewmodel.View
	SetSortOrder(ctx context.Context, moreImportantFirst bool) error
	SetSearchQuery(ctx context.Context, query string) error
	ToggleCompleted(ctx context.Context, t models.Task) error
	Delete(ctx context.Context, id int64) error
	Reactivate(ctx context.Context, id int64) error
	CreateTask(ctx context.Context, t models.Task) (int64, error)
	UpdateTask(ctx context.Context, t models.Task) error
}

type tab int

const (
	tabActive tab = iota
	tabCompleted
	tabDeleted
	tabCount
)

func (t tab) String() string {
	switch t {
	case tabCompleted:
		return "Completed"
	case tabDeleted:
		return "Deleted"
	default:
		return "Active"
	}
}

// Form fields in focus order. Text inputs come first.
const (
	fieldTitle = iota
	fieldDescription
	fieldDueDate
	fieldImportance
	fieldStatus
)

const statusTimeout = 4 * time.Second

type viewMsg viewmodel.View

// opDoneMsg reports the outcome of a view model call.
type opDoneMsg struct {
	done      string
	err       error
	closeForm bool
}

type clearStatusMsg struct{ seq int }

// settingsMsg reports that a sort order and search query were handed to the
// view model.
type settingsMsg struct {
	query              string
	moreImportantFirst bool
	err                error
}

// Model is the bubbletea model of the task list screen.
type Model struct {
	ctx context.Context
	vm  TaskList
	now func() time.Time

	view   viewmodel.View
	tab    tab
	cursor int

	search    textinput.Model
	searching bool

	// Wanted list settings. At most one call applying them is in flight, so
	// the view model sees them in the order the keys were pressed.
	wantQuery   string
	wantSort    bool
	appliedSort bool
	applying    bool

	form    *viewmodel.Form
	inputs  []textinput.Model
	focus   int
	discard bool

	status    string
	statusErr bool
	statusSeq int

	width  int
	height int
}

// New builds the screen over vm. now supplies today's date for new tasks.
func New(ctx context.Context, vm TaskList, now func() time.Time) Model {
	if now == nil {
		now = time.Now
	}
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search title or description"
	search.CharLimit = models.MaxTitleLength

	view := vm.Current()
	return Model{
		ctx:         ctx,
		vm:          vm,
		now:         now,
		view:        view,
		search:      search,
		wantQuery:   view.Query,
		wantSort:    view.SortMoreImportantFirst,
		appliedSort: view.SortMoreImportantFirst,
	}
}

// Run shows the task list until the user quits or ctx ends.
func Run(ctx context.Context, vm TaskList) error {
	p := tea.NewProgram(New(ctx, vm, time.Now), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return waitForView(m.vm)
}

func waitForView(vm TaskList) tea.Cmd {
	return func() tea.Msg {
		return viewMsg(<-vm.Updates())
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case viewMsg:
		m.view = viewmodel.View(msg)
		m.clampCursor()
		return m, waitForView(m.vm)

	case opDoneMsg:
		if msg.err != nil {
			cmd := m.setError(msg.err)
			return m, cmd
		}
		if msg.closeForm {
			m.closeForm()
		}
		if msg.done == "" {
			return m, nil
		}
		cmd := m.setStatus(msg.done)
		return m, cmd

	case settingsMsg:
		m.applying = false
		if msg.err != nil {
			cmd := m.setError(msg.err)
			return m, cmd
		}
		var cmds []tea.Cmd
		if msg.moreImportantFirst != m.appliedSort {
			m.appliedSort = msg.moreImportantFirst
			cmds = append(cmds, m.setStatus(sortLabel(msg.moreImportantFirst)))
		}
		if msg.query != m.wantQuery || msg.moreImportantFirst != m.wantSort {
			cmds = append(cmds, m.applySettings())
		}
		return m, tea.Batch(cmds...)

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
			m.statusErr = false
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch {
		case m.form != nil:
			return m.updateForm(msg)
		case m.searching:
			return m.updateSearch(msg)
		default:
			return m.updateList(msg)
		}
	}

	return m.forwardToInputs(msg)
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab", "right", "l":
		m.selectTab((m.tab + 1) % tabCount)
	case "shift+tab", "left", "h":
		m.selectTab((m.tab + tabCount - 1) % tabCount)
	case "1", "2", "3":
		m.selectTab(tab(msg.String()[0] - '1'))
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows())-1 {
			m.cursor++
		}
	case "/":
		m.selectTab(tabActive)
		m.searching = true
		cmd := m.search.Focus()
		return m, cmd
	case "esc":
		if m.wantQuery != "" {
			m.search.SetValue("")
			m.wantQuery = ""
			cmd := m.applySettings()
			return m, cmd
		}
	case "s":
		m.wantSort = !m.wantSort
		cmd := m.applySettings()
		return m, cmd
	case " ":
		if t, ok := m.selected(); ok && t.Status != models.StatusDeleted {
			done := "Task completed"
			if t.Status == models.StatusCompleted {
				done = "Task moved back to active"
			}
			return m, m.run(done, false, func(ctx context.Context) error {
				return m.vm.ToggleCompleted(ctx, t)
			})
		}
	case "d":
		if t, ok := m.selected(); ok && t.Status != models.StatusDeleted {
			cmd := m.openForm(viewmodel.TaskForm(viewmodel.ModeDeleteConfirm, t, m.now()))
			return m, cmd
		}
	case "r":
		if t, ok := m.selected(); ok && t.Status != models.StatusActive {
			return m, m.run("Task restored", false, func(ctx context.Context) error {
				return m.vm.Reactivate(ctx, t.ID)
			})
		}
	case "n":
		cmd := m.openForm(viewmodel.NewTaskForm(m.now()))
		return m, cmd
	case "e":
		if t, ok := m.selected(); ok && t.Status != models.StatusDeleted {
			cmd := m.openForm(viewmodel.TaskForm(viewmodel.ModeEdit, t, m.now()))
			return m, cmd
		}
	case "enter":
		if t, ok := m.selected(); ok {
			cmd := m.openForm(viewmodel.TaskForm(viewmodel.ModeView, t, m.now()))
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.wantQuery = ""
		cmd := m.applySettings()
		return m, cmd
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.wantQuery = m.search.Value()
	apply := m.applySettings()
	return m, tea.Batch(cmd, apply)
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := m.form
	key := msg.String()

	if m.discard {
		switch key {
		case "y":
			m.closeForm()
		case "n", "esc":
			m.discard = false
		}
		return m, nil
	}

	switch f.Mode {
	case viewmodel.ModeDeleteConfirm:
		switch key {
		case "y", "enter":
			id := f.Original().ID
			return m, m.run("Task deleted", true, func(ctx context.Context) error {
				return m.vm.Delete(ctx, id)
			})
		case "n", "esc", "q":
			m.closeForm()
		}
		return m, nil

	case viewmodel.ModeView:
		t := f.Original()
		switch key {
		case "esc", "q", "enter":
			m.closeForm()
		case "e":
			if t.Status != models.StatusDeleted {
				cmd := m.openForm(viewmodel.TaskForm(viewmodel.ModeEdit, t, m.now()))
				return m, cmd
			}
		case "d":
			if t.Status != models.StatusDeleted {
				cmd := m.openForm(viewmodel.TaskForm(viewmodel.ModeDeleteConfirm, t, m.now()))
				return m, cmd
			}
		case "r":
			if t.Status != models.StatusActive {
				return m, m.run("Task restored", true, func(ctx context.Context) error {
					return m.vm.Reactivate(ctx, t.ID)
				})
			}
		}
		return m, nil
	}

	switch key {
	case "esc":
		m.syncForm()
		if f.Changed() {
			m.discard = true
			return m, nil
		}
		m.closeForm()
		return m, nil
	case "ctrl+s":
		return m.save()
	case "enter":
		if m.focus == m.fieldCount()-1 {
			return m.save()
		}
		cmd := m.focusField(m.focus + 1)
		return m, cmd
	case "tab", "down":
		cmd := m.focusField(m.focus + 1)
		return m, cmd
	case "shift+tab", "up":
		cmd := m.focusField(m.focus - 1)
		return m, cmd
	}

	switch m.focus {
	case fieldImportance:
		switch key {
		case "left", "h":
			f.CycleImportance(-1)
		case "right", "l", " ":
			f.CycleImportance(1)
		}
		return m, nil
	case fieldStatus:
		switch key {
		case "left", "right", " ":
			f.ToggleCompleted()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// save validates the form and hands the task to the view model. Invalid
// input stays on screen with the reasons in the status line.
func (m Model) save() (tea.Model, tea.Cmd) {
	m.syncForm()
	t, err := m.form.Task()
	if err != nil {
		cmd := m.setError(err)
		return m, cmd
	}
	if m.form.Mode == viewmodel.ModeNew {
		return m, m.run("Task created", true, func(ctx context.Context) error {
			_, err := m.vm.CreateTask(ctx, t)
			return err
		})
	}
	return m, m.run("Task saved", true, func(ctx context.Context) error {
		return m.vm.UpdateTask(ctx, t)
	})
}

func (m Model) forwardToInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.form != nil && m.focus < len(m.inputs):
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	case m.searching:
		m.search, cmd = m.search.Update(msg)
	}
	return m, cmd
}

// run executes op off the update loop and reports back with an opDoneMsg.
func (m Model) run(done string, closeForm bool, op func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{done: done, err: op(ctx), closeForm: closeForm}
	}
}

// applySettings hands the wanted sort order and query to the view model
// unless a previous call is still running. That call's settingsMsg issues the
// next one when the wanted settings changed meanwhile.
func (m *Model) applySettings() tea.Cmd {
	if m.applying {
		return nil
	}
	m.applying = true
	ctx, vm := m.ctx, m.vm
	query, sortOrder := m.wantQuery, m.wantSort
	return func() tea.Msg {
		err := vm.SetSortOrder(ctx, sortOrder)
		if err == nil {
			err = vm.SetSearchQuery(ctx, query)
		}
		return settingsMsg{query: query, moreImportantFirst: sortOrder, err: err}
	}
}

func (m *Model) selectTab(t tab) {
	if t == m.tab {
		return
	}
	m.tab = t
	m.cursor = 0
}

func (m Model) rows() []models.Task {
	switch m.tab {
	case tabCompleted:
		return m.view.Completed
	case tabDeleted:
		return m.view.Deleted
	default:
		return m.view.Active
	}
}

func (m Model) selected() (models.Task, bool) {
	rows := m.rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return models.Task{}, false
	}
	return rows[m.cursor], true
}

func (m *Model) clampCursor() {
	if n := len(m.rows()); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

func (m *Model) openForm(f *viewmodel.Form) tea.Cmd {
	m.form = f
	m.discard = false
	m.searching = false
	m.search.Blur()

	values := []string{f.Title, f.Description, f.DueDate}
	limits := []int{models.MaxTitleLength, models.MaxDescriptionLength, len(models.DisplayLayout)}
	m.inputs = make([]textinput.Model, len(values))
	for i := range values {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = limits[i]
		in.Width = 50
		in.SetValue(values[i])
		m.inputs[i] = in
	}
	m.inputs[fieldDueDate].Placeholder = "dd/mm/yyyy"

	m.focus = -1
	if !f.Editable() {
		return nil
	}
	return m.focusField(fieldTitle)
}

func (m *Model) closeForm() {
	m.form = nil
	m.inputs = nil
	m.discard = false
	m.clampCursor()
}

func (m Model) fieldCount() int {
	if m.form != nil && m.form.Mode == viewmodel.ModeEdit {
		return fieldStatus + 1
	}
	return fieldImportance + 1
}

func (m *Model) focusField(i int) tea.Cmd {
	n := m.fieldCount()
	m.focus = (i%n + n) % n
	for j := range m.inputs {
		m.inputs[j].Blur()
	}
	if m.focus < len(m.inputs) {
		return m.inputs[m.focus].Focus()
	}
	return nil
}

func (m *Model) syncForm() {
	if m.form == nil || len(m.inputs) < 3 {
		return
	}
	m.form.Title = m.inputs[fieldTitle].Value()
	m.form.Description = m.inputs[fieldDescription].Value()
	m.form.DueDate = m.inputs[fieldDueDate].Value()
}

func (m *Model) setStatus(text string) tea.Cmd {
	m.status = text
	m.statusErr = false
	return m.expireStatus()
}

func (m *Model) setError(err error) tea.Cmd {
	m.status = describe(err)
	m.statusErr = true
	return m.expireStatus()
}

func (m *Model) expireStatus() tea.Cmd {
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg { return clearStatusMsg{seq: seq} })
}

// describe renders err for the status line.
func describe(err error) string {
	if fes := models.FieldErrors(err); len(fes) > 0 {
		parts := make([]string, 0, len(fes))
		for _, fe := range fes {
			parts = append(parts, fe.Error())
		}
		return strings.Join(parts, "; ")
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return err.Error()
}

func sortLabel(moreImportantFirst bool) string {
	if moreImportantFirst {
		return "Sorted by importance, high first"
	}
	return "Sorted by importance, light first"
}
