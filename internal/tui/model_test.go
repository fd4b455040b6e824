package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personaltasks/internal/models"
	"personaltasks/internal/storage/memory"
	"personaltasks/internal/tasks"
	"personaltasks/internal/viewmodel"
)

var today = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	t     *testing.T
	vm    *viewmodel.TaskList
	store tasks.Store
	m     Model
}

func newHarness(t *testing.T, seed func(tasks.Store)) *harness {
	t.Helper()
	store := memory.New(nil).ForUser("alice")
	if seed != nil {
		seed(store)
	}

	vm := viewmodel.New(store, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = vm.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	h := &harness{t: t, vm: vm, store: store}
	select {
	case <-vm.Updates():
	case <-time.After(2 * time.Second):
		t.Fatal("view model did not start")
	}
	h.m = New(ctx, vm, func() time.Time { return today })
	h.sync(func(viewmodel.View) bool { return true })
	return h
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}

// press sends key and returns the command it produced.
func (h *harness) press(key string) tea.Cmd {
	h.t.Helper()
	next, cmd := h.m.Update(keyMsg(key))
	h.m = next.(Model)
	return cmd
}

// exec runs cmd and feeds view model outcomes back into the model, following
// up on settings that changed while a previous apply was running. Other
// messages, such as cursor blinks, are dropped.
func (h *harness) exec(cmd tea.Cmd) {
	h.t.Helper()
	if cmd == nil {
		return
	}
	out := make(chan tea.Msg, 1)
	go func() { out <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-out:
	case <-time.After(time.Second):
		return
	}

	switch msg := msg.(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			h.exec(c)
		}
	case opDoneMsg:
		next, _ := h.m.Update(msg)
		h.m = next.(Model)
	case settingsMsg:
		next, cmd := h.m.Update(msg)
		h.m = next.(Model)
		if h.m.applying {
			h.exec(cmd)
		}
	}
}

// sync waits for a view satisfying cond and hands it to the model.
func (h *harness) sync(cond func(viewmodel.View) bool) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if v := h.vm.Current(); cond(v) {
			next, _ := h.m.Update(viewMsg(v))
			h.m = next.(Model)
			return
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("timed out; last view %+v", h.vm.Current())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func seedTwo(store tasks.Store) {
	ctx := context.Background()
	_, _ = store.Create(ctx, models.Task{Title: "Pay rent", DueDate: models.NewDate(2025, 1, 5), Importance: models.ImportanceHigh})
	_, _ = store.Create(ctx, models.Task{Title: "Read book", Description: "novel", DueDate: models.NewDate(2025, 1, 1)})
}

func TestModel_ListsActiveTasks(t *testing.T) {
	h := newHarness(t, seedTwo)
	h.sync(func(v viewmodel.View) bool { return len(v.Active) == 2 })

	out := h.m.View()
	assert.Contains(t, out, "Active (2)")
	assert.Contains(t, out, "Completed (0)")
	assert.Less(t, strings.Index(out, "Pay rent"), strings.Index(out, "Read book"))
	assert.Contains(t, out, "05/01/2025")
}

func TestModel_CreateTask(t *testing.T) {
	h := newHarness(t, nil)

	h.press("n")
	require.NotNil(t, h.m.form)
	assert.Equal(t, viewmodel.ModeNew, h.m.form.Mode)

	h.press("Water plants")
	h.exec(h.press("ctrl+s"))

	assert.Nil(t, h.m.form, "form closes after a successful save")
	assert.Equal(t, "Task created", h.m.status)

	h.sync(func(v viewmodel.View) bool { return len(v.Active) == 1 })
	assert.Equal(t, "Water plants", h.m.view.Active[0].Title)
	assert.Equal(t, models.DateOf(today), h.m.view.Active[0].DueDate)
}

func TestModel_CreateTaskValidation(t *testing.T) {
	h := newHarness(t, nil)

	h.press("n")
	h.exec(h.press("ctrl+s"))

	require.NotNil(t, h.m.form, "invalid input keeps the form open")
	assert.True(t, h.m.statusErr)
	assert.Contains(t, h.m.status, "title: must not be empty")

	list, err := h.store.ListByStatus(context.Background(), models.StatusActive, true)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestModel_DeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t, seedTwo)
	h.sync(func(v viewmodel.View) bool { return len(v.Active) == 2 })

	h.press("d")
	require.NotNil(t, h.m.form)
	assert.Equal(t, viewmodel.ModeDeleteConfirm, h.m.form.Mode)
	h.press("n")
	assert.Nil(t, h.m.form)

	h.press("d")
	h.exec(h.press("y"))
	assert.Equal(t, "Task deleted", h.m.status)
	h.sync(func(v viewmodel.View) bool { return len(v.Deleted) == 1 })
	assert.Equal(t, "Pay rent", h.m.view.Deleted[0].Title)

	h.press("3")
	assert.Equal(t, tabDeleted, h.m.tab)
	h.exec(h.press("r"))
	h.sync(func(v viewmodel.View) bool { return len(v.Deleted) == 0 && len(v.Active) == 2 })
	assert.Contains(t, h.m.View(), "No deleted tasks.")
}

func TestModel_ToggleCompleted(t *testing.T) {
	h := newHarness(t, seedTwo)
	h.sync(func(v viewmodel.View) bool { return len(v.Active) == 2 })

	h.press("down")
	h.exec(h.press(" "))
	h.sync(func(v viewmodel.View) bool { return len(v.Completed) == 1 })
	assert.Equal(t, "Read book", h.m.view.Completed[0].Title)
	assert.Zero(t, h.m.cursor, "cursor stays inside the shorter list")

	h.press("tab")
	assert.Equal(t, tabCompleted, h.m.tab)
	h.exec(h.press(" "))
	h.sync(func(v viewmodel.View) bool { return len(v.Completed) == 0 })
}

func TestModel_SortToggle(t *testing.T) {
	h := newHarness(t, seedTwo)
	h.sync(func(v viewmodel.View) bool { return len(v.Active) == 2 })
	assert.Equal(t, "Pay rent", h.m.view.Active[0].Title)

	h.exec(h.press("s"))
	h.sync(func(v viewmodel.View) bool {
		return !v.SortMoreImportantFirst && len(v.Active) == 2 && v.Active[0].Title == "Read book"
	})
	assert.Equal(t, sortLabel(false), h.m.status)
}

func TestModel_Search(t *testing.T) {
	h := newHarness(t, seedTwo)
	h.sync(func(v viewmodel.View) bool { return len(v.Active) == 2 })

	h.press("/")
	assert.True(t, h.m.searching)
	h.exec(h.press("novel"))
	h.sync(func(v viewmodel.View) bool { return v.Query == "novel" })
	require.Len(t, h.m.view.Active, 1)
	assert.Equal(t, "Read book", h.m.view.Active[0].Title)

	h.exec(h.press("esc"))
	assert.False(t, h.m.searching)
	h.sync(func(v viewmodel.View) bool { return v.Query == "" })
	assert.Len(t, h.m.view.Active, 2)
}

func TestModel_SearchKeystrokesApplyInOrder(t *testing.T) {
	h := newHarness(t, seedTwo)
	h.sync(func(v viewmodel.View) bool { return len(v.Active) == 2 })

	h.press("/")
	first := h.press("r")
	second := h.press("e")
	assert.True(t, h.m.applying)
	assert.Equal(t, "re", h.m.wantQuery)

	// The second keystroke waits for the first apply instead of racing it.
	h.exec(second)
	assert.Empty(t, h.vm.Current().Query)
	h.exec(first)

	assert.False(t, h.m.applying)
	h.sync(func(v viewmodel.View) bool { return v.Query == "re" })
	assert.Equal(t, "re", h.m.search.Value())
	assert.Equal(t, []string{"Pay rent", "Read book"}, []string{h.m.view.Active[0].Title, h.m.view.Active[1].Title})

	h.exec(h.press("n"))
	h.sync(func(v viewmodel.View) bool { return v.Query == "ren" })
	require.Len(t, h.m.view.Active, 1)
	assert.Equal(t, "Pay rent", h.m.view.Active[0].Title)
}

func TestModel_SortTogglePressedTwice(t *testing.T) {
	h := newHarness(t, seedTwo)
	h.sync(func(v viewmodel.View) bool { return len(v.Active) == 2 })

	first := h.press("s")
	assert.Nil(t, h.press("s"), "second toggle waits for the first one")
	assert.True(t, h.m.wantSort)
	h.exec(first)

	assert.False(t, h.m.applying)
	assert.True(t, h.vm.Current().SortMoreImportantFirst)
	h.sync(func(v viewmodel.View) bool { return v.SortMoreImportantFirst && v.Active[0].Title == "Pay rent" })
	assert.Equal(t, sortLabel(true), h.m.status)
}

func TestModel_DiscardChangesNeedsConfirmation(t *testing.T) {
	h := newHarness(t, seedTwo)
	h.sync(func(v viewmodel.View) bool { return len(v.Active) == 2 })

	h.press("e")
	require.NotNil(t, h.m.form)
	assert.Equal(t, viewmodel.ModeEdit, h.m.form.Mode)

	h.press("esc")
	assert.Nil(t, h.m.form, "an untouched form closes right away")

	h.press("e")
	h.press("!")
	h.press("esc")
	require.NotNil(t, h.m.form)
	assert.True(t, h.m.discard)
	assert.Contains(t, h.m.View(), "Discard unsaved changes?")

	h.press("n")
	assert.False(t, h.m.discard)
	h.press("esc")
	h.press("y")
	assert.Nil(t, h.m.form)
}

func TestModel_EditTask(t *testing.T) {
	h := newHarness(t, seedTwo)
	h.sync(func(v viewmodel.View) bool { return len(v.Active) == 2 })

	h.press("enter")
	require.NotNil(t, h.m.form)
	assert.Equal(t, viewmodel.ModeView, h.m.form.Mode)
	h.press("e")
	assert.Equal(t, viewmodel.ModeEdit, h.m.form.Mode)

	h.press(" now")
	h.exec(h.press("ctrl+s"))
	assert.Equal(t, "Task saved", h.m.status)
	h.sync(func(v viewmodel.View) bool { return len(v.Active) == 2 && v.Active[0].Title == "Pay rent now" })
}

func TestModel_StatusLine(t *testing.T) {
	h := newHarness(t, nil)

	next, _ := h.m.Update(opDoneMsg{err: tasks.ErrNotFound})
	h.m = next.(Model)
	assert.Contains(t, h.m.View(), "task not found")

	next, _ = h.m.Update(clearStatusMsg{seq: h.m.statusSeq})
	h.m = next.(Model)
	assert.NotContains(t, h.m.View(), "task not found")
}
