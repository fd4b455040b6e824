package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"personaltasks/internal/models"
	"personaltasks/internal/viewmodel"
)

// chrome is the number of lines around the task rows.
const chrome = 9

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Personal tasks"))
	b.WriteString("  ")
	b.WriteString(subtleStyle.Render(sortLabel(m.view.SortMoreImportantFirst)))
	b.WriteString("\n\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	if m.searching || m.view.Query != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.form != nil {
		b.WriteString(m.renderForm())
	} else {
		b.WriteString(m.renderRows())
	}
	b.WriteString("\n\n")

	if line := m.renderStatus(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(strings.Join(m.helpItems(), " • ")))
	return b.String()
}

func (m Model) renderTabs() string {
	counts := [tabCount]int{len(m.view.Active), len(m.view.Completed), len(m.view.Deleted)}
	tabs := make([]string, 0, tabCount)
	for t := tabActive; t < tabCount; t++ {
		label := fmt.Sprintf("%s (%d)", t, counts[t])
		if t == m.tab {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderRows() string {
	rows := m.rows()
	if len(rows) == 0 {
		switch {
		case m.tab == tabActive && m.view.Query != "":
			return subtleStyle.Render("No active task matches the search.")
		case m.tab == tabActive:
			return subtleStyle.Render("Nothing to do. Press n to add a task.")
		default:
			return subtleStyle.Render(fmt.Sprintf("No %s tasks.", strings.ToLower(m.tab.String())))
		}
	}

	start, end := m.window(len(rows))
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, m.renderRow(rows[i], i == m.cursor))
	}
	return strings.Join(lines, "\n")
}

// window returns the slice of rows that fits the terminal with the cursor
// in view.
func (m Model) window(n int) (int, int) {
	visible := n
	if m.height > chrome {
		visible = min(n, m.height-chrome)
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	return start, start + visible
}

func (m Model) renderRow(t models.Task, selected bool) string {
	check := "[ ]"
	switch t.Status {
	case models.StatusCompleted:
		check = "[x]"
	case models.StatusDeleted:
		check = "[-]"
	}

	importance := fmt.Sprintf("%-6s", t.Importance)
	if t.Importance == models.ImportanceHigh {
		importance = highStyle.Render(importance)
	}

	line := fmt.Sprintf("%s %-*s  %s  ", check, models.MaxTitleLength, t.Title, t.DueDate.Display())
	if selected {
		return selectedStyle.Render("› "+line) + importance
	}
	return "  " + line + importance
}

func (m Model) renderForm() string {
	f := m.form
	var b strings.Builder
	b.WriteString(titleStyle.Render(f.Mode.String()))
	b.WriteString("\n\n")

	if f.Mode == viewmodel.ModeDeleteConfirm {
		fmt.Fprintf(&b, "Move %q to the deleted tasks? It can be reactivated later.\n\n", f.Original().Title)
		b.WriteString(subtleStyle.Render("y delete • n keep"))
		return boxStyle.Render(b.String())
	}

	field := func(idx int, label, value string) {
		marker := "  "
		if idx == m.focus {
			marker = selectedStyle.Render("› ")
		}
		b.WriteString(marker + labelStyle.Render(label) + value + "\n")
	}

	text := func(idx int) string {
		if f.Editable() {
			return m.inputs[idx].View()
		}
		return m.inputs[idx].Value()
	}

	field(fieldTitle, "Title", text(fieldTitle))
	field(fieldDescription, "Description", text(fieldDescription))
	field(fieldDueDate, "Due date", text(fieldDueDate))
	importance := string(f.Importance)
	if f.Editable() {
		importance = "‹ " + importance + " ›"
	}
	field(fieldImportance, "Importance", importance)
	if f.Mode != viewmodel.ModeNew {
		field(fieldStatus, "Status", string(f.Status))
	}

	if m.discard {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Discard unsaved changes? y/n"))
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderStatus() string {
	if m.view.Err != nil {
		return errorStyle.Render("Could not refresh tasks: " + describe(m.view.Err))
	}
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return errorStyle.Render(m.status)
	}
	return successStyle.Render(m.status)
}

func (m Model) helpItems() []string {
	switch {
	case m.form != nil && m.discard:
		return []string{"y discard", "n keep editing"}
	case m.form != nil && m.form.Mode == viewmodel.ModeDeleteConfirm:
		return []string{"y delete", "n cancel"}
	case m.form != nil && m.form.Mode == viewmodel.ModeView:
		return []string{"e edit", "d delete", "r reactivate", "esc back"}
	case m.form != nil:
		return []string{"tab next field", "←→ change", "ctrl+s save", "esc cancel"}
	case m.searching:
		return []string{"type to filter", "enter keep", "esc clear"}
	}

	items := []string{"↑↓ move", "tab switch list", "enter details", "n new"}
	switch m.tab {
	case tabActive:
		items = append(items, "space complete", "e edit", "d delete", "/ search", "s sort")
	case tabCompleted:
		items = append(items, "space reopen", "r reactivate", "d delete")
	case tabDeleted:
		items = append(items, "r reactivate")
	}
	return append(items, "q quit")
}
