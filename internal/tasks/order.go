package tasks

import (
	"slices"
	"strings"

	"personaltasks/internal/models"
)

// Compare orders two tasks of the same list. Importance rank comes first,
// ascending when moreImportantFirst is set and descending otherwise. Ties
// fall back to the earlier due date, then to the higher (newer) id.
func Compare(a, b models.Task, moreImportantFirst bool) int {
	if ra, rb := a.Importance.Rank(), b.Importance.Rank(); ra != rb {
		if moreImportantFirst {
			return ra - rb
		}
		return rb - ra
	}
	if c := a.DueDate.Compare(b.DueDate); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

// Sort orders list in place using Compare.
func Sort(list []models.Task, moreImportantFirst bool) {
	slices.SortStableFunc(list, func(a, b models.Task) int {
		return Compare(a, b, moreImportantFirst)
	})
}

// Sorted returns an ordered copy of list.
func Sorted(list []models.Task, moreImportantFirst bool) []models.Task {
	out := slices.Clone(list)
	Sort(out, moreImportantFirst)
	return out
}

// Filter keeps the tasks whose title, or non-empty description, contains
// query ignoring case. A blank query returns list as is. The input order is
// preserved and list is never modified.
func Filter(list []models.Task, query string) []models.Task {
	if strings.TrimSpace(query) == "" {
		return list
	}
	q := strings.ToLower(query)
	out := make([]models.Task, 0, len(list))
	for _, t := range list {
		if Matches(t, q) {
			out = append(out, t)
		}
	}
	return out
}

// Matches reports whether t matches an already lower-cased query.
func Matches(t models.Task, q string) bool {
	if strings.Contains(strings.ToLower(t.Title), q) {
		return true
	}
	return t.Description != "" && strings.Contains(strings.ToLower(t.Description), q)
}
