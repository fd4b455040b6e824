package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Importance orders tasks in a list; HIGH sorts first when more important tasks lead.
type Importance string

const (
	ImportanceHigh   Importance = "HIGH"
	ImportanceMedium Importance = "MEDIUM"
	ImportanceLight  Importance = "LIGHT"
)

// Importances lists every importance level from most to least important.
var Importances = []Importance{ImportanceHigh, ImportanceMedium, ImportanceLight}

// Rank returns the sort ordinal of the level: HIGH=1, MEDIUM=2, LIGHT=3.
// Unknown values rank last.
func (i Importance) Rank() int {
	switch i {
	case ImportanceHigh:
		return 1
	case ImportanceMedium:
		return 2
	case ImportanceLight:
		return 3
	default:
		return 4
	}
}

// Valid reports whether i is one of the known levels.
func (i Importance) Valid() bool {
	return i.Rank() < 4
}

// ParseImportance converts a stored or user supplied name into an Importance.
func ParseImportance(s string) (Importance, error) {
	i := Importance(strings.ToUpper(strings.TrimSpace(s)))
	if !i.Valid() {
		return "", fmt.Errorf("unknown importance %q", s)
	}
	return i, nil
}

// Status is the lifecycle state of a task. Any status may follow any other.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusDeleted   Status = "DELETED"
)

// Statuses lists every status value.
var Statuses = []Status{StatusActive, StatusCompleted, StatusDeleted}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusDeleted:
		return true
	}
	return false
}

// ParseStatus converts a stored or user supplied name into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Task is a single personal task owned by one user.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     Date       `json:"due_date"`
	Importance  Importance `json:"importance"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// WithDefaults fills the zero importance and status with MEDIUM and ACTIVE.
func (t Task) WithDefaults() Task {
	if t.Importance == "" {
		t.Importance = ImportanceMedium
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	return t
}

// SameContent reports whether two tasks carry the same user visible fields,
// ignoring bookkeeping timestamps.
func (t Task) SameContent(o Task) bool {
	return t.ID == o.ID &&
		t.Title == o.Title &&
		t.Description == o.Description &&
		t.DueDate == o.DueDate &&
		t.Importance == o.Importance &&
		t.Status == o.Status
}

// Date is a calendar day without time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const (
	// DisplayLayout is how due dates are shown and typed by users.
	DisplayLayout = "02/01/2006"
	// ISOLayout is how due dates are stored and exchanged over JSON.
	ISOLayout = "2006-01-02"
)

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// NewDate builds a Date, normalizing out-of-range values the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate accepts either dd/mm/yyyy or yyyy-mm-dd.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DisplayLayout, ISOLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q: want dd/mm/yyyy or yyyy-mm-dd", s)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Compare returns -1, 0 or +1 as d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d.Compare(o) < 0
}

// Display formats the date as dd/mm/yyyy, or "" when unset.
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DisplayLayout)
}

// String formats the date as yyyy-mm-dd, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(ISOLayout)
}

// MarshalJSON encodes the date as an ISO string, or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts null, an ISO string or a dd/mm/yyyy string.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("due date: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
