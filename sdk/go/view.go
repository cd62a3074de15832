package taskdecksdk

import (
	"sort"
	"strings"
	"time"
)

const (
	SortCreatedAt = "createdAt"
	SortDueDate   = "dueDate"
	SortPriority  = "priority"
	SortTitle     = "title"

	StatusAll = "all"
)

// View selects and orders tasks for display.
type View struct {
	Search string
	Status string // StatusAll or an exact status
	SortBy string
	Desc   bool
}

// DefaultView shows every task, newest first.
func DefaultView() View {
	return View{Status: StatusAll, SortBy: SortCreatedAt, Desc: true}
}

func priorityRank(p string) int {
	switch p {
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	default:
		return 0
	}
}

func (v View) matches(t Task) bool {
	if v.Status != "" && v.Status != StatusAll && t.Status != v.Status {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(v.Search))
	if q == "" {
		return true
	}
	for _, field := range []string{t.Title, t.Description, t.Priority, t.Status} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func dueOf(t Task) time.Time {
	if t.DueDate == nil {
		return time.Time{}
	}
	return *t.DueDate
}

// less orders ascending: oldest, earliest due, lowest priority, A to Z.
func (v View) less(a, b Task) bool {
	switch v.SortBy {
	case SortDueDate:
		return dueOf(a).Before(dueOf(b))
	case SortPriority:
		return priorityRank(a.Priority) < priorityRank(b.Priority)
	case SortTitle:
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

// Apply filters and sorts tasks without modifying the input. Equal keys
// keep their input order.
func Apply(tasks []Task, v View) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if v.matches(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if v.Desc {
			return v.less(out[j], out[i])
		}
		return v.less(out[i], out[j])
	})
	return out
}

// Column is one lane of the board layout.
type Column struct {
	Status string
	Tasks  []Task
}

// Columns groups tasks into todo, in-progress and done lanes, keeping the
// input order within each lane.
func Columns(tasks []Task) []Column {
	cols := []Column{{Status: "todo"}, {Status: "in-progress"}, {Status: "done"}}
	for _, t := range tasks {
		for i := range cols {
			if cols[i].Status == t.Status {
				cols[i].Tasks = append(cols[i].Tasks, t)
				break
			}
		}
	}
	return cols
}
