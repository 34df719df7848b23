package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/s1natex/tasktracker/internal/tasks"
)

type Filter string

const (
	FilterAll       Filter = "all"
	FilterPending   Filter = "pending"
	FilterCompleted Filter = "completed"
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FilterAll:
		return FilterAll, nil
	case FilterPending, FilterCompleted:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q, want all, pending or completed", s)
	}
}

type Stats struct {
	Total     int
	Completed int
	Pending   int
}

// View is the client-side list of fetched tasks. Filtering and stats are
// local and never hit the server.
type View struct {
	Filter Filter
	tasks  []tasks.Task
}

func NewView(ts []tasks.Task) *View {
	return &View{Filter: FilterAll, tasks: append([]tasks.Task(nil), ts...)}
}

// Visible returns the tasks that pass the current filter, in list order.
func (v *View) Visible() []tasks.Task {
	out := make([]tasks.Task, 0, len(v.tasks))
	for _, t := range v.tasks {
		switch {
		case v.Filter == FilterCompleted && t.Status != tasks.StatusCompleted:
		case v.Filter == FilterPending && t.Status != tasks.StatusPending:
		default:
			out = append(out, t)
		}
	}
	return out
}

// Stats counts all tasks regardless of the filter.
func (v *View) Stats() Stats {
	s := Stats{Total: len(v.tasks)}
	for _, t := range v.tasks {
		if t.Status == tasks.StatusCompleted {
			s.Completed++
		} else {
			s.Pending++
		}
	}
	return s
}

// Replace swaps in t by id, or puts it at the front if it is new.
func (v *View) Replace(t tasks.Task) {
	for i := range v.tasks {
		if v.tasks[i].ID == t.ID {
			v.tasks[i] = t
			return
		}
	}
	v.tasks = append([]tasks.Task{t}, v.tasks...)
}

func (v *View) Remove(id string) {
	for i := range v.tasks {
		if v.tasks[i].ID == id {
			v.tasks = append(v.tasks[:i], v.tasks[i+1:]...)
			return
		}
	}
}

// DueLabel describes due relative to the calendar day of now.
func DueLabel(due *tasks.Date, now time.Time) string {
	if due == nil {
		return "No due date"
	}
	days := daysUntil(*due, now)
	switch {
	case days < 0:
		return fmt.Sprintf("Overdue by %d day(s)", -days)
	case days == 0:
		return "Due today"
	case days == 1:
		return "Due tomorrow"
	default:
		return fmt.Sprintf("Due in %d day(s)", days)
	}
}

// IsOverdue reports whether due is a day before now's calendar day.
func IsOverdue(due *tasks.Date, now time.Time) bool {
	return due != nil && daysUntil(*due, now) < 0
}

// daysUntil works on Unix seconds; time.Duration overflows past ~292 years.
func daysUntil(due tasks.Date, now time.Time) int {
	today := tasks.DateOf(now).Time()
	return int((due.Time().Unix() - today.Unix()) / 86400)
}
