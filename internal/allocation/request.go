package allocation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxMinutesValue caps every integer field so that sums of bounds never overflow
const MaxMinutesValue = math.MaxInt32

// MaxTaskIDLength is the longest task_id accepted, in characters. It matches
// the task_allocations.task_id column.
const MaxTaskIDLength = 255

// Number is a JSON literal kept verbatim. A quoted numeral keeps its quotes
// and therefore fails validation as a non-number.
type Number string

func (n *Number) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	*n = Number(data)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("null"), nil
	}
	return []byte(n), nil
}

// RawTask is a task as decoded from the wire, before validation
type RawTask struct {
	TaskID     string `json:"task_id"`
	Ratio      Number `json:"ratio"`
	MinMinutes Number `json:"min_minutes,omitempty"`
	MaxMinutes Number `json:"max_minutes,omitempty"`
}

// RawRequest is an allocation request as decoded from the wire
type RawRequest struct {
	TotalMinutes Number    `json:"total_minutes"`
	Tasks        []RawTask `json:"tasks"`
}

// Task is a validated TaskRatio. Nil bounds mean "not given".
type Task struct {
	ID         string
	Ratio      float64
	MinMinutes *int
	MaxMinutes *int
}

// Request is a validated allocation request
type Request struct {
	TotalMinutes int
	Tasks        []Task
}

// Validate checks raw input and returns a well-typed Request or an *Error of
// KindInvalidInput carrying every violation found. raw is not modified.
func Validate(raw RawRequest) (Request, error) {
	var violations []Violation
	add := func(field, message string) {
		violations = append(violations, Violation{Field: field, Message: message})
	}

	total, msg := parseInteger(raw.TotalMinutes, 1)
	if msg != "" {
		add("total_minutes", msg)
	}

	if len(raw.Tasks) == 0 {
		add("tasks", "at least one task is required")
	}

	tasks := make([]Task, 0, len(raw.Tasks))
	seen := make(map[string]struct{}, len(raw.Tasks))
	duplicated := false

	for i, rt := range raw.Tasks {
		prefix := fmt.Sprintf("tasks[%d].", i)
		task := Task{ID: strings.TrimSpace(rt.TaskID)}

		if task.ID == "" {
			add(prefix+"task_id", "task_id is required")
		} else if utf8.RuneCountInString(task.ID) > MaxTaskIDLength {
			add(prefix+"task_id", fmt.Sprintf("task_id must be at most %d characters", MaxTaskIDLength))
		} else if strings.ContainsRune(task.ID, 0) {
			add(prefix+"task_id", "task_id cannot contain NUL characters")
		} else if _, exists := seen[task.ID]; exists {
			duplicated = true
		} else {
			seen[task.ID] = struct{}{}
		}

		ratio, msg := parseRatio(rt.Ratio)
		if msg != "" {
			add(prefix+"ratio", msg)
		}
		task.Ratio = ratio

		if rt.MinMinutes != "" {
			v, msg := parseInteger(rt.MinMinutes, 0)
			if msg != "" {
				add(prefix+"min_minutes", msg)
			} else {
				task.MinMinutes = &v
			}
		}
		if rt.MaxMinutes != "" {
			v, msg := parseInteger(rt.MaxMinutes, 1)
			if msg != "" {
				add(prefix+"max_minutes", msg)
			} else {
				task.MaxMinutes = &v
			}
		}
		if task.MinMinutes != nil && task.MaxMinutes != nil && *task.MinMinutes > *task.MaxMinutes {
			add(prefix+"max_minutes", "min_minutes cannot exceed max_minutes")
		}

		tasks = append(tasks, task)
	}

	if duplicated {
		add("tasks", "task_id must be unique")
	}

	if len(violations) > 0 {
		return Request{}, &Error{
			Kind:       KindInvalidInput,
			Reason:     "request validation failed",
			Violations: violations,
		}
	}

	return Request{TotalMinutes: total, Tasks: tasks}, nil
}

// parseInteger returns the value of n or a violation message. lowest is the
// smallest accepted value (0 or 1).
func parseInteger(n Number, lowest int) (int, string) {
	if n == "" {
		return 0, "is required"
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "must be a number"
	}
	if f != math.Trunc(f) {
		return 0, "must be an integer"
	}
	if f < float64(lowest) {
		if lowest == 0 {
			return 0, "must be a non-negative integer"
		}
		return 0, "must be a positive integer"
	}
	if f > MaxMinutesValue {
		return 0, fmt.Sprintf("must be at most %d", MaxMinutesValue)
	}
	return int(f), ""
}

func parseRatio(n Number) (float64, string) {
	if n == "" {
		return 0, "is required"
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "must be a finite number"
	}
	if f <= 0 {
		return 0, "ratio must be positive"
	}
	return f, ""
}

// NewRawRequest builds the wire form of an already-typed request. Handy for
// callers that construct requests in code rather than decoding JSON.
func NewRawRequest(req Request) RawRequest {
	raw := RawRequest{
		TotalMinutes: Number(strconv.Itoa(req.TotalMinutes)),
		Tasks:        make([]RawTask, len(req.Tasks)),
	}
	for i, t := range req.Tasks {
		rt := RawTask{
			TaskID: t.ID,
			Ratio:  Number(strconv.FormatFloat(t.Ratio, 'g', -1, 64)),
		}
		if t.MinMinutes != nil {
			rt.MinMinutes = Number(strconv.Itoa(*t.MinMinutes))
		}
		if t.MaxMinutes != nil {
			rt.MaxMinutes = Number(strconv.Itoa(*t.MaxMinutes))
		}
		raw.Tasks[i] = rt
	}
	return raw
}
