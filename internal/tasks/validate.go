package tasks

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
)

func validateTitle(title string, verr *ValidationError) string {
	trimmed := strings.TrimSpace(title)
	switch {
	case trimmed == "":
		verr.add("title", "title is required")
	case utf8.RuneCountInString(trimmed) > MaxTitleLen:
		verr.add("title", fmt.Sprintf("title must be at most %d characters", MaxTitleLen))
	}
	return trimmed
}

func validateDescription(desc string, verr *ValidationError) {
	if utf8.RuneCountInString(desc) > MaxDescriptionLen {
		verr.add("description", fmt.Sprintf("description must be at most %d characters", MaxDescriptionLen))
	}
}

// normalize validates n and fills in defaults.
func (n NewTask) normalize() (NewTask, error) {
	var verr ValidationError

	n.Title = validateTitle(n.Title, &verr)
	validateDescription(n.Description, &verr)

	if n.Priority == "" {
		n.Priority = PriorityMedium
	} else if p, err := ParsePriority(string(n.Priority)); err != nil {
		verr.add("priority", "priority must be one of Low, Medium, High")
	} else {
		n.Priority = p
	}

	if n.Status == "" {
		n.Status = StatusPending
	} else if st, err := ParseStatus(string(n.Status)); err != nil {
		verr.add("status", "status must be one of Pending, Completed")
	} else {
		n.Status = st
	}

	return n, verr.orNil()
}

// normalize validates the fields present in p. Unlike NewTask, an empty
// priority or status here is an explicit bad value.
func (p Patch) normalize() (Patch, error) {
	var verr ValidationError

	if p.Title != nil {
		t := validateTitle(*p.Title, &verr)
		p.Title = &t
	}
	if p.Description != nil {
		validateDescription(*p.Description, &verr)
	}
	if p.Priority != nil {
		if pr, err := ParsePriority(string(*p.Priority)); err != nil {
			verr.add("priority", "priority must be one of Low, Medium, High")
		} else {
			p.Priority = &pr
		}
	}
	if p.Status != nil {
		if st, err := ParseStatus(string(*p.Status)); err != nil {
			verr.add("status", "status must be one of Pending, Completed")
		} else {
			p.Status = &st
		}
	}

	return p, verr.orNil()
}
