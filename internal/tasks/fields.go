package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// rawFields is a request body keyed by JSON field name. Keeping the raw
// values lets PUT tell an absent field from an explicit null.
type rawFields map[string]json.RawMessage

var errBodyTooLarge = fmt.Errorf("request body must be at most %d bytes", maxBodyBytes)

func decodeFields(w http.ResponseWriter, r *http.Request) (rawFields, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	var fields rawFields
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&fields); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, errors.New("request body must be a JSON object")
	}
	if dec.More() {
		return nil, errors.New("request body must contain a single JSON object")
	}
	if fields == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// str reads an optional string field. present is false for absent keys and
// for explicit nulls.
func (f rawFields) str(key string, verr *ValidationError) (val string, present bool) {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return "", false
	}
	if err := json.Unmarshal(raw, &val); err != nil {
		verr.add(key, key+" must be a string")
		return "", false
	}
	return val, true
}

// dueDate reads dueDate. clear is true when the field is present but null or
// empty.
func (f rawFields) dueDate(verr *ValidationError) (d *Date, clear bool) {
	raw, ok := f["dueDate"]
	if !ok {
		return nil, false
	}
	if isNull(raw) {
		return nil, true
	}
	s, present := f.str("dueDate", verr)
	if !present {
		return nil, false
	}
	if strings.TrimSpace(s) == "" {
		return nil, true
	}
	parsed, err := ParseDate(s)
	if err != nil {
		verr.add("dueDate", fmt.Sprintf("dueDate must be a date (YYYY-MM-DD), got %q", s))
		return nil, false
	}
	return &parsed, false
}

func newTaskFromFields(f rawFields) (NewTask, error) {
	var verr ValidationError
	var in NewTask

	in.Title, _ = f.str("title", &verr)
	in.Description, _ = f.str("description", &verr)
	in.DueDate, _ = f.dueDate(&verr)
	if p, ok := f.str("priority", &verr); ok {
		in.Priority = Priority(p)
	}
	if s, ok := f.str("status", &verr); ok {
		in.Status = Status(s)
	}
	return in, verr.orNil()
}

// patchFromFields builds a Patch from the mutable fields. id, owner and
// createdAt are ignored because clients echo whole tasks back on PUT.
func patchFromFields(f rawFields) (Patch, error) {
	var verr ValidationError
	var p Patch

	if _, ok := f["title"]; ok {
		if isNull(f["title"]) {
			verr.add("title", "title is required")
		} else if v, ok := f.str("title", &verr); ok {
			p.Title = &v
		}
	}
	if v, ok := f.str("description", &verr); ok {
		p.Description = &v
	} else if raw, has := f["description"]; has && isNull(raw) {
		empty := ""
		p.Description = &empty
	}
	p.DueDate, p.ClearDueDate = f.dueDate(&verr)
	if v, ok := f.str("priority", &verr); ok {
		pr := Priority(v)
		p.Priority = &pr
	}
	if v, ok := f.str("status", &verr); ok {
		st := Status(v)
		p.Status = &st
	}
	return p, verr.orNil()
}
