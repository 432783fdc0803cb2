package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmynk/travelmatch/internal/models"
)

// ValidationError captures field level issues with a request.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// arrivalLayouts is the ISO 8601 profile accepted for arrival times:
// extended (2006-01-02T15:04:05) and basic (20060102T150405) forms, with or
// without seconds, with a Z, ±hh:mm, ±hhmm or ±hh offset or none at all.
// Fractional seconds are accepted wherever seconds are.
var arrivalLayouts = buildArrivalLayouts()

func buildArrivalLayouts() []string {
	forms := []struct {
		date  string
		seps  []string
		times []string
	}{
		{date: "2006-01-02", seps: []string{"T", " "}, times: []string{"15:04:05", "15:04"}},
		{date: "20060102", seps: []string{"T"}, times: []string{"150405", "1504"}},
	}
	zones := []string{"Z07:00", "Z0700", "Z07", ""}

	var layouts []string
	for _, f := range forms {
		for _, sep := range f.seps {
			for _, clock := range f.times {
				for _, zone := range zones {
					layouts = append(layouts, f.date+sep+clock+zone)
				}
			}
		}
	}
	return layouts
}

// ParseArrivalTime parses an ISO 8601 date-time. Values with an offset keep
// it; values without one (browser datetime-local inputs) are read in loc.
func ParseArrivalTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range arrivalLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized arrival time %q", s)
}

// toSubmission checks required fields and builds the submission.
// Phone and email are each optional but at least one is needed to reach the traveler.
func (r *SubmitRequest) toSubmission(loc *time.Location) (models.Submission, error) {
	var vErr ValidationError

	name := strings.TrimSpace(r.Name)
	if name == "" {
		vErr.add("name", "name is required")
	}
	location := strings.TrimSpace(r.Location)
	if location == "" {
		vErr.add("location", "location is required")
	}
	phone := strings.TrimSpace(r.Phone)
	email := strings.TrimSpace(r.Email)
	if phone == "" && email == "" {
		vErr.add("contact", "phone or email is required")
	}

	var arrival time.Time
	if strings.TrimSpace(r.ArrivalTime) == "" {
		vErr.add("arrival_time", "arrival time is required")
	} else {
		t, err := ParseArrivalTime(r.ArrivalTime, loc)
		if err != nil {
			vErr.add("arrival_time", "arrival time is invalid")
		}
		arrival = t
	}

	if vErr.HasErrors() {
		return models.Submission{}, &vErr
	}
	return models.Submission{
		Name:        name,
		Phone:       phone,
		Email:       email,
		ArrivalTime: arrival,
		Location:    location,
	}, nil
}
