// Package errors collects request validation failures so a handler can report every bad field at once.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

type MultiErrors struct {
	Errors map[string][]ErrorInfo
}

type ErrorInfo struct {
	Message  string
	RawError error
}

func NewMultiErrors() *MultiErrors {
	return &MultiErrors{
		Errors: make(map[string][]ErrorInfo),
	}
}

func (e *MultiErrors) Add(field, message string, err error) {
	e.Errors[field] = append(e.Errors[field], ErrorInfo{
		Message:  message,
		RawError: err,
	})
}

func (e *MultiErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Fields returns the messages per field, used as the "fields" object of a 400 response
func (e *MultiErrors) Fields() map[string][]string {
	fields := make(map[string][]string, len(e.Errors))
	for field, infos := range e.Errors {
		for _, info := range infos {
			fields[field] = append(fields[field], info.Message)
		}
	}
	return fields
}

// Error lists fields in sorted order so the message is stable across requests
func (e *MultiErrors) Error() string {
	var parts []string
	for _, field := range e.sortedFields() {
		for _, info := range e.Errors[field] {
			parts = append(parts, fmt.Sprintf("%s: %s", field, info.Message))
		}
	}
	return strings.Join(parts, " | ")
}

// Unwrap exposes the underlying errors, so errors.Is matches sentinels such as ErrRepliesOnly
func (e *MultiErrors) Unwrap() []error {
	var errs []error
	for _, field := range e.sortedFields() {
		for _, info := range e.Errors[field] {
			if info.RawError != nil {
				errs = append(errs, info.RawError)
			}
		}
	}
	return errs
}

func (e *MultiErrors) sortedFields() []string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
