package vfs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("file not found")
	ErrOffsetOutOfRange  = errors.New("line offset out of range")
	ErrStringNotFound    = errors.New("string not found in file")
	ErrAmbiguousMatch    = errors.New("string matches multiple locations")
	ErrMirrorWriteFailed = errors.New("mirror write failed")
	ErrInvalidInput      = errors.New("invalid input")
)

// NotFoundError reports a path missing from the workspace (and, for reads, from the mirror).
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file %q not found", e.Path)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// OffsetError is returned by Read when offset is at or past the last line.
type OffsetError struct {
	Offset int
	Lines  int
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("line offset %d exceeds file length (%d lines)", e.Offset, e.Lines)
}

func (e *OffsetError) Is(target error) bool {
	return target == ErrOffsetOutOfRange
}

type StringNotFoundError struct {
	Path   string
	Needle string
}

func (e *StringNotFoundError) Error() string {
	return fmt.Sprintf("string %q not found in %s", e.Needle, e.Path)
}

func (e *StringNotFoundError) Is(target error) bool {
	return target == ErrStringNotFound
}

// AmbiguousMatchError carries the occurrence count so callers can ask for more context.
type AmbiguousMatchError struct {
	Path   string
	Needle string
	Count  int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("string %q appears %d times in %s", e.Needle, e.Count, e.Path)
}

func (e *AmbiguousMatchError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
