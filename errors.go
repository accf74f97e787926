package main

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for navigation past a non-wrapping boundary and
// for paths that are not part of the current index.
var ErrNotFound = errors.New("not found")

// errCancelled marks a job dropped from the queue before it ran. It never
// reaches the UI.
var errCancelled = errors.New("load cancelled")

// IoError reports that the bytes of an image (or a folder listing) could not be read.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// DecodeError reports malformed or unsupported image data.
type DecodeError struct {
	Path   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %s", e.Path, e.Reason)
}

// errorKind returns a short label for the per-entry error indicator
func errorKind(err error) string {
	var ioErr *IoError
	var decErr *DecodeError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ioErr):
		return "I/O error"
	case errors.As(err, &decErr):
		return "Decode error"
	default:
		return "Error"
	}
}

// errorReason returns the cause of err without the path prefix
func errorReason(err error) string {
	var ioErr *IoError
	var decErr *DecodeError
	switch {
	case err == nil:
		return "unknown error"
	case errors.As(err, &decErr):
		return decErr.Reason
	case errors.As(err, &ioErr):
		return ioErr.Err.Error()
	default:
		return err.Error()
	}
}
