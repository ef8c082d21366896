// Package rerr defines the structured error taxonomy shared by every
// Ridgeline component: the commit engine, the watch layer, the command
// executor, and the metadata layer report their recognized failure modes as
// a *rerr.Error carrying one of the Code values below, never as a panic;
// storage, Raft and decoding failures are returned as plain wrapped errors.
// Callers use errors.As to recover the Code and Path/Cause.
package rerr

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure, matching the taxonomy in spec §7.
type Code string

const (
	EntryNotFound      Code = "EntryNotFound"
	RevisionNotFound   Code = "RevisionNotFound"
	RepositoryNotFound Code = "RepositoryNotFound"
	ProjectNotFound    Code = "ProjectNotFound"
	RepositoryExists   Code = "RepositoryExists"
	ProjectExists      Code = "ProjectExists"
	InvalidPush        Code = "InvalidPush"
	ChangeConflict     Code = "ChangeConflict"
	RedundantChange    Code = "RedundantChange"
	QueryExecution     Code = "QueryExecution"
	ChangeFormat       Code = "ChangeFormat"
	Authorization      Code = "Authorization"
	ReadOnly           Code = "ReadOnly"
	QuotaExceeded      Code = "QuotaExceeded"
	ShuttingDown       Code = "ShuttingDown"
)

// Error is the value returned by every public Ridgeline operation for a
// recognized failure mode. Message is human text; Cause, if set, is the
// underlying error that triggered this one.
type Error struct {
	Code    Code
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error with the same Code, so callers can
// write errors.Is(err, rerr.New(rerr.EntryNotFound, "", "")) if they only
// care about the code and not the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New builds an *Error with the given code, path (may be empty), and
// message.
func New(code Code, path, message string) *Error {
	return &Error{Code: code, Path: path, Message: message}
}

// Wrap builds an *Error around a lower-level cause.
func Wrap(code Code, path string, cause error) *Error {
	return &Error{Code: code, Path: path, Message: cause.Error(), Cause: cause}
}

// CodeOf extracts the Code of err, or "" if err is not a *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err is a *Error with the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
