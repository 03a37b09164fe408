// Package fserrors classifies the error kinds produced across the service
// (§7 of the specification) so callers can branch on kind without string
// matching, in the style of rclone's fs/fserrors retriable-error wrapping.
package fserrors

import (
	"errors"
	"fmt"
)

// Kind identifies which subsystem classification an error belongs to.
type Kind string

// Error kinds, one per taxonomy entry in §7.
const (
	KindConfig  Kind = "config"
	KindCsv     Kind = "csv"
	KindAdapter Kind = "adapter"
	KindMonitor Kind = "monitor"
	KindXML     Kind = "xml"
	KindFs      Kind = "fs"
	KindSignal  Kind = "signal"
	KindLogger  Kind = "logger"
)

// AdapterSubKind further classifies AdapterError per §7.
type AdapterSubKind string

// Adapter sub-kinds.
const (
	AdapterUnavailable AdapterSubKind = "unavailable"
	AdapterAuth        AdapterSubKind = "auth"
	AdapterIo          AdapterSubKind = "io"
)

// Error is the common classified error value returned by every component.
type Error struct {
	Kind    Kind
	Sub     AdapterSubKind // only meaningful when Kind == KindAdapter
	Op      string         // operation that failed, e.g. "reflist.reload"
	Path    string         // file/path/url associated with the failure, if any
	Err     error          // wrapped cause
	Fatal   bool           // true if retrying cannot help; the owning worker is not restarted
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, fserrors.ErrAdapter) read naturally: target matches
// when its Kind (and Sub, if set) are empty or equal to this error's, as with
// the kind-only sentinels declared below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Sub != "" && t.Sub != e.Sub {
		return false
	}
	return true
}

// New constructs a classified error.
func New(kind Kind, op string, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// NewAdapter constructs a classified AdapterError with its sub-kind.
func NewAdapter(sub AdapterSubKind, op string, path string, err error) *Error {
	return &Error{Kind: KindAdapter, Sub: sub, Op: op, Path: path, Err: err}
}

// Fatal marks an error as fatal to the owning component and returns it.
// worker.Start records a fatal connect error so the supervisor's health
// check stops restarting that worker.
func Fatal(err *Error) *Error {
	err.Fatal = true
	return err
}

// IsFatal reports whether err carries the Fatal marker.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal
	}
	return false
}

// KindOf extracts the Kind of a classified error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Sentinel kind-only errors usable with errors.Is(err, fserrors.ErrConfig) etc.
var (
	ErrConfig  = &Error{Kind: KindConfig}
	ErrCsv     = &Error{Kind: KindCsv}
	ErrAdapter = &Error{Kind: KindAdapter}
	ErrMonitor = &Error{Kind: KindMonitor}
	ErrXML     = &Error{Kind: KindXML}
	ErrFs      = &Error{Kind: KindFs}
	ErrSignal  = &Error{Kind: KindSignal}
	ErrLogger  = &Error{Kind: KindLogger}
)

// CsvError sub-kinds referenced directly by §4.A.
var (
	ErrNotFound     = errors.New("not found")
	ErrMalformedCsv = errors.New("malformed csv")
	ErrEmpty        = errors.New("empty reference list")
	ErrUnknownColumn = errors.New("unknown column")
)
