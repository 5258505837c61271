// ABOUTME: Status-coded errors for audio subsystem calls and the top-level fatal reporter.
// ABOUTME: Codes print as a quoted four-character tag when printable, otherwise as a decimal.

package errorhandler

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"

	"github.com/777genius/playto/internal/logging"
)

// Status is a result code from an audio subsystem call. Zero means success.
type Status int32

// Status codes. Four-character codes are packed big-endian.
const (
	StatusOK Status = 0

	StatusFileNotFound         Status = -43
	StatusUnsupportedFileType  Status = 't'<<24 | 'y'<<16 | 'p'<<8 | '?'
	StatusInvalidFile          Status = 'd'<<24 | 't'<<16 | 'a'<<8 | '?'
	StatusPermissions          Status = 'p'<<24 | 'r'<<16 | 'm'<<8 | '?'
	StatusUnspecified          Status = 'w'<<24 | 'h'<<16 | 'a'<<8 | 't'
	StatusBadDevice            Status = '!'<<24 | 'd'<<16 | 'e'<<8 | 'v'
	StatusNotRunning           Status = 's'<<24 | 't'<<16 | 'o'<<8 | 'p'
	StatusInvalidPropertyValue Status = -10851
	StatusUninitialized        Status = -10867
	StatusInitialized          Status = -10849
	StatusInvalidConnection    Status = -10876
	StatusNodeNotFound         Status = -10860
)

// Exit codes used by the command line entry point.
const (
	ExitOK    = 0
	ExitFatal = 1
	ExitUsage = -1
)

// String formats the code the way CoreAudio tooling does: 'abcd' or -10867.
func (s Status) String() string {
	u := uint32(s)
	b := [4]byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("%d", int32(s))
		}
	}
	return "'" + string(b[:]) + "'"
}

// StatusError is a failed audio subsystem operation.
type StatusError struct {
	Op     string
	Status Status
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Op, e.Status)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Check returns nil for StatusOK and a *StatusError naming op otherwise.
func Check(status Status, op string) error {
	if status == StatusOK {
		return nil
	}
	return &StatusError{Op: op, Status: status}
}

// Wrap attaches a status code and operation label to a library error.
// A nil err yields nil.
func Wrap(err error, status Status, op string) error {
	if err == nil {
		return nil
	}
	return &StatusError{Op: op, Status: status, Err: err}
}

// StatusOf extracts the status code carried by err, or StatusUnspecified
// when err is not a *StatusError.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusUnspecified
}

// Report writes a one-line diagnostic for err to w and returns the process
// exit code. It does not exit.
func Report(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}

	var se *StatusError
	if errors.As(err, &se) {
		fmt.Fprintf(w, "Error: %s (%s)\n", se.Op, se.Status)
		if se.Err != nil {
			// The console already has the one-line diagnostic.
			logging.Debug("%s: %v", se.Op, se.Err)
		}
	} else {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	return ExitFatal
}

// handler settings
var (
	mu              sync.Mutex
	console         = io.Writer(os.Stderr)
	recoveryEnabled = true
	panicked        bool
)

// Init configures panic handling. A recovered panic is reported on w (nil
// keeps it out of the console). With recovery disabled HandlePanic re-panics.
func Init(w io.Writer, recovery bool) {
	mu.Lock()
	defer mu.Unlock()
	console = w
	recoveryEnabled = recovery
	panicked = false
}

// HandlePanic recovers a panic in the calling goroutine, logs it with a stack
// trace and records it so Panicked reports true. Must be called via defer.
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}

	mu.Lock()
	recovery := recoveryEnabled
	w := console
	panicked = true
	mu.Unlock()

	logging.Error("panic: %v\n%s", r, debug.Stack())
	if w != nil {
		fmt.Fprintf(w, "Error: internal failure (%v)\n", r)
	}
	if !recovery {
		panic(r)
	}
}

// Panicked reports whether HandlePanic recovered a panic since Init.
func Panicked() bool {
	mu.Lock()
	defer mu.Unlock()
	return panicked
}

// HandleError logs a non-fatal error with context.
func HandleError(err error, message string) {
	if err == nil {
		return
	}
	logging.Warn("%s: %v", message, err)
}
