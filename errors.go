// Coded error handling for the chunkfs package.

package chunkfs

import (
	"errors"
	"fmt"

	"github.com/Ycyken/chunkfs/db"
)

// Error codes for the various chunkfs error handling requirements
const (
	_                       = iota // Ignore zero error codes
	ErrNotFound                    // Key not in the database or file not in the file layer
	ErrAlreadyExists               // File name collision on CreateFile
	ErrOutOfMemory                 // Disk database capacity exhausted
	ErrInvalidData                 // Encode/decode failure or a zero block size
	ErrIo                          // Pass-through of an underlying storage error
	ErrImproperlyConfigured        // Configuration error or missing value
	ErrChunking                    // Something went wrong during chunking
)

//===========================================================================
// Error Functions
//===========================================================================

// NewError creates a new simple error with the given code and prefix.
func NewError(message string, code int, prefix string) error {
	return &Error{
		Code:    code,
		Prefix:  prefix,
		Message: message,
		err:     nil,
	}
}

// Errorf creates an error with the given code and message and performs
// string formatting on behalf of the user (similar to fmt.Errorf, but with
// error codes).
func Errorf(message string, code int, args ...interface{}) error {
	return NewError(fmt.Sprintf(message, args...), code, "")
}

// WrapError calls Errorf, but also includes the wrapped error in the return.
func WrapError(message string, code int, err error, args ...interface{}) error {
	ferr := Errorf(message, code, args...).(*Error)
	ferr.err = err
	return ferr
}

// ImproperlyConfigured creates a new ErrImproperlyConfigured error.
func ImproperlyConfigured(message string, args ...interface{}) error {
	ferr := Errorf(message, ErrImproperlyConfigured, args...).(*Error)
	ferr.Prefix = "improperly configured: "
	return ferr
}

// ChunkingError creates a new ErrChunking error.
func ChunkingError(message string, args ...interface{}) error {
	return Errorf(message, ErrChunking, args...)
}

// wrapStorageError translates an error surfaced by a Database into a coded
// chunkfs error, preserving the underlying cause. Database sentinels map to
// their corresponding codes; anything else is treated as an I/O error.
func wrapStorageError(message string, err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return WrapError(message, ErrNotFound, err)
	case errors.Is(err, db.ErrOutOfMemory):
		return WrapError(message, ErrOutOfMemory, err)
	case errors.Is(err, db.ErrInvalidData):
		return WrapError(message, ErrInvalidData, err)
	default:
		return WrapError(message, ErrIo, err)
	}
}

// ErrorCode returns the chunkfs error code of an error, or zero if the
// error does not carry one.
func ErrorCode(err error) int {
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr.Code
	}
	return 0
}

//===========================================================================
// Error Type and Methods
//===========================================================================

// Error defines custom error handling for the chunkfs package. The file
// system operations, the chunker and hasher registries, and configuration
// validation return an Error carrying one of the package error codes plus
// the underlying cause, if any. Config.Read (and so LoadConfig) returns
// file and YAML errors unwrapped, and OpenDatabase (and so FromConfig)
// returns the database drivers' open errors unwrapped.
type Error struct {
	Code    int    // The internal chunkfs error code
	Prefix  string // A prefix to prepend to the message
	Message string // The string description of the error
	err     error  // A wrapped error from another library
}

// Wraps returns true if the Error wraps another error.
func (err *Error) Wraps() bool {
	return err.err != nil
}

// Error implements the error interface.
func (err *Error) Error() string {
	if err.Wraps() {
		return fmt.Sprintf("%s%s: %s", err.Prefix, err.Message, err.err.Error())
	}
	return fmt.Sprintf("%s%s", err.Prefix, err.Message)
}

// Unwrap returns the wrapped error so that errors.Is can reach sentinels
// surfaced by the storage drivers.
func (err *Error) Unwrap() error {
	return err.err
}
