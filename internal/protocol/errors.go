package protocol

import (
	"errors"
	"fmt"
)

// Domain is the error domain reported by the playlist daemon.
const Domain = "plsd"

// Code identifies the kind of a daemon error.
type Code int32

const (
	CodeUnknown Code = iota
	CodeInvalidIndex
	CodeInvalidName
	CodeDuplicateName
	CodeNotFound
	CodeInvalidImport
	CodeInUse
	CodeInvalidUseCount
	CodeInvalidObjectID
	CodeImportFailed
	CodeParseFailed
	CodeTransportUnavailable
	CodeDaemonRestarted
)

func (c Code) String() string {
	switch c {
	case CodeInvalidIndex:
		return "invalid_index"
	case CodeInvalidName:
		return "invalid_name"
	case CodeDuplicateName:
		return "duplicate_name"
	case CodeNotFound:
		return "not_found"
	case CodeInvalidImport:
		return "invalid_import"
	case CodeInUse:
		return "in_use"
	case CodeInvalidUseCount:
		return "invalid_use_count"
	case CodeInvalidObjectID:
		return "invalid_object_id"
	case CodeImportFailed:
		return "import_failed"
	case CodeParseFailed:
		return "parse_failed"
	case CodeTransportUnavailable:
		return "transport_unavailable"
	case CodeDaemonRestarted:
		return "daemon_restarted"
	default:
		return "unknown"
	}
}

// Error is a structured daemon error.
type Error struct {
	Domain  string
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Domain, e.Code, e.Message)
}

// Is matches any [*Error] of the same domain and code, so sentinels work with [errors.Is].
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Domain == t.Domain && e.Code == t.Code
}

// Errorf creates an [*Error] in the daemon domain.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Domain: Domain, Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError converts err into an [*Error]; errors of foreign origin become [CodeUnknown].
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Domain: Domain, Code: CodeUnknown, Message: err.Error()}
}

var (
	ErrInvalidIndex         = Errorf(CodeInvalidIndex, "invalid index")
	ErrInvalidName          = Errorf(CodeInvalidName, "invalid playlist name")
	ErrDuplicateName        = Errorf(CodeDuplicateName, "playlist name already in use")
	ErrNotFound             = Errorf(CodeNotFound, "playlist not found")
	ErrInvalidImport        = Errorf(CodeInvalidImport, "invalid import id")
	ErrInUse                = Errorf(CodeInUse, "playlist is in use")
	ErrInvalidUseCount      = Errorf(CodeInvalidUseCount, "use count is already zero")
	ErrInvalidObjectID      = Errorf(CodeInvalidObjectID, "invalid object id")
	ErrImportFailed         = Errorf(CodeImportFailed, "import failed")
	ErrParseFailed          = Errorf(CodeParseFailed, "parse failed")
	ErrTransportUnavailable = Errorf(CodeTransportUnavailable, "playlist daemon unavailable")
	ErrDaemonRestarted      = Errorf(CodeDaemonRestarted, "playlist daemon restarted")
)
