// Package errors defines the typed failures raised while scanning a
// workspace, aggregating a selection, preparing the panel document and
// handling bridge messages.
//
// Every failure carries a Kind that decides how it is degraded at the
// nearest boundary: scan and file read failures become degraded values,
// template and workspace failures become notifications, protocol
// failures are logged and ignored.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the category of a failure.
type Kind string

const (
	KindScanRead    Kind = "scan_read"
	KindFileRead    Kind = "file_read"
	KindTemplate    Kind = "template"
	KindProtocol    Kind = "protocol"
	KindNoWorkspace Kind = "no_workspace"
	KindConfig      Kind = "config"
	KindSecurity    Kind = "security"
	KindInternal    Kind = "internal"
)

// Common error codes.
const (
	CodeDirUnreadable     = "ERR_DIR_UNREADABLE"
	CodeRootInvalid       = "ERR_ROOT_INVALID"
	CodeFileNotFound      = "ERR_FILE_NOT_FOUND"
	CodePermissionDenied  = "ERR_PERMISSION_DENIED"
	CodeBinaryContent     = "ERR_BINARY_CONTENT"
	CodeDecoding          = "ERR_DECODING"
	CodeFileTooLarge      = "ERR_FILE_TOO_LARGE"
	CodeNotRegular        = "ERR_NOT_REGULAR_FILE"
	CodeReadFailed        = "ERR_READ_FAILED"
	CodePolicySlotMissing = "ERR_POLICY_SLOT_MISSING"
	CodeAssetUnresolved   = "ERR_ASSET_UNRESOLVED"
	CodeUnsafePolicy      = "ERR_UNSAFE_POLICY"
	CodeTemplateParse     = "ERR_TEMPLATE_PARSE"
	CodeMalformedMessage  = "ERR_MALFORMED_MESSAGE"
	CodeNoWorkspace       = "ERR_NO_WORKSPACE"
	CodeConfigInvalid     = "ERR_CONFIG_INVALID"
	CodePathTraversal     = "ERR_PATH_TRAVERSAL"
	CodeInvalidOrigin     = "ERR_INVALID_ORIGIN"
	CodePanic             = "ERR_PANIC"
	CodeInternal          = "ERR_INTERNAL"
)

// Error is a structured error with a kind, a code and an optional path.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Path    string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is compares kind and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}

	return false
}

// WithPath attaches the filesystem path the error refers to.
func (e *Error) WithPath(path string) *Error {
	e.Path = path

	return e
}

// Reason returns the human readable failure reason without code or path
// decoration. It is what the aggregator embeds in error placeholders.
func (e *Error) Reason() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// NewScanReadError creates an error for a directory that could not be listed.
func NewScanReadError(path string, cause error) *Error {
	return &Error{
		Kind:    KindScanRead,
		Code:    CodeDirUnreadable,
		Message: "directory could not be read",
		Path:    path,
		Cause:   cause,
	}
}

// NewFileReadError creates an error for a file that could not be read or decoded.
func NewFileReadError(code, message, path string, cause error) *Error {
	return &Error{
		Kind:    KindFileRead,
		Code:    code,
		Message: message,
		Path:    path,
		Cause:   cause,
	}
}

// NewTemplateError creates an error for a malformed panel template.
func NewTemplateError(code, message string) *Error {
	return &Error{
		Kind:    KindTemplate,
		Code:    code,
		Message: message,
	}
}

// NewProtocolError creates an error for a malformed inbound message.
func NewProtocolError(code, message string, cause error) *Error {
	return &Error{
		Kind:    KindProtocol,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewNoWorkspaceError creates an error for an operation that needs a
// workspace root when none is open.
func NewNoWorkspaceError(operation string) *Error {
	return &Error{
		Kind:    KindNoWorkspace,
		Code:    CodeNoWorkspace,
		Message: "no workspace folder is open; cannot " + operation,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *Error {
	return &Error{
		Kind:    KindConfig,
		Code:    code,
		Message: message,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *Error {
	return &Error{
		Kind:    KindSecurity,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsKind reports whether err, or any error it wraps, has the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}

	return false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// As is a passthrough to the standard library so callers only import one
// errors package.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is a passthrough to the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New is a passthrough to the standard library.
func New(text string) error {
	return errors.New(text)
}

// Join is a passthrough to the standard library.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
