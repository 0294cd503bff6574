// Package adterr defines the error taxonomy shared by every sapadt package.
//
// All operations return *Error at package boundaries. The Category is derived
// from the HTTP status (see FromHTTPStatus) or assigned by the caller, and the
// optional Hint is filled in by AddHint with remediation advice for common
// server-side misconfiguration.
package adterr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Category classifies an error.
type Category int

const (
	Internal Category = iota
	Connection
	Authentication
	CsrfToken
	NotFound
	LockConflict
	Timeout
	CheckError
	TransportError
)

func (c Category) String() string {
	switch c {
	case Internal:
		return "Internal"
	case Connection:
		return "Connection"
	case Authentication:
		return "Authentication"
	case CsrfToken:
		return "CsrfToken"
	case NotFound:
		return "NotFound"
	case LockConflict:
		return "LockConflict"
	case Timeout:
		return "Timeout"
	case CheckError:
		return "CheckError"
	case TransportError:
		return "TransportError"
	default:
		return "Category(" + strconv.Itoa(int(c)) + ")"
	}
}

// MarshalText renders the category name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Error is the structured failure returned by sapadt operations.
type Error struct {
	Operation  string
	Endpoint   string
	HTTPStatus *int
	Message    string
	// SAPError holds the server-provided message, set only when the response
	// body was a parseable error document.
	SAPError *string
	Hint     *string
	Category Category

	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Operation != "" {
		b.WriteString(e.Operation)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.HTTPStatus != nil {
		fmt.Fprintf(&b, " (HTTP %d)", *e.HTTPStatus)
	}
	if e.SAPError != nil && *e.SAPError != "" && !strings.Contains(e.Message, *e.SAPError) {
		b.WriteString(": ")
		b.WriteString(*e.SAPError)
	}
	return b.String()
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Status returns the HTTP status or 0 when the error did not come from a response.
func (e *Error) Status() int {
	if e == nil || e.HTTPStatus == nil {
		return 0
	}
	return *e.HTTPStatus
}

// New returns an error without an HTTP status.
func New(operation, endpoint string, category Category, message string) *Error {
	return &Error{
		Operation: operation,
		Endpoint:  endpoint,
		Message:   message,
		Category:  category,
	}
}

// Newf is New with a format string.
func Newf(operation, endpoint string, category Category, format string, args ...any) *Error {
	return New(operation, endpoint, category, fmt.Sprintf(format, args...))
}

// Wrap returns an error carrying cause. When cause already is an *Error it is
// returned unchanged so the innermost classification wins.
func Wrap(operation, endpoint string, category Category, cause error) *Error {
	var existing *Error
	if errors.As(cause, &existing) {
		return existing
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Operation: operation,
		Endpoint:  endpoint,
		Message:   msg,
		Category:  category,
		cause:     cause,
	}
}

// FromHTTPStatus builds the error for a non-success response.
func FromHTTPStatus(operation, endpoint string, status int, body []byte) *Error {
	sapErr := ExtractSAPError(body)
	var (
		category Category
		message  string
	)
	switch status {
	case 400:
		category = Internal
		message = "Bad request"
	case 401:
		category = Authentication
		message = "Authentication failed, check credentials or run 'sapadt login'"
	case 403:
		category = CsrfToken
		message = "Forbidden, CSRF token may be invalid"
	case 404:
		category = NotFound
		message = "Not found"
	case 408:
		category = Timeout
		message = "Request timed out"
	case 429:
		category = Timeout
		message = "Too many requests, retry later"
	case 409:
		category = LockConflict
		message = "Conflict, resource may be locked by another user"
	case 423:
		category = LockConflict
		message = "Resource is locked"
	case 500:
		category = Internal
		message = "SAP server internal error"
	case 502, 503, 504:
		category = Connection
		message = "SAP server unavailable"
	default:
		category = Internal
		message = "Unexpected HTTP " + strconv.Itoa(status)
	}
	st := status
	return &Error{
		Operation:  operation,
		Endpoint:   endpoint,
		HTTPStatus: &st,
		Message:    message,
		SAPError:   sapErr,
		Category:   category,
	}
}

// ExtractSAPError returns the text of the first exc:message, message or
// localizedMessage element of an error document. It returns nil when body is
// not XML or carries none of these elements.
func ExtractSAPError(body []byte) *string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed[0] != '<' {
		return nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(trimmed); err != nil {
		return nil
	}
	root := doc.Root()
	if root == nil {
		return nil
	}
	for _, match := range []func(*etree.Element) bool{
		func(el *etree.Element) bool { return el.Space == "exc" && el.Tag == "message" },
		func(el *etree.Element) bool { return el.Tag == "message" },
		func(el *etree.Element) bool { return el.Tag == "localizedMessage" },
	} {
		if el := findFirst(root, match); el != nil {
			if text := strings.TrimSpace(el.Text()); text != "" {
				return &text
			}
		}
	}
	return nil
}

func findFirst(el *etree.Element, match func(*etree.Element) bool) *etree.Element {
	if match(el) {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findFirst(child, match); found != nil {
			return found
		}
	}
	return nil
}

// Is reports whether err is an *Error of the supplied category.
func Is(err error, category Category) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Category == category
}

// CategoryOf returns the category of err, or Internal when err is not an *Error.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return Internal
}

// Exit codes used by the command line front end.
const (
	ExitOK             = 0
	ExitUsage          = 1
	ExitServer         = 2
	ExitTimeout        = 3
	ExitLockConflict   = 4
	ExitAuthentication = 5
)

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *Error
	if !errors.As(err, &e) {
		return ExitUsage
	}
	switch e.Category {
	case Timeout:
		return ExitTimeout
	case LockConflict:
		return ExitLockConflict
	case Authentication:
		return ExitAuthentication
	case Internal, Connection, CsrfToken, NotFound, CheckError, TransportError:
		return ExitServer
	}
	return ExitServer
}

type jsonError struct {
	Category   Category `json:"category"`
	Operation  string   `json:"operation,omitempty"`
	Endpoint   string   `json:"endpoint,omitempty"`
	HTTPStatus *int     `json:"http_status,omitempty"`
	Message    string   `json:"message"`
	SAPError   *string  `json:"sap_error,omitempty"`
	Hint       *string  `json:"hint,omitempty"`
}

// MarshalJSON renders the error record.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonError{
		Category:   e.Category,
		Operation:  e.Operation,
		Endpoint:   e.Endpoint,
		HTTPStatus: e.HTTPStatus,
		Message:    e.Message,
		SAPError:   e.SAPError,
		Hint:       e.Hint,
	})
}

// JSON returns the single-line JSON form of the error.
func (e *Error) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return `{"category":"Internal","message":` + strconv.Quote(e.Error()) + `}`
	}
	return string(data)
}
