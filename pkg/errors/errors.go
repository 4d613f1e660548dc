// Package errors defines the error codes shared by the toolkit and the
// attributes (severity, retry, alerting) attached to each of them.
package errors

import (
	stdErrors "errors"
	"fmt"
	"sync"
)

// Code identifies a class of failure.
type Code string

// Severity describes how loud a failure should be in logs and journals.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Attributes are the default behaviours of a code.
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
	Alert     bool
}

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodeQueueFailure          Code = "QUEUE_FAILURE"
	CodeTimeout               Code = "TIMEOUT"

	CodeValidation          Code = "VALIDATION_FAILED"
	CodePluginConfiguration Code = "PLUGIN_CONFIGURATION"
	CodePluginGetTools      Code = "PLUGIN_GET_TOOLS"
	CodeDuplicateToolName   Code = "DUPLICATE_TOOL_NAME"
	CodeSigning             Code = "SIGNING_FAILURE"
	CodeTransaction         Code = "TRANSACTION_FAILURE"
	CodeQuery               Code = "QUERY_FAILURE"
)

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:               {Message: "unknown error", Severity: SeverityCritical, Alert: true},
		CodeInvalidArgument:       {Message: "invalid argument", Severity: SeverityInfo},
		CodeNotFound:              {Message: "resource not found", Severity: SeverityInfo},
		CodeInitializationFailure: {Message: "component not initialised", Severity: SeverityWarning, Retryable: true, Alert: true},
		CodeStorageFailure:        {Message: "storage failure", Severity: SeverityCritical, Retryable: true, Alert: true},
		CodeQueueFailure:          {Message: "queue failure", Severity: SeverityCritical, Retryable: true, Alert: true},
		CodeTimeout:               {Message: "operation timed out", Severity: SeverityWarning, Retryable: true, Alert: true},

		// A rejected tool input is the model's problem to fix, never the host's.
		CodeValidation:          {Message: "tool input failed validation", Severity: SeverityInfo, Retryable: true},
		CodePluginConfiguration: {Message: "plugin is misconfigured", Severity: SeverityCritical, Alert: true},
		CodePluginGetTools:      {Message: "plugin failed to produce tools", Severity: SeverityCritical, Alert: true},
		CodeDuplicateToolName:   {Message: "duplicate tool name", Severity: SeverityCritical, Alert: true},
		CodeSigning:             {Message: "signing failed", Severity: SeverityWarning},
		CodeTransaction:         {Message: "transaction failed", Severity: SeverityWarning, Alert: true},
		CodeQuery:               {Message: "chain query failed", Severity: SeverityWarning, Retryable: true},
	}
)

// Register lets a plugin declare its own codes at init time.
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf returns the attributes of code, falling back to UNKNOWN.
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error is the generic coded error.
type Error struct {
	code      Code
	message   string
	cause     error
	metadata  map[string]string
	retryable *bool
	alert     *bool
	severity  *Severity
}

// Option customises an Error.
type Option func(*Error)

// WithMetadata attaches a key/value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithRetryable overrides the code's retry default.
func WithRetryable(retryable bool) Option {
	return func(e *Error) { e.retryable = &retryable }
}

// WithAlert overrides the code's alert default.
func WithAlert(alert bool) Option {
	return func(e *Error) { e.alert = &alert }
}

// WithSeverity overrides the code's severity.
func WithSeverity(sev Severity) Option {
	return func(e *Error) { e.severity = &sev }
}

// New creates an Error. An empty message falls back to the registered one.
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap creates an Error around cause.
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches any target carrying the same code, so errors.Is(err,
// New(CodeValidation, "")) works against every error of that class.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	return IsCode(target, e.code)
}

// Code returns the error code.
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message returns the message without the cause.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata returns a copy of the attached metadata.
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		clone[k] = v
	}
	return clone
}

// Retryable reports whether the operation may be retried as is.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	if e.retryable != nil {
		return *e.retryable
	}
	return AttributesOf(e.code).Retryable
}

// ShouldAlert reports whether the failure deserves an operator's attention.
func (e *Error) ShouldAlert() bool {
	if e == nil {
		return false
	}
	if e.alert != nil {
		return *e.alert
	}
	return AttributesOf(e.code).Alert
}

// Severity returns the severity of the failure.
func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	if e.severity != nil {
		return *e.severity
	}
	return AttributesOf(e.code).Severity
}

// Coder is implemented by typed errors that belong to a code without being
// an *Error themselves.
type Coder interface {
	Code() Code
}

// IsCode reports whether err directly carries code.
func IsCode(err error, code Code) bool {
	c, ok := err.(Coder)
	return ok && c.Code() == code
}

// From extracts the first *Error in the chain.
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func firstCoder(err error) (Coder, bool) {
	var c Coder
	if err == nil || !stdErrors.As(err, &c) {
		return nil, false
	}
	return c, true
}

// CodeOf returns the code of the first coded error in the chain.
func CodeOf(err error) Code {
	if c, ok := firstCoder(err); ok {
		return c.Code()
	}
	return CodeUnknown
}

// RetryableError reports whether err may be retried.
func RetryableError(err error) bool {
	c, ok := firstCoder(err)
	if !ok {
		return false
	}
	if e, isErr := c.(*Error); isErr {
		return e.Retryable()
	}
	return AttributesOf(c.Code()).Retryable
}

// ShouldAlert reports whether err should page someone.
func ShouldAlert(err error) bool {
	c, ok := firstCoder(err)
	if !ok {
		return false
	}
	if e, isErr := c.(*Error); isErr {
		return e.ShouldAlert()
	}
	return AttributesOf(c.Code()).Alert
}

// SeverityOf returns the severity of err.
func SeverityOf(err error) Severity {
	c, ok := firstCoder(err)
	if !ok {
		return AttributesOf(CodeUnknown).Severity
	}
	if e, isErr := c.(*Error); isErr {
		return e.Severity()
	}
	return AttributesOf(c.Code()).Severity
}
