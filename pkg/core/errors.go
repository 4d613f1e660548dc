package core

import (
	"errors"
	"fmt"
	"strings"

	xerrors "github.com/wolfcito/goat-sub002/pkg/errors"
	"github.com/wolfcito/goat-sub002/pkg/schema"
)

// ValidationError reports that a tool input did not match its parameter
// schema. The tool body never ran. Adapters hand it back to the model as a
// tool failure so the call can be retried with corrected arguments.
type ValidationError struct {
	Tool   string
	Fields schema.FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input for tool %s: %s", e.Tool, e.Fields.Error())
}

func (e *ValidationError) Code() xerrors.Code { return xerrors.CodeValidation }

func (e *ValidationError) Is(target error) bool { return xerrors.IsCode(target, e.Code()) }

// IsValidationError reports whether err is, or wraps, a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PluginConfigurationError reports a plugin that cannot work as configured:
// missing API keys, unsupported networks, or a tool table that is
// inconsistent with itself.
type PluginConfigurationError struct {
	Plugin string
	Reason string
	Err    error
}

func (e *PluginConfigurationError) Error() string {
	msg := fmt.Sprintf("plugin %s is misconfigured: %s", e.Plugin, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PluginConfigurationError) Unwrap() error      { return e.Err }
func (e *PluginConfigurationError) Code() xerrors.Code { return xerrors.CodePluginConfiguration }
func (e *PluginConfigurationError) Is(target error) bool {
	return xerrors.IsCode(target, e.Code())
}

// PluginGetToolsError aborts an aggregation because one plugin failed to
// produce its tools.
type PluginGetToolsError struct {
	Plugin string
	Err    error
}

func (e *PluginGetToolsError) Error() string {
	return fmt.Sprintf("plugin %s: get tools: %v", e.Plugin, e.Err)
}

func (e *PluginGetToolsError) Unwrap() error      { return e.Err }
func (e *PluginGetToolsError) Code() xerrors.Code { return xerrors.CodePluginGetTools }
func (e *PluginGetToolsError) Is(target error) bool {
	return xerrors.IsCode(target, e.Code())
}

// DuplicateToolNameError reports two plugins exposing the same tool name.
// Plugins lists the contributors in plugin list order.
type DuplicateToolNameError struct {
	Name    string
	Plugins []string
}

func (e *DuplicateToolNameError) Error() string {
	return fmt.Sprintf("tool name %q is provided by more than one plugin: %s", e.Name, strings.Join(e.Plugins, ", "))
}

func (e *DuplicateToolNameError) Code() xerrors.Code { return xerrors.CodeDuplicateToolName }
func (e *DuplicateToolNameError) Is(target error) bool {
	return xerrors.IsCode(target, e.Code())
}

// walletError is the shared shape of the three wallet-level failures.
type walletError struct {
	Chain Chain
	Op    string
	Err   error
}

func (e walletError) format(class string) string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s on %s", e.Op, class, e.Chain)
	}
	return fmt.Sprintf("%s %s on %s: %v", e.Op, class, e.Chain, e.Err)
}

// SigningError: key material unavailable or message rejected.
type SigningError struct{ walletError }

// TransactionError: submission failed, reverted in simulation, or the
// account cannot pay for it.
type TransactionError struct{ walletError }

// QueryError: a balance or read query failed or was malformed.
type QueryError struct{ walletError }

// NewSigningError wraps err as a signing failure.
func NewSigningError(chain Chain, op string, err error) *SigningError {
	return &SigningError{walletError{Chain: chain, Op: op, Err: err}}
}

// NewTransactionError wraps err as a transaction failure.
func NewTransactionError(chain Chain, op string, err error) *TransactionError {
	return &TransactionError{walletError{Chain: chain, Op: op, Err: err}}
}

// NewQueryError wraps err as a query failure.
func NewQueryError(chain Chain, op string, err error) *QueryError {
	return &QueryError{walletError{Chain: chain, Op: op, Err: err}}
}

func (e *SigningError) Error() string        { return e.format("signing failed") }
func (e *SigningError) Unwrap() error        { return e.Err }
func (e *SigningError) Code() xerrors.Code   { return xerrors.CodeSigning }
func (e *SigningError) Is(target error) bool { return xerrors.IsCode(target, e.Code()) }

func (e *TransactionError) Error() string        { return e.format("transaction failed") }
func (e *TransactionError) Unwrap() error        { return e.Err }
func (e *TransactionError) Code() xerrors.Code   { return xerrors.CodeTransaction }
func (e *TransactionError) Is(target error) bool { return xerrors.IsCode(target, e.Code()) }

func (e *QueryError) Error() string        { return e.format("query failed") }
func (e *QueryError) Unwrap() error        { return e.Err }
func (e *QueryError) Code() xerrors.Code   { return xerrors.CodeQuery }
func (e *QueryError) Is(target error) bool { return xerrors.IsCode(target, e.Code()) }
