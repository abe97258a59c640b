// Package exception defines the error taxonomy shared by the schema, dedupe
// and writer packages. Every error that crosses a component boundary is a
// *BatchError carrying a Kind, so callers can tell a retryable connectivity
// fault from an application rejection or a fatal authentication failure.
package exception

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// Kind classifies a BatchError.
type Kind string

const (
	// KindConnectivity covers timeouts, DNS and socket failures. Always retryable.
	KindConnectivity Kind = "connectivity"
	// KindAuthentication is fatal to the whole run.
	KindAuthentication Kind = "authentication"
	// KindApplication means the remote store rejected the payload. Never retried,
	// isolated to the offending record or chunk.
	KindApplication Kind = "application"
	// KindCache covers schema cache IO and corruption. Degrades to a cache miss.
	KindCache Kind = "cache"
	// KindState covers batch state persistence faults.
	KindState Kind = "state"
	// KindConfig covers invalid configuration.
	KindConfig Kind = "config"
	// KindInternal is the default for anything else.
	KindInternal Kind = "internal"
)

var errorRegistry = make(map[string]error)

var registryMutex sync.RWMutex

// RegisterErrorType registers a named sentinel error so configuration can
// reference it (for example in batch.retryable_exceptions).
// It panics on an empty name or nil prototype.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered reports whether name was registered.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// BatchError is the error type used across migration-tool.
type BatchError struct {
	// Module is the component that raised the error (e.g. "gateway", "writer").
	Module string
	// Message is a short description.
	Message string
	// OriginalErr is the wrapped cause, if any.
	OriginalErr error
	// Kind is the taxonomy bucket.
	Kind Kind
	// Code carries a remote fault code when the gateway reported one.
	Code int

	isRetryable bool
	isSkippable bool
	// StackTrace is captured at construction for debugging.
	StackTrace string
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// NewBatchError creates a KindInternal error with explicit skip/retry flags.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		Kind:        KindInternal,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewBatchErrorf is NewBatchError with a format string.
// Trailing optional arguments are consumed from the end in the order
// [originalErr error], then [isRetryable bool], then [isSkippable bool].
//
//	NewBatchErrorf("writer", "chunk %d failed", 3, false, true, err)
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	isRetryable := false
	isSkippable := false
	args := a

	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isRetryable = b
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isSkippable = b
			args = args[:len(args)-1]
		}
	}

	return &BatchError{
		Module:      module,
		Message:     fmt.Sprintf(format, args...),
		OriginalErr: originalErr,
		Kind:        KindInternal,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

func newKindError(kind Kind, module, message string, originalErr error, skippable, retryable bool) *BatchError {
	be := NewBatchError(module, message, originalErr, skippable, retryable)
	be.Kind = kind
	return be
}

// NewConnectivityError wraps a transport fault. Retryable.
func NewConnectivityError(module, message string, originalErr error) *BatchError {
	return newKindError(KindConnectivity, module, message, originalErr, false, true)
}

// NewAuthenticationError reports rejected credentials or a lost session.
// Neither retryable nor skippable.
func NewAuthenticationError(module, message string, originalErr error) *BatchError {
	return newKindError(KindAuthentication, module, message, originalErr, false, false)
}

// NewApplicationError reports a remote rejection of the data (constraint
// violation, missing required value, type mismatch). Skippable, not retryable.
func NewApplicationError(module, message string, originalErr error) *BatchError {
	return newKindError(KindApplication, module, message, originalErr, true, false)
}

// NewCacheError reports a schema cache fault.
func NewCacheError(module, message string, originalErr error) *BatchError {
	return newKindError(KindCache, module, message, originalErr, true, false)
}

// NewStateError reports a batch state persistence fault.
func NewStateError(module, message string, originalErr error) *BatchError {
	return newKindError(KindState, module, message, originalErr, false, false)
}

// NewConfigError reports invalid configuration.
func NewConfigError(module, message string, originalErr error) *BatchError {
	return newKindError(KindConfig, module, message, originalErr, false, false)
}

// WithCode attaches a remote fault code and returns the receiver.
func (e *BatchError) WithCode(code int) *BatchError {
	e.Code = code
	return e
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether the error may be retried.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable reports whether the failure can be isolated to one record.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// AsBatchError finds the first *BatchError in err's chain.
func AsBatchError(err error) (*BatchError, bool) {
	var be *BatchError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsBatchError reports whether err's chain contains a *BatchError.
func IsBatchError(err error) bool {
	_, ok := AsBatchError(err)
	return ok
}

// KindOf returns the Kind of the first BatchError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	if be, ok := AsBatchError(err); ok {
		return be.Kind
	}
	return KindInternal
}

// IsConnectivity reports a transient transport fault.
func IsConnectivity(err error) bool {
	return err != nil && KindOf(err) == KindConnectivity
}

// IsAuthentication reports an authentication fault.
func IsAuthentication(err error) bool {
	return err != nil && KindOf(err) == KindAuthentication
}

// IsApplication reports a remote data rejection.
func IsApplication(err error) bool {
	return err != nil && KindOf(err) == KindApplication
}

// IsTemporary reports whether err is worth retrying. BatchError flags win;
// context cancellation never is; otherwise a few well-known transport
// messages are recognized.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if be, ok := AsBatchError(err); ok {
		return be.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF")
}

// IsFatal reports an error that can neither be retried nor isolated.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if be, ok := AsBatchError(err); ok {
		return !be.IsRetryable() && !be.IsSkippable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "invalid argument") ||
		strings.Contains(errStr, "permission denied")
}

// IsErrorOfType matches err against a registered name, a message substring,
// or a Go type name ("*net.OpError"), walking the whole chain.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	target, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if ok && errors.Is(err, target) {
		return true
	}

	for current := err; current != nil; current = errors.Unwrap(current) {
		if strings.Contains(current.Error(), errorTypeName) {
			return true
		}
		t := reflect.TypeOf(current)
		if t != nil {
			if t.String() == errorTypeName || (t.Kind() == reflect.Ptr && t.Elem().String() == errorTypeName) {
				return true
			}
		}
	}
	return false
}

func init() {
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
}

// ExtractErrorMessage returns the BatchError message (without module prefix
// and cause) or err.Error() for other errors.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if be, ok := AsBatchError(err); ok {
		if be.OriginalErr != nil && be.Kind == KindApplication {
			return fmt.Sprintf("%s: %s", be.Message, ExtractErrorMessage(be.OriginalErr))
		}
		return be.Message
	}
	return err.Error()
}
