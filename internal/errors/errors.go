package errors

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Domain is the error domain attached to gRPC error details.
const Domain = "quorumgate"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message
	Metadata map[string]string // Identifiers involved in the failure
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Kind returns the failure class of the error's code.
func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

// Sentinel errors for use with errors.Is. Matching is by code, so an error
// built with WithMetadata or Wrap still matches its sentinel.
var (
	ErrNotSigner            = New(CodeNotSigner, "caller is not a signer")
	ErrInvalidIdentity      = New(CodeInvalidIdentity, "signer identity is empty")
	ErrInvalidTarget        = New(CodeInvalidTarget, "target is empty")
	ErrInvalidConfirmations = New(CodeInvalidConfirmations, "required confirmations out of range")
	ErrTooFewSigners        = New(CodeTooFewSigners, "too few signers")
	ErrQuorumInfeasible     = New(CodeQuorumInfeasible, "required confirmations exceed signer count")
	ErrAlreadySigner        = New(CodeAlreadySigner, "already a signer")
	ErrNotASigner           = New(CodeNotASigner, "not a signer")
	ErrAlreadyExecuted      = New(CodeAlreadyExecuted, "action already executed")
	ErrAlreadyConfirmed     = New(CodeAlreadyConfirmed, "action already confirmed by signer")
	ErrNotConfirmed         = New(CodeNotConfirmed, "action not confirmed by signer")
	ErrQuorumNotMet         = New(CodeQuorumNotMet, "quorum not met")
	ErrUnknownAction        = New(CodeUnknownAction, "unknown action")
	ErrExecutionFailed      = New(CodeExecutionFailed, "execution failed")
	ErrReentrantExecution   = New(CodeReentrantExecution, "cannot execute another action from inside an effect handler")
	ErrJournalFailed        = New(CodeJournalFailed, "journal write failed")
)

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error carrying identifiers for logs and clients.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the code from err, or CodeUnknown if err is not a domain error.
func GetCode(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeUnknown
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// ToGRPCStatus converts the error to a gRPC status with an ErrorInfo detail
// whose Reason is the error code.
func (e *Error) ToGRPCStatus() error {
	grpcCode := e.Code.GRPCCode()
	st := status.New(grpcCode, e.Error())

	st, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(e.Code),
		Domain:   Domain,
		Metadata: e.Metadata,
	})
	if err != nil {
		// If we can't attach details, return the basic status
		return status.New(grpcCode, e.Error()).Err()
	}
	return st.Err()
}

// FromGRPC rebuilds a domain error from a gRPC status produced by
// ToGRPCStatus. Errors without a matching ErrorInfo are returned unchanged.
func FromGRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != Domain {
			continue
		}
		return &Error{
			Code:     Code(info.GetReason()),
			Message:  st.Message(),
			Metadata: info.GetMetadata(),
		}
	}
	return err
}
