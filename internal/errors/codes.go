// Package errors provides the structured error taxonomy shared by the engine
// and its transports.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Authorization
	CodeNotSigner Code = "NOT_SIGNER"

	// Validation
	CodeInvalidIdentity      Code = "INVALID_IDENTITY"
	CodeInvalidTarget        Code = "INVALID_TARGET"
	CodeInvalidConfirmations Code = "INVALID_CONFIRMATIONS"
	CodeTooFewSigners        Code = "TOO_FEW_SIGNERS"
	CodeQuorumInfeasible     Code = "QUORUM_INFEASIBLE"
	CodeAlreadySigner        Code = "ALREADY_SIGNER"
	CodeNotASigner           Code = "NOT_A_SIGNER"

	// State conflicts
	CodeAlreadyExecuted  Code = "ALREADY_EXECUTED"
	CodeAlreadyConfirmed Code = "ALREADY_CONFIRMED"
	CodeNotConfirmed     Code = "NOT_CONFIRMED"
	CodeQuorumNotMet     Code = "QUORUM_NOT_MET"
	CodeUnknownAction    Code = "UNKNOWN_ACTION"

	// CodeReentrantExecution rejects an Execute of another action made from
	// inside a running effect handler.
	CodeReentrantExecution Code = "REENTRANT_EXECUTION"

	// Effect
	CodeExecutionFailed Code = "EXECUTION_FAILED"

	// Storage
	CodeJournalFailed Code = "JOURNAL_FAILED"
)

// Kind groups codes by the class of failure they describe.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuthorization means the caller lacks the required role.
	KindAuthorization
	// KindValidation means the input is malformed or would break an invariant.
	KindValidation
	// KindStateConflict means the request is well-formed but the lifecycle
	// state does not allow it.
	KindStateConflict
	// KindEffect means the external effect handler reported failure.
	KindEffect
	// KindStorage means the journal could not record the operation.
	KindStorage
)

// String returns a lowercase name for the kind.
func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindEffect:
		return "effect"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Kind returns the failure class of the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeNotSigner:
		return KindAuthorization
	case CodeInvalidIdentity,
		CodeInvalidTarget,
		CodeInvalidConfirmations,
		CodeTooFewSigners,
		CodeQuorumInfeasible,
		CodeAlreadySigner,
		CodeNotASigner:
		return KindValidation
	case CodeAlreadyExecuted,
		CodeAlreadyConfirmed,
		CodeNotConfirmed,
		CodeQuorumNotMet,
		CodeUnknownAction,
		CodeReentrantExecution:
		return KindStateConflict
	case CodeExecutionFailed:
		return KindEffect
	case CodeJournalFailed:
		return KindStorage
	default:
		return KindUnknown
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// PermissionDenied - caller is not on the roster
	case CodeNotSigner:
		return codes.PermissionDenied

	// InvalidArgument - validation failures, bad input
	case CodeInvalidIdentity,
		CodeInvalidTarget,
		CodeInvalidConfirmations,
		CodeTooFewSigners,
		CodeQuorumInfeasible,
		CodeNotASigner:
		return codes.InvalidArgument

	// AlreadyExists - unique roster constraint
	case CodeAlreadySigner:
		return codes.AlreadyExists

	// NotFound - action id out of range
	case CodeUnknownAction:
		return codes.NotFound

	// FailedPrecondition - state doesn't allow operation
	case CodeAlreadyExecuted,
		CodeAlreadyConfirmed,
		CodeNotConfirmed,
		CodeQuorumNotMet,
		CodeReentrantExecution:
		return codes.FailedPrecondition

	// Aborted - the effect failed and the operation was rolled back
	case CodeExecutionFailed:
		return codes.Aborted

	// Unavailable - the journal refused the write
	case CodeJournalFailed:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
