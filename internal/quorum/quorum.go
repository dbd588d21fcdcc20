package quorum

import (
	"fmt"
	"strconv"

	apperrors "quorumgate/internal/errors"
)

const (
	// MinSigners is the smallest roster the engine accepts.
	MinSigners = 3
	// MinRequired is the smallest confirmation threshold the engine accepts.
	MinRequired = 2
)

// Result represents the outcome of a quorum evaluation for one action.
type Result struct {
	Met           bool
	Confirmations int
	Required      int
	ErrorMessage  string
}

// Validate checks a roster size and threshold at construction time.
func Validate(signers, required int) error {
	if signers < MinSigners {
		return apperrors.WithMetadata(apperrors.CodeTooFewSigners,
			fmt.Sprintf("roster has %d signers, need at least %d", signers, MinSigners),
			map[string]string{"signers": strconv.Itoa(signers)})
	}
	if required < MinRequired || required > signers {
		return apperrors.WithMetadata(apperrors.CodeInvalidConfirmations,
			fmt.Sprintf("required confirmations %d must be between %d and %d", required, MinRequired, signers),
			map[string]string{"required": strconv.Itoa(required), "signers": strconv.Itoa(signers)})
	}
	return nil
}

// CheckRemoval reports whether a roster of the given size can lose one
// signer without breaking the size floor or the threshold.
func CheckRemoval(signers, required int) error {
	remaining := signers - 1
	if remaining < MinSigners {
		return apperrors.WithMetadata(apperrors.CodeTooFewSigners,
			fmt.Sprintf("removal would leave %d signers, need at least %d", remaining, MinSigners),
			map[string]string{"signers": strconv.Itoa(signers)})
	}
	if required > remaining {
		return apperrors.WithMetadata(apperrors.CodeQuorumInfeasible,
			fmt.Sprintf("removal would leave %d signers for %d required confirmations", remaining, required),
			map[string]string{"required": strconv.Itoa(required), "signers": strconv.Itoa(signers)})
	}
	return nil
}

// Evaluate reports whether confirmations satisfy the threshold.
func Evaluate(confirmations, required int) Result {
	if confirmations >= required {
		return Result{
			Met:           true,
			Confirmations: confirmations,
			Required:      required,
		}
	}
	return Result{
		Met:           false,
		Confirmations: confirmations,
		Required:      required,
		ErrorMessage:  fmt.Sprintf("quorum not met: confirmations=%d required=%d", confirmations, required),
	}
}
