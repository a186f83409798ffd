package service

import "errors"

var (
	ErrAlreadyInitialized     = errors.New("protocol already initialized")
	ErrNotInitialized         = errors.New("protocol not initialized")
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrUnauthorized           = errors.New("caller is not the protocol authority")
	ErrAccountAlreadyExists   = errors.New("user account already exists")
	ErrAccountNotFound        = errors.New("user account not found")
	ErrInsufficientStake      = errors.New("insufficient staked amount")
	ErrNotEligible            = errors.New("insufficient volume to claim rewards")
	ErrAlreadyClaimed         = errors.New("already claimed rewards for this epoch")
	ErrExternalTransferFailed = errors.New("external transfer failed")
	ErrArithmeticOverflow     = errors.New("arithmetic overflow")
	ErrStateCommitFailed      = errors.New("state commit failed")
	ErrHistoryUnavailable     = errors.New("history archive not configured")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrNotInitialized, "not_initialized"},
	{ErrInvalidParameter, "invalid_parameter"},
	{ErrUnauthorized, "unauthorized"},
	{ErrAccountAlreadyExists, "account_already_exists"},
	{ErrAccountNotFound, "account_not_found"},
	{ErrInsufficientStake, "insufficient_stake"},
	{ErrNotEligible, "not_eligible"},
	{ErrAlreadyClaimed, "already_claimed"},
	{ErrExternalTransferFailed, "external_transfer_failed"},
	{ErrArithmeticOverflow, "arithmetic_overflow"},
	{ErrStateCommitFailed, "state_commit_failed"},
	{ErrHistoryUnavailable, "history_unavailable"},
}

// ErrorKind returns a stable label for err: "ok" for nil, "internal" for
// errors that are not one of the package sentinels.
func ErrorKind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
