package services

import "errors"

var (
	// ErrQuotaExhausted signals that no setup changes remain for the month.
	ErrQuotaExhausted = errors.New("setup change quota exhausted")

	// ErrNoUnlocksLeft signals that every override has been spent.
	ErrNoUnlocksLeft = errors.New("no unlocks left")

	// ErrBadAccessCode signals a failed unlock reset authorization.
	ErrBadAccessCode = errors.New("invalid access code")
)
