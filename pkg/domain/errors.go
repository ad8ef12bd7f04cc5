package domain

import "errors"

// Verification errors
var (
	ErrRecordNotFound     = errors.New("verification record not found")
	ErrRecordExists       = errors.New("verification record already exists")
	ErrVersionConflict    = errors.New("verification record was modified concurrently")
	ErrInvalidTransition  = errors.New("event not permitted in current state")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrInvalidRecordShape = errors.New("record fields do not match state")
)

// Join request errors
var (
	ErrJoinRequestNotFound  = errors.New("join request not found")
	ErrDuplicateJoinRequest = errors.New("join request already recorded for this occurrence")
)

// Admin errors
var (
	ErrNotAuthorized   = errors.New("sender is not an admin")
	ErrInvalidTOTPCode = errors.New("invalid or missing TOTP code")
)
