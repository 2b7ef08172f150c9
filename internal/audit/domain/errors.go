package domain

import "errors"

var (
	ErrInvalidOrder         = errors.New("invalid_order")
	ErrAttemptNumberRace    = errors.New("audit_attempt_number_race")
	ErrSuccessWithoutTarget = errors.New("audit_success_without_invoice")
)
