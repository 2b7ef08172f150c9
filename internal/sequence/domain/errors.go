package domain

import "errors"

var (
	ErrInvalidEntityType = errors.New("invalid_entity_type")
	ErrInvalidOutlet     = errors.New("invalid_outlet")
	ErrCounterNotIssued  = errors.New("sequence_not_issued")
)
