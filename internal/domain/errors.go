package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDuplicatePayment    = errors.New("duplicate payment event")
	ErrUnsupportedPlan     = errors.New("unsupported plan")
	ErrUnsupportedProduct  = errors.New("unsupported product type")
	ErrProviderFailure     = errors.New("provider failure")
)
