package provider

import "errors"

var (
	ErrInvalidDescriptor = errors.New("provider: invalid descriptor")
	ErrUnknownProvider   = errors.New("provider: unknown provider")
	ErrDuplicateProvider = errors.New("provider: duplicate provider")
)
