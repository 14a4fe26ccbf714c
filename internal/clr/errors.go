package clr

import "errors"

var (
	ErrBadToken             = errors.New("invalid metadata token")
	ErrTypeNotFound         = errors.New("type not found")
	ErrMethodNotFound       = errors.New("method not found")
	ErrArityMismatch        = errors.New("generic argument count mismatch")
	ErrNotGenericDefinition = errors.New("not a generic definition")
	ErrInvalidTypeArgument  = errors.New("invalid generic type argument")
	ErrNotCodeUnit          = errors.New("not a managed code unit")
	ErrForwarderLoop        = errors.New("type forwarder chain too long")
)
