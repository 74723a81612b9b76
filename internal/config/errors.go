package config

import "errors"

// ErrUnknownAttribute indicates a requested attribute has no configured value.
var ErrUnknownAttribute = errors.New("attribute not configured")
