package dues

import "errors"

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrMemberInactive = errors.New("member is inactive")
	ErrUnknownField   = errors.New("unknown field")
	ErrInvalidValue   = errors.New("invalid value")
	ErrInvalidPeriod  = errors.New("invalid period")
)
