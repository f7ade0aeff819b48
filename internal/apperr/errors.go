package apperr

import "errors"

var (
	ErrNotFound                 = errors.New("not found")
	ErrMalformedIdentifier      = errors.New("malformed scene identifier")
	ErrUnmappedSensorGeneration = errors.New("unmapped sensor generation")
	ErrExternalOperation        = errors.New("external operation failed")
	ErrArchiveMissing           = errors.New("archive does not exist")
	ErrInvalidArgument          = errors.New("invalid argument")
	ErrBandsUnavailable         = errors.New("bands unavailable for satellite")
)
