package capture

import "errors"

var (
	ErrInvalidAngle     = errors.New("invalid angle")
	ErrEmptyPayload     = errors.New("segment payload is empty")
	ErrProbeFailed      = errors.New("media metadata could not be read")
	ErrUnsupportedMedia = errors.New("unsupported media container")
)
