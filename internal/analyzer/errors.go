package analyzer

import "errors"

// Decode-time failures. None of them is retryable: the user has to send
// another photo. Rejections by the validator are not errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrImageTooSmall     = errors.New("image too small")
	ErrTooManyPixels     = errors.New("image has too many pixels")
	ErrDecode            = errors.New("failed to decode image")
)
