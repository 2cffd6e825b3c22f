package errors

import "errors"

// Domain errors
var (
	// Target errors
	ErrEmptyTarget   = errors.New("target cannot be empty")
	ErrInvalidTarget = errors.New("invalid target URL")
	ErrNoHost        = errors.New("target has no host")

	// Probe errors
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrNotTLS           = errors.New("connection is not TLS")
	ErrNoCertificate    = errors.New("server presented no certificate")

	// Report errors
	ErrUnsupportedFormat   = errors.New("unsupported report format")
	ErrSerializationFailed = errors.New("serialization failed")

	// Store errors
	ErrAuditNotFound = errors.New("audit not found")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")
)
