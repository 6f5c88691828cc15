package wire

import "errors"

var (
	// Envelope errors
	ErrInvalidEnvelope = errors.New("envelope must carry exactly one of call, reply, connectionClose")

	// Invocation errors
	ErrInsufficientArguments = errors.New("insufficient arguments in envelope")
	ErrMalformedPayload      = errors.New("malformed payload")
)
