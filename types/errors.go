package types

import "errors"

var (
	// ErrOutOfRange indicates a field value does not fit its allotted bit width
	ErrOutOfRange = errors.New("value out of range")

	// ErrTransport indicates the dispatcher could not deliver a request or read its reply
	ErrTransport = errors.New("transport failure")

	// ErrRejected indicates the application server refused a well-formed request
	ErrRejected = errors.New("rejected by server")

	// ErrUnknownCommand indicates a command code outside the declared set
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidAccount indicates an invalid account identifier
	ErrInvalidAccount = errors.New("invalid account")

	// ErrInvalidTransaction indicates an invalid transaction
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrInvalidSignature indicates an invalid signature
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrSignDocMismatch indicates SignDoc reconstruction produced different bytes.
	// SECURITY: This error indicates potential non-deterministic serialization or tampering.
	ErrSignDocMismatch = errors.New("SignDoc reconstruction mismatch: non-deterministic serialization detected")
)
