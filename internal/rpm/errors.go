package rpm

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSignature is returned when a signature or digest entry
	// needed for verification is absent from the signature header.
	ErrMissingSignature = errors.New("missing signature")

	// ErrCrypto marks digest mismatches and signing or verifying backend
	// failures. Backend errors are wrapped, never retried.
	ErrCrypto = errors.New("rpm crypto error")
)

// SignaturePart names one of the two signatures carried by a package.
type SignaturePart int

const (
	// HeaderOnly is the signature over the main header bytes.
	HeaderOnly SignaturePart = iota
	// HeaderAndPayload is the signature over the main header followed by
	// the payload.
	HeaderAndPayload
)

func (p SignaturePart) String() string {
	switch p {
	case HeaderOnly:
		return "header-only"
	case HeaderAndPayload:
		return "header+payload"
	default:
		return fmt.Sprintf("SignaturePart(%d)", int(p))
	}
}

// SignatureError reports which signature check failed. It matches ErrCrypto
// under errors.Is as well as the backend error it wraps.
type SignatureError struct {
	Part SignaturePart
	Err  error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("%s signature verification failed: %v", e.Part, e.Err)
}

func (e *SignatureError) Unwrap() []error {
	return []error{ErrCrypto, e.Err}
}
