package rpm

import "io"

// Signer produces detached signatures. Sign and SignStream must produce
// independent signatures over exactly the bytes they are given.
type Signer interface {
	Sign(data []byte) ([]byte, error)
	SignStream(r io.Reader) ([]byte, error)
}

// Verifier checks detached signatures produced by a matching Signer.
// A nil error means the signature is valid.
type Verifier interface {
	Verify(data, signature []byte) error
	VerifyStream(r io.Reader, signature []byte) error
}
