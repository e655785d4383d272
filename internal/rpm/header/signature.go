package header

import "fmt"

// NewSignatureHeader builds a signature header holding exactly the size,
// MD5, SHA1 and the two RSA signature entries. It is always a fresh header;
// nothing is carried over from a previous signature header.
func NewSignatureHeader(size int32, md5 []byte, sha1 string, rsaHeader, rsaHeaderPayload []byte) (*Header, error) {
	h := New(SignatureTags)
	if err := h.SetInt32s(SigTagSize, size); err != nil {
		return nil, fmt.Errorf("signature size: %w", err)
	}
	if err := h.SetBinary(SigTagMD5, md5); err != nil {
		return nil, fmt.Errorf("signature md5: %w", err)
	}
	if err := h.SetString(SigTagSHA1, sha1); err != nil {
		return nil, fmt.Errorf("signature sha1: %w", err)
	}
	if err := h.SetBinary(SigTagRSA, rsaHeader); err != nil {
		return nil, fmt.Errorf("header signature: %w", err)
	}
	if err := h.SetBinary(SigTagPGP, rsaHeaderPayload); err != nil {
		return nil, fmt.Errorf("header and payload signature: %w", err)
	}
	return h, nil
}
