package rpm

import (
	"fmt"
	"io"

	"github.com/open-edge-platform/rpmkit/internal/rpm/header"
)

// Package is a complete package file held in memory: its metadata and the
// compressed payload, which is treated as opaque bytes.
type Package struct {
	Metadata *Metadata
	Payload  []byte
}

// NewPackage assembles an unsigned package from a lead, a finished main
// header and an already compressed payload. The signature header starts out
// holding only its region entry; call UpdateDigests or Sign to fill it.
func NewPackage(lead *header.Lead, h *header.Header, payload []byte) *Package {
	return &Package{
		Metadata: &Metadata{
			Lead:      lead,
			Signature: header.New(header.SignatureTags),
			Header:    h,
		},
		Payload: payload,
	}
}

// ParsePackage reads the metadata and then the rest of r as payload.
func ParsePackage(r io.Reader) (*Package, error) {
	md, err := ParseMetadata(r)
	if err != nil {
		return nil, err
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return &Package{Metadata: md, Payload: payload}, nil
}

// WriteTo writes the metadata immediately followed by the payload.
func (p *Package) WriteTo(w io.Writer) (int64, error) {
	total, err := p.Metadata.WriteTo(w)
	if err != nil {
		return total, err
	}
	n, err := w.Write(p.Payload)
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("writing payload: %w", err)
	}
	return total, nil
}
