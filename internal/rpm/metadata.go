package rpm

import (
	"fmt"
	"io"

	"github.com/open-edge-platform/rpmkit/internal/rpm/header"
)

// Metadata is everything in a package file before the payload: the lead,
// the signature header and the main header, always in that order.
type Metadata struct {
	Lead      *header.Lead
	Signature *header.Header
	Header    *header.Header
}

// ParseMetadata reads the lead, the signature header and the main header.
// It either returns all three or an error.
func ParseMetadata(r io.Reader) (*Metadata, error) {
	lead, err := header.ParseLead(r)
	if err != nil {
		return nil, err
	}
	sig, err := header.ParseSignature(r)
	if err != nil {
		return nil, err
	}
	h, err := header.ParseMain(r)
	if err != nil {
		return nil, err
	}
	return &Metadata{Lead: lead, Signature: sig, Header: h}, nil
}

// WriteTo writes the lead, the padded signature header and the main header.
func (m *Metadata) WriteTo(w io.Writer) (int64, error) {
	var total int64
	n, err := m.Lead.WriteTo(w)
	total += n
	if err != nil {
		return total, fmt.Errorf("writing lead: %w", err)
	}
	n, err = m.Signature.WriteSignatureTo(w)
	total += n
	if err != nil {
		return total, fmt.Errorf("writing signature header: %w", err)
	}
	n, err = m.Header.WriteTo(w)
	total += n
	if err != nil {
		return total, fmt.Errorf("writing header: %w", err)
	}
	return total, nil
}

// Size is the number of bytes WriteTo produces.
func (m *Metadata) Size() int64 {
	return int64(header.LeadSize + m.Signature.SignatureSize() + m.Header.Size())
}

// NEVRA formats name-[epoch:]version-release.arch from the main header.
func (m *Metadata) NEVRA() (string, error) {
	name, err := m.Header.GetName()
	if err != nil {
		return "", err
	}
	version, err := m.Header.GetVersion()
	if err != nil {
		return "", err
	}
	release, err := m.Header.GetRelease()
	if err != nil {
		return "", err
	}
	arch, err := m.Header.GetArch()
	if err != nil {
		return "", err
	}
	if epoch, err := m.Header.GetEpoch(); err == nil && epoch != 0 {
		return fmt.Sprintf("%s-%d:%s-%s.%s", name, epoch, version, release, arch), nil
	}
	return fmt.Sprintf("%s-%s-%s.%s", name, version, release, arch), nil
}
