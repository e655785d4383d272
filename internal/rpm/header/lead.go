package header

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// LeadSize is the fixed size of the lead that opens every package file.
const LeadSize = 96

const (
	leadNameSize = 66

	// SignatureTypeHeader is the only signature type written by rpm >= 3.
	SignatureTypeHeader uint16 = 5

	LeadTypeBinary uint16 = 0
	LeadTypeSource uint16 = 1
)

// LeadMagic opens every package file.
var LeadMagic = [4]byte{0xed, 0xab, 0xee, 0xdb}

// Lead is the fixed 96-byte preamble of a package file. It is immutable
// once parsed; the reserved tail is preserved verbatim.
type Lead struct {
	Major         uint8
	Minor         uint8
	Type          uint16
	ArchNum       uint16
	Name          string
	OSNum         uint16
	SignatureType uint16
	Reserved      [16]byte

	// rawName is the name field as read, written back while Name is
	// unchanged so bytes after the terminator and unterminated names survive.
	rawName    [leadNameSize]byte
	hasRawName bool
}

var archNums = map[string]uint16{
	"i386":    1,
	"i486":    1,
	"i586":    1,
	"i686":    1,
	"x86_64":  1,
	"alpha":   2,
	"sparc":   3,
	"mips":    4,
	"ppc":     5,
	"m68k":    6,
	"ppc64":   16,
	"ppc64le": 16,
	"s390":    14,
	"s390x":   15,
	"armv7hl": 12,
	"aarch64": 19,
	"riscv64": 22,
}

// NewLead returns a binary-package lead for a package called name
// (conventionally name-version-release) built for arch.
func NewLead(name, arch string) *Lead {
	return &Lead{
		Major:         3,
		Minor:         0,
		Type:          LeadTypeBinary,
		ArchNum:       archNums[arch],
		Name:          name,
		OSNum:         1,
		SignatureType: SignatureTypeHeader,
	}
}

// ParseLead reads and validates a lead.
func ParseLead(r io.Reader) (*Lead, error) {
	var buf [LeadSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, readErr("lead", err)
	}
	return DecodeLead(buf[:])
}

// DecodeLead validates and decodes a 96-byte lead.
func DecodeLead(buf []byte) (*Lead, error) {
	if len(buf) < LeadSize {
		return nil, fmt.Errorf("%w: lead is %d bytes, want %d", ErrFormat, len(buf), LeadSize)
	}
	if !bytes.Equal(buf[0:4], LeadMagic[:]) {
		return nil, fmt.Errorf("%w: bad lead magic %x", ErrFormat, buf[0:4])
	}

	l := &Lead{
		Major:         buf[4],
		Minor:         buf[5],
		Type:          binary.BigEndian.Uint16(buf[6:8]),
		ArchNum:       binary.BigEndian.Uint16(buf[8:10]),
		OSNum:         binary.BigEndian.Uint16(buf[76:78]),
		SignatureType: binary.BigEndian.Uint16(buf[78:80]),
	}
	if l.Major < 3 || l.Major > 4 {
		return nil, fmt.Errorf("%w: unsupported lead version %d.%d", ErrFormat, l.Major, l.Minor)
	}
	if l.SignatureType != SignatureTypeHeader {
		return nil, fmt.Errorf("%w: unsupported signature type %d", ErrFormat, l.SignatureType)
	}

	copy(l.rawName[:], buf[10:10+leadNameSize])
	l.hasRawName = true
	l.Name = leadName(l.rawName[:])
	copy(l.Reserved[:], buf[80:96])
	return l, nil
}

func leadName(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// MarshalBinary encodes the lead. A parsed lead whose Name is unchanged is
// written back verbatim. Otherwise names longer than 65 bytes are truncated
// so the field stays NUL terminated.
func (l *Lead) MarshalBinary() ([]byte, error) {
	buf := make([]byte, LeadSize)
	copy(buf[0:4], LeadMagic[:])
	buf[4] = l.Major
	buf[5] = l.Minor
	binary.BigEndian.PutUint16(buf[6:8], l.Type)
	binary.BigEndian.PutUint16(buf[8:10], l.ArchNum)
	if l.hasRawName && leadName(l.rawName[:]) == l.Name {
		copy(buf[10:10+leadNameSize], l.rawName[:])
	} else {
		name := l.Name
		if len(name) > leadNameSize-1 {
			name = name[:leadNameSize-1]
		}
		copy(buf[10:10+leadNameSize], name)
	}
	binary.BigEndian.PutUint16(buf[76:78], l.OSNum)
	binary.BigEndian.PutUint16(buf[78:80], l.SignatureType)
	copy(buf[80:96], l.Reserved[:])
	return buf, nil
}

// WriteTo writes the encoded lead to w.
func (l *Lead) WriteTo(w io.Writer) (int64, error) {
	buf, err := l.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// readErr turns a short read into a format error and passes anything else
// through as an I/O error.
func readErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s: %w", ErrFormat, what, io.ErrUnexpectedEOF)
	}
	return fmt.Errorf("reading %s: %w", what, err)
}
