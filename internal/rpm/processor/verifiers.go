package processor

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/open-edge-platform/rpmkit/internal/rpm"
	"github.com/open-edge-platform/rpmkit/internal/rpm/header"
)

const headerIntroSize = 16

// headerLen is the serialized length of a header given its 16-byte intro.
func headerLen(intro []byte) int64 {
	count := int64(binary.BigEndian.Uint32(intro[8:12]))
	size := int64(binary.BigEndian.Uint32(intro[12:16]))
	return headerIntroSize + 16*count + size
}

// DigestVerifier recomputes the MD5 of header and payload and the SHA1 of
// the main header while bytes stream past. Region boundaries come from the
// stream itself, not from the metadata it is later checked against.
type DigestVerifier struct {
	pos    int64
	lead   []byte // lead plus signature intro, until sigEnd is known
	intro  []byte // main header intro, until hdrEnd is known
	sigEnd int64
	hdrEnd int64
	size   int64
	md5    hash.Hash
	sha1   hash.Hash
}

// NewDigestVerifier returns a verifier comparing size, MD5 and SHA1 entries.
func NewDigestVerifier() *DigestVerifier {
	return &DigestVerifier{sigEnd: -1, hdrEnd: -1, md5: md5.New(), sha1: sha1.New()}
}

func (d *DigestVerifier) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		switch {
		case d.sigEnd < 0:
			take := min(len(p), header.LeadSize+headerIntroSize-len(d.lead))
			d.lead = append(d.lead, p[:take]...)
			d.pos += int64(take)
			p = p[take:]
			if len(d.lead) == header.LeadSize+headerIntroSize {
				sig := headerLen(d.lead[header.LeadSize:])
				d.sigEnd = header.LeadSize + sig + (8-sig%8)%8
				d.lead = nil
			}
		case d.pos < d.sigEnd:
			skip := int(min(int64(len(p)), d.sigEnd-d.pos))
			d.pos += int64(skip)
			p = p[skip:]
		case d.hdrEnd < 0:
			take := min(len(p), headerIntroSize-len(d.intro))
			d.intro = append(d.intro, p[:take]...)
			d.hash(p[:take])
			p = p[take:]
			if len(d.intro) == headerIntroSize {
				d.hdrEnd = d.sigEnd + headerLen(d.intro)
			}
		default:
			d.hash(p)
			p = nil
		}
	}
	return n, nil
}

func (d *DigestVerifier) hash(b []byte) {
	d.md5.Write(b)
	if d.hdrEnd < 0 {
		d.sha1.Write(b)
	} else if d.pos < d.hdrEnd {
		d.sha1.Write(b[:min(int64(len(b)), d.hdrEnd-d.pos)])
	}
	d.pos += int64(len(b))
	d.size += int64(len(b))
}

// Verify compares the accumulated digests with the signature header of md.
func (d *DigestVerifier) Verify(md *rpm.Metadata) error {
	if d.hdrEnd < 0 || d.pos < d.hdrEnd {
		return fmt.Errorf("%w: package stream ended inside its headers", header.ErrFormat)
	}
	return rpm.CheckDigests(md.Signature, d.size, d.md5.Sum(nil), hex.EncodeToString(d.sha1.Sum(nil)))
}

// SizeVerifier counts streamed bytes and checks them against the size entry
// of the signature header.
type SizeVerifier struct {
	n int64
}

// NewSizeVerifier returns a verifier for the signature size entry.
func NewSizeVerifier() *SizeVerifier {
	return &SizeVerifier{}
}

func (s *SizeVerifier) Write(p []byte) (int, error) {
	s.n += int64(len(p))
	return len(p), nil
}

// Verify fails with rpm.ErrCrypto when the stream length after the lead and
// signature header differs from the size entry.
func (s *SizeVerifier) Verify(md *rpm.Metadata) error {
	want, err := md.Signature.GetInt32(header.SigTagSize)
	if err != nil {
		return fmt.Errorf("%w: size entry: %w", rpm.ErrMissingSignature, err)
	}
	got := s.n - int64(header.LeadSize+md.Signature.SignatureSize())
	if got != int64(want) {
		return fmt.Errorf("%w: size entry says %d bytes, stream carried %d", rpm.ErrCrypto, want, got)
	}
	return nil
}
