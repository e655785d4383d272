package rpm

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"math"

	"github.com/open-edge-platform/rpmkit/internal/rpm/header"
	"github.com/open-edge-platform/rpmkit/internal/rpm/seqcursor"
	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
)

// Sign replaces the signature header with a fresh one holding the package
// size, the MD5 of header and payload, the SHA1 of the header and two
// signatures from s: one over the header alone and one over header and
// payload. The main header is serialized anew, so pending edits are signed.
// On error the package is left unchanged.
func (p *Package) Sign(s Signer) error {
	log := logger.Logger()

	hdr := p.Metadata.Header.Bytes()
	cur := seqcursor.New(hdr, p.Payload)
	if cur.Len() > math.MaxInt32 {
		return fmt.Errorf("package of %d bytes exceeds the 32-bit size entry", cur.Len())
	}

	// MD5 rides along the header+payload signature pass; whatever the
	// backend leaves unread is drained afterwards.
	md5h := md5.New()
	full, err := s.SignStream(io.TeeReader(cur, md5h))
	if err != nil {
		return fmt.Errorf("%w: signing header and payload: %w", ErrCrypto, err)
	}
	if _, err := io.Copy(md5h, cur); err != nil {
		return fmt.Errorf("hashing package: %w", err)
	}

	headerOnly, err := s.Sign(hdr)
	if err != nil {
		return fmt.Errorf("%w: signing header: %w", ErrCrypto, err)
	}

	sha := sha1.Sum(hdr)
	sig, err := header.NewSignatureHeader(int32(cur.Len()), md5h.Sum(nil), hex.EncodeToString(sha[:]), headerOnly, full)
	if err != nil {
		return fmt.Errorf("building signature header: %w", err)
	}
	p.Metadata.Signature = sig
	log.Debugf("signed package: %d header bytes, %d payload bytes", len(hdr), len(p.Payload))
	return nil
}

// UpdateDigests replaces the signature header with one that carries only
// the size and digest entries. Use it for unsigned packages.
func (p *Package) UpdateDigests() error {
	hdr := p.Metadata.Header.Bytes()
	d, err := computeDigests(seqcursor.New(hdr, p.Payload), hdr)
	if err != nil {
		return err
	}
	if d.size > math.MaxInt32 {
		return fmt.Errorf("package of %d bytes exceeds the 32-bit size entry", d.size)
	}
	sig := header.New(header.SignatureTags)
	if err := sig.SetInt32s(header.SigTagSize, int32(d.size)); err != nil {
		return fmt.Errorf("signature size: %w", err)
	}
	if err := sig.SetBinary(header.SigTagMD5, d.md5); err != nil {
		return fmt.Errorf("signature md5: %w", err)
	}
	if err := sig.SetString(header.SigTagSHA1, d.sha1); err != nil {
		return fmt.Errorf("signature sha1: %w", err)
	}
	p.Metadata.Signature = sig
	return nil
}
