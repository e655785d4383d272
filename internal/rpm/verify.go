package rpm

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/open-edge-platform/rpmkit/internal/rpm/header"
	"github.com/open-edge-platform/rpmkit/internal/rpm/seqcursor"
	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
)

// VerifySignature checks both signatures in the signature header with v.
// The header is serialized the same way Sign does, so a package parsed from
// disk verifies against the bytes that were signed.
//
// A missing signature entry yields ErrMissingSignature. Failed checks are
// reported as *SignatureError values; when both fail, both are joined.
func (p *Package) VerifySignature(v Verifier) error {
	log := logger.Logger()

	sig := p.Metadata.Signature
	headerOnly, err := sig.GetBinary(header.SigTagRSA)
	if err != nil {
		return signatureLookupErr("header-only", err)
	}
	full, err := sig.GetBinary(header.SigTagPGP)
	if err != nil {
		return signatureLookupErr("header+payload", err)
	}

	hdr := p.Metadata.Header.Bytes()
	var errs []error
	if err := v.Verify(hdr, headerOnly); err != nil {
		errs = append(errs, &SignatureError{Part: HeaderOnly, Err: err})
	}
	if err := v.VerifyStream(seqcursor.New(hdr, p.Payload), full); err != nil {
		errs = append(errs, &SignatureError{Part: HeaderAndPayload, Err: err})
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Debugf("both signatures verified")
	return nil
}

func signatureLookupErr(what string, err error) error {
	if errors.Is(err, header.ErrTagNotFound) {
		return fmt.Errorf("%w: no %s signature", ErrMissingSignature, what)
	}
	return fmt.Errorf("reading %s signature: %w", what, err)
}

// VerifyDigests recomputes the size, MD5 and SHA1 entries that are present
// in the signature header and compares them.
func (p *Package) VerifyDigests() error {
	hdr := p.Metadata.Header.Bytes()
	d, err := computeDigests(seqcursor.New(hdr, p.Payload), hdr)
	if err != nil {
		return err
	}
	return CheckDigests(p.Metadata.Signature, d.size, d.md5, d.sha1)
}

type digests struct {
	size int64
	md5  []byte
	sha1 string
}

func computeDigests(all io.Reader, hdr []byte) (digests, error) {
	h := md5.New()
	n, err := io.Copy(h, all)
	if err != nil {
		return digests{}, fmt.Errorf("hashing package: %w", err)
	}
	sha := sha1.Sum(hdr)
	return digests{size: n, md5: h.Sum(nil), sha1: hex.EncodeToString(sha[:])}, nil
}

// CheckDigests compares computed values against the size, MD5 and SHA1
// entries of a signature header. Entries that are absent are skipped, but at
// least one must be present or ErrMissingSignature is returned.
func CheckDigests(sig *header.Header, size int64, md5sum []byte, sha1hex string) error {
	checked := 0

	if want, err := sig.GetInt32(header.SigTagSize); err == nil {
		checked++
		if int64(want) != size {
			return fmt.Errorf("%w: size entry says %d bytes, got %d", ErrCrypto, want, size)
		}
	} else if !errors.Is(err, header.ErrTagNotFound) {
		return fmt.Errorf("reading size entry: %w", err)
	}

	if want, err := sig.GetBinary(header.SigTagMD5); err == nil {
		checked++
		if !bytes.Equal(want, md5sum) {
			return fmt.Errorf("%w: MD5 digest mismatch", ErrCrypto)
		}
	} else if !errors.Is(err, header.ErrTagNotFound) {
		return fmt.Errorf("reading MD5 entry: %w", err)
	}

	if want, err := sig.GetString(header.SigTagSHA1); err == nil {
		checked++
		if want != sha1hex {
			return fmt.Errorf("%w: SHA1 header digest mismatch", ErrCrypto)
		}
	} else if !errors.Is(err, header.ErrTagNotFound) {
		return fmt.Errorf("reading SHA1 entry: %w", err)
	}

	if checked == 0 {
		return fmt.Errorf("%w: no size or digest entries", ErrMissingSignature)
	}
	return nil
}
