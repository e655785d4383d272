// Package compressor selects and runs the payload codec of a package.
package compressor

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Kind is a payload compression codec.
type Kind string

const (
	None Kind = "none"
	Gzip Kind = "gzip"
	Zstd Kind = "zstd"
	Xz   Kind = "xz"
)

// FromString maps a codec name, as written on the command line, in config
// files or in the payload compressor tag, to a Kind.
func FromString(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gzip", "gz":
		return Gzip, nil
	case "zstd", "zst":
		return Zstd, nil
	case "xz":
		return Xz, nil
	case "none", "identity":
		return None, nil
	default:
		return "", fmt.Errorf("unsupported compression %q", s)
	}
}

// PayloadCompressor is the value recorded in the payload compressor tag.
// It is empty for None, in which case the tag is left out.
func (k Kind) PayloadCompressor() string {
	if k == None {
		return ""
	}
	return string(k)
}

// NewWriter returns a writer compressing into w. Close flushes the codec
// but does not close w.
func NewWriter(k Kind, w io.Writer) (io.WriteCloser, error) {
	switch k {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	case Zstd:
		return zstd.NewWriter(w)
	case Xz:
		return xz.NewWriter(w)
	default:
		return nil, fmt.Errorf("unsupported compression %q", string(k))
	}
}

// NewReader returns a reader decompressing r.
func NewReader(k Kind, r io.Reader) (io.ReadCloser, error) {
	switch k {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		return gzip.NewReader(r)
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case Xz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", string(k))
	}
}

// Compress returns data compressed with k.
func Compress(k Kind, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(k, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("compressing with %s: %w", k, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finishing %s stream: %w", k, err)
	}
	return buf.Bytes(), nil
}

// Decompress returns data decompressed with k.
func Decompress(k Kind, data []byte) ([]byte, error) {
	r, err := NewReader(k, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening %s stream: %w", k, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", k, err)
	}
	return out, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
