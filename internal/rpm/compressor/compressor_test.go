package compressor

import (
	"bytes"
	"testing"
)

func TestFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"gzip", Gzip, false},
		{"GZ", Gzip, false},
		{"", Gzip, false},
		{"zstd", Zstd, false},
		{"xz", Xz, false},
		{"none", None, false},
		{"bzip2", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := FromString(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCompressDecompress(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	for _, k := range []Kind{None, Gzip, Zstd, Xz} {
		t.Run(string(k), func(t *testing.T) {
			packed, err := Compress(k, data)
			if err != nil {
				t.Fatalf("Compress failed: %v", err)
			}
			if k != None && len(packed) >= len(data) {
				t.Fatalf("expected %s to shrink repetitive input, got %d bytes", k, len(packed))
			}
			got, err := Decompress(k, packed)
			if err != nil {
				t.Fatalf("Decompress failed: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("data changed across %s round trip", k)
			}
		})
	}
}

func TestPayloadCompressor(t *testing.T) {
	if None.PayloadCompressor() != "" {
		t.Fatalf("expected no tag value for none")
	}
	if Zstd.PayloadCompressor() != "zstd" {
		t.Fatalf("expected zstd, got %s", Zstd.PayloadCompressor())
	}
}

func TestUnknownKind(t *testing.T) {
	if _, err := NewWriter(Kind("lz4"), &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := NewReader(Kind("lz4"), &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
