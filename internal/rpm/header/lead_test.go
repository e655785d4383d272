package header

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestLeadRoundTrip(t *testing.T) {
	lead := NewLead("hello-1.0.0-1", "x86_64")
	var buf bytes.Buffer
	n, err := lead.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n != LeadSize || buf.Len() != LeadSize {
		t.Fatalf("expected %d bytes, wrote %d", LeadSize, buf.Len())
	}
	if !bytes.Equal(buf.Bytes()[0:4], LeadMagic[:]) {
		t.Fatalf("unexpected magic %x", buf.Bytes()[0:4])
	}

	parsed, err := ParseLead(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ParseLead failed: %v", err)
	}
	if diff := cmp.Diff(lead, parsed, cmpopts.IgnoreUnexported(Lead{})); diff != "" {
		t.Fatalf("lead changed in round trip (-want +got):\n%s", diff)
	}
	if parsed.ArchNum != 1 || parsed.OSNum != 1 {
		t.Fatalf("unexpected arch/os numbers %d/%d", parsed.ArchNum, parsed.OSNum)
	}
}

func TestLeadTruncatesLongNames(t *testing.T) {
	long := string(bytes.Repeat([]byte("n"), 100))
	raw, err := NewLead(long, "noarch").MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := DecodeLead(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed.Name) != leadNameSize-1 {
		t.Fatalf("expected name truncated to %d bytes, got %d", leadNameSize-1, len(parsed.Name))
	}
}

func TestLeadKeepsRawNameField(t *testing.T) {
	for name, field := range map[string][]byte{
		"unterminated":       bytes.Repeat([]byte("n"), leadNameSize),
		"bytes after the NUL": append([]byte("short\x00"), bytes.Repeat([]byte{0xee}, leadNameSize-6)...),
	} {
		t.Run(name, func(t *testing.T) {
			raw, err := NewLead("x", "x86_64").MarshalBinary()
			if err != nil {
				t.Fatal(err)
			}
			copy(raw[10:10+leadNameSize], field)

			parsed, err := DecodeLead(raw)
			if err != nil {
				t.Fatalf("DecodeLead failed: %v", err)
			}
			again, err := parsed.MarshalBinary()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(raw, again) {
				t.Fatalf("lead not written back verbatim:\n got %x\nwant %x", again, raw)
			}

			parsed.Name = "renamed"
			renamed, err := parsed.MarshalBinary()
			if err != nil {
				t.Fatal(err)
			}
			if got := leadName(renamed[10 : 10+leadNameSize]); got != "renamed" {
				t.Fatalf("expected renamed lead, got %q", got)
			}
		})
	}
}

func TestParseLeadRejectsBadInput(t *testing.T) {
	good, _ := NewLead("x", "x86_64").MarshalBinary()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"bad magic", func(b []byte) []byte { b[1] = 0; return b }},
		{"old major version", func(b []byte) []byte { b[4] = 2; return b }},
		{"future major version", func(b []byte) []byte { b[4] = 5; return b }},
		{"signature type", func(b []byte) []byte { b[79] = 1; return b }},
		{"truncated", func(b []byte) []byte { return b[:50] }},
		{"empty", func(b []byte) []byte { return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.mutate(bytes.Clone(good))
			lead, err := ParseLead(bytes.NewReader(raw))
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("expected ErrFormat, got %v", err)
			}
			if lead != nil {
				t.Fatal("expected nil lead on error")
			}
		})
	}
}
