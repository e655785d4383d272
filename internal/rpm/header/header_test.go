package header

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleMainHeader(t *testing.T) *Header {
	t.Helper()
	h := New(MainTags)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("building sample header: %v", err)
		}
	}
	must(h.SetString(TagName, "hello"))
	must(h.SetString(TagVersion, "1.0.0"))
	must(h.SetString(TagRelease, "1"))
	must(h.SetInt32s(TagEpoch, 1))
	must(h.SetString(TagSummary, "says hello"))
	must(h.SetStringArray(TagHeaderI18NTable, []string{"C"}))
	must(h.SetString(TagArch, "x86_64"))
	must(h.SetInt16s(TagFileModes, 0o644, 0o755))
	must(h.SetInt32s(TagChangelogTime, 1700000000, 1600000000))
	must(h.SetStringArray(TagChangelogName, []string{"me", "you"}))
	must(h.SetStringArray(TagChangelogText, []string{"- first", "- second"}))
	must(h.SetStringArray(TagRequireName, []string{"bash", "rpmlib(CompressedFileNames)"}))
	must(h.SetInt32s(TagRequireFlags, 0, 0x4000|0x8))
	must(h.SetStringArray(TagRequireVersion, []string{"", "3.0.4-1"}))
	return h
}

func sampleSignatureHeader(t *testing.T) *Header {
	t.Helper()
	h, err := NewSignatureHeader(4242, bytes.Repeat([]byte{0xab}, 16),
		"0123456789abcdef0123456789abcdef01234567", []byte("sig-header"), []byte("sig-header-and-payload"))
	if err != nil {
		t.Fatalf("NewSignatureHeader failed: %v", err)
	}
	if err := h.SetInt64s(SigTagLongSize, 1<<40); err != nil {
		t.Fatalf("SetInt64s failed: %v", err)
	}
	return h
}

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		header func(*testing.T) *Header
		parse  func(io.Reader) (*Header, error)
		write  func(*Header, io.Writer) (int64, error)
	}{
		{"main", sampleMainHeader, ParseMain, (*Header).WriteTo},
		{"signature", sampleSignatureHeader, ParseSignature, (*Header).WriteSignatureTo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.header(t)

			var buf bytes.Buffer
			n, err := tt.write(h, &buf)
			if err != nil {
				t.Fatalf("write failed: %v", err)
			}
			if int(n) != buf.Len() {
				t.Fatalf("write reported %d bytes, buffer holds %d", n, buf.Len())
			}

			parsed, err := tt.parse(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if diff := cmp.Diff(h.Entries(), parsed.Entries()); diff != "" {
				t.Fatalf("entries differ after round trip (-want +got):\n%s", diff)
			}

			var again bytes.Buffer
			if _, err := tt.write(parsed, &again); err != nil {
				t.Fatalf("re-write failed: %v", err)
			}
			if !bytes.Equal(buf.Bytes(), again.Bytes()) {
				t.Fatal("re-serialized header is not byte-identical")
			}
		})
	}
}

func TestHeaderEntriesSortedAndAligned(t *testing.T) {
	h := sampleMainHeader(t)
	entries := h.Entries()
	for i, e := range entries {
		if i > 0 && e.Tag <= entries[i-1].Tag {
			t.Fatalf("entry %d (tag %d) not after tag %d", i, e.Tag, entries[i-1].Tag)
		}
		if int(e.Offset)%e.Type.Alignment() != 0 {
			t.Fatalf("tag %d at offset %d not aligned for %s", e.Tag, e.Offset, e.Type)
		}
	}
	if entries[0].Tag != TagHeaderImmutable {
		t.Fatalf("expected region tag first, got %d", entries[0].Tag)
	}
}

func regionSpan(t *testing.T, raw []byte) int32 {
	t.Helper()
	h, err := ParseMain(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	e, err := h.Get(TagHeaderImmutable, TypeBin)
	if err != nil {
		t.Fatalf("region entry missing: %v", err)
	}
	return int32(binary.BigEndian.Uint32(e.Data[8:12]))
}

func TestHeaderSizeInvariantAfterMutation(t *testing.T) {
	h := sampleMainHeader(t)
	check := func(stage string) {
		t.Helper()
		raw := h.Bytes()
		if h.Size() != len(raw) {
			t.Fatalf("%s: Size() = %d, serialized %d bytes", stage, h.Size(), len(raw))
		}
		count := int(binary.BigEndian.Uint32(raw[8:12]))
		store := int(binary.BigEndian.Uint32(raw[12:16]))
		if introSize+entrySize*count+store != len(raw) {
			t.Fatalf("%s: intro declares %d entries and %d store bytes for %d total", stage, count, store, len(raw))
		}
		if got, want := regionSpan(t, raw), int32(-entrySize*count); got != want {
			t.Fatalf("%s: region trailer %d, want %d", stage, got, want)
		}
	}

	check("initial")
	if err := h.SetString(TagLicense, "MIT"); err != nil {
		t.Fatal(err)
	}
	check("after add")
	if !h.Remove(TagChangelogText) || !h.Remove(TagChangelogName) {
		t.Fatal("expected changelog tags to be removed")
	}
	check("after remove")
	if h.Remove(TagHeaderImmutable) {
		t.Fatal("region tag must not be removable")
	}

	// a parsed header that is then mutated gets a fresh layout too
	parsed, err := ParseMain(bytes.NewReader(h.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	h = parsed
	if err := h.SetString(TagURL, "https://example.com"); err != nil {
		t.Fatal(err)
	}
	check("after parse and add")
}

func TestParsedHeaderKeepsPartialRegionSpan(t *testing.T) {
	h := sampleMainHeader(t)
	raw := h.Bytes()
	count := len(h.Entries())
	region := h.Entries()[indexOf(t, h, TagHeaderImmutable)]
	trailer := introSize + entrySize*count + int(region.Offset)
	binary.BigEndian.PutUint32(raw[trailer+8:], uint32(int32(-entrySize*(count-1))))

	parsed, err := ParseMain(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !bytes.Equal(parsed.Bytes(), raw) {
		t.Fatal("parsed header with a partial region span was not written back byte-identically")
	}
	if got, want := regionSpan(t, parsed.Bytes()), int32(-entrySize*(count-1)); got != want {
		t.Fatalf("region trailer %d, want %d", got, want)
	}

	if err := parsed.SetString(TagLicense, "MIT"); err != nil {
		t.Fatal(err)
	}
	if got, want := regionSpan(t, parsed.Bytes()), int32(-entrySize*(count+1)); got != want {
		t.Fatalf("after edit: region trailer %d, want %d", got, want)
	}
}

func TestTypedAccess(t *testing.T) {
	h := sampleMainHeader(t)

	epoch, err := h.GetEpoch()
	if err != nil || epoch != 1 {
		t.Fatalf("expected epoch 1, got %d (%v)", epoch, err)
	}
	name, err := h.GetName()
	if err != nil || name != "hello" {
		t.Fatalf("expected name hello, got %q (%v)", name, err)
	}
	summary, err := h.GetString(TagSummary)
	if err != nil || summary != "says hello" {
		t.Fatalf("expected I18N summary, got %q (%v)", summary, err)
	}
	reqs, err := h.GetStringArray(TagRequireName)
	if err != nil || len(reqs) != 2 || reqs[1] != "rpmlib(CompressedFileNames)" {
		t.Fatalf("unexpected requires %v (%v)", reqs, err)
	}
	modes, err := h.GetInt16s(TagFileModes)
	if err != nil || len(modes) != 2 || modes[1] != 0o755 {
		t.Fatalf("unexpected file modes %v (%v)", modes, err)
	}
	versions, err := h.GetStringArray(TagRequireVersion)
	if err != nil || versions[0] != "" {
		t.Fatalf("expected empty first version, got %v (%v)", versions, err)
	}

	if _, err := h.GetString(TagVendor); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound, got %v", err)
	}
	if _, err := h.GetInt32(TagName); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	if _, err := h.Get(TagEpoch, TypeInt64); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch from Get, got %v", err)
	}
	if _, err := h.GetInt32(TagChangelogTime); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected arity mismatch for multi-valued INT32, got %v", err)
	}
}

func TestSetValidatesAgainstDomain(t *testing.T) {
	h := New(MainTags)
	if err := h.SetString(Tag(4999), "x"); !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("expected ErrUnknownTag, got %v", err)
	}
	if err := h.SetString(TagEpoch, "1"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	if err := h.SetInt32s(TagEpoch, 1, 2); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected arity error, got %v", err)
	}
	if err := h.SetBinary(TagHeaderImmutable, make([]byte, 16)); err == nil {
		t.Fatal("expected error when setting the region tag")
	}
	if err := h.SetString(TagName, "nul\x00inside"); err == nil {
		t.Fatal("expected error for embedded NUL")
	}

	sig := New(SignatureTags)
	if err := sig.SetBinary(SigTagMD5, make([]byte, 15)); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected MD5 arity error, got %v", err)
	}
	// main-domain tags are not signature tags
	if err := sig.SetString(TagArch, "x86_64"); !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("expected ErrUnknownTag in signature domain, got %v", err)
	}
}

func TestSetReplacesExistingEntry(t *testing.T) {
	h := sampleMainHeader(t)
	before := len(h.Entries())
	if err := h.SetInt32s(TagEpoch, 7); err != nil {
		t.Fatal(err)
	}
	if len(h.Entries()) != before {
		t.Fatalf("expected %d entries after replace, got %d", before, len(h.Entries()))
	}
	if epoch, _ := h.GetEpoch(); epoch != 7 {
		t.Fatalf("expected epoch 7, got %d", epoch)
	}
}

func TestNewSignatureHeaderHasExactlyTheSignatureTags(t *testing.T) {
	h, err := NewSignatureHeader(10, make([]byte, 16), "abc", []byte{1}, []byte{2})
	if err != nil {
		t.Fatal(err)
	}
	var tags []Tag
	for _, e := range h.Entries() {
		tags = append(tags, e.Tag)
	}
	want := []Tag{TagHeaderSignatures, SigTagRSA, SigTagSHA1, SigTagSize, SigTagPGP, SigTagMD5}
	if diff := cmp.Diff(want, tags); diff != "" {
		t.Fatalf("unexpected signature tags (-want +got):\n%s", diff)
	}
	if h.SignatureSize()%8 != 0 {
		t.Fatalf("signature size %d not 8-byte aligned", h.SignatureSize())
	}
}

func TestParsePreservesUnknownTags(t *testing.T) {
	h := sampleSignatureHeader(t)
	raw := h.Bytes()
	// rewrite the LONGSIZE tag (270) into an unassigned tag id that still
	// sorts between its neighbours
	idx := indexOf(t, h, SigTagLongSize)
	binary.BigEndian.PutUint32(raw[introSize+idx*entrySize:], 272)

	parsed, err := Parse(bytes.NewReader(raw), SignatureTags)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	e, err := parsed.Get(Tag(272), TypeInt64)
	if err != nil {
		t.Fatalf("unknown tag not preserved: %v", err)
	}
	vals, _ := e.Int64s()
	if vals[0] != 1<<40 {
		t.Fatalf("unexpected preserved value %d", vals[0])
	}
	if !bytes.Equal(parsed.Bytes(), raw) {
		t.Fatal("header with unknown tag did not round-trip byte-identically")
	}
}

func indexOf(t *testing.T, h *Header, tag Tag) int {
	t.Helper()
	for i, e := range h.Entries() {
		if e.Tag == tag {
			return i
		}
	}
	t.Fatalf("tag %d not found", tag)
	return -1
}

func TestParseRejectsMalformedHeaders(t *testing.T) {
	h := sampleMainHeader(t)
	good := h.Bytes()
	epochIdx := indexOf(t, h, TagEpoch)
	nameIdx := indexOf(t, h, TagName)

	tests := []struct {
		name   string
		mutate func([]byte)
	}{
		{"bad magic", func(b []byte) { b[0] = 0 }},
		{"bad version", func(b []byte) { b[3] = 2 }},
		{"zero entries", func(b []byte) { binary.BigEndian.PutUint32(b[8:12], 0) }},
		{"store too large", func(b []byte) { binary.BigEndian.PutUint32(b[12:16], maxStoreSize+1) }},
		{"misaligned int32", func(b []byte) {
			off := binary.BigEndian.Uint32(b[introSize+epochIdx*entrySize+8:])
			binary.BigEndian.PutUint32(b[introSize+epochIdx*entrySize+8:], off+1)
		}},
		{"offset past store", func(b []byte) {
			binary.BigEndian.PutUint32(b[introSize+epochIdx*entrySize+8:], 1<<20)
		}},
		{"negative offset", func(b []byte) {
			binary.BigEndian.PutUint32(b[introSize+nameIdx*entrySize+8:], 0xfffffff0)
		}},
		{"unknown type", func(b []byte) {
			binary.BigEndian.PutUint32(b[introSize+nameIdx*entrySize+4:], 42)
		}},
		{"known tag wrong type", func(b []byte) {
			binary.BigEndian.PutUint32(b[introSize+epochIdx*entrySize+4:], uint32(TypeBin))
			binary.BigEndian.PutUint32(b[introSize+epochIdx*entrySize+12:], 4)
		}},
		{"unsorted index", func(b []byte) {
			binary.BigEndian.PutUint32(b[introSize+nameIdx*entrySize:], uint32(TagArch)+1000)
		}},
		{"count overruns store", func(b []byte) {
			binary.BigEndian.PutUint32(b[introSize+indexOf(t, h, TagFileModes)*entrySize+12:], 1<<24)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := bytes.Clone(good)
			tt.mutate(raw)
			parsed, err := ParseMain(bytes.NewReader(raw))
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("expected ErrFormat, got %v", err)
			}
			if parsed != nil {
				t.Fatal("expected nil header on error")
			}
		})
	}
}

func TestParseTruncatedHeaderIsFormatError(t *testing.T) {
	good := sampleMainHeader(t).Bytes()
	for cut := 0; cut < len(good); cut++ {
		parsed, err := ParseMain(bytes.NewReader(good[:cut]))
		if !errors.Is(err, ErrFormat) {
			t.Fatalf("cut at %d: expected ErrFormat, got %v", cut, err)
		}
		if parsed != nil {
			t.Fatalf("cut at %d: expected nil header", cut)
		}
	}
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestParsePropagatesIOErrors(t *testing.T) {
	ioErr := errors.New("disk on fire")
	_, err := ParseMain(failingReader{ioErr})
	if !errors.Is(err, ioErr) {
		t.Fatalf("expected I/O error to propagate, got %v", err)
	}
	if errors.Is(err, ErrFormat) {
		t.Fatal("I/O failure must not be reported as a format error")
	}
}
