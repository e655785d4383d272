package header

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
)

// HeaderMagic opens the signature header and the main header.
var HeaderMagic = [3]byte{0x8e, 0xad, 0xe8}

// HeaderVersion is the only supported header structure version.
const HeaderVersion = 1

// Sanity limits on untrusted input, matching the limits rpm itself applies.
const (
	maxIndexEntries = 0xffff
	maxStoreSize    = 256 << 20
)

// Header is a tag-indexed binary header: an index of entries sorted by
// tag plus the store the entries point into. The same codec serves the
// signature header and the main header; only the Domain differs.
//
// A parsed header keeps its store verbatim so it re-serializes byte for
// byte. Any Set or Remove call marks the header dirty and the store is laid
// out again, in tag order, on the next write.
type Header struct {
	domain  Domain
	entries []*Entry
	store   []byte
	dirty   bool
}

// New returns an empty header for domain d.
func New(d Domain) *Header {
	return &Header{domain: d, dirty: true}
}

// Domain returns the tag domain the header was built or parsed with.
func (h *Header) Domain() Domain { return h.domain }

// ParseSignature reads a signature header including the padding that
// follows it up to the next 8-byte boundary.
func ParseSignature(r io.Reader) (*Header, error) {
	h, err := Parse(r, SignatureTags)
	if err != nil {
		return nil, fmt.Errorf("signature header: %w", err)
	}
	if pad := signaturePadding(h.Size()); pad > 0 {
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:pad]); err != nil {
			return nil, fmt.Errorf("signature header: %w", readErr("padding", err))
		}
	}
	return h, nil
}

// ParseMain reads a main header.
func ParseMain(r io.Reader) (*Header, error) {
	h, err := Parse(r, MainTags)
	if err != nil {
		return nil, fmt.Errorf("main header: %w", err)
	}
	return h, nil
}

// Parse reads one header using domain d. Tags unknown to d are preserved
// as-is; known tags must carry their expected type and arity. Any
// violation yields an ErrFormat error and no header.
func Parse(r io.Reader, d Domain) (*Header, error) {
	log := logger.Logger()

	var intro [introSize]byte
	if _, err := io.ReadFull(r, intro[:]); err != nil {
		return nil, readErr("header intro", err)
	}
	if !bytes.Equal(intro[0:3], HeaderMagic[:]) {
		return nil, fmt.Errorf("%w: bad header magic %x", ErrFormat, intro[0:3])
	}
	if intro[3] != HeaderVersion {
		return nil, fmt.Errorf("%w: unsupported header version %d", ErrFormat, intro[3])
	}

	count := binary.BigEndian.Uint32(intro[8:12])
	size := binary.BigEndian.Uint32(intro[12:16])
	if count == 0 || count > maxIndexEntries {
		return nil, fmt.Errorf("%w: header index count %d out of range", ErrFormat, count)
	}
	if size > maxStoreSize {
		return nil, fmt.Errorf("%w: header store size %d out of range", ErrFormat, size)
	}

	index := make([]byte, int(count)*entrySize)
	if _, err := io.ReadFull(r, index); err != nil {
		return nil, readErr("header index", err)
	}
	store := make([]byte, size)
	if _, err := io.ReadFull(r, store); err != nil {
		return nil, readErr("header store", err)
	}

	h := &Header{domain: d, store: store, entries: make([]*Entry, 0, count)}
	for i := 0; i < int(count); i++ {
		raw := index[i*entrySize : (i+1)*entrySize]
		e := &Entry{
			Tag:    Tag(binary.BigEndian.Uint32(raw[0:4])),
			Type:   EntryType(binary.BigEndian.Uint32(raw[4:8])),
			Offset: int32(binary.BigEndian.Uint32(raw[8:12])),
			Count:  binary.BigEndian.Uint32(raw[12:16]),
		}
		if i > 0 && e.Tag <= h.entries[i-1].Tag {
			return nil, fmt.Errorf("%w: index not sorted at entry %d (tag %d after %d)", ErrFormat, i, e.Tag, h.entries[i-1].Tag)
		}
		if !e.Type.Valid() {
			return nil, fmt.Errorf("%w: tag %d has unknown type %d", ErrFormat, e.Tag, uint32(e.Type))
		}
		n, err := dataLength(e.Type, e.Count, store, e.Offset)
		if err != nil {
			return nil, fmt.Errorf("%w: tag %d: %v", ErrFormat, e.Tag, err)
		}
		e.Data = store[e.Offset : int(e.Offset)+n]

		if info, ok := d.Lookup(e.Tag); ok {
			if !compatible(info.Type, e.Type) {
				return nil, fmt.Errorf("%w: tag %s stored as %s, want %s", ErrFormat, info.Name, e.Type, info.Type)
			}
			if info.Count != 0 && info.Count != e.Count {
				return nil, fmt.Errorf("%w: tag %s has count %d, want %d", ErrFormat, info.Name, e.Count, info.Count)
			}
		} else {
			log.Debugf("preserving unknown %s header tag %d (%s x%d)", d.Name(), e.Tag, e.Type, e.Count)
		}
		h.entries = append(h.entries, e)
	}

	if err := h.checkRegion(); err != nil {
		return nil, err
	}
	return h, nil
}

// checkRegion validates the region trailer of a freshly parsed header.
// Headers without a region entry are accepted as-is.
func (h *Header) checkRegion() error {
	region := h.domain.RegionTag()
	e := h.lookup(region)
	if e == nil {
		return nil
	}
	tr := e.Data
	trTag := Tag(binary.BigEndian.Uint32(tr[0:4]))
	trType := EntryType(binary.BigEndian.Uint32(tr[4:8]))
	trOff := int32(binary.BigEndian.Uint32(tr[8:12]))
	trCount := binary.BigEndian.Uint32(tr[12:16])

	if trTag != region || trType != TypeBin || trCount != regionTrailerSize {
		return fmt.Errorf("%w: malformed region trailer (tag %d type %s count %d)", ErrFormat, trTag, trType, trCount)
	}
	start, end := int(e.Offset), int(e.Offset)+regionTrailerSize
	for _, other := range h.entries {
		if other == e || len(other.Data) == 0 {
			continue
		}
		if int(other.Offset) < end && start < int(other.Offset)+len(other.Data) {
			return fmt.Errorf("%w: region trailer overlaps tag %d", ErrFormat, other.Tag)
		}
	}
	span := -int64(trOff)
	if span <= 0 || span%entrySize != 0 || span/entrySize > int64(len(h.entries)) {
		return fmt.Errorf("%w: region trailer claims %d index bytes for %d entries", ErrFormat, span, len(h.entries))
	}
	return nil
}

func (h *Header) lookup(tag Tag) *Entry {
	i := sort.Search(len(h.entries), func(i int) bool { return h.entries[i].Tag >= tag })
	if i < len(h.entries) && h.entries[i].Tag == tag {
		return h.entries[i]
	}
	return nil
}

// layout rebuilds the store of a dirty header: entries in tag order, each
// aligned for its type, followed by the region trailer.
func (h *Header) layout() {
	if !h.dirty {
		return
	}
	region := h.domain.RegionTag()
	if h.lookup(region) == nil {
		h.entries = append(h.entries, &Entry{Tag: region, Type: TypeBin, Count: regionTrailerSize})
	}
	sort.Slice(h.entries, func(i, j int) bool { return h.entries[i].Tag < h.entries[j].Tag })

	var store []byte
	var regionEntry *Entry
	for _, e := range h.entries {
		if e.Tag == region {
			regionEntry = e
			continue
		}
		for len(store)%e.Type.Alignment() != 0 {
			store = append(store, 0)
		}
		e.Offset = int32(len(store))
		store = append(store, e.Data...)
	}
	regionEntry.Offset = int32(len(store))
	store = append(store, make([]byte, regionTrailerSize)...)

	for _, e := range h.entries {
		n := len(e.Data)
		if e.Tag == region {
			n = regionTrailerSize
		}
		e.Data = store[e.Offset : int(e.Offset)+n]
	}
	h.store = store
	h.dirty = false
	h.sealRegion()
}

// sealRegion writes the region trailer of a freshly laid out store so it
// spans every entry.
func (h *Header) sealRegion() {
	region := h.domain.RegionTag()
	e := h.lookup(region)
	if e == nil {
		return
	}
	tr := h.store[e.Offset : e.Offset+regionTrailerSize]
	binary.BigEndian.PutUint32(tr[0:4], uint32(region))
	binary.BigEndian.PutUint32(tr[4:8], uint32(TypeBin))
	binary.BigEndian.PutUint32(tr[8:12], uint32(int32(-entrySize*len(h.entries))))
	binary.BigEndian.PutUint32(tr[12:16], regionTrailerSize)
}

// Size is the serialized length of the header: intro, index and store.
// It does not include signature padding.
func (h *Header) Size() int {
	h.layout()
	return introSize + entrySize*len(h.entries) + len(h.store)
}

// WriteTo serializes the header. A parsed, unmodified header is written
// back byte for byte, region trailer included; after any change the store
// is laid out again and the trailer recomputed from the entries.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	h.layout()

	buf := make([]byte, introSize+entrySize*len(h.entries))
	copy(buf[0:3], HeaderMagic[:])
	buf[3] = HeaderVersion
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(h.entries)))
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(h.store)))
	for i, e := range h.entries {
		raw := buf[introSize+i*entrySize:]
		binary.BigEndian.PutUint32(raw[0:4], uint32(e.Tag))
		binary.BigEndian.PutUint32(raw[4:8], uint32(e.Type))
		binary.BigEndian.PutUint32(raw[8:12], uint32(e.Offset))
		binary.BigEndian.PutUint32(raw[12:16], e.Count)
	}

	n, err := w.Write(buf)
	total := int64(n)
	if err != nil {
		return total, err
	}
	n, err = w.Write(h.store)
	total += int64(n)
	return total, err
}

// WriteSignatureTo serializes the header followed by zero padding up to the
// next 8-byte boundary, as required for the signature header.
func (h *Header) WriteSignatureTo(w io.Writer) (int64, error) {
	total, err := h.WriteTo(w)
	if err != nil {
		return total, err
	}
	if pad := signaturePadding(int(total)); pad > 0 {
		n, err := w.Write(make([]byte, pad))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Bytes returns the serialized header.
func (h *Header) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(h.Size())
	_, _ = h.WriteTo(&buf)
	return buf.Bytes()
}

// SignatureSize is Size plus the padding written after a signature header.
func (h *Header) SignatureSize() int {
	size := h.Size()
	return size + signaturePadding(size)
}

func signaturePadding(size int) int {
	return (8 - size%8) % 8
}

// Entries returns copies of the index entries in serialized order.
func (h *Header) Entries() []Entry {
	h.layout()
	out := make([]Entry, len(h.entries))
	for i, e := range h.entries {
		out[i] = *e
	}
	return out
}

// Has reports whether tag is present.
func (h *Header) Has(tag Tag) bool {
	return h.lookup(tag) != nil
}
