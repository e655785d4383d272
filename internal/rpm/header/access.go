package header

import (
	"bytes"
	"fmt"
	"sort"
)

// Get returns the entry for tag, which must be stored as typ.
func (h *Header) Get(tag Tag, typ EntryType) (Entry, error) {
	e := h.lookup(tag)
	if e == nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrTagNotFound, NameOf(h.domain, tag))
	}
	if e.Type != typ {
		return Entry{}, fmt.Errorf("%w: %s is %s, want %s", ErrTypeMismatch, NameOf(h.domain, tag), e.Type, typ)
	}
	return *e, nil
}

func (h *Header) find(tag Tag) (*Entry, error) {
	e := h.lookup(tag)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrTagNotFound, NameOf(h.domain, tag))
	}
	return e, nil
}

// GetString returns a STRING entry, or the first (default locale) value of
// an I18NSTRING entry.
func (h *Header) GetString(tag Tag) (string, error) {
	e, err := h.find(tag)
	if err != nil {
		return "", err
	}
	if e.Type != TypeString && e.Type != TypeI18NString {
		return "", fmt.Errorf("%w: %s is %s, want STRING", ErrTypeMismatch, NameOf(h.domain, tag), e.Type)
	}
	vals, err := e.Strings()
	if err != nil {
		return "", err
	}
	return vals[0], nil
}

// GetStringArray returns the values of any string-typed entry.
func (h *Header) GetStringArray(tag Tag) ([]string, error) {
	e, err := h.find(tag)
	if err != nil {
		return nil, err
	}
	return e.Strings()
}

// GetInt32 returns a single-valued INT32 entry.
func (h *Header) GetInt32(tag Tag) (int32, error) {
	vals, err := h.GetInt32s(tag)
	if err != nil {
		return 0, err
	}
	if len(vals) != 1 {
		return 0, fmt.Errorf("%w: %s has %d values, want 1", ErrTypeMismatch, NameOf(h.domain, tag), len(vals))
	}
	return vals[0], nil
}

func (h *Header) GetInt32s(tag Tag) ([]int32, error) {
	e, err := h.find(tag)
	if err != nil {
		return nil, err
	}
	return e.Int32s()
}

func (h *Header) GetInt16s(tag Tag) ([]int16, error) {
	e, err := h.find(tag)
	if err != nil {
		return nil, err
	}
	return e.Int16s()
}

func (h *Header) GetInt64s(tag Tag) ([]int64, error) {
	e, err := h.find(tag)
	if err != nil {
		return nil, err
	}
	return e.Int64s()
}

func (h *Header) GetInt8s(tag Tag) ([]int8, error) {
	e, err := h.find(tag)
	if err != nil {
		return nil, err
	}
	return e.Int8s()
}

// GetBinary returns a copy of a BIN entry.
func (h *Header) GetBinary(tag Tag) ([]byte, error) {
	e, err := h.find(tag)
	if err != nil {
		return nil, err
	}
	return e.Binary()
}

func (h *Header) GetName() (string, error)    { return h.GetString(TagName) }
func (h *Header) GetVersion() (string, error) { return h.GetString(TagVersion) }
func (h *Header) GetRelease() (string, error) { return h.GetString(TagRelease) }
func (h *Header) GetArch() (string, error)    { return h.GetString(TagArch) }

// GetEpoch returns the package epoch. A package without an epoch yields
// ErrTagNotFound; callers treating that as epoch 0 must do so explicitly.
func (h *Header) GetEpoch() (int32, error) { return h.GetInt32(TagEpoch) }

// set validates a new entry against the domain and inserts it, replacing
// any entry with the same tag.
func (h *Header) set(tag Tag, typ EntryType, count uint32, data []byte) error {
	if tag == h.domain.RegionTag() {
		return fmt.Errorf("tag %d is the %s region tag and is managed by the codec", tag, h.domain.Name())
	}
	info, ok := h.domain.Lookup(tag)
	if !ok {
		return fmt.Errorf("%w: %d in %s header", ErrUnknownTag, tag, h.domain.Name())
	}
	if !compatible(info.Type, typ) {
		return fmt.Errorf("%w: %s takes %s, got %s", ErrTypeMismatch, info.Name, info.Type, typ)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s needs at least one value", ErrTypeMismatch, info.Name)
	}
	if info.Count != 0 && info.Count != count {
		return fmt.Errorf("%w: %s takes %d values, got %d", ErrTypeMismatch, info.Name, info.Count, count)
	}

	e := &Entry{Tag: tag, Type: typ, Count: count, Data: bytes.Clone(data)}
	i := sort.Search(len(h.entries), func(i int) bool { return h.entries[i].Tag >= tag })
	if i < len(h.entries) && h.entries[i].Tag == tag {
		h.entries[i] = e
	} else {
		h.entries = append(h.entries, nil)
		copy(h.entries[i+1:], h.entries[i:])
		h.entries[i] = e
	}
	h.dirty = true
	return nil
}

// stringType picks the string flavour the domain expects for tag.
func (h *Header) stringType(tag Tag, fallback EntryType) EntryType {
	if info, ok := h.domain.Lookup(tag); ok && info.Type.isString() {
		return info.Type
	}
	return fallback
}

// SetString stores a single string, as STRING or I18NSTRING depending on
// what the domain declares for tag.
func (h *Header) SetString(tag Tag, v string) error {
	data, err := encodeStrings([]string{v})
	if err != nil {
		return err
	}
	return h.set(tag, h.stringType(tag, TypeString), 1, data)
}

// SetStringArray stores a list of strings.
func (h *Header) SetStringArray(tag Tag, vals []string) error {
	data, err := encodeStrings(vals)
	if err != nil {
		return err
	}
	typ := h.stringType(tag, TypeStringArray)
	if typ == TypeString {
		typ = TypeStringArray
	}
	return h.set(tag, typ, uint32(len(vals)), data)
}

func (h *Header) SetInt16s(tag Tag, vals ...int16) error {
	return h.set(tag, TypeInt16, uint32(len(vals)), encodeInt16s(vals))
}

func (h *Header) SetInt32s(tag Tag, vals ...int32) error {
	return h.set(tag, TypeInt32, uint32(len(vals)), encodeInt32s(vals))
}

func (h *Header) SetInt64s(tag Tag, vals ...int64) error {
	return h.set(tag, TypeInt64, uint32(len(vals)), encodeInt64s(vals))
}

func (h *Header) SetInt8s(tag Tag, vals ...int8) error {
	return h.set(tag, TypeInt8, uint32(len(vals)), encodeInt8s(vals))
}

func (h *Header) SetBinary(tag Tag, data []byte) error {
	return h.set(tag, TypeBin, uint32(len(data)), data)
}

// Remove deletes tag and reports whether it was present. The region entry
// cannot be removed.
func (h *Header) Remove(tag Tag) bool {
	if tag == h.domain.RegionTag() {
		return false
	}
	i := sort.Search(len(h.entries), func(i int) bool { return h.entries[i].Tag >= tag })
	if i >= len(h.entries) || h.entries[i].Tag != tag {
		return false
	}
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
	h.dirty = true
	return true
}
