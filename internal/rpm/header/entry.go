package header

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	introSize         = 16
	entrySize         = 16
	regionTrailerSize = 16
)

// Entry is one index entry together with the store bytes it references.
// Data aliases the header's store and must not be modified.
type Entry struct {
	Tag    Tag
	Type   EntryType
	Offset int32
	Count  uint32
	Data   []byte
}

// Strings decodes a STRING, STRING_ARRAY or I18NSTRING entry.
func (e *Entry) Strings() ([]string, error) {
	if !e.Type.isString() {
		return nil, fmt.Errorf("%w: tag %d is %s, not a string type", ErrTypeMismatch, e.Tag, e.Type)
	}
	parts := strings.Split(string(e.Data), "\x00")
	// Data ends with a NUL, so Split leaves one empty element behind
	if len(parts) == 0 || uint32(len(parts)-1) != e.Count {
		return nil, fmt.Errorf("%w: tag %d holds %d strings, want %d", ErrFormat, e.Tag, len(parts)-1, e.Count)
	}
	return parts[:len(parts)-1], nil
}

// Int16s decodes an INT16 entry.
func (e *Entry) Int16s() ([]int16, error) {
	if e.Type != TypeInt16 {
		return nil, fmt.Errorf("%w: tag %d is %s, not INT16", ErrTypeMismatch, e.Tag, e.Type)
	}
	out := make([]int16, e.Count)
	for i := range out {
		out[i] = int16(binary.BigEndian.Uint16(e.Data[2*i:]))
	}
	return out, nil
}

// Int32s decodes an INT32 entry.
func (e *Entry) Int32s() ([]int32, error) {
	if e.Type != TypeInt32 {
		return nil, fmt.Errorf("%w: tag %d is %s, not INT32", ErrTypeMismatch, e.Tag, e.Type)
	}
	out := make([]int32, e.Count)
	for i := range out {
		out[i] = int32(binary.BigEndian.Uint32(e.Data[4*i:]))
	}
	return out, nil
}

// Int64s decodes an INT64 entry.
func (e *Entry) Int64s() ([]int64, error) {
	if e.Type != TypeInt64 {
		return nil, fmt.Errorf("%w: tag %d is %s, not INT64", ErrTypeMismatch, e.Tag, e.Type)
	}
	out := make([]int64, e.Count)
	for i := range out {
		out[i] = int64(binary.BigEndian.Uint64(e.Data[8*i:]))
	}
	return out, nil
}

// Int8s decodes an INT8 or CHAR entry.
func (e *Entry) Int8s() ([]int8, error) {
	if e.Type != TypeInt8 && e.Type != TypeChar {
		return nil, fmt.Errorf("%w: tag %d is %s, not INT8", ErrTypeMismatch, e.Tag, e.Type)
	}
	out := make([]int8, e.Count)
	for i := range out {
		out[i] = int8(e.Data[i])
	}
	return out, nil
}

// Binary returns a copy of a BIN entry's bytes.
func (e *Entry) Binary() ([]byte, error) {
	if e.Type != TypeBin {
		return nil, fmt.Errorf("%w: tag %d is %s, not BIN", ErrTypeMismatch, e.Tag, e.Type)
	}
	return bytes.Clone(e.Data), nil
}

// dataLength returns how many store bytes an entry of type t and count
// elements occupies at off, checking bounds, alignment and NUL termination.
func dataLength(t EntryType, count uint32, store []byte, off int32) (int, error) {
	if off < 0 || int(off) > len(store) {
		return 0, fmt.Errorf("offset %d outside store of %d bytes", off, len(store))
	}
	if int(off)%t.Alignment() != 0 {
		return 0, fmt.Errorf("offset %d not aligned to %d for %s", off, t.Alignment(), t)
	}
	if t != TypeNull && count == 0 {
		return 0, fmt.Errorf("zero count for %s", t)
	}
	if t == TypeString && count != 1 {
		return 0, fmt.Errorf("STRING entry with count %d", count)
	}

	if !t.isString() {
		n := uint64(count) * uint64(t.width())
		if uint64(off)+n > uint64(len(store)) {
			return 0, fmt.Errorf("%d bytes at offset %d overrun store of %d bytes", n, off, len(store))
		}
		return int(n), nil
	}

	end := int(off)
	for i := uint32(0); i < count; i++ {
		j := bytes.IndexByte(store[end:], 0)
		if j < 0 {
			return 0, fmt.Errorf("unterminated string at offset %d", end)
		}
		end += j + 1
	}
	return end - int(off), nil
}

func encodeStrings(vals []string) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range vals {
		if strings.IndexByte(v, 0) >= 0 {
			return nil, fmt.Errorf("string %q contains NUL", v)
		}
		buf.WriteString(v)
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

func encodeInt16s(vals []int16) []byte {
	buf := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint16(buf[2*i:], uint16(v))
	}
	return buf
}

func encodeInt32s(vals []int32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint32(buf[4*i:], uint32(v))
	}
	return buf
}

func encodeInt64s(vals []int64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint64(buf[8*i:], uint64(v))
	}
	return buf
}

func encodeInt8s(vals []int8) []byte {
	buf := make([]byte, len(vals))
	for i, v := range vals {
		buf[i] = byte(v)
	}
	return buf
}
