// Package seqcursor presents an ordered list of byte slices as a single
// read-only, seekable stream without copying the underlying buffers.
package seqcursor

import (
	"errors"
	"fmt"
	"io"
)

// ErrSeek is returned for seeks that are not absolute or fall outside
// [0, Len()].
var ErrSeek = errors.New("seqcursor: invalid seek")

// Cursor reads across its segments in order. It borrows the slices handed
// to New; callers must not modify them while the cursor is in use.
type Cursor struct {
	segs []segment
	len  int64
	pos  int64

	// index of the segment containing pos, or len(segs) at the end
	cur int
}

type segment struct {
	start int64
	data  []byte
}

var _ io.ReadSeeker = (*Cursor)(nil)

// New builds a cursor over bufs. Empty slices are skipped.
func New(bufs ...[]byte) *Cursor {
	c := &Cursor{segs: make([]segment, 0, len(bufs))}
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		c.segs = append(c.segs, segment{start: c.len, data: b})
		c.len += int64(len(b))
	}
	return c
}

// Len is the total logical length of all segments.
func (c *Cursor) Len() int64 { return c.len }

// Read fills p from the current position, crossing segment boundaries as
// needed. It returns io.EOF once the logical end has been reached.
func (c *Cursor) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.pos >= c.len {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && c.cur < len(c.segs) {
		seg := c.segs[c.cur]
		off := c.pos - seg.start
		copied := copy(p[n:], seg.data[off:])
		n += copied
		c.pos += int64(copied)
		if c.pos == seg.start+int64(len(seg.data)) {
			c.cur++
		}
	}
	return n, nil
}

// Seek only supports io.SeekStart. Seeking to exactly Len() is allowed and
// leaves the cursor at EOF.
func (c *Cursor) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		return c.pos, fmt.Errorf("%w: whence %d not supported", ErrSeek, whence)
	}
	if offset < 0 || offset > c.len {
		return c.pos, fmt.Errorf("%w: offset %d outside [0, %d]", ErrSeek, offset, c.len)
	}

	c.pos = offset
	c.cur = len(c.segs)
	for i, seg := range c.segs {
		if offset < seg.start+int64(len(seg.data)) {
			c.cur = i
			break
		}
	}
	return c.pos, nil
}
