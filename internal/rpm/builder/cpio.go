package builder

import (
	"fmt"
	"io"
)

const (
	cpioMagic   = "070701"
	cpioTrailer = "TRAILER!!!"
)

// cpioEntry is one member of a newc archive.
type cpioEntry struct {
	name  string
	ino   uint32
	mode  uint32
	mtime uint32
	data  []byte
}

// cpioWriter writes the newc ("070701") archive format rpm uses for payloads.
type cpioWriter struct {
	w io.Writer
	n int64
}

func (c *cpioWriter) write(b []byte) error {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return err
}

func (c *cpioWriter) pad() error {
	if rem := c.n % 4; rem != 0 {
		return c.write(make([]byte, 4-rem))
	}
	return nil
}

func (c *cpioWriter) writeEntry(e cpioEntry) error {
	hdr := fmt.Sprintf("%s%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x",
		cpioMagic, e.ino, e.mode, 0, 0, 1, e.mtime, len(e.data), 0, 0, 0, 0, len(e.name)+1, 0)
	if err := c.write([]byte(hdr)); err != nil {
		return err
	}
	if err := c.write(append([]byte(e.name), 0)); err != nil {
		return err
	}
	if err := c.pad(); err != nil {
		return err
	}
	if err := c.write(e.data); err != nil {
		return err
	}
	return c.pad()
}

// close writes the trailer entry.
func (c *cpioWriter) close() error {
	return c.writeEntry(cpioEntry{name: cpioTrailer})
}
