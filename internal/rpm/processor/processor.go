// Package processor copies package bytes to any number of destinations in
// one pass while checking them with verifier-writers.
package processor

import (
	"errors"
	"fmt"
	"io"

	"github.com/open-edge-platform/rpmkit/internal/rpm"
	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
)

// VerifyWriter accepts the streamed package bytes and, once the stream is
// exhausted, reports whether what it saw is consistent with md.
type VerifyWriter interface {
	io.Writer
	Verify(md *rpm.Metadata) error
}

// Processor fans a package stream out to verifiers and destinations.
// Verifiers always see a chunk before any destination does.
type Processor struct {
	verifiers    []VerifyWriter
	destinations []io.Writer
}

// New returns a processor with no sinks.
func New() *Processor {
	return &Processor{}
}

// AddVerifier registers v. Verifiers run in registration order.
func (p *Processor) AddVerifier(v VerifyWriter) {
	p.verifiers = append(p.verifiers, v)
}

// AddDestination registers w as an output.
func (p *Processor) AddDestination(w io.Writer) {
	p.destinations = append(p.destinations, w)
}

// Process writes md followed by everything left in body to every sink, then
// asks each verifier in turn to check md, stopping at the first failure.
// It returns the number of bytes every sink accepted.
func (p *Processor) Process(md *rpm.Metadata, body io.Reader) (int64, error) {
	log := logger.Logger()

	sinks := make([]io.Writer, 0, len(p.verifiers)+len(p.destinations))
	for _, v := range p.verifiers {
		sinks = append(sinks, v)
	}
	sinks = append(sinks, p.destinations...)
	out := &fanOut{sinks: sinks}

	written, err := md.WriteTo(out)
	if err != nil {
		return written, fmt.Errorf("writing package metadata: %w", err)
	}
	n, err := io.Copy(out, body)
	written += n
	if err != nil {
		return written, fmt.Errorf("copying package body: %w", err)
	}

	for i, v := range p.verifiers {
		if err := v.Verify(md); err != nil {
			return written, fmt.Errorf("verifier %d: %w", i, err)
		}
	}
	log.Debugf("processed %d bytes through %d verifiers and %d destinations",
		written, len(p.verifiers), len(p.destinations))
	return written, nil
}

// fanOut forwards each chunk unchanged to every sink in order. The count it
// reports is what all sinks accepted: sinks that were never reached because
// an earlier one failed count as having accepted nothing.
type fanOut struct {
	sinks []io.Writer
}

var errNoSinks = errors.New("no sinks registered")

func (f *fanOut) Write(p []byte) (int, error) {
	if len(f.sinks) == 0 {
		return 0, errNoSinks
	}
	accepted := len(p)
	for i, w := range f.sinks {
		n, err := w.Write(p)
		if n < accepted {
			accepted = n
		}
		if err == nil && n < len(p) {
			err = io.ErrShortWrite
		}
		if err != nil {
			if i < len(f.sinks)-1 {
				accepted = 0
			}
			return accepted, err
		}
	}
	return accepted, nil
}
