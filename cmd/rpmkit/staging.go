package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/open-edge-platform/rpmkit/internal/rpm"
)

// stagedFile is written next to its destination as <dest>.<uuid>.part and
// only renamed into place by Commit.
type stagedFile struct {
	*os.File
	dest string
}

func createStaged(dest string) (*stagedFile, error) {
	tmp := fmt.Sprintf("%s.%s.part", dest, uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating staging file for %s: %w", dest, err)
	}
	return &stagedFile{File: f, dest: dest}, nil
}

// Commit flushes the staging file and moves it over the destination.
func (s *stagedFile) Commit() error {
	if err := s.Sync(); err != nil {
		s.Abort()
		return fmt.Errorf("syncing %s: %w", s.Name(), err)
	}
	if err := s.Close(); err != nil {
		os.Remove(s.Name())
		return fmt.Errorf("closing %s: %w", s.Name(), err)
	}
	if err := os.Rename(s.Name(), s.dest); err != nil {
		os.Remove(s.Name())
		return fmt.Errorf("moving %s into place: %w", s.dest, err)
	}
	return nil
}

// Abort discards the staging file.
func (s *stagedFile) Abort() {
	s.Close()
	os.Remove(s.Name())
}

// writePackageFile writes pkg to path through a staging file.
func writePackageFile(path string, pkg *rpm.Package) error {
	out, err := createStaged(path)
	if err != nil {
		return err
	}
	if _, err := pkg.WriteTo(out); err != nil {
		out.Abort()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return out.Commit()
}
