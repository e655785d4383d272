package header

import "errors"

var (
	// ErrFormat marks malformed input: bad magic or version, truncation,
	// out-of-bounds or misaligned entries. Parsing never returns a partial
	// object together with it.
	ErrFormat = errors.New("rpm format error")

	// ErrTagNotFound is returned by typed accessors when the tag is absent.
	ErrTagNotFound = errors.New("tag not found")

	// ErrTypeMismatch is returned when an entry exists but holds a different
	// type or arity than requested.
	ErrTypeMismatch = errors.New("entry type mismatch")

	// ErrUnknownTag is returned when constructing an entry for a tag the
	// header's domain does not recognise.
	ErrUnknownTag = errors.New("unknown tag")
)
