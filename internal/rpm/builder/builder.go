// Package builder assembles a main header and compressed payload from
// package metadata and file contents, producing an rpm.Package.
package builder

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/open-edge-platform/rpmkit/internal/rpm"
	"github.com/open-edge-platform/rpmkit/internal/rpm/compressor"
	"github.com/open-edge-platform/rpmkit/internal/rpm/header"
	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
)

const (
	rpmVersion       = "4.16.1"
	digestAlgoSHA256 = 8

	fileFlagConfig = 1 << 0
	fileFlagDoc    = 1 << 1

	defaultFileMode = 0o100644
	regularFileType = 0o100000
)

var (
	ErrDuplicateFile = errors.New("file already added")
	ErrInvalidPath   = errors.New("destination path must be absolute")
)

// FileOptions describe where and how a file is installed.
type FileOptions struct {
	Dest   string
	Mode   uint32 // permission bits, with or without the regular-file type
	User   string
	Group  string
	Config bool
	Doc    bool
	MTime  time.Time
}

// ChangelogEntry is one changelog record.
type ChangelogEntry struct {
	Author string
	Text   string
	Time   time.Time
}

type file struct {
	opts FileOptions
	data []byte
}

// Builder collects package metadata and files. Zero-valued optional fields
// are left out of the header.
type Builder struct {
	Name        string
	Version     string
	Release     string
	Epoch       int32
	License     string
	Arch        string
	Summary     string
	Description string
	URL         string
	Vendor      string
	Packager    string
	Group       string
	BuildHost   string
	BuildTime   time.Time
	Compression compressor.Kind

	PreInstall    string
	PostInstall   string
	PreUninstall  string
	PostUninstall string

	Requires  []Dependency
	Provides  []Dependency
	Conflicts []Dependency
	Obsoletes []Dependency
	Changelog []ChangelogEntry

	files map[string]file
}

// New returns a builder with release "1", gzip compression and the current
// host and time as build host and build time.
func New(name, version, license, arch, summary string) *Builder {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return &Builder{
		Name:        name,
		Version:     version,
		Release:     "1",
		License:     license,
		Arch:        arch,
		Summary:     summary,
		BuildHost:   host,
		BuildTime:   time.Now(),
		Compression: compressor.Gzip,
		files:       map[string]file{},
	}
}

// AddFile adds content to be installed at opts.Dest.
func (b *Builder) AddFile(content []byte, opts FileOptions) error {
	if !path.IsAbs(opts.Dest) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, opts.Dest)
	}
	opts.Dest = path.Clean(opts.Dest)
	if _, ok := b.files[opts.Dest]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFile, opts.Dest)
	}
	if opts.Mode == 0 {
		opts.Mode = defaultFileMode
	}
	opts.Mode |= regularFileType
	if opts.User == "" {
		opts.User = "root"
	}
	if opts.Group == "" {
		opts.Group = "root"
	}
	if opts.MTime.IsZero() {
		opts.MTime = b.BuildTime
	}
	if b.files == nil {
		b.files = map[string]file{}
	}
	b.files[opts.Dest] = file{opts: opts, data: content}
	return nil
}

// AddFileFromPath reads src and adds it. Mode and modification time default
// to those of src.
func (b *Builder) AddFileFromPath(src string, opts FileOptions) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if opts.Mode == 0 {
		opts.Mode = uint32(info.Mode().Perm())
	}
	if opts.MTime.IsZero() {
		opts.MTime = info.ModTime()
	}
	return b.AddFile(data, opts)
}

// AddChangelogEntry appends a changelog record.
func (b *Builder) AddChangelogEntry(author, text string, t time.Time) {
	b.Changelog = append(b.Changelog, ChangelogEntry{Author: author, Text: text, Time: t})
}

func (b *Builder) sortedFiles() []file {
	out := make([]file, 0, len(b.files))
	for _, f := range b.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].opts.Dest < out[j].opts.Dest })
	return out
}

func (b *Builder) validate() error {
	for field, v := range map[string]string{
		"name": b.Name, "version": b.Version, "release": b.Release,
		"license": b.License, "arch": b.Arch, "summary": b.Summary,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("package %s is required", field)
		}
	}
	for field, v := range map[string]string{"name": b.Name, "version": b.Version, "release": b.Release} {
		if strings.ContainsAny(v, " \t\n") {
			return fmt.Errorf("package %s %q contains whitespace", field, v)
		}
	}
	if strings.Contains(b.Version, "-") || strings.Contains(b.Release, "-") {
		return fmt.Errorf("version and release must not contain '-'")
	}
	return nil
}

// Build assembles an unsigned package carrying size and digest entries.
func (b *Builder) Build() (*rpm.Package, error) {
	log := logger.Logger()

	if err := b.validate(); err != nil {
		return nil, err
	}
	files := b.sortedFiles()

	var archive bytes.Buffer
	cw := &cpioWriter{w: &archive}
	for i, f := range files {
		err := cw.writeEntry(cpioEntry{
			name:  "." + f.opts.Dest,
			ino:   uint32(i + 1),
			mode:  f.opts.Mode,
			mtime: uint32(f.opts.MTime.Unix()),
			data:  f.data,
		})
		if err != nil {
			return nil, fmt.Errorf("writing payload archive: %w", err)
		}
	}
	if err := cw.close(); err != nil {
		return nil, fmt.Errorf("writing payload archive: %w", err)
	}

	payload, err := compressor.Compress(b.Compression, archive.Bytes())
	if err != nil {
		return nil, err
	}

	h, err := b.header(files, int64(archive.Len()), payload)
	if err != nil {
		return nil, err
	}

	lead := header.NewLead(fmt.Sprintf("%s-%s-%s", b.Name, b.Version, b.Release), b.Arch)
	pkg := rpm.NewPackage(lead, h, payload)
	if err := pkg.UpdateDigests(); err != nil {
		return nil, err
	}
	log.Infof("built %s-%s-%s.%s: %d files, %d byte %s payload",
		b.Name, b.Version, b.Release, b.Arch, len(files), len(payload), b.Compression)
	return pkg, nil
}

// BuildAndSign builds the package and signs it with s.
func (b *Builder) BuildAndSign(s rpm.Signer) (*rpm.Package, error) {
	pkg, err := b.Build()
	if err != nil {
		return nil, err
	}
	if err := pkg.Sign(s); err != nil {
		return nil, fmt.Errorf("signing package: %w", err)
	}
	return pkg, nil
}

// headerWriter collects the first error of a sequence of setter calls.
type headerWriter struct {
	h   *header.Header
	err error
}

func (w *headerWriter) do(tag header.Tag, err error) {
	if err != nil && w.err == nil {
		w.err = fmt.Errorf("setting %s: %w", header.NameOf(header.MainTags, tag), err)
	}
}

func (w *headerWriter) str(tag header.Tag, v string) {
	if v != "" {
		w.do(tag, w.h.SetString(tag, v))
	}
}

func (w *headerWriter) strs(tag header.Tag, v []string) {
	if len(v) > 0 {
		w.do(tag, w.h.SetStringArray(tag, v))
	}
}

func (w *headerWriter) int32s(tag header.Tag, v ...int32) {
	if len(v) > 0 {
		w.do(tag, w.h.SetInt32s(tag, v...))
	}
}

func (w *headerWriter) int16s(tag header.Tag, v ...int16) {
	if len(v) > 0 {
		w.do(tag, w.h.SetInt16s(tag, v...))
	}
}

func (b *Builder) header(files []file, archiveSize int64, payload []byte) (*header.Header, error) {
	w := &headerWriter{h: header.New(header.MainTags)}

	description := b.Description
	if description == "" {
		description = b.Summary
	}
	group := b.Group
	if group == "" {
		group = "Unspecified"
	}

	w.strs(header.TagHeaderI18NTable, []string{"C"})
	w.str(header.TagName, b.Name)
	w.str(header.TagVersion, b.Version)
	w.str(header.TagRelease, b.Release)
	w.int32s(header.TagEpoch, b.Epoch)
	w.str(header.TagSummary, b.Summary)
	w.str(header.TagDescription, description)
	w.int32s(header.TagBuildTime, int32(b.BuildTime.Unix()))
	w.str(header.TagBuildHost, b.BuildHost)
	w.str(header.TagLicense, b.License)
	w.str(header.TagGroup, group)
	w.str(header.TagURL, b.URL)
	w.str(header.TagVendor, b.Vendor)
	w.str(header.TagPackager, b.Packager)
	w.str(header.TagOS, "linux")
	w.str(header.TagArch, b.Arch)
	w.str(header.TagRPMVersion, rpmVersion)
	w.str(header.TagEncoding, "utf-8")

	for _, s := range []struct {
		tag, prog header.Tag
		body      string
	}{
		{header.TagPreIn, header.TagPreInProg, b.PreInstall},
		{header.TagPostIn, header.TagPostInProg, b.PostInstall},
		{header.TagPreUn, header.TagPreUnProg, b.PreUninstall},
		{header.TagPostUn, header.TagPostUnProg, b.PostUninstall},
	} {
		if s.body != "" {
			w.str(s.tag, s.body)
			w.str(s.prog, "/bin/sh")
		}
	}

	var installed int64
	for _, f := range files {
		installed += int64(len(f.data))
	}
	w.int32s(header.TagSize, int32(installed))
	w.int32s(header.TagArchiveSize, int32(archiveSize))
	b.fileTags(w, files)

	requires := append([]Dependency(nil), b.Requires...)
	requires = append(requires,
		rpmlib("CompressedFileNames", "3.0.4-1"),
		rpmlib("FileDigests", "4.6.0-1"),
		rpmlib("PayloadFilesHavePrefix", "4.0-1"),
	)
	switch b.Compression {
	case compressor.Zstd:
		requires = append(requires, rpmlib("PayloadIsZstd", "5.4.18-1"))
	case compressor.Xz:
		requires = append(requires, rpmlib("PayloadIsXz", "5.2-1"))
	}
	evr := fmt.Sprintf("%s-%s", b.Version, b.Release)
	if b.Epoch != 0 {
		evr = fmt.Sprintf("%d:%s", b.Epoch, evr)
	}
	provides := append([]Dependency{Eq(b.Name, evr), Eq(fmt.Sprintf("%s(%s)", b.Name, b.Arch), evr)}, b.Provides...)

	for _, d := range []struct {
		name, flags, version header.Tag
		deps                 []Dependency
	}{
		{header.TagRequireName, header.TagRequireFlags, header.TagRequireVersion, requires},
		{header.TagProvideName, header.TagProvideFlags, header.TagProvideVersion, provides},
		{header.TagConflictName, header.TagConflictFlags, header.TagConflictVersion, b.Conflicts},
		{header.TagObsoleteName, header.TagObsoleteFlags, header.TagObsoleteVersion, b.Obsoletes},
	} {
		names, flags, versions := split(d.deps)
		w.strs(d.name, names)
		w.int32s(d.flags, flags...)
		w.strs(d.version, versions)
	}

	if len(b.Changelog) > 0 {
		entries := append([]ChangelogEntry(nil), b.Changelog...)
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Time.After(entries[j].Time) })
		var times []int32
		var names, texts []string
		for _, e := range entries {
			times = append(times, int32(e.Time.Unix()))
			names = append(names, e.Author)
			texts = append(texts, e.Text)
		}
		w.int32s(header.TagChangelogTime, times...)
		w.strs(header.TagChangelogName, names)
		w.strs(header.TagChangelogText, texts)
	}

	sum := sha256.Sum256(payload)
	w.str(header.TagPayloadFormat, "cpio")
	w.str(header.TagPayloadCompressor, b.Compression.PayloadCompressor())
	if b.Compression != compressor.None {
		w.str(header.TagPayloadFlags, "9")
	}
	w.strs(header.TagPayloadDigest, []string{hex.EncodeToString(sum[:])})
	w.int32s(header.TagPayloadDigestAlgo, digestAlgoSHA256)

	if w.err != nil {
		return nil, w.err
	}
	return w.h, nil
}

func (b *Builder) fileTags(w *headerWriter, files []file) {
	if len(files) == 0 {
		return
	}
	var (
		sizes, mtimes, flags, verify, devices, inodes, dirIndexes []int32
		modes, rdevs                                              []int16
		digests, links, users, groups, langs, baseNames, dirNames []string
	)
	dirIndex := map[string]int32{}
	for i, f := range files {
		sum := sha256.Sum256(f.data)
		var ff int32
		if f.opts.Config {
			ff |= fileFlagConfig
		}
		if f.opts.Doc {
			ff |= fileFlagDoc
		}

		dir, base := path.Split(f.opts.Dest)
		idx, ok := dirIndex[dir]
		if !ok {
			idx = int32(len(dirNames))
			dirIndex[dir] = idx
			dirNames = append(dirNames, dir)
		}

		sizes = append(sizes, int32(len(f.data)))
		modes = append(modes, int16(uint16(f.opts.Mode)))
		rdevs = append(rdevs, 0)
		mtimes = append(mtimes, int32(f.opts.MTime.Unix()))
		digests = append(digests, hex.EncodeToString(sum[:]))
		links = append(links, "")
		flags = append(flags, ff)
		users = append(users, f.opts.User)
		groups = append(groups, f.opts.Group)
		verify = append(verify, -1)
		devices = append(devices, 1)
		inodes = append(inodes, int32(i+1))
		langs = append(langs, "")
		dirIndexes = append(dirIndexes, idx)
		baseNames = append(baseNames, base)
	}

	w.int32s(header.TagFileSizes, sizes...)
	w.int16s(header.TagFileModes, modes...)
	w.int16s(header.TagFileRDevs, rdevs...)
	w.int32s(header.TagFileMTimes, mtimes...)
	w.strs(header.TagFileDigests, digests)
	w.strs(header.TagFileLinkTos, links)
	w.int32s(header.TagFileFlags, flags...)
	w.strs(header.TagFileUserName, users)
	w.strs(header.TagFileGroupName, groups)
	w.int32s(header.TagFileVerifyFlags, verify...)
	w.int32s(header.TagFileDevices, devices...)
	w.int32s(header.TagFileInodes, inodes...)
	w.strs(header.TagFileLangs, langs)
	w.int32s(header.TagDirIndexes, dirIndexes...)
	w.strs(header.TagBaseNames, baseNames)
	w.strs(header.TagDirNames, dirNames)
	w.int32s(header.TagFileDigestAlgo, digestAlgoSHA256)
}
