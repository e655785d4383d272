package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/open-edge-platform/rpmkit/internal/rpm/compressor"
)

// Manifest is the YAML description of a package to build.
type Manifest struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Release     string `yaml:"release"`
	Epoch       int32  `yaml:"epoch"`
	License     string `yaml:"license"`
	Arch        string `yaml:"arch"`
	Summary     string `yaml:"summary"`
	Description string `yaml:"description"`
	URL         string `yaml:"url"`
	Vendor      string `yaml:"vendor"`
	Packager    string `yaml:"packager"`
	Group       string `yaml:"group"`
	Compression string `yaml:"compression"`

	Requires  []string `yaml:"requires"`
	Provides  []string `yaml:"provides"`
	Conflicts []string `yaml:"conflicts"`
	Obsoletes []string `yaml:"obsoletes"`

	Scripts   ManifestScripts  `yaml:"scripts"`
	Changelog []ManifestChange `yaml:"changelog"`
	Files     []ManifestFile   `yaml:"files"`
}

type ManifestScripts struct {
	PreInstall    string `yaml:"pre_install"`
	PostInstall   string `yaml:"post_install"`
	PreUninstall  string `yaml:"pre_uninstall"`
	PostUninstall string `yaml:"post_uninstall"`
}

type ManifestChange struct {
	Author string `yaml:"author"`
	Text   string `yaml:"text"`
	Date   string `yaml:"date"` // YYYY-MM-DD or RFC 3339
}

// ManifestFile maps a source file to its install path. Src is relative to
// the manifest's directory unless absolute.
type ManifestFile struct {
	Src    string `yaml:"src"`
	Dest   string `yaml:"dest"`
	Mode   string `yaml:"mode"` // octal, e.g. "0755"
	User   string `yaml:"user"`
	Group  string `yaml:"group"`
	Config bool   `yaml:"config"`
	Doc    bool   `yaml:"doc"`
}

// LoadManifest reads a manifest file and returns a builder populated from
// it. defaultCompression applies when the manifest names none.
func LoadManifest(path string, defaultCompression compressor.Kind) (*Builder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return m.Builder(filepath.Dir(path), defaultCompression)
}

// Builder converts the manifest into a Builder, reading files relative to
// baseDir.
func (m *Manifest) Builder(baseDir string, defaultCompression compressor.Kind) (*Builder, error) {
	b := New(m.Name, m.Version, m.License, m.Arch, m.Summary)
	if m.Release != "" {
		b.Release = m.Release
	}
	b.Epoch = m.Epoch
	b.Description = m.Description
	b.URL = m.URL
	b.Vendor = m.Vendor
	b.Packager = m.Packager
	b.Group = m.Group
	b.PreInstall = m.Scripts.PreInstall
	b.PostInstall = m.Scripts.PostInstall
	b.PreUninstall = m.Scripts.PreUninstall
	b.PostUninstall = m.Scripts.PostUninstall

	b.Compression = defaultCompression
	if m.Compression != "" {
		k, err := compressor.FromString(m.Compression)
		if err != nil {
			return nil, err
		}
		b.Compression = k
	}

	for _, list := range []struct {
		in  []string
		out *[]Dependency
	}{
		{m.Requires, &b.Requires},
		{m.Provides, &b.Provides},
		{m.Conflicts, &b.Conflicts},
		{m.Obsoletes, &b.Obsoletes},
	} {
		for _, s := range list.in {
			d, err := ParseDependency(s)
			if err != nil {
				return nil, err
			}
			*list.out = append(*list.out, d)
		}
	}

	for _, c := range m.Changelog {
		t, err := parseDate(c.Date)
		if err != nil {
			return nil, fmt.Errorf("changelog entry by %s: %w", c.Author, err)
		}
		b.AddChangelogEntry(c.Author, c.Text, t)
	}

	for _, f := range m.Files {
		opts := FileOptions{Dest: f.Dest, User: f.User, Group: f.Group, Config: f.Config, Doc: f.Doc}
		if f.Mode != "" {
			var mode uint32
			if _, err := fmt.Sscanf(f.Mode, "%o", &mode); err != nil {
				return nil, fmt.Errorf("file %s: bad mode %q", f.Dest, f.Mode)
			}
			opts.Mode = mode
		}
		src := f.Src
		if !filepath.IsAbs(src) {
			src = filepath.Join(baseDir, src)
		}
		if err := b.AddFileFromPath(src, opts); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q", s)
	}
	return t, nil
}

// ParseDependency parses "name" or "name OP version" where OP is one of
// <, <=, =, >=, >.
func ParseDependency(s string) (Dependency, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		return Any(fields[0]), nil
	case 3:
		name, op, version := fields[0], fields[1], fields[2]
		switch op {
		case "<":
			return Less(name, version), nil
		case "<=":
			return LessEq(name, version), nil
		case "=", "==":
			return Eq(name, version), nil
		case ">=":
			return GreaterEq(name, version), nil
		case ">":
			return Greater(name, version), nil
		}
	}
	return Dependency{}, fmt.Errorf("bad dependency %q", s)
}
