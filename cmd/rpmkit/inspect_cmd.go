package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/open-edge-platform/rpmkit/internal/rpm"
	"github.com/open-edge-platform/rpmkit/internal/rpm/header"
	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
)

type inspectOptions struct {
	format string
}

type leadView struct {
	Name          string `json:"name" yaml:"name"`
	Major         uint8  `json:"major" yaml:"major"`
	Minor         uint8  `json:"minor" yaml:"minor"`
	Type          uint16 `json:"type" yaml:"type"`
	ArchNum       uint16 `json:"archnum" yaml:"archnum"`
	OSNum         uint16 `json:"osnum" yaml:"osnum"`
	SignatureType uint16 `json:"signatureType" yaml:"signatureType"`
}

type entryView struct {
	Tag   uint32 `json:"tag" yaml:"tag"`
	Name  string `json:"name" yaml:"name"`
	Type  string `json:"type" yaml:"type"`
	Count uint32 `json:"count" yaml:"count"`
	Value any    `json:"value" yaml:"value"`
}

type inspection struct {
	File        string      `json:"file" yaml:"file"`
	NEVRA       string      `json:"nevra,omitempty" yaml:"nevra,omitempty"`
	Lead        leadView    `json:"lead" yaml:"lead"`
	PayloadSize int         `json:"payloadSize" yaml:"payloadSize"`
	Signature   []entryView `json:"signature" yaml:"signature"`
	Header      []entryView `json:"header" yaml:"header"`
}

// createInspectCommand creates the inspect subcommand
func createInspectCommand() *cobra.Command {
	opts := &inspectOptions{}
	inspectCmd := &cobra.Command{
		Use:   "inspect [flags] PACKAGE_FILE",
		Short: "Show the lead and header entries of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeInspect(cmd, opts, args[0])
		},
	}
	inspectCmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text, json or yaml")
	return inspectCmd
}

func executeInspect(cmd *cobra.Command, opts *inspectOptions, path string) error {
	log := logger.Logger()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	pkg, err := rpm.ParsePackage(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	log.Debugf("parsed %s: %d signature entries, %d header entries",
		path, len(pkg.Metadata.Signature.Entries()), len(pkg.Metadata.Header.Entries()))

	view := inspectPackage(path, pkg)
	out := cmd.OutOrStdout()
	switch strings.ToLower(opts.format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "yaml":
		enc := yaml.NewEncoder(out)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		printInspection(out, view)
		return nil
	default:
		return fmt.Errorf("unsupported format %q (expected text, json or yaml)", opts.format)
	}
}

func inspectPackage(path string, pkg *rpm.Package) inspection {
	l := pkg.Metadata.Lead
	nevra, _ := pkg.Metadata.NEVRA()
	return inspection{
		File:  path,
		NEVRA: nevra,
		Lead: leadView{
			Name: l.Name, Major: l.Major, Minor: l.Minor, Type: l.Type,
			ArchNum: l.ArchNum, OSNum: l.OSNum, SignatureType: l.SignatureType,
		},
		PayloadSize: len(pkg.Payload),
		Signature:   entryViews(pkg.Metadata.Signature),
		Header:      entryViews(pkg.Metadata.Header),
	}
}

func entryViews(h *header.Header) []entryView {
	var out []entryView
	for _, e := range h.Entries() {
		out = append(out, entryView{
			Tag:   uint32(e.Tag),
			Name:  header.NameOf(h.Domain(), e.Tag),
			Type:  e.Type.String(),
			Count: e.Count,
			Value: entryValue(e),
		})
	}
	return out
}

// entryValue decodes e for display. Single-element values are unwrapped
// and binary data is shown as hex.
func entryValue(e header.Entry) any {
	var (
		vals any
		n    int
		err  error
	)
	switch e.Type {
	case header.TypeString, header.TypeStringArray, header.TypeI18NString:
		var v []string
		v, err = e.Strings()
		vals, n = v, len(v)
		if n == 1 {
			return v[0]
		}
	case header.TypeInt16:
		var v []int16
		v, err = e.Int16s()
		vals, n = v, len(v)
		if n == 1 {
			return v[0]
		}
	case header.TypeInt32:
		var v []int32
		v, err = e.Int32s()
		vals, n = v, len(v)
		if n == 1 {
			return v[0]
		}
	case header.TypeInt64:
		var v []int64
		v, err = e.Int64s()
		vals, n = v, len(v)
		if n == 1 {
			return v[0]
		}
	case header.TypeChar, header.TypeInt8:
		var v []int8
		v, err = e.Int8s()
		vals = v
	case header.TypeBin:
		var v []byte
		v, err = e.Binary()
		vals = hex.EncodeToString(v)
	default:
		return nil
	}
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return vals
}

func printInspection(w io.Writer, v inspection) {
	fmt.Fprintf(w, "File:      %s\n", v.File)
	if v.NEVRA != "" {
		fmt.Fprintf(w, "Package:   %s\n", v.NEVRA)
	}
	fmt.Fprintf(w, "Lead:      %s (v%d.%d, type %d, arch %d, os %d, sigtype %d)\n",
		v.Lead.Name, v.Lead.Major, v.Lead.Minor, v.Lead.Type, v.Lead.ArchNum, v.Lead.OSNum, v.Lead.SignatureType)
	fmt.Fprintf(w, "Payload:   %d bytes\n", v.PayloadSize)
	for _, section := range []struct {
		title   string
		entries []entryView
	}{
		{"Signature header", v.Signature},
		{"Main header", v.Header},
	} {
		fmt.Fprintf(w, "\n%s (%d entries):\n", section.title, len(section.entries))
		for _, e := range section.entries {
			fmt.Fprintf(w, "  %5d %-20s %-12s x%-4d %s\n", e.Tag, e.Name, e.Type, e.Count, shorten(fmt.Sprint(e.Value), 72))
		}
	}
}

func shorten(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
