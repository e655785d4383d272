package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const testManifest = `name: hello
version: "1.0"
release: "1"
license: MIT
arch: noarch
summary: Greeting files
description: Installs a greeting.
requires:
  - bash >= 4.0
changelog:
  - author: Test User <test@example.com>
    date: "2024-05-01"
    text: Initial package
files:
  - src: hello.txt
    dest: /usr/share/hello/hello.txt
    mode: "0644"
`

var (
	testKeysOnce sync.Once
	testKeysDir  string
	testKeysErr  error
)

// testKeys generates one key pair for all command tests.
func testKeys(t *testing.T) (private, public string) {
	t.Helper()
	testKeysOnce.Do(func() {
		testKeysDir, testKeysErr = os.MkdirTemp("", "rpmkit-keys-")
		if testKeysErr != nil {
			return
		}
		_, testKeysErr = runRoot(nil, nil, "keygen", "--log-level", "error",
			"--name", "Test Signer", "--email", "signer@example.com", "--bits", "2048",
			"--out-private", filepath.Join(testKeysDir, "key.asc"),
			"--out-public", filepath.Join(testKeysDir, "key.pub.asc"))
	})
	if testKeysErr != nil {
		t.Fatalf("generating test keys: %v", testKeysErr)
	}
	return filepath.Join(testKeysDir, "key.asc"), filepath.Join(testKeysDir, "key.pub.asc")
}

func TestMain(m *testing.M) {
	code := m.Run()
	if testKeysDir != "" {
		os.RemoveAll(testKeysDir)
	}
	os.Exit(code)
}

// runRoot executes the root command with args and returns what it printed
// on standard output.
func runRoot(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	if t != nil {
		t.Helper()
	}
	root := createRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(io.Discard)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// buildTestPackage builds the test manifest into dir and returns the path
// of the package.
func buildTestPackage(t *testing.T, dir string, extra ...string) string {
	t.Helper()
	writeTestFile(t, dir, "hello.txt", "hello, world\n")
	manifest := writeTestFile(t, dir, "hello.yaml", testManifest)
	output := filepath.Join(dir, "hello.rpm")

	args := append([]string{"build", "--log-level", "error", "-o", output}, extra...)
	out, err := runRoot(t, nil, append(args, manifest)...)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if strings.TrimSpace(out) != output {
		t.Fatalf("build printed %q, want %q", out, output)
	}
	return output
}

func corruptLastByte(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildSignedAndVerify(t *testing.T) {
	private, public := testKeys(t)
	dir := t.TempDir()
	pkg := buildTestPackage(t, dir, "--sign", "--key", private)

	out, err := runRoot(t, nil, "verify", "--log-level", "error", "--key", public, pkg)
	if err != nil {
		t.Fatalf("verify failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, pkg+": OK (hello-1.0-1.noarch)") {
		t.Errorf("unexpected verify output:\n%s", out)
	}
}

func TestVerifyWritesReport(t *testing.T) {
	_, public := testKeys(t)
	dir := t.TempDir()
	pkg := buildTestPackage(t, dir)
	reportDir := filepath.Join(dir, "reports")

	if _, err := runRoot(t, nil, "verify", "--log-level", "error", "--key", public, "--report", reportDir, pkg); err == nil {
		t.Fatal("expected unsigned package to fail signature verification")
	}
	report, err := os.ReadFile(filepath.Join(reportDir, "report-verify.txt"))
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if !strings.Contains(string(report), pkg+": FAILED") {
		t.Errorf("report does not list the failure:\n%s", report)
	}
}

func TestVerifyDigestsOnly(t *testing.T) {
	dir := t.TempDir()
	pkg := buildTestPackage(t, dir)

	if _, err := runRoot(t, nil, "verify", "--log-level", "error", "--no-signature", pkg); err != nil {
		t.Fatalf("digest-only verify of an unsigned package failed: %v", err)
	}

	corruptLastByte(t, pkg)
	if _, err := runRoot(t, nil, "verify", "--log-level", "error", "--no-signature", pkg); err == nil {
		t.Fatal("expected corrupted payload to fail verification")
	}
}

func TestSignInPlace(t *testing.T) {
	private, public := testKeys(t)
	dir := t.TempDir()
	pkg := buildTestPackage(t, dir)

	out, err := runRoot(t, nil, "sign", "--log-level", "error", "--key", private, pkg)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if !strings.Contains(out, pkg+": signed") {
		t.Errorf("unexpected sign output:\n%s", out)
	}
	if _, err := runRoot(t, nil, "verify", "--log-level", "error", "--key", public, pkg); err != nil {
		t.Fatalf("verify after sign failed: %v", err)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.part"))
	if len(leftovers) != 0 {
		t.Errorf("staging files left behind: %v", leftovers)
	}
}

func TestSignRequiresKey(t *testing.T) {
	dir := t.TempDir()
	pkg := buildTestPackage(t, dir)
	if _, err := runRoot(t, nil, "sign", "--log-level", "error", pkg); err == nil {
		t.Fatal("expected an error without a signing key")
	}
}

func TestInspectJSON(t *testing.T) {
	private, _ := testKeys(t)
	dir := t.TempDir()
	pkg := buildTestPackage(t, dir, "--sign", "--key", private)

	out, err := runRoot(t, nil, "inspect", "--log-level", "error", "--format", "json", pkg)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	var view inspection
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decoding inspect output: %v\n%s", err, out)
	}
	if view.NEVRA != "hello-1.0-1.noarch" {
		t.Errorf("NEVRA = %q", view.NEVRA)
	}
	if view.Lead.Name != "hello-1.0-1" {
		t.Errorf("lead name = %q", view.Lead.Name)
	}

	sigTags := map[uint32]bool{}
	for _, e := range view.Signature {
		sigTags[e.Tag] = true
	}
	for _, tag := range []uint32{268, 269, 1000, 1002, 1004} {
		if !sigTags[tag] {
			t.Errorf("signature tag %d missing from inspect output", tag)
		}
	}

	var name any
	for _, e := range view.Header {
		if e.Tag == 1000 {
			name = e.Value
		}
	}
	if name != "hello" {
		t.Errorf("name entry = %v, want hello", name)
	}
}

func TestInspectFormats(t *testing.T) {
	dir := t.TempDir()
	pkg := buildTestPackage(t, dir)

	text, err := runRoot(t, nil, "inspect", "--log-level", "error", pkg)
	if err != nil {
		t.Fatalf("inspect text failed: %v", err)
	}
	for _, want := range []string{"Package:   hello-1.0-1.noarch", "Main header", "NAME"} {
		if !strings.Contains(text, want) {
			t.Errorf("text output lacks %q:\n%s", want, text)
		}
	}

	yamlOut, err := runRoot(t, nil, "inspect", "--log-level", "error", "--format", "yaml", pkg)
	if err != nil {
		t.Fatalf("inspect yaml failed: %v", err)
	}
	if !strings.Contains(yamlOut, "nevra: hello-1.0-1.noarch") {
		t.Errorf("yaml output lacks nevra:\n%s", yamlOut)
	}

	if _, err := runRoot(t, nil, "inspect", "--log-level", "error", "--format", "xml", pkg); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestProcessToSeveralDestinations(t *testing.T) {
	private, public := testKeys(t)
	dir := t.TempDir()
	pkg := buildTestPackage(t, dir, "--sign", "--key", private)
	want, err := os.ReadFile(pkg)
	if err != nil {
		t.Fatal(err)
	}

	dests := []string{filepath.Join(dir, "a.rpm"), filepath.Join(dir, "b.rpm")}
	args := append([]string{"process", "--log-level", "error", "--key", public, pkg}, dests...)
	if _, err := runRoot(t, nil, args...); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	for _, d := range dests {
		got, err := os.ReadFile(d)
		if err != nil {
			t.Fatalf("reading %s: %v", d, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s differs from the input", d)
		}
	}
}

func TestProcessFromStdin(t *testing.T) {
	dir := t.TempDir()
	pkg := buildTestPackage(t, dir)
	want, err := os.ReadFile(pkg)
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "copy.rpm")
	out, err := runRoot(t, bytes.NewReader(want), "process", "--log-level", "error", "-", dest)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !strings.HasPrefix(out, "hello-1.0-1.noarch: ") {
		t.Errorf("unexpected output %q", out)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("copy differs from the input")
	}
}

func TestProcessRejectsCorruptPackage(t *testing.T) {
	dir := t.TempDir()
	pkg := buildTestPackage(t, dir)
	corruptLastByte(t, pkg)

	dest := filepath.Join(dir, "out.rpm")
	if _, err := runRoot(t, nil, "process", "--log-level", "error", pkg, dest); err == nil {
		t.Fatal("expected digest mismatch")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("destination exists after failure: %v", err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.part"))
	if len(leftovers) != 0 {
		t.Errorf("staging files left behind: %v", leftovers)
	}
}

func TestProcessRejectsUnsignedWithKey(t *testing.T) {
	_, public := testKeys(t)
	dir := t.TempDir()
	pkg := buildTestPackage(t, dir)

	dest := filepath.Join(dir, "out.rpm")
	if _, err := runRoot(t, nil, "process", "--log-level", "error", "--key", public, pkg, dest); err == nil {
		t.Fatal("expected missing signature error")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("destination exists after failure: %v", err)
	}
}

func TestProcessFailsWhenKeyCannotBeLoaded(t *testing.T) {
	private, _ := testKeys(t)
	dir := t.TempDir()
	pkg := buildTestPackage(t, dir, "--sign", "--key", private)

	dest := filepath.Join(dir, "out.rpm")
	missing := filepath.Join(dir, "no-such-key.asc")
	if _, err := runRoot(t, nil, "process", "--log-level", "error", "--key", missing, pkg, dest); err == nil {
		t.Fatal("expected an error for an unreadable key file")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("destination exists after failure: %v", err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.part"))
	if len(leftovers) != 0 {
		t.Errorf("staging files left behind: %v", leftovers)
	}
}

func TestKeygenValidation(t *testing.T) {
	dir := t.TempDir()
	if _, err := runRoot(t, nil, "keygen", "--log-level", "error", "--name", "x", "--bits", "1024",
		"--out-private", filepath.Join(dir, "k"), "--out-public", filepath.Join(dir, "k.pub")); err == nil {
		t.Fatal("expected small key size to be rejected")
	}
	if _, err := runRoot(t, nil, "keygen", "--log-level", "error"); err == nil {
		t.Fatal("expected --name to be required")
	}
}
