package cli

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/inktex/pkg/buildinfo"
	"github.com/matzehuels/inktex/pkg/errors"
)

func TestSetVersion(t *testing.T) {
	v, c, d := buildinfo.Version, buildinfo.Commit, buildinfo.Date
	t.Cleanup(func() { SetVersion(v, c, d) })

	SetVersion("1.0.0", "abc123", "2024-01-01")

	if buildinfo.Version != "1.0.0" {
		t.Errorf("version = %q, want %q", buildinfo.Version, "1.0.0")
	}

	root := New(io.Discard, LogInfo).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "inktex 1.0.0\ncommit: abc123") {
		t.Errorf("--version output = %q", out.String())
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	var got []string
	for _, cmd := range root.Commands() {
		got = append(got, cmd.Name())
	}
	sort.Strings(got)

	want := []string{"cache", "completion", "list", "render", "serve", "settings", "source", "toolchain"}
	for _, name := range want {
		i := sort.SearchStrings(got, name)
		if i == len(got) || got[i] != name {
			t.Errorf("missing subcommand %q in %v", name, got)
		}
	}
}

func TestReportErrorPrintsToolOutput(t *testing.T) {
	var buf bytes.Buffer
	prev := statusOut
	statusOut = &buf
	t.Cleanup(func() { statusOut = prev })

	reportError(errors.Compiler([]byte("! Missing $ inserted.\n"), "latex exited with status 1"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) < 3 {
		t.Fatalf("output = %q", buf.String())
	}
	if !strings.Contains(lines[0], "latex exited with status 1") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[len(lines)-1], "! Missing $ inserted.") {
		t.Errorf("last line = %q", lines[len(lines)-1])
	}
}

func TestReportErrorWithoutOutput(t *testing.T) {
	var buf bytes.Buffer
	prev := statusOut
	statusOut = &buf
	t.Cleanup(func() { statusOut = prev })

	reportError(errors.Dependency("no usable LaTeX toolchain found"))

	if diff := cmp.Diff(1, strings.Count(buf.String(), "\n")); diff != "" {
		t.Errorf("line count mismatch (-want +got):\n%s", diff)
	}
}
