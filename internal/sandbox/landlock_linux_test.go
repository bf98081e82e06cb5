//go:build linux

package sandbox

import (
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLandlockRules(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "notes.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("skips missing paths", func(t *testing.T) {
		base := landlockRules(LandlockExecRequest{})
		rules := landlockRules(LandlockExecRequest{
			ReadWrite: []string{filepath.Join(tmpDir, "missing")},
			ReadOnly:  []string{"/definitely/not/here"},
		})
		if len(rules) != len(base) {
			t.Errorf("expected %d rules, got %d", len(base), len(rules))
		}
	})

	t.Run("adds directories and files once", func(t *testing.T) {
		base := landlockRules(LandlockExecRequest{})
		rules := landlockRules(LandlockExecRequest{
			ReadWrite: []string{tmpDir, tmpDir + "/", file},
			ReadOnly:  []string{tmpDir},
		})
		if len(rules) != len(base)+2 {
			t.Errorf("expected %d rules, got %d", len(base)+2, len(rules))
		}
	})

	t.Run("includes executable directory", func(t *testing.T) {
		bin := filepath.Join(tmpDir, "bin")
		if err := os.Mkdir(bin, 0755); err != nil {
			t.Fatal(err)
		}
		base := landlockRules(LandlockExecRequest{})
		rules := landlockRules(LandlockExecRequest{Path: filepath.Join(bin, "tool")})
		if len(rules) != len(base)+1 {
			t.Errorf("expected %d rules, got %d", len(base)+1, len(rules))
		}
	})
}

func TestRestrictAndExecRequiresCommand(t *testing.T) {
	if err := RestrictAndExec(LandlockExecRequest{ReadWrite: []string{t.TempDir()}}); err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestConfinerWrap(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sb, err := New(Options{AllowedDirectories: []string{root}, HomeDir: root})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("disabled leaves command alone", func(t *testing.T) {
		c := NewConfiner(sb, ConfineOptions{})
		cmd := exec.Command("/bin/sh", "-c", "true")
		if err := c.Wrap(cmd); err != nil {
			t.Fatal(err)
		}
		if cmd.Path != "/bin/sh" {
			t.Errorf("expected unchanged path, got %s", cmd.Path)
		}
		if c.Active() {
			t.Error("expected inactive confiner")
		}
	})

	t.Run("enabled rewrites to helper", func(t *testing.T) {
		c := NewConfiner(sb, ConfineOptions{
			Enabled:       true,
			BestEffort:    true,
			ReadOnlyPaths: []string{"/opt/data"},
			Executable:    "/usr/local/bin/pathguard",
		})
		cmd := exec.Command("/bin/sh", "-c", "echo hi")
		if err := c.Wrap(cmd); err != nil {
			t.Fatal(err)
		}

		want := []string{
			"/usr/local/bin/pathguard", LandlockExecCommand, "--best-effort",
			"--rw", root, "--ro", "/opt/data",
			"--", "/bin/sh", "/bin/sh", "-c", "echo hi",
		}
		if cmd.Path != "/usr/local/bin/pathguard" {
			t.Errorf("expected helper path, got %s", cmd.Path)
		}
		if !reflect.DeepEqual(cmd.Args, want) {
			t.Errorf("unexpected args:\n got %q\nwant %q", cmd.Args, want)
		}
	})

	t.Run("empty sandbox refuses", func(t *testing.T) {
		empty, err := New(Options{HomeDir: root})
		if err != nil {
			t.Fatal(err)
		}
		c := NewConfiner(empty, ConfineOptions{Enabled: true, Executable: "/x"})
		err = c.Wrap(exec.Command("/bin/sh"))
		if KindOf(err) != KindSandboxEmpty {
			t.Errorf("expected SandboxEmpty, got %v", err)
		}
	})
}
