//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	landlock "github.com/landlock-lsm/go-landlock/landlock"
	"golang.org/x/sys/unix"
)

// systemReadOnlyPaths are needed to run ordinary binaries at all.
var systemReadOnlyPaths = []string{
	"/usr",
	"/bin",
	"/sbin",
	"/lib",
	"/lib64",
	"/etc",
	"/proc",
	"/usr/local",
	"/run/current-system/sw", // NixOS
	"/nix/store",
}

// deviceFiles are writable by every confined command.
var deviceFiles = []string{
	"/dev/null",
	"/dev/zero",
	"/dev/random",
	"/dev/urandom",
	"/dev/tty",
}

// LandlockSupported reports whether this build can confine commands.
func LandlockSupported() bool {
	return true
}

// landlockRules builds the ruleset for req, skipping paths that do not exist.
// Landlock rejects directory rights on regular files, so files get file rules.
func landlockRules(req LandlockExecRequest) []landlock.Rule {
	seen := make(map[string]bool)
	rules := make([]landlock.Rule, 0, len(req.ReadWrite)+len(req.ReadOnly)+len(systemReadOnlyPaths)+len(deviceFiles))

	add := func(p string, writable bool) {
		p = filepath.Clean(p)
		if seen[p] {
			return
		}
		info, err := os.Stat(p)
		if err != nil {
			return
		}
		seen[p] = true

		switch {
		case info.IsDir() && writable:
			rules = append(rules, landlock.RWDirs(p))
		case info.IsDir():
			rules = append(rules, landlock.RODirs(p))
		case writable:
			rules = append(rules, landlock.RWFiles(p))
		default:
			rules = append(rules, landlock.ROFiles(p))
		}
	}

	for _, p := range req.ReadWrite {
		add(p, true)
	}
	for _, p := range deviceFiles {
		add(p, true)
	}
	for _, p := range req.ReadOnly {
		add(p, false)
	}
	for _, p := range systemReadOnlyPaths {
		add(p, false)
	}
	if req.Path != "" {
		add(filepath.Dir(req.Path), false)
	}
	return rules
}

// RestrictAndExec confines the current process to req's paths and replaces
// it with req.Path. It only returns on failure.
func RestrictAndExec(req LandlockExecRequest) error {
	if req.Path == "" || len(req.Argv) == 0 {
		return fmt.Errorf("landlock-exec: missing command")
	}

	rules := landlockRules(req)
	cfg := landlock.V6
	if req.BestEffort {
		cfg = cfg.BestEffort()
	}
	if err := cfg.RestrictPaths(rules...); err != nil {
		return fmt.Errorf("landlock restriction failed: %w", err)
	}

	if err := unix.Exec(req.Path, req.Argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", req.Path, err)
	}
	return nil
}
