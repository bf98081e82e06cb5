package sandbox

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/codefionn/pathguard/internal/logger"
)

// LandlockExecCommand is the hidden CLI subcommand that restricts itself with
// Landlock and then execs the real command. Landlock applies to the calling
// process, so the server cannot restrict itself without losing the ability
// to grow the allow-list later.
const LandlockExecCommand = "landlock-exec"

// ErrLandlockUnsupported is returned on platforms without Landlock.
var ErrLandlockUnsupported = errors.New("landlock is not supported on this platform")

// ConfineOptions configures a Confiner.
type ConfineOptions struct {
	Enabled bool
	// BestEffort accepts a weaker ruleset on older kernels instead of failing.
	BestEffort bool
	// ReadOnlyPaths are readable by confined commands in addition to the
	// system directories.
	ReadOnlyPaths []string
	// Executable is the pathguard binary used as the helper. Defaults to
	// os.Executable.
	Executable string
	Logger     *logger.Logger
}

// Confiner rewrites commands so that they run under Landlock, with read-write
// access to the allowed directories as they are when the command starts.
type Confiner struct {
	sb   *Sandbox
	opts ConfineOptions
	log  *logger.Logger
}

// NewConfiner creates a confiner for sb.
func NewConfiner(sb *Sandbox, opts ConfineOptions) *Confiner {
	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}
	return &Confiner{sb: sb, opts: opts, log: log.WithPrefix("landlock")}
}

// Active reports whether Wrap changes commands.
func (c *Confiner) Active() bool {
	return c != nil && c.opts.Enabled && LandlockSupported()
}

// Wrap rewrites cmd to start through the landlock-exec helper. It is a no-op
// when confinement is disabled or unsupported.
func (c *Confiner) Wrap(cmd *exec.Cmd) error {
	if !c.Active() {
		return nil
	}

	roots := c.sb.Roots()
	if len(roots) == 0 {
		return reject(KindSandboxEmpty, cmd.Path)
	}

	exe := c.opts.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return fmt.Errorf("failed to locate helper executable: %w", err)
		}
	}

	args := HelperArgs(LandlockExecRequest{
		ReadWrite:  roots,
		ReadOnly:   c.opts.ReadOnlyPaths,
		BestEffort: c.opts.BestEffort,
		Path:       cmd.Path,
		Argv:       cmd.Args,
	})

	c.log.Debug("Confining %s to %s", cmd.Path, strings.Join(roots, ", "))
	cmd.Path = exe
	cmd.Args = append([]string{exe}, args...)
	return nil
}

// LandlockExecRequest is what the helper needs to restrict itself and exec.
type LandlockExecRequest struct {
	ReadWrite  []string
	ReadOnly   []string
	BestEffort bool
	Path       string   // resolved executable
	Argv       []string // argv including argv[0]
}

// HelperArgs renders req as landlock-exec arguments (without the binary).
func HelperArgs(req LandlockExecRequest) []string {
	args := []string{LandlockExecCommand}
	if req.BestEffort {
		args = append(args, "--best-effort")
	}
	for _, p := range req.ReadWrite {
		args = append(args, "--rw", p)
	}
	for _, p := range req.ReadOnly {
		args = append(args, "--ro", p)
	}
	args = append(args, "--", req.Path)
	return append(args, req.Argv...)
}
