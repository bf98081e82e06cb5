package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/codefionn/pathguard/internal/logger"
)

// Decision is one sandbox outcome, handed to the Auditor.
type Decision struct {
	Operation string // resolve, resolve_entry, change_cwd, add_allowed_directory, remove_allowed_directory
	Requested string // raw input
	Path      string // absolute path when known
	Allowed   bool
	Kind      Kind
	Detail    string
}

// Auditor records sandbox decisions. Implementations must be safe for
// concurrent use and must not call back into the Sandbox.
type Auditor interface {
	Record(d Decision)
}

// Options configures a Sandbox.
type Options struct {
	// AllowedDirectories are added in order; each must be an existing directory.
	AllowedDirectories []string
	// HomeDir is the target of "~" expansion. Defaults to os.UserHomeDir.
	HomeDir string
	Logger  *logger.Logger
	Auditor Auditor
}

// Sandbox is the single entry point for path checks. The registry and the
// working directory are guarded by one RWMutex so a Resolve sees one
// consistent snapshot of both.
type Sandbox struct {
	mu     sync.RWMutex
	roots  registry
	cwd    cursor
	canon  canonicalizer
	log    *logger.Logger
	audit  Auditor
	notify chan struct{}
}

// New creates a sandbox from opts. It fails if any initial directory is
// missing or not a directory. An empty list yields a sandbox that rejects
// everything until a directory is added.
func New(opts Options) (*Sandbox, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}
	log = log.WithPrefix("sandbox")

	home := opts.HomeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			log.Warn("Home directory unknown, \"~\" will not be expanded: %v", err)
		}
	}
	if home != "" {
		// Roots are stored resolved, so "~/..." must expand to the same form.
		if real, err := filepath.EvalSymlinks(home); err == nil {
			home = real
		} else {
			home = filepath.Clean(home)
		}
	}

	s := &Sandbox{
		canon:  canonicalizer{home: home},
		log:    log,
		audit:  opts.Auditor,
		notify: make(chan struct{}, 1),
	}

	for _, dir := range opts.AllowedDirectories {
		if _, err := s.AddAllowedDirectory(dir); err != nil {
			return nil, fmt.Errorf("invalid allowed directory %q: %w", dir, err)
		}
	}

	return s, nil
}

// Resolve validates raw against the allowed directories and returns the
// path to use for I/O.
func (s *Sandbox) Resolve(raw string) (ValidatedPath, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked("resolve", raw)
}

// ResolveDirectory is Resolve for paths that must be existing directories,
// such as the working directory of a command.
func (s *Sandbox) ResolveDirectory(raw string) (ValidatedPath, error) {
	vp, err := s.Resolve(raw)
	if err != nil {
		return ValidatedPath{}, err
	}
	if err := requireDir(vp); err != nil {
		return ValidatedPath{}, err
	}
	return vp, nil
}

// ResolveEntry is Resolve for operations on the directory entry itself, such
// as rename or remove. Those change the containing directory, so it must be
// inside a root as well, not only the location a symlink entry points to.
func (s *Sandbox) ResolveEntry(raw string) (ValidatedPath, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vp, path, err := s.checkLocked(raw)
	if err == nil {
		err = s.checkParentLocked(vp)
	}
	s.record("resolve_entry", raw, path, err)
	if err != nil {
		return ValidatedPath{}, err
	}
	return vp, nil
}

func (s *Sandbox) checkParentLocked(vp ValidatedPath) error {
	parent := filepath.Dir(vp.Path())
	c, err := s.canon.canonicalize(parent, s.cwd.path)
	if err != nil {
		return err
	}
	if parent == vp.Path() || !s.roots.containsPrefix(c.lexical) || !s.roots.containsPrefix(c.real) {
		return &Rejection{Kind: KindParentDirectoryOutsideSandbox, Path: vp.Path(), Resolved: c.real}
	}
	return nil
}

func (s *Sandbox) resolveLocked(op, raw string) (ValidatedPath, error) {
	vp, path, err := s.checkLocked(raw)
	s.record(op, raw, path, err)
	return vp, err
}

// checkLocked is resolveLocked without the audit record. path is the absolute
// form of raw when it got that far.
func (s *Sandbox) checkLocked(raw string) (vp ValidatedPath, path string, err error) {
	if s.roots.len() == 0 {
		return ValidatedPath{}, "", reject(KindSandboxEmpty, raw)
	}

	c, err := s.canon.canonicalize(raw, s.cwd.path)
	if err != nil {
		return ValidatedPath{}, "", err
	}

	vp, err = validate(c, &s.roots)
	return vp, c.lexical, err
}

// AddAllowedDirectory adds path as a root. It is idempotent for paths that
// resolve to an existing root. Adding to an empty sandbox also points the
// working directory at the new root.
func (s *Sandbox) AddAllowedDirectory(path string) (Root, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.canonicalDir(path)
	if err != nil {
		s.record("add_allowed_directory", path, "", err)
		return Root{}, err
	}

	if s.roots.add(root) {
		s.log.Info("Added allowed directory %s", root)
		s.changed()
	} else {
		s.log.Debug("Allowed directory %s already present", root)
	}
	if !s.cwd.defined() {
		s.cwd.set(root, root)
	}

	s.record("add_allowed_directory", path, root, nil)
	return Root{Path: root}, nil
}

// RemoveAllowedDirectory removes the root path resolves to. A root whose
// directory has disappeared is matched by its absolute form instead. If the
// working directory is no longer inside any root it moves to the first
// remaining one.
func (s *Sandbox) RemoveAllowedDirectory(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base, err := s.baseLocked()
	if err != nil {
		return err
	}
	lexical, err := s.canon.absolute(path, base)
	if err != nil {
		s.record("remove_allowed_directory", path, "", err)
		return err
	}

	key := lexical
	real, err := filepath.EvalSymlinks(lexical)
	switch {
	case err == nil:
		key = real
	case !isNotExist(err):
		rerr := &Rejection{Kind: KindResolutionFailed, Path: lexical, Err: err}
		s.record("remove_allowed_directory", path, lexical, rerr)
		return rerr
	}

	removed := s.roots.remove(key)
	if !removed && key != lexical {
		// The path now resolves elsewhere, but the root may have been
		// registered under its old location.
		if removed = s.roots.remove(lexical); removed {
			key = lexical
		}
	}
	if !removed {
		rerr := reject(KindNotInRegistry, key)
		s.record("remove_allowed_directory", path, key, rerr)
		return rerr
	}

	prev := s.cwd.path
	s.cwd.reconcile(&s.roots)
	s.log.Info("Removed allowed directory %s", key)
	if s.cwd.path != prev {
		if s.cwd.defined() {
			s.log.Info("Working directory reset from %s to %s", prev, s.cwd.path)
		} else {
			s.log.Warn("Last allowed directory removed, all access is denied")
		}
	}
	s.changed()
	s.record("remove_allowed_directory", path, key, nil)
	return nil
}

// ListAllowedDirectories returns the roots in insertion order.
func (s *Sandbox) ListAllowedDirectories() []Root {
	paths := s.Roots()

	roots := make([]Root, len(paths))
	for i, p := range paths {
		roots[i] = Root{Path: p}
		if _, err := os.Stat(p); err != nil {
			roots[i].Missing = true
		}
	}
	return roots
}

// Roots returns a snapshot of the root paths.
func (s *Sandbox) Roots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roots.snapshot()
}

// Cwd returns the working directory.
func (s *Sandbox) Cwd() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.cwd.defined() {
		return "", reject(KindSandboxEmpty, "")
	}
	return s.cwd.path, nil
}

// ChangeCwd moves the working directory. path is resolved relative to the
// current working directory and validated like any other path; it must be
// an existing directory.
func (s *Sandbox) ChangeCwd(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vp, abs, err := s.checkLocked(path)
	if err == nil {
		err = requireDir(vp)
	}
	s.record("change_cwd", path, abs, err)
	if err != nil {
		return "", err
	}

	s.cwd.set(vp.Path(), vp.Real())
	s.log.Info("Working directory changed to %s", vp.Path())
	return vp.Path(), nil
}

// Changes delivers a signal after the set of roots changed. Signals coalesce.
func (s *Sandbox) Changes() <-chan struct{} {
	return s.notify
}

func (s *Sandbox) changed() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// baseLocked is the directory relative registry paths are resolved against:
// the working directory, or the process directory while the sandbox is empty.
func (s *Sandbox) baseLocked() (string, error) {
	if s.cwd.defined() {
		return s.cwd.path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get process working directory: %w", err)
	}
	return wd, nil
}

// canonicalDir resolves path to the real location of an existing directory.
func (s *Sandbox) canonicalDir(path string) (string, error) {
	base, err := s.baseLocked()
	if err != nil {
		return "", err
	}
	lexical, err := s.canon.absolute(path, base)
	if err != nil {
		return "", err
	}

	real, err := filepath.EvalSymlinks(lexical)
	if err != nil {
		if isNotExist(err) {
			return "", reject(KindDoesNotExist, lexical)
		}
		return "", &Rejection{Kind: KindResolutionFailed, Path: lexical, Err: err}
	}

	info, err := os.Stat(real)
	if err != nil {
		return "", &Rejection{Kind: KindResolutionFailed, Path: lexical, Err: err}
	}
	if !info.IsDir() {
		return "", reject(KindNotADirectory, lexical)
	}
	return real, nil
}

func requireDir(vp ValidatedPath) error {
	if !vp.Exists() {
		return reject(KindDoesNotExist, vp.Path())
	}
	info, err := os.Stat(vp.Real())
	if err != nil {
		if isNotExist(err) {
			return reject(KindDoesNotExist, vp.Path())
		}
		return &Rejection{Kind: KindResolutionFailed, Path: vp.Path(), Err: err}
	}
	if !info.IsDir() {
		return reject(KindNotADirectory, vp.Path())
	}
	return nil
}

func (s *Sandbox) record(op, raw, path string, err error) {
	d := Decision{Operation: op, Requested: raw, Path: path, Allowed: err == nil}
	if err != nil {
		d.Kind = KindOf(err)
		d.Detail = err.Error()
		s.log.Warn("%s %q rejected: %v", op, raw, err)
	} else {
		s.log.Debug("%s %q allowed as %s", op, raw, path)
	}

	if s.audit != nil {
		s.audit.Record(d)
	}
}

// IsRejection reports whether err came from the sandbox.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}
