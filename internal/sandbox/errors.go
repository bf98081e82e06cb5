package sandbox

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why the sandbox refused a path or a registry change.
type Kind int

const (
	KindNone Kind = iota
	// KindNotADirectory: an allowed directory or working directory target is not a directory.
	KindNotADirectory
	// KindDoesNotExist: an allowed directory or working directory target does not exist.
	KindDoesNotExist
	// KindParentDirectoryMissing: no existing directory could be found above a
	// path that does not exist yet.
	KindParentDirectoryMissing
	// KindOutsideAllowedRoots: the path is not inside any allowed directory.
	KindOutsideAllowedRoots
	// KindSymlinkEscapesSandbox: the path looks inside an allowed directory
	// but a symlink sends it elsewhere.
	KindSymlinkEscapesSandbox
	// KindParentDirectoryOutsideSandbox: the path does not exist yet and its
	// nearest existing ancestor resolves outside every allowed directory, or
	// an entry to be renamed lives in a directory outside them.
	KindParentDirectoryOutsideSandbox
	// KindNotInRegistry: removal of a directory that is not allowed.
	KindNotInRegistry
	// KindSandboxEmpty: no allowed directories remain.
	KindSandboxEmpty
	// KindResolutionFailed: the filesystem refused to resolve the path for a
	// reason other than non-existence (permissions, symlink loops).
	KindResolutionFailed
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindNotADirectory:
		return "NotADirectory"
	case KindDoesNotExist:
		return "DoesNotExist"
	case KindParentDirectoryMissing:
		return "ParentDirectoryMissing"
	case KindOutsideAllowedRoots:
		return "OutsideAllowedRoots"
	case KindSymlinkEscapesSandbox:
		return "SymlinkEscapesSandbox"
	case KindParentDirectoryOutsideSandbox:
		return "ParentDirectoryOutsideSandbox"
	case KindNotInRegistry:
		return "NotInRegistry"
	case KindSandboxEmpty:
		return "SandboxEmpty"
	case KindResolutionFailed:
		return "ResolutionFailed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Rejection is the error returned for every refused path. Path is the
// offending path as far as it could be made absolute, Resolved the real
// location that caused the decision (symlink target or ancestor), and Roots
// the allow-list at decision time for OutsideAllowedRoots.
type Rejection struct {
	Kind     Kind
	Path     string
	Resolved string
	Roots    []string
	Err      error
}

// Sentinels for errors.Is. They match any Rejection of the same Kind.
var (
	ErrNotADirectory                 = &Rejection{Kind: KindNotADirectory}
	ErrDoesNotExist                  = &Rejection{Kind: KindDoesNotExist}
	ErrParentDirectoryMissing        = &Rejection{Kind: KindParentDirectoryMissing}
	ErrOutsideAllowedRoots           = &Rejection{Kind: KindOutsideAllowedRoots}
	ErrSymlinkEscapesSandbox         = &Rejection{Kind: KindSymlinkEscapesSandbox}
	ErrParentDirectoryOutsideSandbox = &Rejection{Kind: KindParentDirectoryOutsideSandbox}
	ErrNotInRegistry                 = &Rejection{Kind: KindNotInRegistry}
	ErrSandboxEmpty                  = &Rejection{Kind: KindSandboxEmpty}
	ErrResolutionFailed              = &Rejection{Kind: KindResolutionFailed}
)

func (r *Rejection) Error() string {
	switch r.Kind {
	case KindNotADirectory:
		return fmt.Sprintf("not a directory: %s", r.Path)
	case KindDoesNotExist:
		return fmt.Sprintf("path does not exist: %s", r.Path)
	case KindParentDirectoryMissing:
		return fmt.Sprintf("parent directory does not exist: %s", r.Path)
	case KindOutsideAllowedRoots:
		return fmt.Sprintf("access denied - path outside allowed directories: %s not in [%s]",
			r.Path, strings.Join(r.Roots, ", "))
	case KindSymlinkEscapesSandbox:
		return fmt.Sprintf("access denied - symlink target outside allowed directories: %s -> %s",
			r.Path, r.Resolved)
	case KindParentDirectoryOutsideSandbox:
		return fmt.Sprintf("access denied - parent directory outside allowed directories: %s (parent resolves to %s)",
			r.Path, r.Resolved)
	case KindNotInRegistry:
		return fmt.Sprintf("not an allowed directory: %s", r.Path)
	case KindSandboxEmpty:
		return "access denied - no allowed directories remain"
	case KindResolutionFailed:
		if r.Err != nil {
			return fmt.Sprintf("cannot resolve path %s: %v", r.Path, r.Err)
		}
		return fmt.Sprintf("cannot resolve path %s", r.Path)
	default:
		return fmt.Sprintf("sandbox rejection %s: %s", r.Kind, r.Path)
	}
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// Is reports whether target is the sentinel for r's kind.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	if !ok {
		return false
	}
	return t.Kind == r.Kind && t.Path == "" && t.Err == nil
}

// KindOf returns the rejection kind carried by err, or KindNone.
func KindOf(err error) Kind {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Kind
	}
	return KindNone
}

func reject(kind Kind, path string) *Rejection {
	return &Rejection{Kind: kind, Path: path}
}
