package sandbox

// ValidatedPath proves that a path was inside an allowed directory when it
// was resolved. It does not lock anything: the entry may change right after
// validation. Only Sandbox creates one; the zero value is invalid.
type ValidatedPath struct {
	path   string
	real   string
	exists bool
}

// Path returns the absolute path to use for I/O, in the form the caller
// requested (home expanded, cleaned, symlinks not resolved).
func (v ValidatedPath) Path() string { return v.path }

// Real returns the location the decision was based on: the resolved target
// for existing paths, the resolved nearest ancestor otherwise.
func (v ValidatedPath) Real() string { return v.real }

// Exists reports whether the target existed at validation time.
func (v ValidatedPath) Exists() bool { return v.exists }

// IsZero reports whether v was not produced by a successful resolve.
func (v ValidatedPath) IsZero() bool { return v.path == "" }

func (v ValidatedPath) String() string { return v.path }

// validate decides whether c is contained in reg. Both the requested path
// and its resolved location must lie inside a root: the first is what I/O
// acts on, the second is where the data really is.
func validate(c candidate, reg *registry) (ValidatedPath, error) {
	if !reg.containsPrefix(c.lexical) {
		return ValidatedPath{}, &Rejection{
			Kind:     KindOutsideAllowedRoots,
			Path:     c.lexical,
			Resolved: c.real,
			Roots:    reg.snapshot(),
		}
	}
	if reg.containsPrefix(c.real) {
		return ValidatedPath{path: c.lexical, real: c.real, exists: !c.ancestorUsed}, nil
	}

	if !c.ancestorUsed || c.dangling {
		return ValidatedPath{}, &Rejection{Kind: KindSymlinkEscapesSandbox, Path: c.lexical, Resolved: c.real}
	}
	return ValidatedPath{}, &Rejection{Kind: KindParentDirectoryOutsideSandbox, Path: c.lexical, Resolved: c.real}
}
