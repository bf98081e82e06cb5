// Package sandbox confines tool servers to a set of allowed directories.
//
// A Sandbox owns the ordered list of allowed directories (roots) and the
// working directory used for relative paths. Every filesystem or terminal
// tool passes caller-supplied paths through Sandbox.Resolve before touching
// the filesystem:
//
//	vp, err := sb.Resolve(rawPath)
//	if err != nil {
//		return err // *Rejection, see KindOf
//	}
//	data, err := os.ReadFile(vp.Path())
//
// Resolution expands "~", joins relative paths to the working directory,
// cleans "." and ".." segments and resolves symlinks. Paths that do not exist
// yet are judged by their nearest existing ancestor. Containment compares
// whole path segments, so /srv/app-evil is never inside /srv/app.
//
// Validation holds no lock on the filesystem: the entry may be swapped after
// Resolve returns. Results are never cached so that window stays as small
// as the caller's own I/O.
//
// On Linux, commands started by the terminal tool can additionally be
// confined with Landlock to the current roots (see Confiner).
package sandbox
