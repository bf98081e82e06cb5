package sandbox

// cursor is the working directory used to resolve relative paths. path is
// what the caller asked for, real its symlink-resolved location, which is what
// containment is checked against when roots change.
type cursor struct {
	path string
	real string
}

func (c *cursor) defined() bool {
	return c.path != ""
}

func (c *cursor) set(path, real string) {
	c.path = path
	c.real = real
}

func (c *cursor) clear() {
	c.path = ""
	c.real = ""
}

// reconcile moves the cursor back inside the registry after a root was
// removed: it stays if remaining roots still contain both its path and its
// real location, otherwise it moves to the first root, or becomes undefined
// when no roots remain.
func (c *cursor) reconcile(reg *registry) {
	if reg.len() == 0 {
		c.clear()
		return
	}
	if c.defined() && reg.containsPrefix(c.path) && reg.containsPrefix(c.real) {
		return
	}
	first := reg.first()
	c.set(first, first)
}
