package sdt

import (
	"fmt"

	"github.com/c360/cachestream/errors"
)

type containerKind uint8

const (
	kindMap containerKind = iota
	kindStream
)

// entry is one (optional name, field) pair. Stream entries carry no name.
type entry struct {
	name  string
	field Field
}

// NamedField is one map entry as seen by enumeration.
type NamedField struct {
	Name  string
	Field Field
}

// containerRoot carries capacity accounting shared by a root container and
// every sub-container opened under it.
type containerRoot struct {
	bounded  bool
	capacity int // serialized bytes, bounded containers only
	top      *container
}

// container is the state shared by Map and Stream.
type container struct {
	kind      containerKind
	entries   []entry
	closed    bool
	root      *containerRoot
	parent    *container
	openChild *container
}

// ContainerOption configures container creation.
type ContainerOption func(*containerRoot)

// WithBoundedCapacity bounds the container to a fixed serialized size in
// bytes. Adds that would exceed the bound fail with ErrInsufficientSpace.
// Without this option the container is elastic and grows as needed.
func WithBoundedCapacity(bytes int) ContainerOption {
	return func(r *containerRoot) {
		if bytes > 0 {
			r.bounded = true
			r.capacity = bytes
		}
	}
}

// NewMap creates a standalone map container.
func NewMap(options ...ContainerOption) *Map {
	m := &Map{container: container{kind: kindMap}}
	m.root = newRoot(&m.container, options)
	return m
}

// NewStream creates a standalone stream container.
func NewStream(options ...ContainerOption) *Stream {
	s := &Stream{container: container{kind: kindStream}}
	s.root = newRoot(&s.container, options)
	return s
}

func newRoot(top *container, options []ContainerOption) *containerRoot {
	root := &containerRoot{top: top}
	for _, opt := range options {
		if opt != nil {
			opt(root)
		}
	}
	return root
}

// checkOpen fails when the container has been closed, directly or through a
// parent or owning message.
func (c *container) checkOpen(op string) error {
	if c.closed {
		return errors.WrapInvalid(errors.ErrClosed, "Container", op, "container is closed")
	}
	return nil
}

// addField appends one entry, enforcing the bounded capacity if any. The
// container is left unmodified on failure.
func (c *container) addField(op, name string, f Field) error {
	if err := c.checkOpen(op); err != nil {
		return err
	}

	delta := EncodedSize(f)
	if c.kind == kindMap {
		delta += stringEncodedSize(name)
	}
	if err := c.checkCapacity(op, delta); err != nil {
		return err
	}

	c.entries = append(c.entries, entry{name: name, field: f})
	return nil
}

func (c *container) checkCapacity(op string, delta int) error {
	root := c.root
	if root == nil || !root.bounded {
		return nil
	}
	current := 1 + containerLengthWidth + contentSize(root.top)
	if current+delta > root.capacity {
		return errors.WrapInvalid(errors.ErrInsufficientSpace, "Container", op,
			fmt.Sprintf("adding %d bytes exceeds capacity %d", delta, root.capacity))
	}
	return nil
}

// closeTree closes a container and every descendant, including any open
// write child and nested container entries.
func (c *container) closeTree() {
	if c.closed {
		return
	}
	c.closed = true
	if c.openChild != nil {
		c.openChild.closeTree()
		c.openChild = nil
	}
	for i := range c.entries {
		switch c.entries[i].field.Type {
		case TypeMap:
			if m := c.entries[i].field.m; m != nil {
				m.container.closeTree()
			}
		case TypeStream:
			if s := c.entries[i].field.st; s != nil {
				s.container.closeTree()
			}
		}
	}
}

// size returns the full serialized size of the container including framing.
func (c *container) size() int {
	return 1 + containerLengthWidth + contentSize(c)
}

// openSub creates a sub-container of the given kind, appends it as an entry
// and marks it as the open write child. The returned field wraps the new
// container.
func (c *container) openSub(op, name string, kind containerKind) (Field, error) {
	if err := c.checkOpen(op); err != nil {
		return Field{}, err
	}

	var child *container
	var f Field
	if kind == kindMap {
		m := &Map{container: container{kind: kindMap, root: c.root, parent: c}}
		child = &m.container
		f = MapField(m)
	} else {
		s := &Stream{container: container{kind: kindStream, root: c.root, parent: c}}
		child = &s.container
		f = StreamField(s)
	}

	if err := c.addField(op, name, f); err != nil {
		return Field{}, err
	}
	c.openChild = child
	return f, nil
}

// finishSub finalizes a sub-container opened for writing. Further operations
// on the closed handle fail; the parent retains the written content and
// serves reads through fresh views.
func (c *container) finishSub() error {
	if err := c.checkOpen("Close"); err != nil {
		return err
	}
	c.closeTree()
	if c.parent != nil && c.parent.openChild == c {
		c.parent.openChild = nil
	}
	return nil
}

// view produces a fresh, open, elastic copy of a container subtree. It is
// used to serve reads of data whose original write handles were closed.
func (c *container) viewEntries() []entry {
	out := make([]entry, len(c.entries))
	for i := range c.entries {
		out[i] = entry{name: c.entries[i].name, field: viewField(c.entries[i].field)}
	}
	return out
}

func viewField(f Field) Field {
	switch f.Type {
	case TypeMap:
		if f.m == nil {
			return f
		}
		return MapField(mapView(&f.m.container))
	case TypeStream:
		if f.st == nil {
			return f
		}
		return StreamField(streamView(&f.st.container))
	default:
		return f
	}
}

func mapView(src *container) *Map {
	m := NewMap()
	m.entries = src.viewEntries()
	return m
}

func streamView(src *container) *Stream {
	s := NewStream()
	s.entries = src.viewEntries()
	return s
}
