package storage

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Container is a named, localized settings store. A container owns exactly
// one Settings map and may create child containers when its backend
// supports nesting.
type Container struct {
	name    string
	backend Backend
	values  *Settings
	opts    *options

	mu       sync.Mutex
	children map[string]*Container
}

func newContainer(name string, b Backend, o *options) *Container {
	return &Container{
		name:     name,
		backend:  b,
		values:   newSettings(b, o),
		opts:     o,
		children: make(map[string]*Container),
	}
}

// Name returns the container name. Root containers have an empty name.
func (c *Container) Name() string {
	return c.name
}

// Locality returns where the container's data lives.
func (c *Container) Locality() Locality {
	return c.backend.Locality()
}

// Values returns the container's settings.
func (c *Container) Values() *Settings {
	return c.values
}

// Backend returns the backend the container delegates to.
func (c *Container) Backend() Backend {
	return c.backend
}

// CreateContainer opens or creates the child container name.
//
// With DispositionExisting it fails with ErrContainerNotFound when the child
// does not exist. Backends without nesting fail with
// ErrOperationNotSupported; backends that only look up existing containers
// reject DispositionAlways with ErrInvalidArgument.
func (c *Container) CreateContainer(name string, disposition Disposition) (*Container, error) {
	if name == "" {
		return nil, &OpError{Op: "createContainer", Backend: c.backend.Name(),
			Err: fmt.Errorf("%w: empty container name", ErrInvalidArgument)}
	}
	if disposition != DispositionAlways && disposition != DispositionExisting {
		return nil, &OpError{Op: "createContainer", Backend: c.backend.Name(), Key: name,
			Err: fmt.Errorf("%w: disposition %d", ErrInvalidArgument, disposition)}
	}
	name = norm.NFC.String(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if child, ok := c.children[name]; ok {
		return child, nil
	}

	nester, ok := c.backend.(Nester)
	if !ok {
		return nil, &OpError{Op: "createContainer", Backend: c.backend.Name(), Key: name,
			Err: ErrOperationNotSupported}
	}

	b, err := nester.CreateContainer(name, disposition)
	if err != nil {
		return nil, wrapOp("createContainer", c.backend.Name(), name, err)
	}

	child := newContainer(name, b, c.opts)
	c.children[name] = child
	return child, nil
}

// DeleteContainer deletes the child container name and everything below
// it, reporting whether it existed. A child opened through c is closed
// first. Backends without deletion fail with ErrOperationNotSupported.
func (c *Container) DeleteContainer(name string) (bool, error) {
	if name == "" {
		return false, &OpError{Op: "deleteContainer", Backend: c.backend.Name(),
			Err: fmt.Errorf("%w: empty container name", ErrInvalidArgument)}
	}
	name = norm.NFC.String(name)

	deleter, ok := c.backend.(Deleter)
	if !ok {
		return false, &OpError{Op: "deleteContainer", Backend: c.backend.Name(), Key: name,
			Err: ErrOperationNotSupported}
	}

	c.mu.Lock()
	child, open := c.children[name]
	delete(c.children, name)
	c.mu.Unlock()

	var closeErr error
	if open {
		if src, ok := child.backend.(ChangeSource); ok && child.values.Listening() {
			closeErr = src.StopListening()
		}
		closeErr = errors.Join(closeErr, child.close())
	}

	existed, err := deleter.DeleteContainer(name)
	if err != nil {
		return false, wrapOp("deleteContainer", c.backend.Name(), name, err)
	}
	return existed, wrapOp("deleteContainer", c.backend.Name(), name, closeErr)
}

// Containers returns the names of child containers opened through c.
func (c *Container) Containers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.children))
	for name := range c.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// flush persists c and its children on backends that defer writes.
func (c *Container) flush() error {
	c.mu.Lock()
	children := make([]*Container, 0, len(c.children))
	for _, child := range c.children {
		children = append(children, child)
	}
	c.mu.Unlock()

	var errs []error
	for _, child := range children {
		errs = append(errs, child.flush())
	}
	if f, ok := c.backend.(Flusher); ok {
		errs = append(errs, wrapOp("flush", c.backend.Name(), c.name, f.Flush()))
	}
	return errors.Join(errs...)
}

// close shuts down notification delivery and releases backend resources
// for c and its children.
func (c *Container) close() error {
	c.mu.Lock()
	children := c.children
	c.children = make(map[string]*Container)
	c.mu.Unlock()

	var errs []error
	for _, child := range children {
		errs = append(errs, child.close())
	}

	c.values.close()
	if f, ok := c.backend.(Flusher); ok {
		errs = append(errs, wrapOp("flush", c.backend.Name(), c.name, f.Flush()))
	}
	if closer, ok := c.backend.(io.Closer); ok {
		errs = append(errs, wrapOp("close", c.backend.Name(), c.name, closer.Close()))
	}
	return errors.Join(errs...)
}
