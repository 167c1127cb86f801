package native

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/appshim/internal/storage"
	"github.com/dshills/appshim/internal/storage/codec"
)

// persisted lists the localities written to the store file.
var persisted = []storage.Locality{
	storage.LocalityLocal,
	storage.LocalityRoaming,
	storage.LocalitySharedLocal,
}

// document is the on-disk form of a Store. Values keep their kind as a
// tagged pair, so every kind reads back exactly.
type document struct {
	Localities map[string]*fileNode `toml:"localities"`
}

type fileNode struct {
	Values     map[string]codec.Pair `toml:"values,omitempty"`
	Containers map[string]*fileNode  `toml:"containers,omitempty"`
}

// Save writes the store if it has unsaved changes. Memory-only stores
// ignore Save.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil || !s.dirty {
		return nil
	}

	doc := document{Localities: make(map[string]*fileNode)}
	for _, loc := range persisted {
		if root, ok := s.roots[loc]; ok {
			doc.Localities[loc.String()] = toFileNode(root)
		}
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding native settings: %w", err)
	}
	if err := s.file.Write(data); err != nil {
		return err
	}
	s.dirty = false
	s.logger.Debug("saved settings to %s", s.file.Path())
	return nil
}

func (s *Store) loadLocked() error {
	data, err := s.file.Read()
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", s.file.Path(), err)
	}
	for _, loc := range persisted {
		fn, ok := doc.Localities[loc.String()]
		if !ok {
			continue
		}
		root, err := fromFileNode("", fn)
		if err != nil {
			return fmt.Errorf("parsing %s: %s: %w", s.file.Path(), loc, err)
		}
		s.roots[loc] = root
	}
	return nil
}

func toFileNode(n *node) *fileNode {
	fn := &fileNode{}
	if len(n.values) > 0 {
		fn.Values = make(map[string]codec.Pair, len(n.values))
		for k, v := range n.values {
			fn.Values[k] = codec.Encode(v)
		}
	}
	if len(n.children) > 0 {
		fn.Containers = make(map[string]*fileNode, len(n.children))
		for name, child := range n.children {
			fn.Containers[name] = toFileNode(child)
		}
	}
	return fn
}

func fromFileNode(name string, fn *fileNode) (*node, error) {
	n := newNode(name)
	if fn == nil {
		return n, nil
	}
	for k, pair := range fn.Values {
		v, ok, err := codec.Decode(pair.Slice())
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", k, err)
		}
		if ok {
			n.values[k] = v
		}
	}
	for childName, child := range fn.Containers {
		c, err := fromFileNode(childName, child)
		if err != nil {
			return nil, fmt.Errorf("container %q: %w", childName, err)
		}
		n.children[childName] = c
	}
	return n, nil
}
