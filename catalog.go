package dex

import (
	"fmt"
	"sort"
)

// Catalog is an in-memory class catalog. It is populated before use and
// read-only afterwards, so concurrent readers need no locking.
type Catalog struct {
	classes map[string]*Class
	methods map[string]*Method
}

// NewCatalog builds a catalog from classes.
func NewCatalog(classes ...*Class) *Catalog {
	c := &Catalog{classes: map[string]*Class{}, methods: map[string]*Method{}}
	c.Add(classes...)
	return c
}

// ParseCatalog parses assembly sources and collects their classes.
func ParseCatalog(sources ...string) (*Catalog, error) {
	c := NewCatalog()
	for i, src := range sources {
		classes, err := ParseClasses(src)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		c.Add(classes...)
	}
	return c, nil
}

// Add registers classes, replacing earlier definitions with the same name.
func (c *Catalog) Add(classes ...*Class) {
	for _, cls := range classes {
		if old, ok := c.classes[cls.Name]; ok {
			for _, m := range old.Methods {
				delete(c.methods, m.Signature())
			}
		}
		c.classes[cls.Name] = cls
		for _, m := range cls.Methods {
			c.methods[m.Signature()] = m
		}
	}
}

// Class looks up a class by descriptor.
func (c *Catalog) Class(name string) (*Class, bool) {
	cls, ok := c.classes[name]
	return cls, ok
}

// Method looks up a method by exact signature.
func (c *Catalog) Method(sig string) (*Method, bool) {
	m, ok := c.methods[sig]
	return m, ok
}

// Classes returns all classes ordered by name.
func (c *Catalog) Classes() []*Class {
	out := make([]*Class, 0, len(c.classes))
	for _, cls := range c.classes {
		out = append(out, cls)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Signatures returns every method signature in sorted order.
func (c *Catalog) Signatures() []string {
	out := make([]string, 0, len(c.methods))
	for sig := range c.methods {
		out = append(out, sig)
	}
	sort.Strings(out)
	return out
}

// Superclass returns the direct superclass of name, consulting the catalog
// first and then the built-in platform hierarchy.
func (c *Catalog) Superclass(name string) (string, bool) {
	if cls, ok := c.classes[name]; ok {
		return cls.Super, true
	}
	if name == TypeObject {
		return "", true
	}
	s, ok := builtinSupers[name]
	return s, ok
}

func (c *Catalog) interfaces(name string) []string {
	if cls, ok := c.classes[name]; ok {
		return cls.Interfaces
	}
	return builtinInterfaces[name]
}

// IsAssignable reports whether a value of type from can be stored in a
// location of type to. known is false when the answer depends on classes
// outside the catalog.
func (c *Catalog) IsAssignable(from, to string) (assignable, known bool) {
	if from == to || to == TypeObject && IsReference(from) {
		return true, true
	}
	if IsPrimitive(from) || IsPrimitive(to) {
		return false, true
	}
	if IsArray(from) {
		if IsArray(to) {
			fc, tc := ComponentType(from), ComponentType(to)
			if IsPrimitive(fc) || IsPrimitive(tc) {
				return fc == tc, true
			}
			return c.IsAssignable(fc, tc)
		}
		switch to {
		case "Ljava/lang/Cloneable;", "Ljava/io/Serializable;":
			return true, true
		}
		return false, true
	}
	if IsArray(to) {
		return false, true
	}
	return c.subtypeOf(from, to, map[string]bool{})
}

func (c *Catalog) subtypeOf(from, to string, seen map[string]bool) (bool, bool) {
	if from == to {
		return true, true
	}
	if seen[from] {
		return false, true
	}
	seen[from] = true
	known := true
	for _, iface := range c.interfaces(from) {
		ok, k := c.subtypeOf(iface, to, seen)
		if ok {
			return true, true
		}
		known = known && k
	}
	super, ok := c.Superclass(from)
	if !ok {
		return false, false
	}
	if super == "" {
		return false, known
	}
	res, k := c.subtypeOf(super, to, seen)
	if res {
		return true, true
	}
	return false, known && k
}

// ResolveVirtual finds the implementation of ref for a receiver of the given
// runtime class by walking up its superclass chain.
func (c *Catalog) ResolveVirtual(ref MethodRef, receiver string) (*Method, bool) {
	desc := ref.Descriptor()
	for cls := receiver; cls != ""; {
		k, ok := c.classes[cls]
		if !ok {
			return nil, false
		}
		if m, ok := k.Method(ref.Name, desc); ok {
			return m, true
		}
		cls = k.Super
	}
	return nil, false
}

// HasOverride reports whether any catalog class other than ref.Class that
// may be a subtype of it provides its own implementation of ref. The
// catalog is taken as the whole program: classes outside it are assumed
// not to extend catalog classes.
func (c *Catalog) HasOverride(ref MethodRef) bool {
	desc := ref.Descriptor()
	for name, cls := range c.classes {
		if name == ref.Class {
			continue
		}
		if _, ok := cls.Method(ref.Name, desc); !ok {
			continue
		}
		if sub, known := c.IsAssignable(name, ref.Class); sub || !known {
			return true
		}
	}
	return false
}
