package statehandlers

import (
	"fmt"
	"strings"
)

type PropertyKind string

const (
	KindBool PropertyKind = "bool"
	KindEnum PropertyKind = "enum"
	KindInt  PropertyKind = "int"
)

// Property is one declared state property and its possible values.
type Property struct {
	Name   string
	Kind   PropertyKind
	Values []string
}

type KV struct {
	Key   string
	Value string
}

// StateRec is one concrete state variant of a block. Properties keep their
// declared order; Metadata lists the legacy values that select this variant.
type StateRec struct {
	Properties []KV
	Metadata   []int
}

// Value returns the value of the named property, or "" if it is not declared.
func (s StateRec) Value(name string) string {
	for _, p := range s.Properties {
		if p.Key == name {
			return p.Value
		}
	}
	return ""
}

func (s StateRec) Map() map[string]string {
	m := make(map[string]string, len(s.Properties))
	for _, p := range s.Properties {
		m[p.Key] = p.Value
	}
	return m
}

// String returns the fingerprint "k1=v1,k2=v2" in declared order.
func (s StateRec) String() string {
	var b strings.Builder
	for _, p := range s.Properties {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	return b.String()
}

// ParseState parses a fingerprint back into an ordered property list.
// The empty string is a variant with no properties.
func ParseState(fp string) (StateRec, error) {
	var s StateRec
	fp = strings.TrimSpace(fp)
	if fp == "" {
		return s, nil
	}
	seen := map[string]struct{}{}
	for _, part := range strings.Split(fp, ",") {
		k, v, ok := strings.Cut(part, "=")
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if !ok || k == "" {
			return StateRec{}, fmt.Errorf("bad state pair %q", part)
		}
		if _, dup := seen[k]; dup {
			return StateRec{}, fmt.Errorf("duplicate property %q", k)
		}
		seen[k] = struct{}{}
		s.Properties = append(s.Properties, KV{Key: k, Value: v})
	}
	return s, nil
}

// StateContainer is the declared state schema of one block type together
// with all of its valid variants.
type StateContainer struct {
	Properties   []Property
	ValidStates  []StateRec
	DefaultState StateRec
}

func (c *StateContainer) GetValidStates() []StateRec { return c.ValidStates }
func (c *StateContainer) GetDefaultState() StateRec  { return c.DefaultState }

func (c *StateContainer) property(name string) (Property, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// FindMatchingBooleanProperty reports whether c declares a boolean property
// with exactly the given name. A property counts as boolean if it is typed
// as such or if its values are exactly "false" and "true".
func FindMatchingBooleanProperty(c *StateContainer, name string) bool {
	if c == nil {
		return false
	}
	p, ok := c.property(name)
	if !ok {
		return false
	}
	if p.Kind == KindBool {
		return true
	}
	if len(p.Values) != 2 {
		return false
	}
	return (p.Values[0] == "false" && p.Values[1] == "true") ||
		(p.Values[0] == "true" && p.Values[1] == "false")
}
