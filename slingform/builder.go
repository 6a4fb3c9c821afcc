// Package slingform builds form-encoded payloads for the Sling POST servlet.
//
// A Builder records {propertyPath, value} pairs in insertion order and
// encodes them deterministically, so a node template can be asserted on
// without issuing any HTTP call.
package slingform

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Field is one encoded key/value pair.
type Field struct {
	Key   string
	Value string
}

// Builder accumulates form fields. The zero value is ready to use.
type Builder struct {
	fields []Field
}

// New returns an empty Builder.
func New() *Builder { return &Builder{} }

// Set appends key=value.
func (b *Builder) Set(key, value string) *Builder {
	b.fields = append(b.fields, Field{Key: key, Value: value})
	return b
}

// SetAll appends one key=value pair per value, the Sling convention for
// multi-valued properties.
func (b *Builder) SetAll(key string, values ...string) *Builder {
	for _, v := range values {
		b.Set(key, v)
	}
	return b
}

// TypeHint appends key@TypeHint=hint, e.g. "String[]" or "Boolean".
func (b *Builder) TypeHint(key, hint string) *Builder {
	return b.Set(key+"@TypeHint", hint)
}

// SetValue appends a decoded JSON value with the matching type hint. Arrays
// become multi-valued String[] properties and nil deletes the property.
func (b *Builder) SetValue(key string, v any) *Builder {
	switch val := v.(type) {
	case nil:
		return b.Delete(key)
	case string:
		return b.Set(key, val)
	case bool:
		return b.Set(key, strconv.FormatBool(val)).TypeHint(key, "Boolean")
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return b.Set(key, strconv.FormatInt(int64(val), 10)).TypeHint(key, "Long")
		}
		return b.Set(key, strconv.FormatFloat(val, 'f', -1, 64)).TypeHint(key, "Double")
	case int:
		return b.Set(key, strconv.Itoa(val)).TypeHint(key, "Long")
	case int64:
		return b.Set(key, strconv.FormatInt(val, 10)).TypeHint(key, "Long")
	case []string:
		return b.SetAll(key, val...).TypeHint(key, "String[]")
	case []any:
		vals := make([]string, 0, len(val))
		for _, e := range val {
			vals = append(vals, fmt.Sprint(e))
		}
		return b.SetAll(key, vals...).TypeHint(key, "String[]")
	}
	return b.Set(key, fmt.Sprint(v))
}

// Delete appends key@Delete, removing the property on write.
func (b *Builder) Delete(key string) *Builder {
	return b.Set(key+"@Delete", "")
}

// Operation sets the :operation selector (move, copy, delete, ...).
func (b *Builder) Operation(op string) *Builder {
	return b.Set(":operation", op)
}

// Node returns a view that prefixes every key with path.
func (b *Builder) Node(path string) *Node {
	return &Node{b: b, prefix: "./" + strings.Trim(path, "/")}
}

// Fields returns a copy of the recorded pairs.
func (b *Builder) Fields() []Field {
	return append([]Field(nil), b.fields...)
}

// Get returns the first value recorded for key.
func (b *Builder) Get(key string) (string, bool) {
	for _, f := range b.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Len reports the number of recorded pairs.
func (b *Builder) Len() int { return len(b.fields) }

// Encode renders the fields as application/x-www-form-urlencoded in
// insertion order. url.Values.Encode sorts keys, which loses the ordering
// Sling relies on for node creation, so encoding is done here.
func (b *Builder) Encode() string {
	var sb strings.Builder
	for i, f := range b.fields {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(f.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(f.Value))
	}
	return sb.String()
}

// Node is a Builder view rooted at a relative node path.
type Node struct {
	b      *Builder
	prefix string
}

func (n *Node) key(prop string) string { return n.prefix + "/" + prop }

// Set appends a property of this node.
func (n *Node) Set(prop, value string) *Node {
	n.b.Set(n.key(prop), value)
	return n
}

// SetAll appends a multi-valued property of this node.
func (n *Node) SetAll(prop string, values ...string) *Node {
	n.b.SetAll(n.key(prop), values...)
	return n
}

// TypeHint appends a type hint for a property of this node.
func (n *Node) TypeHint(prop, hint string) *Node {
	n.b.TypeHint(n.key(prop), hint)
	return n
}

// PrimaryType sets jcr:primaryType.
func (n *Node) PrimaryType(t string) *Node { return n.Set("jcr:primaryType", t) }

// ResourceType sets sling:resourceType.
func (n *Node) ResourceType(t string) *Node { return n.Set("sling:resourceType", t) }

// Child returns the view of a child node.
func (n *Node) Child(name string) *Node {
	return &Node{b: n.b, prefix: n.prefix + "/" + strings.Trim(name, "/")}
}
