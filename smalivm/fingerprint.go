package smalivm

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
)

// canonWriter is a simple buffer for building canonical representations.
type canonWriter struct {
	buf []byte
}

func newCanonWriter() *canonWriter {
	return &canonWriter{buf: make([]byte, 0, 256)}
}

func (w *canonWriter) Write(p []byte) {
	w.buf = append(w.buf, p...)
}

func (w *canonWriter) writeByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *canonWriter) WriteString(s string) {
	w.writeUint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *canonWriter) writeUint(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *canonWriter) writeInt(v int) { w.writeUint(uint64(int64(v))) }

func (w *canonWriter) sum() []byte {
	s := sha256.Sum256(w.buf)
	return s[:]
}

// encodeValue writes the information content of v. Unknown reasons are
// left out so that unknowns of one type compare equal.
func encodeValue(w *canonWriter, v Value) {
	w.writeByte(byte(v.Kind))
	w.WriteString(v.Type)
	switch v.Kind {
	case KindPrimitive:
		w.writeUint(v.Bits)
	case KindReference:
		w.writeUint(uint64(v.Ref))
	}
}

func encodePending(w *canonWriter, v *Value) {
	if v == nil {
		w.writeByte(0)
		return
	}
	w.writeByte(1)
	encodeValue(w, *v)
}

func encodeObject(w *canonWriter, o *Object) {
	w.WriteString(o.Class)
	if o.Exact {
		w.writeByte(1)
	} else {
		w.writeByte(0)
	}
	w.WriteString(o.Names)
	if o.HasText {
		w.writeByte(1)
		w.WriteString(o.Text)
	} else {
		w.writeByte(0)
	}
	if o.Opaque {
		w.writeByte(1)
	} else {
		w.writeByte(0)
	}
	keys := make([]string, 0, len(o.Fields))
	for k := range o.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w.writeInt(len(keys))
	for _, k := range keys {
		w.WriteString(k)
		encodeValue(w, o.Fields[k])
	}
	if o.Elems == nil {
		w.writeByte(0)
		return
	}
	w.writeByte(1)
	w.writeInt(len(o.Elems))
	for _, e := range o.Elems {
		encodeValue(w, e)
	}
}

// fingerprint returns a cached hash of the visible heap state.
func (h *Heap) fingerprint() []byte {
	if h.fp != nil {
		return h.fp
	}
	v := h.view()
	w := newCanonWriter()
	ids := h.ObjectIDs()
	w.writeInt(len(ids))
	for _, id := range ids {
		w.writeUint(uint64(id))
		encodeObject(w, v.objects[id])
	}
	keys := h.StaticKeys()
	w.writeInt(len(keys))
	for _, k := range keys {
		w.WriteString(k)
		encodeValue(w, v.statics[k])
	}
	if v.clobbered {
		w.writeByte(1)
	} else {
		w.writeByte(0)
	}
	inited := make([]string, 0, len(v.inited))
	for k := range v.inited {
		inited = append(inited, k)
	}
	sort.Strings(inited)
	for _, k := range inited {
		w.WriteString(k)
	}
	h.fp = w.sum()
	return h.fp
}

// Fingerprint returns a hash identifying the context's full state.
func (c *Context) Fingerprint() []byte {
	if c.fp != nil {
		return c.fp
	}
	w := newCanonWriter()
	w.writeInt(c.Address)
	w.writeInt(c.Frame.Depth)
	w.WriteString(c.Frame.Method)
	w.writeInt(c.Frame.CallerAddress)
	n := c.Registers.Len()
	w.writeInt(n)
	for i := 0; i < n; i++ {
		encodeValue(w, c.Register(i))
	}
	encodePending(w, c.Result)
	encodePending(w, c.Exception)
	w.Write(c.Heap.fingerprint())
	c.fp = w.sum()
	return c.fp
}

func sameContext(a, b *Context) bool {
	return a == b || bytes.Equal(a.Fingerprint(), b.Fingerprint())
}

// Fingerprint returns a deterministic digest of the whole graph: nodes,
// contexts, edges and terminals. Two runs over the same input with the same
// options produce the same fingerprint.
func (g *ExecutionGraph) Fingerprint() string {
	w := newCanonWriter()
	for _, addr := range g.Addresses() {
		n := g.nodes[addr]
		w.writeInt(addr)
		w.writeInt(n.Visits)
		if n.PossiblyNonTerminating {
			w.writeByte(1)
		} else {
			w.writeByte(0)
		}
		w.writeInt(len(n.Contexts))
		for _, c := range n.Contexts {
			w.Write(c.Fingerprint())
		}
		w.writeInt(len(n.Steps))
		for _, st := range n.Steps {
			w.Write(st.In.Fingerprint())
			w.writeInt(len(st.Out))
			for _, s := range st.Out {
				w.writeByte(byte(s.Edge))
				w.writeInt(s.Target)
				if s.Context != nil {
					w.Write(s.Context.Fingerprint())
				}
			}
		}
	}
	w.writeInt(len(g.Terminals))
	for _, t := range g.Terminals {
		w.writeInt(t.From)
		w.writeByte(byte(t.Kind))
		encodePending(w, t.Value)
	}
	if g.partial {
		w.writeByte(1)
	} else {
		w.writeByte(0)
	}
	for _, warn := range g.Warnings {
		w.WriteString(warn)
	}
	return fmt.Sprintf("%x", w.sum())
}
