package smalivm

import (
	"sort"
	"strings"

	dex "github.com/speakeasy-api/simplify"
)

// Object is an immutable heap record. Updates replace the record in a new
// heap layer.
type Object struct {
	// Class is the runtime type: a class descriptor or an array type.
	Class string

	// Exact is set when Class is the runtime class itself. Otherwise the
	// object may be an instance of any subtype of Class, as for parameters,
	// seeds and the receiver of an instance method.
	Exact bool

	// Fields holds instance fields keyed by name:Type. Missing fields read
	// as their zero value unless the object is opaque.
	Fields map[string]Value

	// Elems holds array elements. Nil with Opaque set means the length is
	// unknown.
	Elems []Value

	// Text is the contents of a String or StringBuilder.
	Text    string
	HasText bool

	// Names is the type described by a java.lang.Class object.
	Names string

	// Opaque objects have unknown contents beyond what Fields records.
	Opaque bool
}

// IsArray reports whether the object is an array.
func (o *Object) IsArray() bool { return dex.IsArray(o.Class) }

// Field reads an instance field.
func (o *Object) Field(key string) Value {
	if v, ok := o.Fields[key]; ok {
		return v
	}
	t := fieldType(key)
	if o.Opaque {
		return Unknown(t, ReasonClobbered)
	}
	return zeroValue(t)
}

func (o *Object) clone() *Object {
	out := *o
	if o.Fields != nil {
		out.Fields = make(map[string]Value, len(o.Fields))
		for k, v := range o.Fields {
			out.Fields[k] = v
		}
	}
	if o.Elems != nil {
		out.Elems = append([]Value(nil), o.Elems...)
	}
	return &out
}

// withField returns a copy with one field replaced.
func (o *Object) withField(key string, v Value) *Object {
	out := o.clone()
	if out.Fields == nil {
		out.Fields = map[string]Value{}
	}
	out.Fields[key] = v
	return out
}

// fieldKey turns LClass;->name:T into the instance-field key name:T.
func fieldKey(ref string) string {
	if i := strings.Index(ref, "->"); i >= 0 {
		return ref[i+2:]
	}
	return ref
}

func fieldType(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return ""
}

const maxHeapDepth = 8

// Heap is a layered copy-on-write store of objects, static fields and the
// set of initialized classes. A published layer is never written again.
type Heap struct {
	parent  *Heap
	depth   int
	objects map[HeapID]*Object
	statics map[string]Value
	inited  map[string]bool

	// clobbered marks every static not written since as unknown.
	clobbered bool

	fp    []byte
	flat  *heapView
}

type heapView struct {
	objects   map[HeapID]*Object
	statics   map[string]Value
	inited    map[string]bool
	clobbered bool
}

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{objects: map[HeapID]*Object{}, statics: map[string]Value{}, inited: map[string]bool{}}
}

// derive returns a writable child layer. Deep chains are flattened into a
// single base layer.
func (h *Heap) derive() *Heap {
	if h.depth >= maxHeapDepth {
		v := h.view()
		base := &Heap{
			objects:   make(map[HeapID]*Object, len(v.objects)),
			statics:   make(map[string]Value, len(v.statics)),
			inited:    make(map[string]bool, len(v.inited)),
			clobbered: v.clobbered,
		}
		for k, o := range v.objects {
			base.objects[k] = o
		}
		for k, s := range v.statics {
			base.statics[k] = s
		}
		for k := range v.inited {
			base.inited[k] = true
		}
		h = base
	}
	return &Heap{parent: h, depth: h.depth + 1, objects: map[HeapID]*Object{}, statics: map[string]Value{}, inited: map[string]bool{}}
}

// Object returns the visible record for id.
func (h *Heap) Object(id HeapID) (*Object, bool) {
	for l := h; l != nil; l = l.parent {
		if o, ok := l.objects[id]; ok {
			return o, true
		}
	}
	return nil, false
}

// Static returns the value of a static field key LClass;->name:T.
func (h *Heap) Static(key string) (Value, bool) {
	for l := h; l != nil; l = l.parent {
		if v, ok := l.statics[key]; ok {
			return v, true
		}
		if l.clobbered {
			return Unknown(fieldType(key), ReasonClobbered), true
		}
	}
	return Value{}, false
}

// Initialized reports whether class has been statically initialized.
func (h *Heap) Initialized(class string) bool {
	for l := h; l != nil; l = l.parent {
		if l.inited[class] {
			return true
		}
	}
	return false
}

func (h *Heap) setObject(id HeapID, o *Object) {
	h.objects[id] = o
	h.invalidate()
}

func (h *Heap) setStatic(key string, v Value) {
	h.statics[key] = v
	h.invalidate()
}

func (h *Heap) markInitialized(class string) {
	h.inited[class] = true
	h.invalidate()
}

// clobberStatics forgets every static field value.
func (h *Heap) clobberStatics() {
	h.statics = map[string]Value{}
	h.clobbered = true
	h.invalidate()
}

func (h *Heap) invalidate() {
	h.fp = nil
	h.flat = nil
}

// view flattens the visible state of all layers.
func (h *Heap) view() *heapView {
	if h.flat != nil {
		return h.flat
	}
	var layers []*Heap
	for l := h; l != nil; l = l.parent {
		layers = append(layers, l)
	}
	v := &heapView{objects: map[HeapID]*Object{}, statics: map[string]Value{}, inited: map[string]bool{}}
	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		if l.clobbered {
			v.statics = map[string]Value{}
			v.clobbered = true
		}
		for k, o := range l.objects {
			v.objects[k] = o
		}
		for k, s := range l.statics {
			v.statics[k] = s
		}
		for k := range l.inited {
			v.inited[k] = true
		}
	}
	h.flat = v
	return v
}

// ObjectIDs returns the visible object ids in increasing order.
func (h *Heap) ObjectIDs() []HeapID {
	v := h.view()
	ids := make([]HeapID, 0, len(v.objects))
	for id := range v.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StaticKeys returns the static fields with recorded values, sorted.
func (h *Heap) StaticKeys() []string {
	v := h.view()
	keys := make([]string, 0, len(v.statics))
	for k := range v.statics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// reachable returns the ids reachable from roots through fields and
// array elements.
func (h *Heap) reachable(roots []HeapID) []HeapID {
	seen := map[HeapID]bool{}
	stack := append([]HeapID(nil), roots...)
	var out []HeapID
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		o, ok := h.Object(id)
		if !ok {
			continue
		}
		for _, v := range o.Fields {
			if r, ok := v.ObjectRef(); ok {
				stack = append(stack, r)
			}
		}
		for _, v := range o.Elems {
			if r, ok := v.ObjectRef(); ok {
				stack = append(stack, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// objectCovers reports whether a is at least as general as b.
func objectCovers(a, b *Object) bool {
	if a == b {
		return true
	}
	if a.Class != b.Class || a.Names != b.Names {
		return false
	}
	if a.HasText != b.HasText || a.Text != b.Text {
		if !a.Opaque || a.HasText {
			return false
		}
	}
	if b.Opaque && !a.Opaque {
		return false
	}
	if a.Exact && !b.Exact {
		return false
	}
	for k, bv := range b.Fields {
		if !a.Field(k).Covers(bv) {
			return false
		}
	}
	for k, av := range a.Fields {
		if _, ok := b.Fields[k]; !ok && !av.Covers(b.Field(k)) {
			return false
		}
	}
	if a.Elems == nil && a.Opaque {
		return true
	}
	if len(a.Elems) != len(b.Elems) {
		return false
	}
	for i := range a.Elems {
		if !a.Elems[i].Covers(b.Elems[i]) {
			return false
		}
	}
	return true
}

// heapCovers reports whether every fact in b is also a fact in a or is
// unknown in a.
func heapCovers(a, b *Heap) bool {
	if a == b {
		return true
	}
	av, bv := a.view(), b.view()
	if bv.clobbered && !av.clobbered {
		return false
	}
	for id, bo := range bv.objects {
		ao, ok := av.objects[id]
		if !ok || !objectCovers(ao, bo) {
			return false
		}
	}
	for k, bs := range bv.statics {
		as, ok := a.Static(k)
		if !ok || !as.Covers(bs) {
			return false
		}
	}
	for k, as := range av.statics {
		if _, ok := bv.statics[k]; !ok && !as.IsUnknown() {
			return false
		}
	}
	for k := range av.inited {
		if !bv.inited[k] {
			return false
		}
	}
	return true
}

func joinObjects(a, b *Object) *Object {
	if objectCovers(a, b) {
		return a
	}
	out := &Object{Class: a.Class, Exact: a.Exact && b.Exact, Names: a.Names, Opaque: a.Opaque || b.Opaque}
	if a.HasText && b.HasText && a.Text == b.Text {
		out.Text, out.HasText = a.Text, true
	} else if a.HasText || b.HasText {
		out.Opaque = true
	}
	keys := map[string]bool{}
	for k := range a.Fields {
		keys[k] = true
	}
	for k := range b.Fields {
		keys[k] = true
	}
	if len(keys) > 0 {
		out.Fields = make(map[string]Value, len(keys))
		for k := range keys {
			out.Fields[k] = Join(a.Field(k), b.Field(k))
		}
	}
	switch {
	case a.Elems != nil && b.Elems != nil && len(a.Elems) == len(b.Elems):
		out.Elems = make([]Value, len(a.Elems))
		for i := range a.Elems {
			out.Elems[i] = Join(a.Elems[i], b.Elems[i])
		}
	case a.IsArray():
		out.Elems = nil
		out.Opaque = true
	}
	return out
}

// joinHeaps builds a fresh base heap holding what a and b agree on.
func joinHeaps(a, b *Heap) *Heap {
	if heapCovers(a, b) {
		return a
	}
	av, bv := a.view(), b.view()
	out := NewHeap()
	out.clobbered = av.clobbered || bv.clobbered
	for id, ao := range av.objects {
		if bo, ok := bv.objects[id]; ok {
			out.objects[id] = joinObjects(ao, bo)
		} else {
			out.objects[id] = ao
		}
	}
	for id, bo := range bv.objects {
		if _, ok := av.objects[id]; !ok {
			out.objects[id] = bo
		}
	}
	keys := map[string]bool{}
	for k := range av.statics {
		keys[k] = true
	}
	for k := range bv.statics {
		keys[k] = true
	}
	for k := range keys {
		as, aok := a.Static(k)
		bs, bok := b.Static(k)
		if aok && bok {
			out.statics[k] = Join(as, bs)
		} else {
			out.statics[k] = Unknown(fieldType(k), ReasonMerged)
		}
	}
	for k := range av.inited {
		if bv.inited[k] {
			out.inited[k] = true
		}
	}
	return out
}
