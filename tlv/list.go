package tlv

// List is an ordered sequence of Field, preserving insertion order.
// Duplicate tags may exist; Find returns the first match.
type List []Field

// Push appends a copy of f to the list; the value bytes are copied into a
// fresh owned buffer so callers may reuse their source buffer.
func (l *List) Push(f Field) {
	*l = append(*l, f.Clone())
}

// PushValue is a convenience for Push with a freshly built Field.
func (l *List) PushValue(tag uint32, value []byte) {
	l.Push(Field{Tag: tag, Value: value})
}

// SpliceAll moves every element of src to the end of l and empties src.
// This is the "move-append" operation of spec.md 4.B: ownership of the
// value buffers transfers, nothing is re-copied.
func (l *List) SpliceAll(src *List) {
	*l = append(*l, *src...)
	*src = (*src)[:0]
}

// Find returns the first Field with the given tag.
func (l List) Find(tag uint32) (Field, bool) {
	for _, f := range l {
		if f.Tag == tag {
			return f, true
		}
	}
	return Field{}, false
}

// FindIndex returns the index of the first Field with the given tag, or -1.
func (l List) FindIndex(tag uint32) int {
	for i, f := range l {
		if f.Tag == tag {
			return i
		}
	}
	return -1
}

// HasDuplicate reports whether any tag appears more than once. This walks
// the list in O(n^2); acceptable since EMV TLV lists are small (spec.md
// 4.B).
func (l List) HasDuplicate() bool {
	for i := 0; i < len(l); i++ {
		for j := i + 1; j < len(l); j++ {
			if l[i].Tag == l[j].Tag {
				return true
			}
		}
	}
	return false
}

// CountTag returns how many Fields carry the given tag.
func (l List) CountTag(tag uint32) int {
	n := 0
	for _, f := range l {
		if f.Tag == tag {
			n++
		}
	}
	return n
}

// Clear empties the list in place.
func (l *List) Clear() {
	*l = (*l)[:0]
}

// Set replaces the first Field with the given tag, or appends one if
// absent. Used by the orchestrator to publish freshly-built terminal
// fields (POS Entry Mode, AID, TSI, TVR, Unpredictable Number) before GPO.
func (l *List) Set(tag uint32, value []byte) {
	if i := l.FindIndex(tag); i >= 0 {
		(*l)[i] = Field{Tag: tag, Value: append([]byte(nil), value...)}
		return
	}
	l.PushValue(tag, append([]byte(nil), value...))
}
