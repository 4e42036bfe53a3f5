package attr

// Attribute is one named, tagged, multi-valued entry in a Catalog
// (spec.md "Attribute"), or a bare group-tag marker when Separator is
// set. A marker carries no values and an empty name; it exists only to
// force a group-tag byte onto the wire, whether that's an ordinary
// scope transition (operation -> job -> printer) or a deliberate
// repeat used to delimit records inside a multi-object response
// (spec.md "Attribute catalog", §4.1).
type Attribute struct {
	Group     GroupTag
	Tag       ValueTag
	Name      string
	Values    []Value
	Separator bool
}

// IsSeparator reports whether a is a bare group-tag marker rather than
// a real attribute.
func (a *Attribute) IsSeparator() bool { return a.Separator }

// Catalog is an ordered sequence of attributes (spec.md "Attribute
// catalog"). Order is semantically significant: it mirrors the wire
// stream and defines the operation/job/printer scope boundaries.
//
// The catalog owns its Attributes, which own their Values; there is no
// separate arena indirection (spec.md "Ownership"). Attribute.Values is
// contiguous for a given attribute by construction: Add appends a
// single new Attribute node, and AppendValue only ever grows an
// existing node's slice in place, so interleaved wire entries can never
// happen on the way out.
//
// Every group-tag byte that will appear on the wire is represented
// explicitly as a Separator marker in attrs — inserted automatically by
// Add on a scope change, or explicitly via AddSeparator — so encode
// never has to infer from neighboring attributes' Group fields whether
// a byte is owed. That inference was tried first and discarded: it
// cannot tell "group already matches, skip the byte" apart from "group
// already matches, but the source stream repeated the sentinel anyway,"
// which a well-formed wire stream is explicitly allowed to do
// (spec.md §4.1 "Group-tag sentinels never repeat consecutively except
// deliberately").
type Catalog struct {
	VersionMajor byte
	VersionMinor byte
	OpOrStatus   uint16
	RequestID    uint32

	attrs        []*Attribute
	currentGroup GroupTag
	groupSet     bool
}

// NewCatalog returns an empty catalog using IPP/1.1 framing.
func NewCatalog(opOrStatus uint16, requestID uint32) *Catalog {
	return &Catalog{VersionMajor: 1, VersionMinor: 1, OpOrStatus: opOrStatus, RequestID: requestID}
}

// Attributes returns the catalog's entries in wire order, including
// separator markers. The returned slice is owned by the catalog;
// callers must not mutate it.
func (c *Catalog) Attributes() []*Attribute { return c.attrs }

// Add appends a new attribute, inserting a Separator marker ahead of it
// if the current scope differs from group. It fails if name is empty or
// exceeds MaxNameBytes. If values is empty for anything other than the
// no-value sentinel tag, one zero Value is stored in its place.
func (c *Catalog) Add(group GroupTag, tag ValueTag, name string, values ...Value) (*Attribute, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if len(name) > MaxNameBytes {
		return nil, ErrOversizedName
	}
	if len(values) == 0 && tag != EValueTag.NoValue() {
		values = []Value{{}}
	}
	if !c.groupSet || c.currentGroup != group {
		c.AddSeparator(group)
	}
	a := &Attribute{Group: group, Tag: tag, Name: name, Values: values}
	c.attrs = append(c.attrs, a)
	return a, nil
}

// AddSeparator forces a group-tag byte onto the wire even if the
// current scope already equals group, the literal "deliberate repeat"
// case spec.md §4.1 calls out.
func (c *Catalog) AddSeparator(group GroupTag) {
	c.attrs = append(c.attrs, &Attribute{Group: group, Separator: true})
	c.currentGroup = group
	c.groupSet = true
}

// Find returns the first attribute named name. If tag is non-zero it
// must also match the attribute's value tag; pass ValueTag(0) to match
// any tag. A linear scan is acceptable per spec.md §4.1.
func (c *Catalog) Find(name string, tag ValueTag) *Attribute {
	for _, a := range c.attrs {
		if a.Separator || a.Name != name {
			continue
		}
		if tag != 0 && a.Tag != tag {
			continue
		}
		return a
	}
	return nil
}

// AppendValue adds one more value to attr, growing its backing slice in
// a bounded step when capacity is exhausted. Callers that need a stable
// reference across appends hold *Attribute, never a pointer into
// Values, since the backing array may move (spec.md §4.1).
func (c *Catalog) AppendValue(a *Attribute, v Value) {
	if len(a.Values) == cap(a.Values) {
		grown := make([]Value, len(a.Values), len(a.Values)+appendValueStep)
		copy(grown, a.Values)
		a.Values = grown
	}
	a.Values = append(a.Values, v)
}

// Remove deletes the attribute matching name (first match), returning
// whether anything was removed. Separator markers are left untouched;
// removing an attribute never needs to rebalance group bookkeeping
// because the preceding marker still belongs to whatever attribute (or
// nothing) now follows it.
func (c *Catalog) Remove(name string) bool {
	for i, a := range c.attrs {
		if !a.Separator && a.Name == name {
			c.attrs = append(c.attrs[:i], c.attrs[i+1:]...)
			return true
		}
	}
	return false
}

// Equal reports whether c and other have the same tag, name, and value
// sequence, the property the round-trip invariant (spec.md §8) is
// stated in terms of.
func (c *Catalog) Equal(other *Catalog) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.VersionMajor != other.VersionMajor || c.VersionMinor != other.VersionMinor ||
		c.OpOrStatus != other.OpOrStatus || c.RequestID != other.RequestID {
		return false
	}
	if len(c.attrs) != len(other.attrs) {
		return false
	}
	for i, a := range c.attrs {
		b := other.attrs[i]
		if a.Separator != b.Separator || a.Group != b.Group {
			return false
		}
		if a.Separator {
			continue
		}
		if a.Tag != b.Tag || a.Name != b.Name || len(a.Values) != len(b.Values) {
			return false
		}
		for j := range a.Values {
			if !valuesEqual(a.Values[j], b.Values[j]) {
				return false
			}
		}
	}
	return true
}

func valuesEqual(a, b Value) bool {
	if a.Integer != b.Integer || a.Boolean != b.Boolean || a.Date != b.Date ||
		a.Resolution != b.Resolution || a.Range != b.Range ||
		a.Text != b.Text || a.Charset != b.Charset {
		return false
	}
	if len(a.Opaque) != len(b.Opaque) {
		return false
	}
	for i := range a.Opaque {
		if a.Opaque[i] != b.Opaque[i] {
			return false
		}
	}
	return true
}
