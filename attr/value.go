package attr

// Resolution is the xres/yres/unit tagged value (spec.md "Attribute
// value").
type Resolution struct {
	XRes, YRes int32
	Unit       ResolutionUnit
}

// ResolutionUnit distinguishes dots-per-inch from dots-per-centimeter.
type ResolutionUnit uint8

const (
	DotsPerInch       ResolutionUnit = 3
	DotsPerCentimeter ResolutionUnit = 4
)

// IntRange is an integer range value. Per spec.md §4.1, unordered
// input (lower > upper) is accepted as-is, not normalized.
type IntRange struct {
	Lower, Upper int32
}

// Value is a tagged-union member of an Attribute's multi-value list.
// Exactly the fields relevant to the owning Attribute's ValueTag are
// populated; the rest are zero. This mirrors the C union in the
// original encoding without resorting to an interface{} per value,
// keeping the node's memory layout stable the way spec.md §4.1
// ("append_value ... the node is stable") requires.
type Value struct {
	Integer    int32
	Boolean    bool
	Date       [11]byte
	Resolution Resolution
	Range      IntRange

	// Text carries the payload for every string-like tag. For
	// TextWithLanguage/NameWithLanguage it is the text part; Charset
	// then carries the qualifier.
	Text    string
	Charset string

	// Opaque carries OctetString and any unrecognized concrete tag's
	// raw bytes (spec.md §4.1: "any unrecognized concrete tag: opaque
	// copy of value-length bytes").
	Opaque []byte
}

// IntValue is a convenience constructor for integer/enum/boolean
// attributes built programmatically (used by job and dispatch to seed
// catalogs without hand-rolling Value literals).
func IntValue(n int32) Value { return Value{Integer: n} }

// BoolValue is the boolean constructor.
func BoolValue(b bool) Value { return Value{Boolean: b} }

// TextValue is the constructor for any plain string-like tag.
func TextValue(s string) Value { return Value{Text: s} }

// LanguageTextValue is the constructor for TextWithLanguage /
// NameWithLanguage values.
func LanguageTextValue(charset, text string) Value { return Value{Charset: charset, Text: text} }

// OpaqueValue is the constructor for OctetString / unrecognized tags.
func OpaqueValue(b []byte) Value { return Value{Opaque: append([]byte(nil), b...)} }
