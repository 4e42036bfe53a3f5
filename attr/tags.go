package attr

import (
	"reflect"

	"github.com/JeffreyRichter/enum/enum"
)

// GroupTag identifies which scope (operation, job, printer, ...) the
// attributes following it belong to. Values below 0x10 are group-tag
// sentinels on the wire (spec.md §4.1). Zero is the group in effect
// before the decoder has read any group-tag sentinel; separator
// markers are flagged by Attribute.Separator and carry the group tag
// they put on the wire, not zero.
type GroupTag uint8

var EGroupTag = GroupTag(0)

func (GroupTag) Zero() GroupTag              { return GroupTag(0x00) }
func (GroupTag) Operation() GroupTag         { return GroupTag(0x01) }
func (GroupTag) Job() GroupTag               { return GroupTag(0x02) }
func (GroupTag) Printer() GroupTag           { return GroupTag(0x04) }
func (GroupTag) Unsupported() GroupTag       { return GroupTag(0x05) }
func (GroupTag) Subscription() GroupTag      { return GroupTag(0x06) }
func (GroupTag) EventNotification() GroupTag { return GroupTag(0x07) }

func (g GroupTag) String() string {
	return enum.StringInt(g, reflect.TypeOf(g))
}

// endTag terminates the attribute sequence (spec.md §4.1: "If tag =
// 0x03 (end), stop"). It is intentionally not a GroupTag method: 0x03
// is checked before group-tag adoption, never adopted as a group.
const endTag byte = 0x03

// groupTagCeiling is the first value considered a concrete value tag;
// anything below it (other than endTag) is a group-tag sentinel.
const groupTagCeiling byte = 0x10

// ValueTag identifies the wire representation of one attribute's
// values (spec.md "Attribute value").
type ValueTag uint8

var EValueTag = ValueTag(0)

// Out-of-band tags (spec.md: "Value tags partition into the
// out-of-band set ... and concrete value tags").
func (ValueTag) Unsupported() ValueTag { return ValueTag(0x10) }
func (ValueTag) Unknown() ValueTag     { return ValueTag(0x12) }
func (ValueTag) NoValue() ValueTag     { return ValueTag(0x13) }

// Concrete value tags.
func (ValueTag) Integer() ValueTag          { return ValueTag(0x21) }
func (ValueTag) Boolean() ValueTag          { return ValueTag(0x22) }
func (ValueTag) Enum() ValueTag             { return ValueTag(0x23) }
func (ValueTag) OctetString() ValueTag      { return ValueTag(0x30) }
func (ValueTag) DateTime() ValueTag         { return ValueTag(0x31) }
func (ValueTag) Resolution() ValueTag       { return ValueTag(0x32) }
func (ValueTag) RangeOfInteger() ValueTag   { return ValueTag(0x33) }
func (ValueTag) TextWithLanguage() ValueTag { return ValueTag(0x35) }
func (ValueTag) NameWithLanguage() ValueTag { return ValueTag(0x36) }
func (ValueTag) Text() ValueTag             { return ValueTag(0x41) }
func (ValueTag) Name() ValueTag             { return ValueTag(0x42) }
func (ValueTag) Keyword() ValueTag          { return ValueTag(0x44) }
func (ValueTag) URI() ValueTag              { return ValueTag(0x45) }
func (ValueTag) URIScheme() ValueTag        { return ValueTag(0x46) }
func (ValueTag) Charset() ValueTag          { return ValueTag(0x47) }
func (ValueTag) NaturalLanguage() ValueTag  { return ValueTag(0x48) }
func (ValueTag) MimeMediaType() ValueTag    { return ValueTag(0x49) }

func (v ValueTag) String() string {
	return enum.StringInt(v, reflect.TypeOf(v))
}

// IsOutOfBand reports whether v is one of the three out-of-band tags,
// which carry the no-value sentinel instead of a real value.
func (v ValueTag) IsOutOfBand() bool {
	return v == EValueTag.Unsupported() || v == EValueTag.Unknown() || v == EValueTag.NoValue()
}

// languageQualified reports whether v nests a charset-length/charset
// pair ahead of its text (spec.md §4.1 string-like encoding rule).
func (v ValueTag) languageQualified() bool {
	return v == EValueTag.TextWithLanguage() || v == EValueTag.NameWithLanguage()
}

// stringLike reports whether v's payload is raw bytes interpreted as a
// string rather than a fixed-layout numeric/date/resolution/range.
func (v ValueTag) stringLike() bool {
	switch v {
	case EValueTag.Text(), EValueTag.Name(), EValueTag.Keyword(), EValueTag.URI(),
		EValueTag.URIScheme(), EValueTag.Charset(), EValueTag.NaturalLanguage(),
		EValueTag.MimeMediaType(), EValueTag.OctetString():
		return true
	default:
		return false
	}
}
