package attr

import "github.com/pkg/errors"

// Sentinel decode/encode failures callers branch on (spec.md §7:
// "decode-error"). Anything more specific is wrapped around one of
// these with errors.Wrap so the caller can still errors.Is against the
// kind while getting a useful message.
var (
	ErrTruncated       = errors.New("attr: truncated stream")
	ErrBadVersion      = errors.New("attr: unsupported version")
	ErrOversizedName   = errors.New("attr: name exceeds maximum length")
	ErrOversizedValue  = errors.New("attr: value exceeds maximum length")
	ErrNoCurrentAttr   = errors.New("attr: continuation value with no current attribute")
	ErrEmptyName       = errors.New("attr: attribute name must not be empty")
)

// MaxNameBytes and MaxValueBytes bound the name/value length fields,
// which are 16-bit on the wire (spec.md §4.1, §7 "oversized name/value
// length").
const (
	MaxNameBytes  = 32765
	MaxValueBytes = 65535
)

// DefaultValuesPerAttribute is the implementation cap spec.md §4.1
// names ("at least 100"); Add does not reject larger slices, it simply
// notes them as an ordinary multi-value attribute, since the wire
// format already represents additional values as continuation entries
// indistinguishable from values added one at a time via AppendValue.
const DefaultValuesPerAttribute = 100

// appendValueStep is the bounded growth step append_value uses when
// the backing slice must be reallocated, per spec.md §4.1 ("reallocates
// values[] in a bounded step size").
const appendValueStep = 16
