package attr

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// flushEvery bounds the writer's batching the way spec.md §4.1 asks
// ("Writer batches into a bounded buffer and flushes as needed"): a
// long catalog still produces backpressure on a slow sink instead of
// buffering the whole thing in memory.
const flushEvery = 64

// WriteStream encodes c in the tag-length-value framing shared by disk
// and wire (spec.md §4.1). On I/O failure it returns a wrapped error;
// any bytes already written to w form a partial stream the caller must
// unlink if w is a file (spec.md §4.1, §7).
func (c *Catalog) WriteStream(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 4096)

	var hdr [8]byte
	hdr[0] = c.VersionMajor
	hdr[1] = c.VersionMinor
	binary.BigEndian.PutUint16(hdr[2:4], c.OpOrStatus)
	binary.BigEndian.PutUint32(hdr[4:8], c.RequestID)
	if _, err := bw.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "attr: write header")
	}

	for i, a := range c.attrs {
		if a.Separator {
			if err := bw.WriteByte(byte(a.Group)); err != nil {
				return errors.Wrap(err, "attr: write group tag")
			}
			continue
		}
		if err := writeAttribute(bw, a); err != nil {
			return errors.Wrapf(err, "attr: write attribute %q", a.Name)
		}
		if i%flushEvery == flushEvery-1 {
			if err := bw.Flush(); err != nil {
				return errors.Wrap(err, "attr: flush")
			}
		}
	}
	if err := bw.WriteByte(endTag); err != nil {
		return errors.Wrap(err, "attr: write end tag")
	}
	return errors.Wrap(bw.Flush(), "attr: flush")
}

func writeAttribute(bw *bufio.Writer, a *Attribute) error {
	for i, v := range a.Values {
		if err := bw.WriteByte(byte(a.Tag)); err != nil {
			return err
		}
		name := ""
		if i == 0 {
			name = a.Name
		}
		if err := writeUint16String(bw, name); err != nil {
			return err
		}
		payload, err := encodeValue(a.Tag, v)
		if err != nil {
			return err
		}
		if len(payload) > MaxValueBytes {
			return ErrOversizedValue
		}
		if err := binary.Write(bw, binary.BigEndian, uint16(len(payload))); err != nil {
			return err
		}
		if _, err := bw.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

func writeUint16String(bw *bufio.Writer, s string) error {
	if err := binary.Write(bw, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := bw.WriteString(s)
	return err
}

func encodeValue(tag ValueTag, v Value) ([]byte, error) {
	switch {
	case tag.IsOutOfBand():
		return nil, nil
	case tag == EValueTag.Integer() || tag == EValueTag.Enum():
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v.Integer))
		return b, nil
	case tag == EValueTag.Boolean():
		if v.Boolean {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case tag == EValueTag.DateTime():
		return append([]byte(nil), v.Date[:]...), nil
	case tag == EValueTag.Resolution():
		b := make([]byte, 9)
		binary.BigEndian.PutUint32(b[0:4], uint32(v.Resolution.XRes))
		binary.BigEndian.PutUint32(b[4:8], uint32(v.Resolution.YRes))
		b[8] = byte(v.Resolution.Unit)
		return b, nil
	case tag == EValueTag.RangeOfInteger():
		b := make([]byte, 8)
		binary.BigEndian.PutUint32(b[0:4], uint32(v.Range.Lower))
		binary.BigEndian.PutUint32(b[4:8], uint32(v.Range.Upper))
		return b, nil
	case tag.languageQualified():
		cs := []byte(v.Charset)
		tx := []byte(v.Text)
		b := make([]byte, 0, 4+len(cs)+len(tx))
		b = binary.BigEndian.AppendUint16(b, uint16(len(cs)))
		b = append(b, cs...)
		b = binary.BigEndian.AppendUint16(b, uint16(len(tx)))
		b = append(b, tx...)
		return b, nil
	case tag.stringLike():
		if tag == EValueTag.OctetString() {
			return append([]byte(nil), v.Opaque...), nil
		}
		return []byte(v.Text), nil
	default:
		// Unrecognized concrete tag: opaque copy (spec.md §4.1).
		return append([]byte(nil), v.Opaque...), nil
	}
}

// ReadStream decodes a catalog previously produced by WriteStream. The
// input catalog is left unmodified on failure (spec.md §7): decoding
// builds into a fresh Catalog and only returns it on success.
func ReadStream(r io.Reader) (*Catalog, error) {
	br := bufio.NewReaderSize(r, 4096)

	var hdr [8]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, errors.Wrap(ErrTruncated, "attr: header")
	}
	if hdr[0] != 1 {
		return nil, ErrBadVersion
	}
	c := &Catalog{
		VersionMajor: hdr[0],
		VersionMinor: hdr[1],
		OpOrStatus:   binary.BigEndian.Uint16(hdr[2:4]),
		RequestID:    binary.BigEndian.Uint32(hdr[4:8]),
	}

	currentGroup := EGroupTag.Zero()
	var current *Attribute
	for {
		tagByte, err := br.ReadByte()
		if err != nil {
			return nil, errors.Wrap(ErrTruncated, "attr: tag")
		}
		if tagByte == endTag {
			return c, nil
		}
		if tagByte < groupTagCeiling {
			currentGroup = GroupTag(tagByte)
			c.attrs = append(c.attrs, &Attribute{Group: currentGroup, Separator: true})
			c.currentGroup, c.groupSet = currentGroup, true
			current = nil
			continue
		}

		tag := ValueTag(tagByte)
		name, err := readUint16String(br, MaxNameBytes)
		if err != nil {
			return nil, errors.Wrap(err, "attr: name")
		}
		value, err := decodeValue(br, tag)
		if err != nil {
			return nil, errors.Wrap(err, "attr: value")
		}
		if name == "" {
			if current == nil {
				return nil, ErrNoCurrentAttr
			}
			current.Values = append(current.Values, value)
			continue
		}
		a := &Attribute{Group: currentGroup, Tag: tag, Name: name, Values: []Value{value}}
		c.attrs = append(c.attrs, a)
		current = a
	}
}

func readUint16String(br *bufio.Reader, max int) (string, error) {
	var lb [2]byte
	if _, err := io.ReadFull(br, lb[:]); err != nil {
		return "", errors.Wrap(ErrTruncated, "length")
	}
	n := int(binary.BigEndian.Uint16(lb[:]))
	if n > max {
		if max == MaxNameBytes {
			return "", ErrOversizedName
		}
		return "", ErrOversizedValue
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", errors.Wrap(ErrTruncated, "bytes")
	}
	return string(buf), nil
}

func decodeValue(br *bufio.Reader, tag ValueTag) (Value, error) {
	if tag.IsOutOfBand() {
		var lb [2]byte
		if _, err := io.ReadFull(br, lb[:]); err != nil {
			return Value{}, errors.Wrap(ErrTruncated, "out-of-band length")
		}
		n := int(binary.BigEndian.Uint16(lb[:]))
		if n > 0 {
			if _, err := io.CopyN(io.Discard, br, int64(n)); err != nil {
				return Value{}, errors.Wrap(ErrTruncated, "out-of-band payload")
			}
		}
		return Value{}, nil
	}

	var lb [2]byte
	if _, err := io.ReadFull(br, lb[:]); err != nil {
		return Value{}, errors.Wrap(ErrTruncated, "value length")
	}
	n := int(binary.BigEndian.Uint16(lb[:]))
	if n > MaxValueBytes {
		return Value{}, ErrOversizedValue
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(br, payload); err != nil {
		return Value{}, errors.Wrap(ErrTruncated, "value payload")
	}

	switch {
	case tag == EValueTag.Integer() || tag == EValueTag.Enum():
		if len(payload) != 4 {
			return Value{}, ErrOversizedValue
		}
		return Value{Integer: int32(binary.BigEndian.Uint32(payload))}, nil
	case tag == EValueTag.Boolean():
		if len(payload) != 1 {
			return Value{}, ErrOversizedValue
		}
		return Value{Boolean: payload[0] != 0}, nil
	case tag == EValueTag.DateTime():
		var v Value
		copy(v.Date[:], payload)
		return v, nil
	case tag == EValueTag.Resolution():
		if len(payload) != 9 {
			return Value{}, ErrOversizedValue
		}
		return Value{Resolution: Resolution{
			XRes: int32(binary.BigEndian.Uint32(payload[0:4])),
			YRes: int32(binary.BigEndian.Uint32(payload[4:8])),
			Unit: ResolutionUnit(payload[8]),
		}}, nil
	case tag == EValueTag.RangeOfInteger():
		if len(payload) != 8 {
			return Value{}, ErrOversizedValue
		}
		return Value{Range: IntRange{
			Lower: int32(binary.BigEndian.Uint32(payload[0:4])),
			Upper: int32(binary.BigEndian.Uint32(payload[4:8])),
		}}, nil
	case tag.languageQualified():
		if len(payload) < 2 {
			return Value{}, ErrOversizedValue
		}
		csLen := int(binary.BigEndian.Uint16(payload[0:2]))
		if 2+csLen+2 > len(payload) {
			return Value{}, ErrOversizedValue
		}
		cs := string(payload[2 : 2+csLen])
		rest := payload[2+csLen:]
		if len(rest) < 2 {
			return Value{}, ErrOversizedValue
		}
		txLen := int(binary.BigEndian.Uint16(rest[0:2]))
		if 2+txLen != len(rest) {
			return Value{}, ErrOversizedValue
		}
		return Value{Charset: cs, Text: string(rest[2:])}, nil
	case tag == EValueTag.OctetString():
		return Value{Opaque: payload}, nil
	case tag.stringLike():
		return Value{Text: string(payload)}, nil
	default:
		return Value{Opaque: payload}, nil
	}
}
