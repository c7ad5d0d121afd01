// Package tagvalue implements a minimal FIX tag=value codec sufficient to
// drive the session engine end-to-end in tests and examples. It is
// deliberately not a FIX-specification-XML-driven codec — that remains an
// external collaborator per the core's scope — but it satisfies
// message.Codec so the rest of the engine is exercised against a real wire
// format rather than a stub.
package tagvalue

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/marmos91/fixengine/pkg/message"
)

// SOH is the FIX field delimiter, ASCII 0x01.
const SOH = 0x01

// Codec implements message.Codec using plain SOH-delimited tag=value pairs.
type Codec struct{}

// New returns a ready-to-use Codec.
func New() *Codec {
	return &Codec{}
}

// Encode serializes m into wire bytes, computing BodyLength (tag 9) and
// CheckSum (tag 10): BodyLength counts bytes between the SOH after
// "9=…" and the SOH before "10=…"; CheckSum is the sum of all preceding
// bytes modulo 256, printed as three zero-padded decimal digits.
func (c *Codec) Encode(m *message.Message) ([]byte, error) {
	beginString, ok := m.Get(message.TagBeginString)
	if !ok {
		return nil, &message.CodecError{Reason: "missing BeginString (tag 8)"}
	}

	var body bytes.Buffer
	for _, f := range m.Fields() {
		switch f.Tag {
		case message.TagBeginString, message.TagBodyLength, message.TagCheckSum:
			continue // header/trailer fields are stamped separately below
		}
		writeField(&body, f.Tag, f.Value)
	}

	var out bytes.Buffer
	writeField(&out, message.TagBeginString, beginString)
	writeField(&out, message.TagBodyLength, []byte(strconv.Itoa(body.Len())))
	out.Write(body.Bytes())

	checksum := sumBytes(out.Bytes()) % 256
	writeField(&out, message.TagCheckSum, []byte(fmt.Sprintf("%03d", checksum)))

	return out.Bytes(), nil
}

func writeField(buf *bytes.Buffer, tag int, value []byte) {
	buf.WriteString(strconv.Itoa(tag))
	buf.WriteByte('=')
	buf.Write(value)
	buf.WriteByte(SOH)
}

func sumBytes(b []byte) int {
	sum := 0
	for _, c := range b {
		sum += int(c)
	}
	return sum
}

// Decode parses raw wire bytes into a Message, verifying CheckSum and
// BodyLength. A malformed message yields a *message.CodecError.
func (c *Codec) Decode(raw []byte) (*message.Message, error) {
	if len(raw) == 0 {
		return nil, &message.CodecError{Reason: "empty input"}
	}

	fieldsRaw := bytes.Split(bytes.TrimSuffix(raw, []byte{SOH}), []byte{SOH})
	if len(fieldsRaw) < 3 {
		return nil, &message.CodecError{Reason: "too few fields"}
	}

	msg := message.New()
	var bodyLenDeclared int
	var checksumDeclared string
	bodyStart := -1

	for i, fr := range fieldsRaw {
		tag, value, err := splitField(fr)
		if err != nil {
			return nil, &message.CodecError{Reason: err.Error()}
		}

		switch tag {
		case message.TagBodyLength:
			n, err := strconv.Atoi(string(value))
			if err != nil {
				return nil, &message.CodecError{Reason: "invalid BodyLength"}
			}
			bodyLenDeclared = n
			bodyStart = i + 1
			continue
		case message.TagCheckSum:
			checksumDeclared = string(value)
		}

		msg.Set(tag, value)
	}

	if bodyStart < 0 {
		return nil, &message.CodecError{Reason: "missing BodyLength (tag 9)"}
	}

	bodyAndTrailer := bytes.Join(fieldsRaw[bodyStart:], []byte{SOH})
	bodyAndTrailer = append(bodyAndTrailer, SOH)
	trailerFieldLen := len(fmt.Sprintf("%d=%s", message.TagCheckSum, checksumDeclared)) + 1
	if len(bodyAndTrailer) < trailerFieldLen {
		return nil, &message.CodecError{Reason: "truncated trailer"}
	}
	actualBodyLen := len(bodyAndTrailer) - trailerFieldLen
	if actualBodyLen != bodyLenDeclared {
		return nil, &message.CodecError{Reason: "BodyLength mismatch"}
	}

	prefixEnd := len(raw) - trailerFieldLen
	if prefixEnd < 0 || prefixEnd > len(raw) {
		return nil, &message.CodecError{Reason: "malformed trailer"}
	}
	computed := sumBytes(raw[:prefixEnd]) % 256
	if fmt.Sprintf("%03d", computed) != checksumDeclared {
		return nil, &message.CodecError{Reason: "CheckSum mismatch"}
	}

	return msg, nil
}

func splitField(fr []byte) (int, []byte, error) {
	eq := bytes.IndexByte(fr, '=')
	if eq < 0 {
		return 0, nil, fmt.Errorf("malformed field %q", fr)
	}
	tag, err := strconv.Atoi(string(fr[:eq]))
	if err != nil {
		return 0, nil, fmt.Errorf("non-numeric tag in field %q", fr)
	}
	return tag, fr[eq+1:], nil
}

var _ message.Codec = (*Codec)(nil)
