package transport

import (
	"bufio"
	"fmt"
	"strconv"

	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/message/tagvalue"
)

// ReadMessage reads exactly one framed FIX message off r: the BeginString
// and BodyLength header fields, then BodyLength bytes of body, then the
// CheckSum trailer field. It does not validate BodyLength/CheckSum itself —
// that is the codec's job — it only knows how many bytes to read off the
// wire to hand the codec a complete message.
func ReadMessage(r *bufio.Reader) ([]byte, error) {
	beginField, err := readField(r)
	if err != nil {
		return nil, fmt.Errorf("read BeginString field: %w", err)
	}
	if tagOf(beginField) != message.TagBeginString {
		return nil, fmt.Errorf("expected BeginString (tag 8), got field %q", beginField)
	}

	bodyLenField, err := readField(r)
	if err != nil {
		return nil, fmt.Errorf("read BodyLength field: %w", err)
	}
	if tagOf(bodyLenField) != message.TagBodyLength {
		return nil, fmt.Errorf("expected BodyLength (tag 9), got field %q", bodyLenField)
	}
	bodyLen, err := strconv.Atoi(string(valueOf(bodyLenField)))
	if err != nil {
		return nil, fmt.Errorf("invalid BodyLength: %w", err)
	}

	body := make([]byte, bodyLen)
	if _, err := readFull(r, body); err != nil {
		return nil, fmt.Errorf("read body (%d bytes): %w", bodyLen, err)
	}

	checksumField, err := readField(r)
	if err != nil {
		return nil, fmt.Errorf("read CheckSum field: %w", err)
	}
	if tagOf(checksumField) != message.TagCheckSum {
		return nil, fmt.Errorf("expected CheckSum (tag 10), got field %q", checksumField)
	}

	out := make([]byte, 0, len(beginField)+1+len(bodyLenField)+1+len(body)+len(checksumField)+1)
	out = append(out, beginField...)
	out = append(out, tagvalue.SOH)
	out = append(out, bodyLenField...)
	out = append(out, tagvalue.SOH)
	out = append(out, body...)
	out = append(out, checksumField...)
	out = append(out, tagvalue.SOH)
	return out, nil
}

// readField reads bytes up to and including the next SOH, excluding the SOH
// from the returned slice.
func readField(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes(tagvalue.SOH)
	if err != nil {
		return nil, err
	}
	return line[:len(line)-1], nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func tagOf(field []byte) int {
	for i, b := range field {
		if b == '=' {
			n, err := strconv.Atoi(string(field[:i]))
			if err != nil {
				return -1
			}
			return n
		}
	}
	return -1
}

func valueOf(field []byte) []byte {
	for i, b := range field {
		if b == '=' {
			return field[i+1:]
		}
	}
	return nil
}
