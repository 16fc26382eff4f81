package frame

import (
	"encoding/binary"
	"iter"
)

const minCompactBytes = 4 * 1024

// Decoder accumulates stream bytes and extracts complete frames.
// It is not safe for concurrent use; the connection read loop is its only
// caller.
type Decoder struct {
	limits Limits
	buf    []byte
	off    int
	err    error
}

func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits.withDefaults()}
}

// Push appends p to the buffer and returns the frames that are now complete.
// Frames are extracted lazily as the sequence is ranged over; anything not
// consumed stays buffered for the next call. A framing error is sticky: it
// ends the sequence and every later Push or Next yields it again until Reset.
func (d *Decoder) Push(p []byte) iter.Seq2[Frame, error] {
	d.write(p)
	return func(yield func(Frame, error) bool) {
		for {
			f, ok, err := d.Next()
			if err != nil {
				yield(Frame{}, err)
				return
			}
			if !ok {
				return
			}
			if !yield(f, nil) {
				return
			}
		}
	}
}

// Next extracts one frame if a complete one is buffered.
func (d *Decoder) Next() (Frame, bool, error) {
	if d.err != nil {
		return Frame{}, false, d.err
	}
	avail := d.buf[d.off:]
	if len(avail) < PrefixLen {
		return Frame{}, false, nil
	}
	n := binary.BigEndian.Uint32(avail[:PrefixLen])
	if n > d.limits.MaxPayloadBytes {
		d.err = &FramingError{Declared: n, Max: d.limits.MaxPayloadBytes}
		return Frame{}, false, d.err
	}
	end := PrefixLen + int(n)
	if len(avail) < end {
		return Frame{}, false, nil
	}
	f := New(avail[PrefixLen:end])
	d.off += end
	if d.off == len(d.buf) {
		d.buf = d.buf[:0]
		d.off = 0
	}
	return f, true, nil
}

// Buffered reports the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.off
}

// Err returns the sticky framing error, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Reset drops buffered bytes and clears a previous framing error.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.off = 0
	d.err = nil
}

func (d *Decoder) write(p []byte) {
	if len(p) == 0 || d.err != nil {
		return
	}
	// slide unread bytes to the front once the consumed prefix dominates
	if d.off > 0 && d.off >= minCompactBytes && d.off >= len(d.buf)/2 {
		n := copy(d.buf, d.buf[d.off:])
		d.buf = d.buf[:n]
		d.off = 0
	}
	d.buf = append(d.buf, p...)
}
