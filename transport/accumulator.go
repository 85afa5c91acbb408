package transport

import (
	"errors"
	"fmt"
)

// DefaultAccumulatorSize matches the firmware's 256 byte receive buffer.
const DefaultAccumulatorSize = 256

// ErrOverflow means a frame or unframed read did not fit the receive buffer.
var ErrOverflow = errors.New("frame exceeds buffer")

// Accumulator collects COBS frames out of an arbitrarily chunked byte stream.
//
// Bytes are buffered until a Delimiter arrives; the buffered frame is then un-stuffed and
// handed to the caller. A frame that does not fit or fails to un-stuff is dropped and the
// accumulator resynchronizes on the next delimiter.
type Accumulator struct {
	buf      []byte
	idx      int
	overfull bool
	scratch  []byte
}

// NewAccumulator returns an accumulator that holds at most size stuffed bytes per frame.
func NewAccumulator(size int) *Accumulator {
	if size <= 0 {
		size = DefaultAccumulatorSize
	}
	return &Accumulator{
		buf:     make([]byte, size),
		scratch: make([]byte, 0, size),
	}
}

// Feed consumes chunk and calls fn once per completed frame, either with the un-stuffed
// message bytes or with the reason the frame was dropped. The message slice is only valid
// during the call. Empty frames (back to back delimiters) are skipped silently.
func (a *Accumulator) Feed(chunk []byte, fn func(msg []byte, err error)) {
	for _, b := range chunk {
		if b != Delimiter {
			if a.idx < len(a.buf) {
				a.buf[a.idx] = b
				a.idx++
			} else {
				a.overfull = true
			}
			continue
		}

		switch {
		case a.overfull:
			fn(nil, fmt.Errorf("frame larger than %d bytes: %w", len(a.buf), ErrOverflow))
		case a.idx == 0:
		default:
			msg, err := DecodeCOBS(a.scratch[:0], a.buf[:a.idx])
			if err != nil {
				fn(nil, err)
			} else {
				fn(msg, nil)
			}
		}
		a.Reset()
	}
}

// Buffered reports how many bytes of an incomplete frame are held.
func (a *Accumulator) Buffered() int {
	return a.idx
}

// Reset discards any partial frame.
func (a *Accumulator) Reset() {
	a.idx = 0
	a.overfull = false
}
