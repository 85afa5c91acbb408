package transport

import (
	"fmt"
	"strings"
)

// Framing selects how messages are delimited on the serial line.
type Framing int

const (
	// Delimited stuffs every message with COBS and terminates it with a zero byte.
	Delimited Framing = iota
	// Unframed writes each message as one bare read/write unit.
	Unframed
)

func (f Framing) String() string {
	switch f {
	case Delimited:
		return "delimited"
	case Unframed:
		return "unframed"
	default:
		return fmt.Sprintf("Framing(%d)", int(f))
	}
}

// ParseFraming accepts "delimited"/"cobs" or "unframed"/"raw".
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "delimited", "cobs":
		return Delimited, nil
	case "unframed", "raw":
		return Unframed, nil
	default:
		return 0, fmt.Errorf("unknown framing %q (use delimited or unframed)", s)
	}
}

// FrameCommand encodes cmd ready to be written to the line.
func (f Framing) FrameCommand(cmd Command) ([]byte, error) {
	msg, err := EncodeCommand(cmd)
	if err != nil {
		return nil, err
	}
	return f.frame(msg), nil
}

// FrameResponse encodes resp ready to be written to the line.
func (f Framing) FrameResponse(resp Response) ([]byte, error) {
	msg, err := EncodeResponse(resp)
	if err != nil {
		return nil, err
	}
	return f.frame(msg), nil
}

func (f Framing) frame(msg []byte) []byte {
	if f == Unframed {
		return msg
	}
	return AppendCOBS(make([]byte, 0, len(msg)+len(msg)/254+2), msg)
}

// Deframer splits raw reads from the line into message bytes.
type Deframer struct {
	framing Framing
	acc     *Accumulator
}

// NewDeframer returns a deframer for f. bufSize bounds one stuffed frame under Delimited.
func NewDeframer(f Framing, bufSize int) *Deframer {
	d := &Deframer{framing: f}
	if f == Delimited {
		d.acc = NewAccumulator(bufSize)
	}
	return d
}

// Framing reports the policy this deframer applies.
func (d *Deframer) Framing() Framing {
	return d.framing
}

// Feed hands every complete message in chunk to fn. Under Unframed the whole chunk is taken
// as exactly one message.
func (d *Deframer) Feed(chunk []byte, fn func(msg []byte, err error)) {
	if d.framing == Delimited {
		d.acc.Feed(chunk, fn)
		return
	}
	if len(chunk) == 0 {
		return
	}
	if len(chunk) > MaxMessageSize {
		fn(nil, fmt.Errorf("%d byte read: %w", len(chunk), ErrOverflow))
		return
	}
	fn(chunk, nil)
}

// Buffered reports how many bytes of an incomplete frame are held. It is always 0 under
// Unframed.
func (d *Deframer) Buffered() int {
	if d.acc == nil {
		return 0
	}
	return d.acc.Buffered()
}

// Reset drops any partially received frame.
func (d *Deframer) Reset() {
	if d.acc != nil {
		d.acc.Reset()
	}
}
