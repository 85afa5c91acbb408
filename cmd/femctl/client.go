package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/linht/fem-controller/transport"
)

// ErrTimeout means the FEM did not answer within the deadline.
var ErrTimeout = errors.New("no response from FEM")

// responseReader assembles one response from chunked reads.
type responseReader interface {
	// feed returns the response once complete; nil, nil means more bytes are needed.
	feed(chunk []byte) (transport.Response, error)
}

// frameReader reads a COBS framed response through the device's accumulator.
type frameReader struct {
	deframer *transport.Deframer
}

func (f *frameReader) feed(chunk []byte) (transport.Response, error) {
	var (
		resp    transport.Response
		respErr error
	)
	f.deframer.Feed(chunk, func(msg []byte, ferr error) {
		if resp != nil || respErr != nil {
			return
		}
		if ferr != nil {
			respErr = fmt.Errorf("bad frame: %w", ferr)
			return
		}
		resp, respErr = transport.DecodeResponse(msg)
	})
	return resp, respErr
}

// rawReader reads an unframed response. Messages are self-delimiting, so bytes are
// collected until one decodes.
type rawReader struct {
	buf []byte
}

func (r *rawReader) feed(chunk []byte) (transport.Response, error) {
	r.buf = append(r.buf, chunk...)
	resp, n, err := transport.UnmarshalResponse(r.buf)
	switch {
	case errors.Is(err, transport.ErrUnexpectedEOF) && len(r.buf) < transport.MaxMessageSize:
		return nil, nil
	case err != nil:
		return nil, err
	case n != len(r.buf):
		return nil, fmt.Errorf("%d extra bytes: %w", len(r.buf)-n, transport.ErrTrailingBytes)
	}
	return resp, nil
}

// exchange sends cmd and waits up to timeout for one response. The port's own read
// timeout must be shorter than timeout for the deadline to be honored.
func exchange(port io.ReadWriter, framing transport.Framing, cmd transport.Command, timeout time.Duration) (transport.Response, error) {
	frame, err := framing.FrameCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	if _, err := port.Write(frame); err != nil {
		return nil, fmt.Errorf("serial write failed: %w", err)
	}

	var rr responseReader = &rawReader{}
	if framing == transport.Delimited {
		rr = &frameReader{deframer: transport.NewDeframer(framing, transport.DefaultAccumulatorSize)}
	}
	buf := make([]byte, transport.DefaultAccumulatorSize)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		n, err := port.Read(buf)
		if n > 0 {
			resp, derr := rr.feed(buf[:n])
			if derr != nil {
				return nil, fmt.Errorf("couldn't deserialize response: %w", derr)
			}
			if resp != nil {
				return resp, nil
			}
		}
		if err != nil {
			return nil, fmt.Errorf("serial read failed: %w", err)
		}
	}
	return nil, fmt.Errorf("%w within %s", ErrTimeout, timeout)
}
