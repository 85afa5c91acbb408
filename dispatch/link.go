package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/linht/fem-controller/transport"
)

const readErrorBackoff = 100 * time.Millisecond

// Link connects a serial port to a Dispatcher. The port's read should return periodically
// (a read timeout) so that Run can observe cancellation.
type Link struct {
	port     io.ReadWriter
	deframer *transport.Deframer
	disp     *Dispatcher
	readBuf  []byte
	log      *slog.Logger
}

// NewLink returns a link reading frames from port with the given framing. bufSize bounds
// one stuffed frame.
func NewLink(port io.ReadWriter, framing transport.Framing, bufSize int, disp *Dispatcher, log *slog.Logger) *Link {
	if bufSize <= 0 {
		bufSize = transport.DefaultAccumulatorSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Link{
		port:     port,
		deframer: transport.NewDeframer(framing, bufSize),
		disp:     disp,
		readBuf:  make([]byte, bufSize),
		log:      log,
	}
}

// Run reads from the port and dispatches frames until ctx is done.
func (l *Link) Run(ctx context.Context) error {
	l.log.Info("MnC link running", "framing", l.deframer.Framing())
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := l.port.Read(l.readBuf)
		if n > 0 {
			l.Feed(l.readBuf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) && n == 0 {
				return fmt.Errorf("serial port closed: %w", err)
			}
			// a failed read may leave a partial frame behind
			l.log.Warn("Serial read failed", "error", err, "discarded", l.deframer.Buffered())
			l.deframer.Reset()
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readErrorBackoff):
			}
		}
	}
}

// Feed pushes one chunk of received bytes through the deframer and dispatcher.
func (l *Link) Feed(chunk []byte) {
	l.deframer.Feed(chunk, func(msg []byte, err error) {
		// transmit failures are logged by the dispatcher; the host retries on timeout
		_ = l.disp.HandleFrame(msg, err, l.send)
	})
}

func (l *Link) send(resp transport.Response) error {
	frame, err := l.deframer.Framing().FrameResponse(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if _, err := l.port.Write(frame); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
