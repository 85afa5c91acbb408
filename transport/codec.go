package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Wire layout
//
// Every message is a variant tag followed by that variant's fields, in declaration order.
// Tags are unsigned LEB128 varints, float32 values are 4 bytes little-endian and bools are
// a single 0x00/0x01 byte. The message type fixes the layout, so an encoded message carries
// its own length without any header.

// Command tags
const (
	tagMonitorRequest = 0
	tagControl        = 1
)

// Action tags
const (
	tagSetIfLevel = 0
	tagLna1Power  = 1
	tagLna2Power  = 2
	tagSetAtten   = 3
	tagSetCal1    = 4
	tagSetCal2    = 5
)

// Response tags
const (
	tagMonitorReport = 0
	tagAck           = 1
)

// MaxMessageSize bounds any single encoded (unframed) message.
const MaxMessageSize = 64

var (
	// ErrUnexpectedEOF means the message ended before all of its fields were read.
	ErrUnexpectedEOF = errors.New("unexpected end of message")
	// ErrUnknownTag means a variant tag names no known command, action or response.
	ErrUnknownTag = errors.New("unknown variant tag")
	// ErrInvalidBool means a bool field held a byte other than 0 or 1.
	ErrInvalidBool = errors.New("invalid bool encoding")
	// ErrTrailingBytes means bytes were left over after one complete message.
	ErrTrailingBytes = errors.New("trailing bytes after message")
	// ErrVarintRange means a varint did not fit in 32 bits.
	ErrVarintRange = errors.New("varint overflows u32")
)

// AppendCommand appends the binary encoding of cmd to dst.
func AppendCommand(dst []byte, cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case MonitorRequest:
		return appendVarint(dst, tagMonitorRequest), nil
	case Control:
		dst = appendVarint(dst, tagControl)
		return appendAction(dst, c.Action)
	default:
		return dst, fmt.Errorf("cannot encode command %T", cmd)
	}
}

func appendAction(dst []byte, a Action) ([]byte, error) {
	switch v := a.(type) {
	case SetIfLevel:
		dst = appendVarint(dst, tagSetIfLevel)
		return appendFloat(dst, v.Threshold), nil
	case Lna1Power:
		dst = appendVarint(dst, tagLna1Power)
		return appendBool(dst, v.Enabled), nil
	case Lna2Power:
		dst = appendVarint(dst, tagLna2Power)
		return appendBool(dst, v.Enabled), nil
	case SetAtten:
		dst = appendVarint(dst, tagSetAtten)
		return appendFloat(dst, v.Level), nil
	case SetCal1:
		dst = appendVarint(dst, tagSetCal1)
		return appendBool(dst, v.Enabled), nil
	case SetCal2:
		dst = appendVarint(dst, tagSetCal2)
		return appendBool(dst, v.Enabled), nil
	default:
		return dst, fmt.Errorf("cannot encode action %T", a)
	}
}

// AppendResponse appends the binary encoding of resp to dst.
func AppendResponse(dst []byte, resp Response) ([]byte, error) {
	switch r := resp.(type) {
	case MonitorReport:
		dst = appendVarint(dst, tagMonitorReport)
		return appendPayload(dst, r.Payload), nil
	case Ack:
		return appendVarint(dst, tagAck), nil
	default:
		return dst, fmt.Errorf("cannot encode response %T", resp)
	}
}

func appendPayload(dst []byte, p MonitorPayload) []byte {
	dst = appendFloat(dst, p.IF1Power)
	dst = appendFloat(dst, p.IF2Power)
	dst = appendFloat(dst, p.ICTemp)
	dst = appendFloat(dst, p.SurfaceTemp)
	for _, pw := range []Power{p.LNA1Power, p.LNA2Power, p.AnalogPower} {
		dst = appendFloat(dst, pw.Voltage)
		dst = appendFloat(dst, pw.Current)
	}
	return dst
}

// EncodeCommand returns the binary encoding of cmd.
func EncodeCommand(cmd Command) ([]byte, error) {
	return AppendCommand(make([]byte, 0, 8), cmd)
}

// EncodeResponse returns the binary encoding of resp.
func EncodeResponse(resp Response) ([]byte, error) {
	return AppendResponse(make([]byte, 0, MaxMessageSize), resp)
}

// DecodeCommand decodes exactly one command occupying all of b.
func DecodeCommand(b []byte) (Command, error) {
	cmd, n, err := UnmarshalCommand(b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, fmt.Errorf("%d extra bytes: %w", len(b)-n, ErrTrailingBytes)
	}
	return cmd, nil
}

// DecodeResponse decodes exactly one response occupying all of b.
func DecodeResponse(b []byte) (Response, error) {
	resp, n, err := UnmarshalResponse(b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, fmt.Errorf("%d extra bytes: %w", len(b)-n, ErrTrailingBytes)
	}
	return resp, nil
}

// UnmarshalCommand decodes the command at the start of b and reports how many bytes it used.
func UnmarshalCommand(b []byte) (Command, int, error) {
	r := reader{buf: b}
	tag, err := r.readVarint()
	if err != nil {
		return nil, 0, err
	}
	var cmd Command
	switch tag {
	case tagMonitorRequest:
		cmd = MonitorRequest{}
	case tagControl:
		a, err := r.readAction()
		if err != nil {
			return nil, 0, err
		}
		cmd = Control{Action: a}
	default:
		return nil, 0, fmt.Errorf("command tag %d: %w", tag, ErrUnknownTag)
	}
	return cmd, r.off, nil
}

// UnmarshalResponse decodes the response at the start of b and reports how many bytes it used.
func UnmarshalResponse(b []byte) (Response, int, error) {
	r := reader{buf: b}
	tag, err := r.readVarint()
	if err != nil {
		return nil, 0, err
	}
	var resp Response
	switch tag {
	case tagMonitorReport:
		p, err := r.readPayload()
		if err != nil {
			return nil, 0, err
		}
		resp = MonitorReport{Payload: p}
	case tagAck:
		resp = Ack{}
	default:
		return nil, 0, fmt.Errorf("response tag %d: %w", tag, ErrUnknownTag)
	}
	return resp, r.off, nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) readByte() (byte, error) {
	if r.off >= len(r.buf) {
		return 0, ErrUnexpectedEOF
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *reader) readVarint() (uint32, error) {
	var v uint32
	for i := 0; i < 5; i++ {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		if i == 4 && b > 0x0f {
			return 0, ErrVarintRange
		}
		v |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, ErrVarintRange
}

func (r *reader) readFloat() (float32, error) {
	if len(r.buf)-r.off < 4 {
		return 0, ErrUnexpectedEOF
	}
	bits := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return math.Float32frombits(bits), nil
}

func (r *reader) readBool() (bool, error) {
	b, err := r.readByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("byte 0x%02X: %w", b, ErrInvalidBool)
	}
}

func (r *reader) readAction() (Action, error) {
	tag, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagSetIfLevel, tagSetAtten:
		f, err := r.readFloat()
		if err != nil {
			return nil, err
		}
		if tag == tagSetIfLevel {
			return SetIfLevel{Threshold: f}, nil
		}
		return SetAtten{Level: f}, nil
	case tagLna1Power, tagLna2Power, tagSetCal1, tagSetCal2:
		en, err := r.readBool()
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagLna1Power:
			return Lna1Power{Enabled: en}, nil
		case tagLna2Power:
			return Lna2Power{Enabled: en}, nil
		case tagSetCal1:
			return SetCal1{Enabled: en}, nil
		default:
			return SetCal2{Enabled: en}, nil
		}
	default:
		return nil, fmt.Errorf("action tag %d: %w", tag, ErrUnknownTag)
	}
}

func (r *reader) readPayload() (MonitorPayload, error) {
	var fields [10]float32
	for i := range fields {
		f, err := r.readFloat()
		if err != nil {
			return MonitorPayload{}, err
		}
		fields[i] = f
	}
	return MonitorPayload{
		IF1Power:    fields[0],
		IF2Power:    fields[1],
		ICTemp:      fields[2],
		SurfaceTemp: fields[3],
		LNA1Power:   Power{Voltage: fields[4], Current: fields[5]},
		LNA2Power:   Power{Voltage: fields[6], Current: fields[7]},
		AnalogPower: Power{Voltage: fields[8], Current: fields[9]},
	}, nil
}

func appendVarint(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func appendFloat(dst []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
}

func appendBool(dst []byte, b bool) []byte {
	if b {
		return append(dst, 1)
	}
	return append(dst, 0)
}
