package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/linht/fem-controller/transport"
)

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		args []string
		want transport.Command
	}{
		{[]string{"monitor"}, transport.MonitorRequest{}},
		{[]string{"lna", "power", "ch1", "enabled"}, transport.Control{Action: transport.Lna1Power{Enabled: true}}},
		{[]string{"lna", "power", "ch2", "disabled"}, transport.Control{Action: transport.Lna2Power{Enabled: false}}},
		{[]string{"lna", "cal", "ch1", "disabled"}, transport.Control{Action: transport.SetCal1{Enabled: false}}},
		{[]string{"LNA", "Cal", "CH2", "Enabled"}, transport.Control{Action: transport.SetCal2{Enabled: true}}},
		{[]string{"goodif", "-12.5"}, transport.Control{Action: transport.SetIfLevel{Threshold: -12.5}}},
		{[]string{"attenuation", "31.5"}, transport.Control{Action: transport.SetAtten{Level: 31.5}}},
		{[]string{"attenuation", "0"}, transport.Control{Action: transport.SetAtten{Level: 0}}},
	}
	for _, tt := range tests {
		got, err := buildCommand(tt.args)
		if err != nil {
			t.Errorf("buildCommand(%v): %v", tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("buildCommand(%v) = %#v, want %#v", tt.args, got, tt.want)
		}
	}
}

func TestBuildCommandErrors(t *testing.T) {
	tests := [][]string{
		nil,
		{"monitor", "now"},
		{"attenuation", "31.6"},
		{"attenuation", "-0.5"},
		{"attenuation", "lots"},
		{"goodif"},
		{"lna", "power", "ch3", "enabled"},
		{"lna", "power", "ch1", "on"},
		{"lna", "gain", "ch1", "enabled"},
		{"reboot"},
	}
	for _, args := range tests {
		if _, err := buildCommand(args); err == nil {
			t.Errorf("buildCommand(%v) returned no error", args)
		}
	}
}

// fakeFEM answers every command with a canned response, delivered in two reads when
// split falls inside the frame.
type fakeFEM struct {
	framing transport.Framing
	resp    transport.Response
	split   int
	written []byte
	pending [][]byte
}

func (f *fakeFEM) Write(b []byte) (int, error) {
	f.written = append(f.written, b...)
	if f.resp != nil {
		frame, err := f.framing.FrameResponse(f.resp)
		if err != nil {
			return 0, err
		}
		if f.split > 0 && f.split < len(frame) {
			f.pending = append(f.pending, frame[:f.split], frame[f.split:])
		} else {
			f.pending = append(f.pending, frame)
		}
	}
	return len(b), nil
}

func (f *fakeFEM) Read(b []byte) (int, error) {
	if len(f.pending) == 0 {
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(b, f.pending[0])
	f.pending = f.pending[1:]
	return n, nil
}

func TestExchangeDelimited(t *testing.T) {
	payload := transport.MonitorPayload{IF1Power: -3.5, LNA1Power: transport.Power{Voltage: 5, Current: 0.05}}
	fem := &fakeFEM{framing: transport.Delimited, resp: transport.MonitorReport{Payload: payload}, split: 2}

	resp, err := exchange(fem, transport.Delimited, transport.MonitorRequest{}, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if resp != (transport.MonitorReport{Payload: payload}) {
		t.Fatalf("response = %#v", resp)
	}
	if !bytes.Equal(fem.written, []byte{0x01, 0x01, 0x00}) {
		t.Fatalf("sent % X, want COBS-framed monitor command", fem.written)
	}
}

func TestExchangeUnframed(t *testing.T) {
	fem := &fakeFEM{framing: transport.Unframed, resp: transport.Ack{}}
	resp, err := exchange(fem, transport.Unframed, transport.Control{Action: transport.SetAtten{Level: 1}}, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if resp != (transport.Ack{}) {
		t.Fatalf("response = %#v, want Ack", resp)
	}
	if !bytes.Equal(fem.written, []byte{0x01, 0x03, 0x00, 0x00, 0x80, 0x3F}) {
		t.Fatalf("sent % X", fem.written)
	}
}

func TestExchangeUnframedSplitRead(t *testing.T) {
	payload := transport.MonitorPayload{ICTemp: 41.5, AnalogPower: transport.Power{Voltage: 3.3, Current: 0.2}}
	for _, split := range []int{1, 20, 40} {
		fem := &fakeFEM{framing: transport.Unframed, resp: transport.MonitorReport{Payload: payload}, split: split}
		resp, err := exchange(fem, transport.Unframed, transport.MonitorRequest{}, 100*time.Millisecond)
		if err != nil {
			t.Fatalf("split at %d: %v", split, err)
		}
		if resp != (transport.MonitorReport{Payload: payload}) {
			t.Fatalf("split at %d: response = %#v", split, resp)
		}
	}
}

func TestExchangeUnframedRejectsTrailingBytes(t *testing.T) {
	fem := &fakeFEM{framing: transport.Unframed}
	fem.pending = [][]byte{{0x01, 0x01}}
	if _, err := exchange(fem, transport.Unframed, transport.MonitorRequest{}, 50*time.Millisecond); !errors.Is(err, transport.ErrTrailingBytes) {
		t.Fatalf("err = %v, want ErrTrailingBytes", err)
	}
}

func TestExchangeTimeout(t *testing.T) {
	fem := &fakeFEM{framing: transport.Delimited}
	start := time.Now()
	_, err := exchange(fem, transport.Delimited, transport.MonitorRequest{}, 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("returned before the timeout elapsed")
	}
}

func TestExchangeDecodeFailure(t *testing.T) {
	fem := &fakeFEM{framing: transport.Delimited}
	fem.pending = [][]byte{{0x02, 0x07, 0x00}}
	if _, err := exchange(fem, transport.Delimited, transport.MonitorRequest{}, 50*time.Millisecond); err == nil || errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want decode failure", err)
	}
}

func TestPrintResponse(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	printResponse(&buf, transport.MonitorRequest{}, transport.MonitorReport{Payload: transport.MonitorPayload{IF2Power: -7.25}})
	if !strings.Contains(buf.String(), "IF2 power         -7.25 dBm") {
		t.Fatalf("monitor output:\n%s", buf.String())
	}

	buf.Reset()
	printResponse(&buf, transport.Control{Action: transport.SetCal1{Enabled: true}}, transport.Ack{})
	if strings.TrimSpace(buf.String()) != "set_cal1 acknowledged" {
		t.Fatalf("ack output = %q", buf.String())
	}
}
