// Command femctl talks to an FEM controller over its MnC serial link.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"go.bug.st/serial"

	"github.com/linht/fem-controller/transport"
)

const femBaud = 115200

func fail(err error) {
	color.New(color.FgHiRed).Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func main() {
	opts := parseArgs()
	if opts.noColor {
		color.NoColor = true
	}

	port, err := serial.Open(opts.port, &serial.Mode{
		BaudRate: femBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		fail(fmt.Errorf("failed to open serial port: %w", err))
	}
	defer port.Close()

	readTimeout := opts.timeout / 10
	if readTimeout < time.Millisecond {
		readTimeout = time.Millisecond
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		fail(fmt.Errorf("failed to set read timeout: %w", err))
	}

	resp, err := exchange(port, opts.framing, opts.command, opts.timeout)
	if err != nil {
		port.Close()
		fail(err)
	}
	printResponse(os.Stdout, opts.command, resp)
}

func printResponse(w io.Writer, cmd transport.Command, resp transport.Response) {
	label := color.New(color.FgHiWhite, color.Bold)
	ok := color.New(color.FgHiGreen)

	switch r := resp.(type) {
	case transport.Ack:
		ok.Fprintf(w, "%s acknowledged\n", transport.CommandName(cmd))
	case transport.MonitorReport:
		p := r.Payload
		label.Fprintln(w, "FEM monitor")
		fmt.Fprintf(w, "  IF1 power      %8.2f dBm\n", p.IF1Power)
		fmt.Fprintf(w, "  IF2 power      %8.2f dBm\n", p.IF2Power)
		fmt.Fprintf(w, "  IC temp        %8.2f °C\n", p.ICTemp)
		fmt.Fprintf(w, "  Surface temp   %8.2f °C\n", p.SurfaceTemp)
		printRail(w, "LNA1", p.LNA1Power)
		printRail(w, "LNA2", p.LNA2Power)
		printRail(w, "Analog", p.AnalogPower)
	default:
		fmt.Fprintf(w, "unexpected response %#v\n", resp)
	}
}

func printRail(w io.Writer, name string, p transport.Power) {
	fmt.Fprintf(w, "  %-6s rail    %8.3f V  %8.4f A\n", name, p.Voltage, p.Current)
}
