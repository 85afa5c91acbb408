package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pborman/getopt"

	"github.com/linht/fem-controller/atten"
	"github.com/linht/fem-controller/transport"
)

const usageCommands = `Commands:
  monitor                                 get monitor data from the FEM
  lna power <ch1|ch2> <enabled|disabled>  set the power state of an LNA
  lna cal <ch1|ch2> <enabled|disabled>    set the calibration tone of an LNA
  goodif <level>                          set the IF "power good" threshold in dBm
  attenuation <level>                     set the attenuation in dB (0 to 31.5)`

type options struct {
	port    string
	framing transport.Framing
	timeout time.Duration
	noColor bool
	command transport.Command
}

func parseArgs() options {
	h := getopt.BoolLong("help", 'h', "display help")
	f := getopt.StringLong("framing", 'f', "delimited", "wire framing: delimited or unframed")
	t := getopt.Uint16Long("timeout", 't', 100, "response timeout in milliseconds")
	n := getopt.BoolLong("no-color", 'n', "disable colored output")
	getopt.SetParameters("<port> <command> [args...]")

	getopt.Parse()
	args := getopt.Args()

	if *h || len(args) < 2 {
		getopt.Usage()
		fmt.Fprintln(os.Stderr, usageCommands)
		os.Exit(1)
	}

	framing, err := transport.ParseFraming(*f)
	if err != nil {
		fail(err)
	}
	cmd, err := buildCommand(args[1:])
	if err != nil {
		fail(err)
	}
	return options{
		port:    args[0],
		framing: framing,
		timeout: time.Duration(*t) * time.Millisecond,
		noColor: *n,
		command: cmd,
	}
}

// buildCommand turns the subcommand words into the command to send.
func buildCommand(args []string) (transport.Command, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing command")
	}
	switch strings.ToLower(args[0]) {
	case "monitor":
		if len(args) != 1 {
			return nil, fmt.Errorf("monitor takes no arguments")
		}
		return transport.MonitorRequest{}, nil

	case "lna":
		if len(args) != 4 {
			return nil, fmt.Errorf("usage: lna <power|cal> <ch1|ch2> <enabled|disabled>")
		}
		ch, err := parseLNAChannel(args[2])
		if err != nil {
			return nil, err
		}
		on, err := parseSetting(args[3])
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(args[1]) {
		case "power":
			if ch == 1 {
				return transport.Control{Action: transport.Lna1Power{Enabled: on}}, nil
			}
			return transport.Control{Action: transport.Lna2Power{Enabled: on}}, nil
		case "cal":
			if ch == 1 {
				return transport.Control{Action: transport.SetCal1{Enabled: on}}, nil
			}
			return transport.Control{Action: transport.SetCal2{Enabled: on}}, nil
		}
		return nil, fmt.Errorf("unknown lna command %q (use power or cal)", args[1])

	case "goodif":
		level, err := parseLevel(args)
		if err != nil {
			return nil, err
		}
		return transport.Control{Action: transport.SetIfLevel{Threshold: level}}, nil

	case "attenuation":
		level, err := parseLevel(args)
		if err != nil {
			return nil, err
		}
		if level < 0 || level > atten.MaxDB {
			return nil, fmt.Errorf("attenuation level must be between 0 and %.1f", atten.MaxDB)
		}
		return transport.Control{Action: transport.SetAtten{Level: level}}, nil
	}
	return nil, fmt.Errorf("unknown command %q", args[0])
}

func parseLNAChannel(s string) (int, error) {
	switch strings.ToLower(s) {
	case "ch1":
		return 1, nil
	case "ch2":
		return 2, nil
	}
	return 0, fmt.Errorf("invalid channel %q (use ch1 or ch2)", s)
}

func parseSetting(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "enabled":
		return true, nil
	case "disabled":
		return false, nil
	}
	return false, fmt.Errorf("invalid setting %q (use enabled or disabled)", s)
}

func parseLevel(args []string) (float32, error) {
	if len(args) != 2 {
		return 0, fmt.Errorf("usage: %s <level>", args[0])
	}
	v, err := strconv.ParseFloat(args[1], 32)
	if err != nil {
		return 0, fmt.Errorf("invalid level %q: %w", args[1], err)
	}
	return float32(v), nil
}
