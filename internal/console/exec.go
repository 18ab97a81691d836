// Package console is an interactive shell for driving the LEDs by hand.
package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"is31ledd/internal/ledservice"
)

var (
	// ErrQuit is returned by Exec for quit, exit and q.
	ErrQuit = errors.New("console: quit")

	ErrUnknownCommand = errors.New("console: unknown command")
	ErrUsage          = errors.New("console: usage")
)

// Controller is the LED service as seen by the console.
type Controller interface {
	Snapshot() ledservice.Snapshot
	Channel(index int) (ledservice.ChannelState, error)
	SetDuty(index, duty int) error
	SetAll(duty int) error
	Frequency() (int, error)
	SetFrequency(hz int) error
	Reset() error
}

const helpText = `Commands:
  get <ch>          show channel duty cycle (read from the chip)
  set <ch> <duty>   set channel duty cycle, 0..65535 (0x prefix for hex)
  all <duty>        set every channel
  freq [hz]         show or set PWM frequency (3000 or 22000)
  reset             soft-reset the chip
  status            show cached state of all channels
  help              this text
  quit              leave the console`

// Exec runs one command line and returns its output.
func Exec(ctl Controller, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		return helpText, nil
	case "get", "g":
		return cmdGet(ctl, args)
	case "set", "s":
		return cmdSet(ctl, args)
	case "all":
		return cmdAll(ctl, args)
	case "freq", "f":
		return cmdFreq(ctl, args)
	case "reset":
		if len(args) != 0 {
			return "", usage("reset")
		}
		if err := ctl.Reset(); err != nil {
			return "", err
		}
		return "OK", nil
	case "status":
		return formatStatus(ctl.Snapshot()), nil
	case "quit", "exit", "q":
		return "", ErrQuit
	default:
		return "", fmt.Errorf("%w: %s (type 'help' for commands)", ErrUnknownCommand, cmd)
	}
}

func usage(u string) error {
	return fmt.Errorf("%w: %s", ErrUsage, u)
}

// parseNumber accepts decimal or 0x-prefixed hex. Values that do not fit an
// int are rejected, never truncated.
func parseNumber(s string) (int, error) {
	v, err := strconv.ParseInt(s, 0, strconv.IntSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrUsage, s)
	}
	return int(v), nil
}

func cmdGet(ctl Controller, args []string) (string, error) {
	if len(args) != 1 {
		return "", usage("get <ch>")
	}
	idx, err := parseNumber(args[0])
	if err != nil {
		return "", err
	}
	st, err := ctl.Channel(idx)
	if err != nil {
		return "", err
	}
	return formatChannel(st), nil
}

func cmdSet(ctl Controller, args []string) (string, error) {
	if len(args) != 2 {
		return "", usage("set <ch> <duty>")
	}
	idx, err := parseNumber(args[0])
	if err != nil {
		return "", err
	}
	duty, err := parseNumber(args[1])
	if err != nil {
		return "", err
	}
	if err := ctl.SetDuty(idx, duty); err != nil {
		return "", err
	}
	return "OK", nil
}

func cmdAll(ctl Controller, args []string) (string, error) {
	if len(args) != 1 {
		return "", usage("all <duty>")
	}
	duty, err := parseNumber(args[0])
	if err != nil {
		return "", err
	}
	if err := ctl.SetAll(duty); err != nil {
		return "", err
	}
	return "OK", nil
}

func cmdFreq(ctl Controller, args []string) (string, error) {
	switch len(args) {
	case 0:
		hz, err := ctl.Frequency()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d Hz", hz), nil
	case 1:
		hz, err := parseNumber(args[0])
		if err != nil {
			return "", err
		}
		if err := ctl.SetFrequency(hz); err != nil {
			return "", err
		}
		return "OK", nil
	default:
		return "", usage("freq [hz]")
	}
}

func formatChannel(st ledservice.ChannelState) string {
	state := "off"
	if st.Enabled {
		state = "on"
	}
	return fmt.Sprintf("ch%-2d %-3s duty=0x%04X", st.Index, state, st.Duty)
}

func formatStatus(snap ledservice.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "address=0x%02X frequency=%dHz\n", snap.Address, snap.FrequencyHz)
	if snap.LastError != "" {
		fmt.Fprintf(&b, "last error: %s\n", snap.LastError)
	}
	for i, ch := range snap.Channels {
		b.WriteString(formatChannel(ch))
		if i%3 == 2 || i == len(snap.Channels)-1 {
			b.WriteByte('\n')
		} else {
			b.WriteString("   ")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
