// Package console is a single-byte command console for bench testing ESCs
// over a serial link.
package console

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/BryanSouza91/QuadFC/dshot"
)

// Command is one console command: a flag byte followed by InputSize argument
// bytes.
type Command struct {
	Flag      byte
	InputSize uint
	// WhileArmed allows the command while the motors are armed.
	WhileArmed  bool
	Run         func(context.Context, Controller, []byte) error
	Description string
}

// Controller is the device the console drives.
type Controller interface {
	Armed() bool
	Beacon(ctx context.Context, n int, target dshot.Selector) error
	SetSpinDirection(ctx context.Context, target dshot.Selector, reversed bool) error
	Set3DMode(ctx context.Context, target dshot.Selector, on bool) error
	SetLED(ctx context.Context, target dshot.Selector, led int, on bool) error
	MotorStop(ctx context.Context) error
	Verbose()

	// I/O
	ReadByte() (byte, error)
}

var (
	// ErrArmed is returned for commands that need the motors disarmed.
	ErrArmed = errors.New("console: refused while armed")
	// ErrInvalidInput is returned for a malformed argument byte.
	ErrInvalidInput = errors.New("console: invalid input")
)

var (
	BeaconCommand = &Command{
		Flag:      'B',
		InputSize: 2,
		Run: func(ctx context.Context, c Controller, b []byte) error {
			target, err := parseTarget(b[0])
			if err != nil {
				return err
			}
			n := b2i(b[1])
			if n < 1 || n > 5 {
				return errors.Wrapf(ErrInvalidInput, "beacon %q", b[1])
			}
			return c.Beacon(ctx, n, target)
		},
		Description: "Play a beacon tone. Input: target, then tone 1-5.",
	}
	DirectionCommand = &Command{
		Flag:      'D',
		InputSize: 2,
		Run: func(ctx context.Context, c Controller, b []byte) error {
			target, err := parseTarget(b[0])
			if err != nil {
				return err
			}
			switch b[1] {
			case 'N':
				return c.SetSpinDirection(ctx, target, false)
			case 'R':
				return c.SetSpinDirection(ctx, target, true)
			}
			return errors.Wrapf(ErrInvalidInput, "direction %q", b[1])
		},
		Description: "Set and save spin direction. Input: target, then 'N' (normal) or 'R' (reversed).",
	}
	Mode3DCommand = &Command{
		Flag:      '3',
		InputSize: 2,
		Run: func(ctx context.Context, c Controller, b []byte) error {
			target, err := parseTarget(b[0])
			if err != nil {
				return err
			}
			on, err := parseSwitch(b[1])
			if err != nil {
				return err
			}
			return c.Set3DMode(ctx, target, on)
		},
		Description: "Turn 3D mode off or on and save. Input: target, then '0' or '1'.",
	}
	LEDCommand = &Command{
		Flag:      'L',
		InputSize: 3,
		Run: func(ctx context.Context, c Controller, b []byte) error {
			target, err := parseTarget(b[0])
			if err != nil {
				return err
			}
			led := int(b[1]) - '0'
			if led < 0 || led > 3 {
				return errors.Wrapf(ErrInvalidInput, "led %q", b[1])
			}
			on, err := parseSwitch(b[2])
			if err != nil {
				return err
			}
			return c.SetLED(ctx, target, led, on)
		},
		Description: "Switch an ESC LED. Input: target, LED 0-3, then '0' or '1'.",
	}
	StopCommand = &Command{
		Flag:       'S',
		InputSize:  0,
		WhileArmed: true,
		Run: func(ctx context.Context, c Controller, b []byte) error {
			return c.MotorStop(ctx)
		},
		Description: "Stop all motors.",
	}
	VerboseCommand = &Command{
		Flag:       'V',
		InputSize:  0,
		WhileArmed: true,
		Run: func(ctx context.Context, c Controller, b []byte) error {
			c.Verbose()
			return nil
		},
		Description: "Toggle verbose output.",
	}
	HelpCommand = &Command{
		Flag:        '?',
		InputSize:   0,
		WhileArmed:  true,
		Description: "Show all available commands and their descriptions.",
		Run: func(ctx context.Context, c Controller, b []byte) error {
			println("Available Commands:")
			for _, cmd := range commands {
				println(string(cmd.Flag) + ": " + cmd.Description)
			}
			println("Targets: 1-4 motor, A all, l left, r right, f front, b back.")
			return nil
		},
	}
)

var commands = []*Command{
	BeaconCommand,
	DirectionCommand,
	Mode3DCommand,
	LEDCommand,
	StopCommand,
	VerboseCommand,
}

// Lookup returns the command for flag.
func Lookup(flag byte) (*Command, bool) {
	if flag == HelpCommand.Flag {
		return HelpCommand, true
	}
	for _, cmd := range commands {
		if cmd.Flag == flag {
			return cmd, true
		}
	}
	return nil, false
}

// Exec runs cmd with its argument bytes, refusing it while armed unless the
// command allows that.
func Exec(ctx context.Context, c Controller, cmd *Command, in []byte) error {
	if uint(len(in)) != cmd.InputSize {
		return errors.Wrapf(ErrInvalidInput, "%c wants %d bytes, got %d", cmd.Flag, cmd.InputSize, len(in))
	}
	if !cmd.WhileArmed && c.Armed() {
		return errors.Wrapf(ErrArmed, "%c", cmd.Flag)
	}
	return cmd.Run(ctx, c, in)
}

// Run reads commands from c until ctx is done or the input reaches EOF.
// Unknown flags are ignored. Command errors are printed and do not stop the
// console.
func Run(ctx context.Context, c Controller) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cmdIn, err := readByte(ctx, c)
		if err != nil {
			return ignoreEOF(err)
		}

		cmd, ok := Lookup(cmdIn)
		if !ok {
			continue
		}

		in := make([]byte, cmd.InputSize)
		for i := range in {
			in[i], err = readByte(ctx, c)
			if err != nil {
				return ignoreEOF(err)
			}
		}

		if err := Exec(ctx, c, cmd, in); err != nil {
			println("error:", err.Error())
		}
	}
}

// readByte retries until a byte arrives. UARTs report an empty buffer as an
// error, so only EOF and cancellation end the wait.
func readByte(ctx context.Context, c Controller) (byte, error) {
	for {
		b, err := c.ReadByte()
		if err == nil {
			return b, nil
		}
		if errors.Is(err, io.EOF) {
			return 0, err
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func parseTarget(b byte) (dshot.Selector, error) {
	switch b {
	case '1', '2', '3', '4':
		return dshot.Only(dshot.Motor(b - '1')), nil
	case 'A':
		return dshot.All, nil
	case 'l':
		return dshot.LeftSide, nil
	case 'r':
		return dshot.RightSide, nil
	case 'f':
		return dshot.FrontSide, nil
	case 'b':
		return dshot.BackSide, nil
	}
	return 0, errors.Wrapf(ErrInvalidInput, "target %q", b)
}

func parseSwitch(b byte) (bool, error) {
	switch b {
	case '0':
		return false, nil
	case '1':
		return true, nil
	}
	return false, errors.Wrapf(ErrInvalidInput, "switch %q", b)
}

func b2i(b byte) int {
	return int(b) - '0'
}
