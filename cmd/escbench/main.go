// escbench relays a terminal to the flight controller's bench console over
// USB serial.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.bug.st/serial"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	flagPort  = "port"
	flagBaud  = "baud"
	flagList  = "list"
	flagDebug = "debug"
)

// readTimeout is the serial read timeout, and how long the port must stay
// quiet after input ends before it is closed.
const readTimeout = 100 * time.Millisecond

func main() {
	var logger golog.Logger

	app := &cli.App{
		Name:  "escbench",
		Usage: "talk to the flight controller's ESC bench console",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagPort,
				Aliases: []string{"p"},
				Usage:   "serial `PORT` of the flight controller, e.g. /dev/ttyACM0",
			},
			&cli.IntFlag{
				Name:  flagBaud,
				Value: 115200,
				Usage: "baud rate",
			},
			&cli.BoolFlag{
				Name:  flagList,
				Usage: "list serial ports and exit",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = golog.NewDebugLogger("escbench")
			} else {
				logger = zap.NewNop().Sugar()
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			if c.Bool(flagList) {
				return listPorts(c.App.Writer)
			}
			name := c.String(flagPort)
			if name == "" {
				return errors.New("--port is required (see --list)")
			}

			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
			defer cancel()

			port, err := open(name, c.Int(flagBaud))
			if err != nil {
				return err
			}
			logger.Debugw("port open", "port", name, "baud", c.Int(flagBaud))
			fmt.Fprintf(c.App.ErrWriter, "connected to %s, type ? for help\n", name)
			return relay(ctx, port, os.Stdin, c.App.Writer, readTimeout)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "escbench:", err)
		os.Exit(1)
	}
}

func listPorts(w io.Writer) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		return errors.Wrap(err, "listing serial ports")
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(w, p)
	}
	return nil
}

func open(name string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", name)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		return nil, multierr.Append(errors.Wrap(err, "setting read timeout"), port.Close())
	}
	return port, nil
}

// activityWriter records when it last received data.
type activityWriter struct {
	w    io.Writer
	last atomic.Int64
}

func newActivityWriter(w io.Writer) *activityWriter {
	a := &activityWriter{w: w}
	a.touch()
	return a
}

func (a *activityWriter) touch() {
	a.last.Store(time.Now().UnixNano())
}

func (a *activityWriter) Write(b []byte) (int, error) {
	if len(b) > 0 {
		a.touch()
	}
	return a.w.Write(b)
}

func (a *activityWriter) quietFor() time.Duration {
	return time.Since(time.Unix(0, a.last.Load()))
}

// relay copies in to the port and the port to out until ctx is done or in is
// exhausted and the port has then been quiet for drain, then closes the port.
func relay(ctx context.Context, port io.ReadWriteCloser, in io.Reader, out io.Writer, drain time.Duration) error {
	sink := newActivityWriter(out)
	readDone := make(chan error, 1)
	go func() {
		_, err := io.Copy(sink, port)
		readDone <- err
	}()

	writeDone := make(chan error, 1)
	go func() {
		_, err := io.Copy(port, in)
		writeDone <- err
	}()

	var err error
	select {
	case <-ctx.Done():
	case werr := <-writeDone:
		err = errors.Wrap(werr, "writing to port")
		if err == nil {
			// Replies to the last commands are still on their way.
			sink.touch()
			if gone, rerr := waitQuiet(ctx, sink, readDone, drain); gone {
				return multierr.Append(errors.Wrap(rerr, "reading from port"), port.Close())
			}
		}
	case rerr := <-readDone:
		// The device went away.
		return multierr.Append(errors.Wrap(rerr, "reading from port"), port.Close())
	}

	err = multierr.Append(err, port.Close())
	// Reads fail once the port is closed.
	<-readDone
	return err
}

// waitQuiet returns once sink has seen no data for drain or ctx is done. gone
// reports that the reader finished first, with its error.
func waitQuiet(ctx context.Context, sink *activityWriter, readDone <-chan error, drain time.Duration) (gone bool, err error) {
	timer := time.NewTimer(drain)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case rerr := <-readDone:
			return true, rerr
		case <-timer.C:
			quiet := sink.quietFor()
			if quiet >= drain {
				return false, nil
			}
			timer.Reset(drain - quiet)
		}
	}
}
