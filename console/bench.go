package console

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/BryanSouza91/QuadFC/dshot"
)

// Bench drives an ESC set through a command sequencer.
type Bench struct {
	seq   *dshot.Sequencer
	set   *dshot.Set
	input io.ByteReader
	armed  func() bool
	disarm func()

	active  atomic.Bool
	verbose atomic.Bool
}

var _ Controller = (*Bench)(nil)

// NewBench returns a controller reading commands from input. armed reports
// whether the flight loop currently owns the motors; nil means never armed.
// disarm takes the motors away from the flight loop on a stop command; nil
// stops the set directly.
func NewBench(set *dshot.Set, seq *dshot.Sequencer, input io.ByteReader, armed func() bool, disarm func()) *Bench {
	if armed == nil {
		armed = func() bool { return false }
	}
	b := &Bench{seq: seq, set: set, input: input, armed: armed, disarm: disarm}
	if b.disarm == nil {
		b.disarm = b.stopSet
	}
	return b
}

func (b *Bench) stopSet() {
	if err := b.set.MotorStop(); err != nil {
		println("console: motor stop:", err.Error())
	}
}

// Armed reports whether the motors are armed.
func (b *Bench) Armed() bool {
	return b.armed()
}

// Active reports whether a command burst is on the wire. The flight loop
// holds its own frames while it is.
func (b *Bench) Active() bool {
	return b.active.Load()
}

func (b *Bench) run(fn func() error) error {
	b.active.Store(true)
	defer b.active.Store(false)
	return fn()
}

// Beacon plays tone n on target.
func (b *Bench) Beacon(ctx context.Context, n int, target dshot.Selector) error {
	return b.run(func() error { return b.seq.Beacon(ctx, n, target) })
}

// SetSpinDirection sets and saves the spin direction of target.
func (b *Bench) SetSpinDirection(ctx context.Context, target dshot.Selector, reversed bool) error {
	return b.run(func() error { return b.seq.SetSpinDirection(ctx, target, reversed) })
}

// Set3DMode switches 3D mode on target and saves it.
func (b *Bench) Set3DMode(ctx context.Context, target dshot.Selector, on bool) error {
	return b.run(func() error { return b.seq.Set3DMode(ctx, target, on) })
}

// SetLED switches an ESC LED on target.
func (b *Bench) SetLED(ctx context.Context, target dshot.Selector, led int, on bool) error {
	return b.run(func() error { return b.seq.SetLED(ctx, target, led, on) })
}

// MotorStop disarms and stops every motor, directly first so it never waits
// on a burst.
func (b *Bench) MotorStop(ctx context.Context) error {
	b.disarm()
	return b.run(func() error { return b.seq.MotorStop(ctx) })
}

// Verbose toggles drop logging on the ESC channels.
func (b *Bench) Verbose() {
	v := !b.verbose.Load()
	b.verbose.Store(v)
	b.set.SetVerbose(v)
	println("console: verbose", v)
}

// ReadByte reads the next console byte.
func (b *Bench) ReadByte() (byte, error) {
	return b.input.ReadByte()
}
