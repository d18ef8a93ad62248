package dshot

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// Timer is the hardware timer whose compare channels shape the DSHOT pulses.
type Timer interface {
	// SetTop programs the auto-reload so that one period lasts top ticks.
	SetTop(top uint32) error
	// CompareRegister returns the address of the compare register of channel
	// ch. Channels are numbered 1 to MaxCompare.
	CompareRegister(ch uint8) uintptr
	// SetCompare writes v to the compare register of channel ch.
	SetCompare(ch uint8, v uint32)
	// EnableChannel starts PWM output on channel ch.
	EnableChannel(ch uint8) error
}

// Stream is a DMA stream copying 32-bit words from memory into one peripheral
// register.
type Stream interface {
	// Bind sets the peripheral destination address of every transfer.
	Bind(dst uintptr)
	// Start arms a transfer of src and returns without waiting for it.
	Start(src []uint32) error
	// Enabled reports the stream's enable bit, which the hardware clears when
	// the transfer completes.
	Enabled() bool
	// OnComplete registers fn to be called from the transfer-complete
	// interrupt. Streams without an interrupt may ignore it.
	OnComplete(fn func())
}

// Mode selects how a channel learns that a transfer has finished.
type Mode uint8

const (
	// NonBlocking returns from Transmit as soon as the transfer is armed. The
	// busy flag is cleared by the completion interrupt, or when the enable bit
	// is next seen clear.
	NonBlocking Mode = iota
	// Blocking polls the enable bit until the transfer is done. It stalls the
	// caller for one frame period.
	Blocking
)

func (m Mode) String() string {
	if m == Blocking {
		return "blocking"
	}
	return "non-blocking"
}

// DefaultPollLimit bounds every busy-wait on the enable bit.
const DefaultPollLimit = 100000

var (
	// ErrBusy is returned when a transfer is still in flight on the channel.
	ErrBusy = errors.New("dshot: channel busy")
	// ErrTransferTimeout is returned when a polled transfer never completes.
	ErrTransferTimeout = errors.New("dshot: transfer did not complete")
	// ErrNoHardware is returned when a channel is built without a timer or stream.
	ErrNoHardware = errors.New("dshot: channel needs a timer and a DMA stream")
	// ErrBadCompare is returned for a compare channel outside 1 to MaxCompare.
	ErrBadCompare = errors.New("dshot: no such compare channel")
)

// MaxCompare is the highest compare channel of a timer.
const MaxCompare = 4

// ChannelConfig describes the hardware behind one motor output.
type ChannelConfig struct {
	Name    string
	Timer   Timer
	Compare uint8 // compare channel on Timer
	Stream  Stream
	// Top is the timer period in ticks, usually Timing.Top.
	Top  uint32
	Mode Mode
	// PollLimit bounds busy-waits, DefaultPollLimit when zero.
	PollLimit int
	Verbose   bool
}

// Channel owns one timer compare channel and the DMA stream feeding it. At
// most one transfer is in flight; the DMA buffer belongs to the channel and is
// only rewritten while no transfer reads it.
type Channel struct {
	name      string
	timer     Timer
	compare   uint8
	stream    Stream
	mode      Mode
	pollLimit int

	verbose atomic.Bool
	busy    atomic.Bool
	dropped atomic.Uint32
	buf     DutyCodes

	throttle uint16
}

// NewChannel programs the timer period, parks the output low, points the DMA
// stream at the compare register and enables the output.
func NewChannel(cfg ChannelConfig) (*Channel, error) {
	if cfg.Timer == nil || cfg.Stream == nil {
		return nil, errors.Wrap(ErrNoHardware, cfg.Name)
	}
	if cfg.Compare < 1 || cfg.Compare > MaxCompare {
		return nil, errors.Wrapf(ErrBadCompare, "%s: compare channel %d", cfg.Name, cfg.Compare)
	}
	if cfg.PollLimit <= 0 {
		cfg.PollLimit = DefaultPollLimit
	}
	c := &Channel{
		name:      cfg.Name,
		timer:     cfg.Timer,
		compare:   cfg.Compare,
		stream:    cfg.Stream,
		mode:      cfg.Mode,
		pollLimit: cfg.PollLimit,
	}
	c.verbose.Store(cfg.Verbose)

	if err := c.timer.SetTop(cfg.Top); err != nil {
		return nil, errors.Wrapf(err, "%s: set timer period", c.name)
	}
	c.timer.SetCompare(c.compare, 0)
	c.stream.Bind(c.timer.CompareRegister(c.compare))
	c.stream.OnComplete(c.complete)
	if err := c.timer.EnableChannel(c.compare); err != nil {
		return nil, errors.Wrapf(err, "%s: enable compare channel %d", c.name, c.compare)
	}
	return c, nil
}

// complete runs in interrupt context.
func (c *Channel) complete() {
	c.busy.Store(false)
}

// Busy reports whether a transfer is still in flight.
func (c *Channel) Busy() bool {
	return c.inFlight()
}

func (c *Channel) inFlight() bool {
	if !c.busy.Load() {
		return false
	}
	if c.stream.Enabled() {
		return true
	}
	// Streams without a completion interrupt are finished once the enable
	// bit drops.
	c.busy.Store(false)
	return false
}

// Transmit starts sending codes. If the previous transfer has not completed
// the frame is dropped and ErrBusy returned; nothing is queued.
func (c *Channel) Transmit(codes DutyCodes) error {
	if c.inFlight() {
		c.dropped.Add(1)
		if c.verbose.Load() {
			println(c.name, "busy, frame dropped")
		}
		return ErrBusy
	}
	return c.start(codes, c.mode == Blocking)
}

// TransmitWait waits for any in-flight transfer, sends codes and waits for it
// to finish regardless of the channel mode. Used for command bursts.
func (c *Channel) TransmitWait(codes DutyCodes) error {
	for i := 0; c.inFlight(); i++ {
		if i >= c.pollLimit {
			c.dropped.Add(1)
			return errors.Wrap(ErrTransferTimeout, c.name)
		}
	}
	return c.start(codes, true)
}

func (c *Channel) start(codes DutyCodes, wait bool) error {
	c.buf = codes
	c.busy.Store(true)
	if err := c.stream.Start(c.buf[:]); err != nil {
		c.busy.Store(false)
		c.dropped.Add(1)
		if c.verbose.Load() {
			println(c.name, "DMA start failed:", err.Error())
		}
		return errors.Wrapf(err, "%s: start transfer", c.name)
	}
	if !wait {
		return nil
	}
	for i := 0; c.stream.Enabled(); i++ {
		if i >= c.pollLimit {
			return errors.Wrap(ErrTransferTimeout, c.name)
		}
	}
	c.busy.Store(false)
	return nil
}

// SetVerbose turns drop logging on or off.
func (c *Channel) SetVerbose(v bool) {
	c.verbose.Store(v)
}

// Verbose reports whether dropped frames are printed.
func (c *Channel) Verbose() bool {
	return c.verbose.Load()
}

// Name returns the channel's label.
func (c *Channel) Name() string {
	return c.name
}

// Mode returns the completion mode.
func (c *Channel) Mode() Mode {
	return c.mode
}

// Dropped returns how many frames were skipped because the channel was busy
// or the DMA stream refused to start.
func (c *Channel) Dropped() uint32 {
	return c.dropped.Load()
}

// Throttle returns the last throttle value handed to the hardware.
func (c *Channel) Throttle() uint16 {
	return c.throttle
}
