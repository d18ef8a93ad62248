package dshot

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/BryanSouza91/QuadFC/internal/bounds"
)

// ESCCount is the number of motors on the frame.
const ESCCount = 4

// Motor is a motor position on a quad-X frame.
type Motor uint8

// Motor positions, also the channel index inside a Set.
const (
	FrontLeft Motor = iota
	FrontRight
	BackLeft
	BackRight
)

var motorNames = [ESCCount]string{"front-left", "front-right", "back-left", "back-right"}

func (m Motor) String() string {
	if m < ESCCount {
		return motorNames[m]
	}
	return "unknown"
}

// Selector addresses one motor or a group of motors when sending commands.
// Groups never carry independent throttle values.
type Selector uint8

// Single-motor selectors share the Motor numbering.
const (
	SelectFrontLeft Selector = iota
	SelectFrontRight
	SelectBackLeft
	SelectBackRight
	LeftSide
	RightSide
	FrontSide
	BackSide
	All
)

// Only selects a single motor.
func Only(m Motor) Selector {
	return Selector(m)
}

// Motors resolves the selector to motor positions, nil for an unknown selector.
func (s Selector) Motors() []Motor {
	switch s {
	case SelectFrontLeft, SelectFrontRight, SelectBackLeft, SelectBackRight:
		return []Motor{Motor(s)}
	case LeftSide:
		return []Motor{FrontLeft, BackLeft}
	case RightSide:
		return []Motor{FrontRight, BackRight}
	case FrontSide:
		return []Motor{FrontLeft, FrontRight}
	case BackSide:
		return []Motor{BackLeft, BackRight}
	case All:
		return []Motor{FrontLeft, FrontRight, BackLeft, BackRight}
	}
	return nil
}

func (s Selector) String() string {
	switch s {
	case LeftSide:
		return "left"
	case RightSide:
		return "right"
	case FrontSide:
		return "front"
	case BackSide:
		return "back"
	case All:
		return "all"
	}
	return Motor(s).String()
}

var (
	// ErrCommandNotAllowed is returned for commands outside the allowlist.
	ErrCommandNotAllowed = errors.New("dshot: command not allowed")
	// ErrUnknownSelector is returned when a selector resolves to no motors.
	ErrUnknownSelector = errors.New("dshot: unknown motor selector")
)

// Output is the hardware behind one motor.
type Output struct {
	Timer   Timer
	Compare uint8
	Stream  Stream
}

// SetConfig configures the four motor outputs.
type SetConfig struct {
	Speed Speed
	// TimerHz is the input clock of the output timer(s).
	TimerHz uint32
	Outputs [ESCCount]Output
	Mode    Mode
	// PollLimit bounds busy-waits, DefaultPollLimit when zero.
	PollLimit int
	Verbose   bool
}

// DefaultSetConfig returns DSHOT600 on a 108 MHz timer with non-blocking
// throttle updates. Outputs still have to be filled in.
func DefaultSetConfig() SetConfig {
	return SetConfig{
		Speed:   DShot600,
		TimerHz: 108000000,
		Mode:    NonBlocking,
	}
}

// Set owns the four motor output channels. Channels are created once by NewSet
// and never replaced.
type Set struct {
	timing   Timing
	channels [ESCCount]*Channel
}

// NewSet validates the speed against the timer clock and initialises every
// channel.
func NewSet(cfg SetConfig) (*Set, error) {
	timing, err := TimingFor(cfg.Speed, cfg.TimerHz)
	if err != nil {
		return nil, err
	}

	s := &Set{timing: timing}
	var errs error
	for i, out := range cfg.Outputs {
		ch, err := NewChannel(ChannelConfig{
			Name:      "esc " + Motor(i).String(),
			Timer:     out.Timer,
			Compare:   out.Compare,
			Stream:    out.Stream,
			Top:       timing.Top,
			Mode:      cfg.Mode,
			PollLimit: cfg.PollLimit,
			Verbose:   cfg.Verbose,
		})
		errs = multierr.Append(errs, err)
		s.channels[i] = ch
	}
	if errs != nil {
		return nil, errs
	}
	return s, nil
}

// Timing returns the validated timer values.
func (s *Set) Timing() Timing {
	return s.timing
}

// Channel returns the output channel of m.
func (s *Set) Channel(m Motor) *Channel {
	return s.channels[m]
}

// SetVerbose turns drop logging on or off for every channel.
func (s *Set) SetVerbose(v bool) {
	for _, ch := range s.channels {
		ch.SetVerbose(v)
	}
}

// Throttles returns the last throttle handed to each channel.
func (s *Set) Throttles() [ESCCount]uint16 {
	var out [ESCCount]uint16
	for i, ch := range s.channels {
		out[i] = ch.throttle
	}
	return out
}

// ThrottleValue clamps v to the 11-bit range and lifts 1..47 to MinThrottle
// so a throttle can never be read as a command.
func ThrottleValue(v uint16) uint16 {
	v = bounds.Clamp(v, 0, MaxThrottle)
	if v > 0 && v < MinThrottle {
		return MinThrottle
	}
	return v
}

// UpdateAllThrottles sends one throttle frame to every motor. A motor whose
// previous frame is still on the wire, or whose DMA stream fails to start, is
// skipped for this tick rather than queued; the next tick carries a fresh
// value anyway. It returns the number of skipped motors.
func (s *Set) UpdateAllThrottles(throttles [ESCCount]uint16) (skipped int) {
	for i, ch := range s.channels {
		v := ThrottleValue(throttles[i])
		if err := ch.Transmit(s.timing.DutyCodes(EncodeThrottle(v, false))); err != nil {
			skipped++
			continue
		}
		ch.throttle = v
	}
	return skipped
}

// SendCommand transmits one frame of cmd to every motor in target, waiting for
// each transfer to finish.
func (s *Set) SendCommand(cmd Command, target Selector) error {
	if !cmd.Allowed() {
		return errors.Wrapf(ErrCommandNotAllowed, "%s (%d)", cmd, uint16(cmd))
	}
	motors := target.Motors()
	if motors == nil {
		return errors.Wrapf(ErrUnknownSelector, "%d", uint8(target))
	}

	codes := s.timing.DutyCodes(EncodeCommand(cmd))
	var errs error
	for _, m := range motors {
		ch := s.channels[m]
		err := ch.TransmitWait(codes)
		if err == nil && cmd == CmdMotorStop {
			ch.throttle = 0
		}
		errs = multierr.Append(errs, err)
	}
	return errs
}

// MotorStop sends MOTOR_STOP to each channel individually. It is the disarm
// and failsafe action and does not depend on the mixer.
func (s *Set) MotorStop() error {
	codes := s.timing.DutyCodes(EncodeCommand(CmdMotorStop))
	var errs error
	for _, ch := range s.channels {
		err := ch.TransmitWait(codes)
		if err == nil {
			ch.throttle = 0
		}
		errs = multierr.Append(errs, err)
	}
	return errs
}
