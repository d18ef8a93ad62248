// Package flight is the arming state machine that sits between the receiver
// and the ESC outputs.
package flight

import (
	"sync"

	"github.com/BryanSouza91/QuadFC/dshot"
	"github.com/BryanSouza91/QuadFC/mixer"
)

// State is the flight state.
type State int

// Flight states.
const (
	Initialization State = iota
	Waiting
	Armed
	Failsafe
)

func (s State) String() string {
	switch s {
	case Initialization:
		return "INITIALIZATION"
	case Waiting:
		return "WAITING"
	case Armed:
		return "FLIGHT_MODE"
	case Failsafe:
		return "FAILSAFE"
	}
	return "UNKNOWN"
}

// Input is the receiver side of the loop.
type Input interface {
	Poll() int
	Lost() bool
	Sticks() mixer.StickInput
	Disconnect()
}

// Output is the ESC side of the loop.
type Output interface {
	UpdateAllThrottles(t [dshot.ESCCount]uint16) (skipped int)
	MotorStop() error
}

// Config holds loop settings.
type Config struct {
	// ArmThrottleMax is the highest throttle stick that allows arming.
	ArmThrottleMax uint16
	// PreArm runs in Initialization until it returns nil.
	PreArm func() error
	// Hold, when it returns true, suppresses idle frames so a bench command
	// burst owns the outputs.
	Hold func() bool
}

// DefaultConfig arms only with the throttle stick near the bottom.
func DefaultConfig() Config {
	return Config{ArmThrottleMax: 100}
}

// Loop runs one control step per Tick. Disarm and State may be called from
// another goroutine.
type Loop struct {
	cfg  Config
	in   Input
	out  Output
	skip uint32

	mu sync.Mutex

	preArmErr string
	state     State
	last      State
}

// NewLoop returns a loop in Initialization.
func NewLoop(cfg Config, in Input, out Output) *Loop {
	return &Loop{cfg: cfg, in: in, out: out, state: Initialization, last: Initialization}
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Disarm stops every motor and drops out of FLIGHT_MODE. The arm switch has
// to be seen low again before the loop re-arms.
func (l *Loop) Disarm() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stop()
	switch l.state {
	case Armed:
		l.enter(Waiting)
		l.last = Failsafe
	case Waiting:
		l.last = Failsafe
	}
}

// Skipped counts motor updates dropped because a channel was still busy.
func (l *Loop) Skipped() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.skip
}

func (l *Loop) enter(s State) {
	if s == l.state {
		return
	}
	println("flight:", l.state.String(), "->", s.String())
	l.last = l.state
	l.state = s
}

func (l *Loop) stop() {
	if err := l.out.MotorStop(); err != nil {
		println("flight: motor stop:", err.Error())
	}
}

func (l *Loop) idle() {
	if l.cfg.Hold != nil && l.cfg.Hold() {
		return
	}
	l.skip += uint32(l.out.UpdateAllThrottles([dshot.ESCCount]uint16{}))
}

// Tick polls the receiver and runs one step of the state machine.
func (l *Loop) Tick() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.in.Poll()
	lost := l.in.Lost()

	if lost && l.state == Armed {
		l.enter(Failsafe)
		l.in.Disconnect()
		l.stop()
		return l.state
	}

	switch l.state {
	case Initialization:
		if l.cfg.PreArm != nil {
			if err := l.cfg.PreArm(); err != nil {
				if msg := err.Error(); msg != l.preArmErr {
					println("flight: pre-arm:", msg)
					l.preArmErr = msg
				}
				return l.state
			}
		}
		l.stop()
		l.enter(Waiting)

	case Waiting:
		l.idle()
		if lost {
			return l.state
		}
		in := l.in.Sticks()
		if l.last == Failsafe || l.last == Initialization {
			// The arm switch has to be seen low after boot and after a failsafe.
			if in.SwitchA {
				return l.state
			}
			l.last = Waiting
		}
		if in.SwitchA && in.Throttle <= l.cfg.ArmThrottleMax {
			l.enter(Armed)
		}

	case Armed:
		in := l.in.Sticks()
		if !in.SwitchA {
			l.stop()
			l.enter(Waiting)
			return l.state
		}
		out := mixer.Mix(in, true)
		l.skip += uint32(l.out.UpdateAllThrottles(out.ByMotor()))

	case Failsafe:
		l.idle()
		if !lost {
			l.enter(Waiting)
		}

	default:
		l.stop()
		l.enter(Waiting)
	}
	return l.state
}
