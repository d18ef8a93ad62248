package dshot

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Speed is a DSHOT variant named after its bit rate in kbit/s.
type Speed uint16

// Supported variants.
const (
	DShot150  Speed = 150
	DShot300  Speed = 300
	DShot600  Speed = 600
	DShot1200 Speed = 1200
)

// minTop keeps a few ticks between the 0 and 1 thresholds.
const minTop = 16

var (
	// ErrUnknownSpeed is returned for a variant other than 150/300/600/1200.
	ErrUnknownSpeed = errors.New("dshot: unknown speed")
	// ErrTimerClock is returned when the timer clock cannot produce the bit rate.
	ErrTimerClock = errors.New("dshot: timer clock out of range for speed")
)

// Valid reports whether s is one of the four variants.
func (s Speed) Valid() bool {
	switch s {
	case DShot150, DShot300, DShot600, DShot1200:
		return true
	}
	return false
}

// BitRate returns the bit rate in bits per second.
func (s Speed) BitRate() uint32 {
	return uint32(s) * 1000
}

// BitPeriodNs returns the nominal length of one bit in nanoseconds.
func (s Speed) BitPeriodNs() uint32 {
	return 1e9 / s.BitRate()
}

// FramePeriodNs returns the time on the wire of one 16-bit frame.
func (s Speed) FramePeriodNs() uint32 {
	return FrameBits * s.BitPeriodNs()
}

func (s Speed) String() string {
	return "DSHOT" + strconv.Itoa(int(s))
}

// ParseSpeed accepts "DSHOT600", "dshot600" or "600".
func ParseSpeed(str string) (Speed, error) {
	str = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(str)), "DSHOT")
	n, err := strconv.Atoi(str)
	if err != nil {
		return 0, errors.Wrapf(ErrUnknownSpeed, "parse %q", str)
	}
	s := Speed(n)
	if !s.Valid() {
		return 0, errors.Wrapf(ErrUnknownSpeed, "%d", n)
	}
	return s, nil
}

// Timing holds the timer values for one speed variant.
type Timing struct {
	Speed Speed
	// Top is the timer period in ticks, one bit per period.
	Top uint32
	// Low is the compare value of a 0 bit (~37.5% of Top).
	Low uint32
	// High is the compare value of a 1 bit (~75% of Top).
	High uint32
}

// TimingFor derives the period and bit thresholds for speed from the timer
// input clock. With a 108 MHz clock it gives the classic tables:
//
//	DSHOT150  720 / 270 / 540
//	DSHOT300  360 / 135 / 270
//	DSHOT600  180 /  68 / 135
//	DSHOT1200  90 /  34 /  68
func TimingFor(speed Speed, timerHz uint32) (Timing, error) {
	if !speed.Valid() {
		return Timing{}, errors.Wrapf(ErrUnknownSpeed, "%d", uint16(speed))
	}
	top := timerHz / speed.BitRate()
	if top < minTop {
		return Timing{}, errors.Wrapf(ErrTimerClock, "%s at %d Hz gives period %d", speed, timerHz, top)
	}
	return Timing{
		Speed: speed,
		Top:   top,
		Low:   (top*3 + 4) / 8,
		High:  (top*3 + 2) / 4,
	}, nil
}

// DutyCodes expands f with this timing's thresholds.
func (t Timing) DutyCodes(f Frame) DutyCodes {
	return ToDutyCodes(f, t.High, t.Low)
}
