//go:build tinygo && stm32f405

package main

// Status LED: slow flash while initialising, alternating in WAITING, solid in
// FLIGHT_MODE and a rapid flash in FAILSAFE.

import (
	"machine"
	"time"

	"github.com/BryanSouza91/QuadFC/flight"
)

// LED patterns
const (
	LED_OFF = iota
	LED_ON
	LED_SLOWFLASH
	LED_FASTFLASH
	LED_FLASH
	LED_ALTERNATE
)

// Half period of each flashing pattern.
var ledPeriods = [...]time.Duration{
	LED_SLOWFLASH: 250 * time.Millisecond,
	LED_FASTFLASH: 50 * time.Millisecond,
	LED_FLASH:     150 * time.Millisecond,
	LED_ALTERNATE: 500 * time.Millisecond,
}

type ledState struct {
	pin        machine.Pin
	state      int
	lastToggle time.Time
	isOn       bool
}

func newLEDState(pin machine.Pin) *ledState {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
	return &ledState{
		pin:        pin,
		state:      LED_OFF,
		lastToggle: time.Now(),
	}
}

func (ls *ledState) set(on bool) {
	ls.pin.Set(on)
	ls.isOn = on
}

// update advances the current pattern; call it every loop.
func (ls *ledState) update(now time.Time) {
	switch ls.state {
	case LED_OFF:
		ls.set(false)
	case LED_ON:
		ls.set(true)
	default:
		if now.Sub(ls.lastToggle) >= ledPeriods[ls.state] {
			ls.set(!ls.isOn)
			ls.lastToggle = now
		}
	}
}

func (ls *ledState) setState(state int) {
	ls.state = state
}

// ledPattern maps a flight state to its LED pattern.
func ledPattern(s flight.State) int {
	switch s {
	case flight.Initialization:
		return LED_SLOWFLASH
	case flight.Waiting:
		return LED_ALTERNATE
	case flight.Armed:
		return LED_ON
	case flight.Failsafe:
		return LED_FASTFLASH
	}
	return LED_FLASH
}
