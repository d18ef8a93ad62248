//go:build tinygo && stm32f405

package main

import (
	"machine"
	"time"

	"github.com/BryanSouza91/QuadFC/dshot"
	"github.com/BryanSouza91/QuadFC/receiver"
)

// QuadFC Configuration
// All user-configurable parameters and hardware mappings

// --- Protocol Selection ---
const (
	activeProtocol = receiver.ProtocolIBus // receiver.ProtocolIBus, receiver.ProtocolCRSF or receiver.ProtocolELRS
	dshotSpeed     = dshot.DShot600        // DShot150, DShot300, DShot600 or DShot1200
	dshotMode      = dshot.NonBlocking
)

// --- Timing ---
const (
	TIMER_CLOCK_HZ      = 168_000_000 // TIM1 kernel clock on APB2 with SYSCLK at 168 MHz
	LOOP_INTERVAL       = time.Millisecond
	FAILSAFE_TIMEOUT    = 500 * time.Millisecond
	WATCHDOG_TIMEOUT_MS = 500
)

// --- Receiver ---
const (
	DEADBAND         = 20   // Deadband around neutral
	HIGH_RX_VALUE    = 1800 // Switch threshold in microseconds
	ARM_THROTTLE_MAX = 100  // Highest throttle stick that allows arming
)

// --- Channel Mapping (zero based) ---
var channelMap = receiver.ChannelMap{
	Roll:     0, // Rx channel 1
	Pitch:    1, // Rx channel 2
	Throttle: 2, // Rx channel 3
	Yaw:      3, // Rx channel 4
	SwitchA:  4, // Rx channel 5, arm
	SwitchB:  5, // Rx channel 6
}

// --- Hardware Interfaces ---
// The receiver and the bench console must be on different ports.
var (
	rxUART     = machine.DefaultUART
	rxPin      = machine.UART_RX_PIN
	consoleOut = machine.Serial
	statusLED  = machine.LED
	imuBus     = machine.I2C0
)
