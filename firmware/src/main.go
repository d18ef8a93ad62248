//go:build tinygo && stm32f405

package main

import (
	"context"
	"machine"
	"time"

	"github.com/pkg/errors"
	"tinygo.org/x/drivers/lsm6ds3tr"

	"github.com/BryanSouza91/QuadFC/console"
	"github.com/BryanSouza91/QuadFC/dshot"
	"github.com/BryanSouza91/QuadFC/flight"
	"github.com/BryanSouza91/QuadFC/receiver"
)

const Version = "0.2.0"

var (
	watchdog = machine.Watchdog

	errIMUMissing = errors.New("LSM6DS3TR not connected")
	errNoByte     = errors.New("no byte")
)

// consoleInput yields to the flight loop while the console is idle.
type consoleInput struct {
	port machine.Serialer
}

func (c consoleInput) ReadByte() (byte, error) {
	if c.port.Buffered() == 0 {
		time.Sleep(5 * time.Millisecond)
		return 0, errNoByte
	}
	return c.port.ReadByte()
}

// configureIMU brings up the LSM6DS3TR. The returned check is the pre-arm
// condition: the IMU must answer on the bus.
func configureIMU() func() error {
	imuBus.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
	})
	lsm := lsm6ds3tr.New(imuBus)
	err := lsm.Configure(lsm6ds3tr.Configuration{
		AccelRange:      lsm6ds3tr.ACCEL_8G,
		AccelSampleRate: lsm6ds3tr.ACCEL_SR_104,
		GyroRange:       lsm6ds3tr.GYRO_1000DPS,
		GyroSampleRate:  lsm6ds3tr.GYRO_SR_104,
	})
	if err != nil {
		println("Failed to configure LSM6DS3TR:", err.Error())
	}
	return func() error {
		if !lsm.Connected() {
			return errIMUMissing
		}
		return nil
	}
}

// Main program loop
func main() {
	time.Sleep(2 * time.Second)
	println("QuadFC - Version", Version)
	println("A TinyGo DSHOT motor controller for quad-X multirotors")

	// --- Hardware Setup ---
	rxUART.Configure(machine.UARTConfig{
		BaudRate: activeProtocol.BaudRate(),
		TX:       machine.NoPin,
		RX:       rxPin,
	})
	println("UART configured for", activeProtocol.String(), "receiver input.")

	escCfg := dshot.DefaultSetConfig()
	escCfg.Speed = dshotSpeed
	escCfg.TimerHz = TIMER_CLOCK_HZ
	escCfg.Mode = dshotMode
	escCfg.Outputs = dshotOutputs()
	esc, err := dshot.NewSet(escCfg)
	if err != nil {
		for {
			println("Failed to configure DSHOT outputs:", err.Error())
			time.Sleep(time.Second)
		}
	}
	timing := esc.Timing()
	println(timing.Speed.String(), "top", timing.Top, "low", timing.Low, "high", timing.High)

	rxCfg := receiver.DefaultConfig()
	rxCfg.Protocol = activeProtocol
	rxCfg.FailsafeTimeout = FAILSAFE_TIMEOUT
	rxCfg.Deadband = DEADBAND
	rxCfg.SwitchHigh = HIGH_RX_VALUE
	rxCfg.Map = channelMap
	rx, err := receiver.New(rxCfg, rxUART)
	if err != nil {
		for {
			println("Failed to configure receiver:", err.Error())
			time.Sleep(time.Second)
		}
	}

	preArm := configureIMU()
	led := newLEDState(statusLED)
	// --- End Hardware Setup ---

	var loop *flight.Loop
	seq := dshot.NewSequencer(esc, dshot.DefaultSequencerConfig())
	bench := console.NewBench(esc, seq, consoleInput{consoleOut}, func() bool {
		return loop.State() == flight.Armed
	}, func() { loop.Disarm() })
	loop = flight.NewLoop(flight.Config{
		ArmThrottleMax: ARM_THROTTLE_MAX,
		PreArm:         preArm,
		Hold:           bench.Active,
	}, rx, esc)

	go func() {
		if err := console.Run(context.Background(), bench); err != nil {
			println("console:", err.Error())
		}
	}()

	// Configuring Watchdog Timer
	watchdog.Configure(machine.WatchdogConfig{
		TimeoutMillis: WATCHDOG_TIMEOUT_MS,
	})
	watchdog.Start()

	ticker := time.NewTicker(LOOP_INTERVAL)
	defer ticker.Stop()

	println("Entering INITIALIZATION state...")
	for now := range ticker.C {
		state := loop.Tick()
		led.setState(ledPattern(state))
		led.update(now)

		// Keep the watchdog happy
		watchdog.Update()
	}
}
