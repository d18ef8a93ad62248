package dshot

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// SequencerConfig sets the repeat counts and delays used for command bursts.
type SequencerConfig struct {
	// BurstRepeats is the number of frames sent for direction, 3D mode,
	// beacon and other setting-type commands. Never fewer than ProtocolRepeats.
	BurstRepeats int
	// SaveRepeats is the length of the SAVE_SETTINGS trailer.
	SaveRepeats int
	// StopRepeats is the number of MOTOR_STOP frames per stop.
	StopRepeats int
	// FrameGap is the pause between consecutive command frames.
	FrameGap time.Duration
	// BeaconDelay lets a beacon tone finish before the next command.
	BeaconDelay time.Duration
	// Clock drives every delay; the wall clock when nil.
	Clock clock.Clock
}

// DefaultSequencerConfig returns the repeat counts BLHeli-style ESCs latch
// reliably.
func DefaultSequencerConfig() SequencerConfig {
	return SequencerConfig{
		BurstRepeats: 100,
		SaveRepeats:  10,
		StopRepeats:  10,
		FrameGap:     time.Millisecond,
		BeaconDelay:  time.Second,
	}
}

// Sequencer sends special commands with the repetition and spacing the
// protocol expects. It bypasses the mixer and shares the Set's channels.
type Sequencer struct {
	esc   *Set
	cfg   SequencerConfig
	clock clock.Clock
}

// NewSequencer wraps set.
func NewSequencer(set *Set, cfg SequencerConfig) *Sequencer {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.BurstRepeats < ProtocolRepeats {
		cfg.BurstRepeats = ProtocolRepeats
	}
	if cfg.SaveRepeats < ProtocolRepeats {
		cfg.SaveRepeats = ProtocolRepeats
	}
	if cfg.StopRepeats < 1 {
		cfg.StopRepeats = 1
	}
	return &Sequencer{esc: set, cfg: cfg, clock: cfg.Clock}
}

// Repeats returns how many frames of cmd make up one burst.
func (q *Sequencer) Repeats(cmd Command) int {
	switch {
	case cmd == CmdMotorStop:
		return q.cfg.StopRepeats
	case cmd == CmdSaveSettings:
		return q.cfg.SaveRepeats
	case cmd.IsBeacon(), cmd.ChangesSettings():
		return q.cfg.BurstRepeats
	}
	return ProtocolRepeats
}

// Send transmits a full burst of cmd to target. Beacons are followed by
// BeaconDelay and setting changes by a SAVE_SETTINGS burst. The context is
// checked between frames only; a frame on the wire always completes.
func (q *Sequencer) Send(ctx context.Context, cmd Command, target Selector) error {
	if err := q.burst(ctx, cmd, target, q.Repeats(cmd)); err != nil {
		return err
	}
	switch {
	case cmd.IsBeacon():
		return q.sleep(ctx, q.cfg.BeaconDelay)
	case cmd.ChangesSettings():
		return q.burst(ctx, CmdSaveSettings, target, q.cfg.SaveRepeats)
	}
	return nil
}

func (q *Sequencer) burst(ctx context.Context, cmd Command, target Selector, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "%s interrupted after %d of %d frames", cmd, i, n)
		}
		if err := q.esc.SendCommand(cmd, target); err != nil {
			return err
		}
		if i < n-1 {
			if err := q.sleep(ctx, q.cfg.FrameGap); err != nil {
				return err
			}
		}
	}
	return nil
}

func (q *Sequencer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := q.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Beacon plays tone n (1-5) on target.
func (q *Sequencer) Beacon(ctx context.Context, n int, target Selector) error {
	cmd, ok := Beacon(n)
	if !ok {
		return errors.Errorf("dshot: no beacon %d", n)
	}
	return q.Send(ctx, cmd, target)
}

// SetSpinDirection makes target spin normally or reversed and saves it.
func (q *Sequencer) SetSpinDirection(ctx context.Context, target Selector, reversed bool) error {
	cmd := CmdSpinDirectionNormal
	if reversed {
		cmd = CmdSpinDirectionReversed
	}
	return q.Send(ctx, cmd, target)
}

// Set3DMode turns bidirectional (3D) mode on or off and saves it.
func (q *Sequencer) Set3DMode(ctx context.Context, target Selector, on bool) error {
	cmd := Cmd3DModeOff
	if on {
		cmd = Cmd3DModeOn
	}
	return q.Send(ctx, cmd, target)
}

// SetLED switches one of the BLHeli32 ESC LEDs.
func (q *Sequencer) SetLED(ctx context.Context, target Selector, led int, on bool) error {
	cmd, ok := LED(led, on)
	if !ok {
		return errors.Errorf("dshot: no LED %d", led)
	}
	return q.Send(ctx, cmd, target)
}

// MotorStop sends a MOTOR_STOP burst to every motor.
func (q *Sequencer) MotorStop(ctx context.Context) error {
	return q.burst(ctx, CmdMotorStop, All, q.cfg.StopRepeats)
}
