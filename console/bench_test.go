package console

import (
	"bytes"
	"context"
	"testing"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/BryanSouza91/QuadFC/dshot"
	"github.com/BryanSouza91/QuadFC/dshot/dshotsim"
	"github.com/BryanSouza91/QuadFC/flight"
	"github.com/BryanSouza91/QuadFC/mixer"
)

type benchRig struct {
	bench   *Bench
	set     *dshot.Set
	streams [dshot.ESCCount]*dshotsim.Stream
	armed   bool
}

func newBenchRig(t *testing.T, input string) *benchRig {
	t.Helper()
	rig := &benchRig{}
	timer := dshotsim.NewTimer()
	cfg := dshot.DefaultSetConfig()
	for i := range cfg.Outputs {
		rig.streams[i] = dshotsim.NewStream(true)
		cfg.Outputs[i] = dshot.Output{Timer: timer, Compare: uint8(i + 1), Stream: rig.streams[i]}
	}
	set, err := dshot.NewSet(cfg)
	test.That(t, err, test.ShouldBeNil)
	rig.set = set

	seqCfg := dshot.DefaultSequencerConfig()
	seqCfg.Clock = clock.NewMock()
	seqCfg.FrameGap = 0
	seqCfg.BeaconDelay = 0
	seq := dshot.NewSequencer(set, seqCfg)
	rig.bench = NewBench(set, seq, bytes.NewReader([]byte(input)), func() bool { return rig.armed }, nil)
	return rig
}

func (r *benchRig) values(m dshot.Motor) []uint16 {
	var out []uint16
	for _, codes := range r.streams[m].Transfers() {
		out = append(out, dshot.Frame(dshotsim.Decode(codes, r.set.Timing().High)).Value())
	}
	return out
}

func TestBenchSpinDirection(t *testing.T) {
	rig := newBenchRig(t, "D3R")
	test.That(t, Run(context.Background(), rig.bench), test.ShouldBeNil)

	got := rig.values(dshot.BackLeft)
	test.That(t, len(got), test.ShouldEqual, 110)
	test.That(t, got[0], test.ShouldEqual, uint16(dshot.CmdSpinDirectionReversed))
	test.That(t, got[len(got)-1], test.ShouldEqual, uint16(dshot.CmdSaveSettings))
	for _, m := range []dshot.Motor{dshot.FrontLeft, dshot.FrontRight, dshot.BackRight} {
		test.That(t, rig.streams[m].Count(), test.ShouldEqual, 0)
	}
}

func TestBenchBeacon(t *testing.T) {
	rig := newBenchRig(t, "Bf1")
	test.That(t, Run(context.Background(), rig.bench), test.ShouldBeNil)
	test.That(t, rig.streams[dshot.FrontLeft].Count(), test.ShouldEqual, 100)
	test.That(t, rig.streams[dshot.FrontRight].Count(), test.ShouldEqual, 100)
	test.That(t, rig.streams[dshot.BackLeft].Count(), test.ShouldEqual, 0)
	test.That(t, rig.values(dshot.FrontRight)[0], test.ShouldEqual, uint16(dshot.CmdBeacon1))
}

func TestBenchArmedRefusesSettings(t *testing.T) {
	rig := newBenchRig(t, "3A1S")
	rig.armed = true
	test.That(t, Run(context.Background(), rig.bench), test.ShouldBeNil)

	// Only the stop went out: one direct frame plus the burst.
	for m := range rig.streams {
		got := rig.values(dshot.Motor(m))
		test.That(t, len(got), test.ShouldEqual, 11)
		for _, v := range got {
			test.That(t, v, test.ShouldEqual, uint16(dshot.CmdMotorStop))
		}
	}
}

func TestBenchVerbose(t *testing.T) {
	rig := newBenchRig(t, "VV V")
	rig.bench.Verbose()
	test.That(t, rig.set.Channel(dshot.BackRight).Verbose(), test.ShouldBeTrue)
	rig.bench.Verbose()
	test.That(t, rig.set.Channel(dshot.BackRight).Verbose(), test.ShouldBeFalse)

	test.That(t, Run(context.Background(), rig.bench), test.ShouldBeNil)
	test.That(t, rig.set.Channel(dshot.FrontLeft).Verbose(), test.ShouldBeTrue)
}

func TestNewBenchDefaultsDisarmed(t *testing.T) {
	rig := newBenchRig(t, "")
	b := NewBench(rig.set, nil, bytes.NewReader(nil), nil, nil)
	test.That(t, b.Armed(), test.ShouldBeFalse)
}

func TestBenchActiveDuringBurst(t *testing.T) {
	rig := newBenchRig(t, "")
	test.That(t, rig.bench.Active(), test.ShouldBeFalse)

	// A stream that never completes makes the burst fail mid-way.
	rig.streams[dshot.FrontLeft].AutoComplete = false
	err := rig.bench.SetSpinDirection(context.Background(), dshot.Only(dshot.FrontLeft), false)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, rig.bench.Active(), test.ShouldBeFalse)
}

type stickInput struct {
	sticks mixer.StickInput
}

func (s *stickInput) Poll() int { return 0 }

func (s *stickInput) Lost() bool { return false }

func (s *stickInput) Sticks() mixer.StickInput { return s.sticks }

func (s *stickInput) Disconnect() {}

func (r *benchRig) lastValue(m dshot.Motor) uint16 {
	got := r.values(m)
	return got[len(got)-1]
}

func TestBenchStopDisarmsFlightLoop(t *testing.T) {
	rig := newBenchRig(t, "S")
	in := &stickInput{sticks: mixer.Centered(0)}
	loop := flight.NewLoop(flight.Config{
		ArmThrottleMax: 100,
		Hold:           rig.bench.Active,
	}, in, rig.set)
	rig.bench.armed = func() bool { return loop.State() == flight.Armed }
	rig.bench.disarm = loop.Disarm

	test.That(t, loop.Tick(), test.ShouldEqual, flight.Waiting)
	test.That(t, loop.Tick(), test.ShouldEqual, flight.Waiting)
	in.sticks.SwitchA = true
	test.That(t, loop.Tick(), test.ShouldEqual, flight.Armed)
	in.sticks.Throttle = 1500
	test.That(t, loop.Tick(), test.ShouldEqual, flight.Armed)
	for m := range rig.streams {
		test.That(t, rig.lastValue(dshot.Motor(m)), test.ShouldEqual, uint16(1500))
	}

	test.That(t, Run(context.Background(), rig.bench), test.ShouldBeNil)
	test.That(t, loop.State(), test.ShouldEqual, flight.Waiting)

	// Sticks and switch untouched: the loop stays disarmed and sends zeros.
	for i := 0; i < 3; i++ {
		test.That(t, loop.Tick(), test.ShouldEqual, flight.Waiting)
		for m := range rig.streams {
			test.That(t, rig.lastValue(dshot.Motor(m)), test.ShouldEqual, uint16(0))
		}
	}
}
