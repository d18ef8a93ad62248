package dshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/BryanSouza91/QuadFC/dshot/dshotsim"
)

func newTestSequencer(t *testing.T, mock *clock.Mock) (*Sequencer, *testRig) {
	t.Helper()
	rig := newTestRig(t, true)
	cfg := DefaultSequencerConfig()
	cfg.Clock = mock
	cfg.FrameGap = 0
	return NewSequencer(rig.set, cfg), rig
}

func frames(rig *testRig, m Motor) []uint16 {
	var out []uint16
	for _, codes := range rig.streams[m].Transfers() {
		out = append(out, Frame(dshotsim.Decode(codes, rig.set.Timing().High)).Value())
	}
	return out
}

func count(values []uint16, v Command) int {
	n := 0
	for _, x := range values {
		if x == uint16(v) {
			n++
		}
	}
	return n
}

func TestSequencerRepeats(t *testing.T) {
	q, _ := newTestSequencer(t, clock.NewMock())
	test.That(t, q.Repeats(CmdSpinDirectionReversed), test.ShouldEqual, 100)
	test.That(t, q.Repeats(CmdBeacon1), test.ShouldEqual, 100)
	test.That(t, q.Repeats(CmdSaveSettings), test.ShouldEqual, 10)
	test.That(t, q.Repeats(CmdMotorStop), test.ShouldEqual, 10)

	low := NewSequencer(q.esc, SequencerConfig{BurstRepeats: 2, SaveRepeats: 1})
	test.That(t, low.Repeats(Cmd3DModeOn), test.ShouldEqual, ProtocolRepeats)
	test.That(t, low.Repeats(CmdSaveSettings), test.ShouldEqual, ProtocolRepeats)
	test.That(t, low.Repeats(CmdMotorStop), test.ShouldEqual, 1)
}

func TestSequencerSpinDirectionSaves(t *testing.T) {
	q, rig := newTestSequencer(t, clock.NewMock())
	test.That(t, q.SetSpinDirection(context.Background(), Only(BackRight), true), test.ShouldBeNil)

	got := frames(rig, BackRight)
	test.That(t, len(got), test.ShouldEqual, 110)
	test.That(t, count(got[:100], CmdSpinDirectionReversed), test.ShouldEqual, 100)
	test.That(t, count(got[100:], CmdSaveSettings), test.ShouldEqual, 10)
	test.That(t, rig.streams[FrontLeft].Count(), test.ShouldEqual, 0)
}

func TestSequencer3DModeAndLED(t *testing.T) {
	q, rig := newTestSequencer(t, clock.NewMock())
	test.That(t, q.Set3DMode(context.Background(), FrontSide, true), test.ShouldBeNil)
	test.That(t, q.SetLED(context.Background(), FrontSide, 1, true), test.ShouldBeNil)
	got := frames(rig, FrontLeft)
	test.That(t, count(got, Cmd3DModeOn), test.ShouldEqual, 100)
	test.That(t, count(got, CmdLED1On), test.ShouldEqual, 100)
	test.That(t, count(got, CmdSaveSettings), test.ShouldEqual, 20)

	test.That(t, q.SetLED(context.Background(), FrontSide, 9, true), test.ShouldNotBeNil)
}

func TestSequencerBeaconWaits(t *testing.T) {
	mock := clock.NewMock()
	q, rig := newTestSequencer(t, mock)

	start := mock.Now()
	done := make(chan error, 1)
	go func() {
		done <- q.Beacon(context.Background(), 3, All)
	}()

	for {
		select {
		case err := <-done:
			test.That(t, err, test.ShouldBeNil)
			test.That(t, mock.Now().Sub(start), test.ShouldBeGreaterThanOrEqualTo, time.Second)
			test.That(t, count(frames(rig, BackLeft), CmdBeacon3), test.ShouldEqual, 100)
			return
		default:
			mock.Add(50 * time.Millisecond)
		}
	}
}

func TestSequencerFrameGap(t *testing.T) {
	mock := clock.NewMock()
	rig := newTestRig(t, true)
	cfg := DefaultSequencerConfig()
	cfg.Clock = mock
	cfg.StopRepeats = 5
	q := NewSequencer(rig.set, cfg)

	start := mock.Now()
	done := make(chan error, 1)
	go func() {
		done <- q.MotorStop(context.Background())
	}()
	for {
		select {
		case err := <-done:
			test.That(t, err, test.ShouldBeNil)
			test.That(t, mock.Now().Sub(start), test.ShouldBeGreaterThanOrEqualTo, 4*time.Millisecond)
			for m := range rig.streams {
				test.That(t, count(frames(rig, Motor(m)), CmdMotorStop), test.ShouldEqual, 5)
			}
			return
		default:
			mock.Add(time.Millisecond)
		}
	}
}

func TestSequencerCanceled(t *testing.T) {
	q, rig := newTestSequencer(t, clock.NewMock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Send(ctx, CmdSpinDirectionNormal, All)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, rig.streams[FrontLeft].Count(), test.ShouldEqual, 0)
}

func TestSequencerPropagatesRejection(t *testing.T) {
	q, _ := newTestSequencer(t, clock.NewMock())
	err := q.Send(context.Background(), CmdESCInfo, All)
	test.That(t, errors.Is(err, ErrCommandNotAllowed), test.ShouldBeTrue)
	test.That(t, q.Beacon(context.Background(), 0, All), test.ShouldNotBeNil)
}
