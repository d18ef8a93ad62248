package mixer

import (
	"testing"

	"go.viam.com/test"

	"github.com/BryanSouza91/QuadFC/dshot"
)

func TestMixDisarmed(t *testing.T) {
	for _, in := range []StickInput{
		{},
		Centered(1500),
		{Throttle: 2047, Pitch: 2047, Roll: 0, Yaw: 2047, SwitchA: true, SwitchB: true},
		{Throttle: 65535, Pitch: 65535, Roll: 65535, Yaw: 65535},
	} {
		test.That(t, Mix(in, false), test.ShouldResemble, MotorThrottles{})
	}
}

func TestMixNeutral(t *testing.T) {
	out := Mix(Centered(1500), true)
	test.That(t, out, test.ShouldResemble, MotorThrottles{1500, 1500, 1500, 1500})
}

func TestMixPitchForward(t *testing.T) {
	in := Centered(1000)
	in.Pitch = Neutral + 400
	out := Mix(in, true)
	test.That(t, out.BackLeft, test.ShouldEqual, uint16(1100))
	test.That(t, out.BackRight, test.ShouldEqual, uint16(1100))
	test.That(t, out.FrontLeft, test.ShouldEqual, uint16(900))
	test.That(t, out.FrontRight, test.ShouldEqual, uint16(900))
}

func TestMixPitchSymmetry(t *testing.T) {
	for _, throttle := range []uint16{0, 400, 1000, 1800, 2047} {
		for d := uint16(1); d <= 1000; d += 37 {
			fwd := Centered(throttle)
			fwd.Pitch = Neutral + d
			back := Centered(throttle)
			back.Pitch = Neutral - d
			test.That(t, Mix(fwd, true).BackLeft, test.ShouldEqual, Mix(back, true).FrontLeft)
			test.That(t, Mix(fwd, true).FrontRight, test.ShouldEqual, Mix(back, true).BackRight)
		}
	}
}

func TestMixRoll(t *testing.T) {
	in := Centered(1200)
	in.Roll = Neutral + 200
	out := Mix(in, true)
	test.That(t, out, test.ShouldResemble, MotorThrottles{
		FrontLeft: 1250, BackLeft: 1250,
		FrontRight: 1150, BackRight: 1150,
	})

	in.Roll = Neutral - 200
	out = Mix(in, true)
	test.That(t, out, test.ShouldResemble, MotorThrottles{
		FrontLeft: 1150, BackLeft: 1150,
		FrontRight: 1250, BackRight: 1250,
	})
}

func TestMixYaw(t *testing.T) {
	in := Centered(1200)
	in.Yaw = Neutral + 80
	out := Mix(in, true)
	test.That(t, out, test.ShouldResemble, MotorThrottles{
		FrontRight: 1220, BackLeft: 1220,
		FrontLeft: 1180, BackRight: 1180,
	})

	in.Yaw = Neutral - 80
	out = Mix(in, true)
	test.That(t, out, test.ShouldResemble, MotorThrottles{
		FrontLeft: 1220, BackRight: 1220,
		FrontRight: 1180, BackLeft: 1180,
	})
}

func TestMixFloorsAndClamps(t *testing.T) {
	// Low throttle with full forward pitch would go negative on the front pair.
	in := Centered(50)
	in.Pitch = 2047
	out := Mix(in, true)
	test.That(t, out.FrontLeft, test.ShouldEqual, uint16(dshot.MinIdle))
	test.That(t, out.FrontRight, test.ShouldEqual, uint16(dshot.MinIdle))
	test.That(t, out.BackLeft, test.ShouldEqual, uint16(50+(2047-Neutral)/4))

	in = StickInput{Throttle: 2047, Pitch: 2047, Roll: 2047, Yaw: 2047}
	out = Mix(in, true)
	test.That(t, out.BackLeft, test.ShouldEqual, uint16(dshot.MaxThrottle))
}

func TestMixAlwaysInRangeWhenArmed(t *testing.T) {
	for throttle := uint16(0); throttle <= 2100; throttle += 150 {
		for axis := uint16(0); axis <= 2100; axis += 175 {
			in := StickInput{Throttle: throttle, Pitch: axis, Roll: 2100 - axis, Yaw: axis / 2}
			for _, v := range Mix(in, true).ByMotor() {
				test.That(t, v, test.ShouldBeBetweenOrEqual, uint16(dshot.MinIdle), uint16(dshot.MaxThrottle))
			}
		}
	}
}

func TestClamp(t *testing.T) {
	for _, x := range []uint32{0, 1, 249, 250, 251, 1500, 2046, 2047, 2048, 1 << 20} {
		once := Clamp(x)
		test.That(t, Clamp(uint32(once)), test.ShouldEqual, once)
		test.That(t, once, test.ShouldBeBetweenOrEqual, uint16(dshot.MinIdle), uint16(dshot.MaxThrottle))
	}
}

func TestByMotor(t *testing.T) {
	m := MotorThrottles{FrontLeft: 1, FrontRight: 2, BackLeft: 3, BackRight: 4}
	test.That(t, m.ByMotor(), test.ShouldResemble, [dshot.ESCCount]uint16{1, 2, 3, 4})
}
