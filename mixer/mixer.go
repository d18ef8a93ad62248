// Package mixer turns pilot sticks into four quad-X motor throttles.
package mixer

import (
	"github.com/BryanSouza91/QuadFC/dshot"
	"github.com/BryanSouza91/QuadFC/internal/bounds"
)

const (
	// Neutral is the centred stick value.
	Neutral = 1028

	// Sensitivity is applied to stick deviations as sensNum/sensDen (0.25).
	sensNum = 1
	sensDen = 4
)

// StickInput is one receiver sample. Axes are centred on Neutral.
type StickInput struct {
	Throttle uint16
	Pitch    uint16
	Roll     uint16
	Yaw      uint16
	SwitchA  bool
	SwitchB  bool
}

// Centered returns sticks at neutral with the given throttle.
func Centered(throttle uint16) StickInput {
	return StickInput{Throttle: throttle, Pitch: Neutral, Roll: Neutral, Yaw: Neutral}
}

// MotorThrottles are the per-motor DSHOT throttle values of one control cycle.
type MotorThrottles struct {
	FrontLeft  uint16
	FrontRight uint16
	BackLeft   uint16
	BackRight  uint16
}

// ByMotor orders the throttles by dshot.Motor.
func (m MotorThrottles) ByMotor() [dshot.ESCCount]uint16 {
	return [dshot.ESCCount]uint16{
		dshot.FrontLeft:  m.FrontLeft,
		dshot.FrontRight: m.FrontRight,
		dshot.BackLeft:   m.BackLeft,
		dshot.BackRight:  m.BackRight,
	}
}

// Clamp keeps an armed motor between idle and full throttle.
func Clamp(v uint32) uint16 {
	return uint16(bounds.Clamp[uint32](v, dshot.MinIdle, dshot.MaxThrottle))
}

// deviation splits an axis into its distance from Neutral, scaled by the
// sensitivity, and its direction.
func deviation(axis uint16) (delta uint32, positive bool) {
	d := int32(axis) - Neutral
	if d < 0 {
		return uint32(-d) * sensNum / sensDen, false
	}
	return uint32(d) * sensNum / sensDen, true
}

// shift adds delta to the gaining pair and takes it from the losing pair,
// never dropping below zero.
func shift(delta uint32, gain1, gain2, lose1, lose2 *uint32) {
	*gain1 += delta
	*gain2 += delta
	*lose1 = bounds.SubFloor(*lose1, delta)
	*lose2 = bounds.SubFloor(*lose2, delta)
}

// Mix applies the quad-X mixing law. Disarmed, every motor is zero. Armed:
//
//   - pitch above neutral speeds up the back pair and slows the front pair;
//   - roll above neutral speeds up the left pair and slows the right pair;
//   - yaw above neutral speeds up the front-right/back-left diagonal (the
//     counter-clockwise props of a props-in layout) and slows the other one;
//
// then each motor is clamped to [dshot.MinIdle, dshot.MaxThrottle].
func Mix(in StickInput, armed bool) MotorThrottles {
	if !armed {
		return MotorThrottles{}
	}

	fl := uint32(in.Throttle)
	fr := fl
	bl := fl
	br := fl

	if d, up := deviation(in.Pitch); up {
		shift(d, &bl, &br, &fl, &fr)
	} else {
		shift(d, &fl, &fr, &bl, &br)
	}

	if d, up := deviation(in.Roll); up {
		shift(d, &fl, &bl, &fr, &br)
	} else {
		shift(d, &fr, &br, &fl, &bl)
	}

	if d, up := deviation(in.Yaw); up {
		shift(d, &fr, &bl, &fl, &br)
	} else {
		shift(d, &fl, &br, &fr, &bl)
	}

	return MotorThrottles{
		FrontLeft:  Clamp(fl),
		FrontRight: Clamp(fr),
		BackLeft:   Clamp(bl),
		BackRight:  Clamp(br),
	}
}
