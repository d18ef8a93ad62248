// Package dshot drives four ESCs over the DSHOT protocol.
//
// A DSHOT frame is 16 bits sent MSB first:
//
//	| 15 .. 5         | 4 | 3 .. 0   |
//	| throttle/cmd 11 | T | checksum |
//
// Each bit becomes one timer period whose compare value selects a ~37.5% (0)
// or ~75% (1) high time. The compare values for a whole frame are handed to a
// DMA stream that writes them into the timer's compare register, one per
// period, followed by a zero so the line idles low between frames.
package dshot

const (
	// MaxThrottle is the largest 11-bit frame value.
	MaxThrottle = 2047
	// MinThrottle is the first frame value the ESC treats as throttle rather than a command.
	MinThrottle = 48
	// MinIdle is the lowest throttle sent to an armed motor.
	MinIdle = 250

	// FrameBits is the number of bits in a frame.
	FrameBits = 16
	// DutySlots is the DMA transfer length: one slot per bit plus the trailing low slot.
	DutySlots = FrameBits + 1

	valueMask    = 0x07FF
	telemetryBit = 0x0010
	checksumMask = 0x000F
)

// Frame is an encoded 16-bit DSHOT packet.
type Frame uint16

// DutyCodes is the compare-register sequence for one frame.
type DutyCodes [DutySlots]uint32

// EncodeThrottle builds the frame for an 11-bit throttle value. The caller
// clamps value; bits above the eleventh are discarded.
func EncodeThrottle(value uint16, telemetry bool) Frame {
	packet := (value & valueMask) << 1
	if telemetry {
		packet |= 1
	}
	return Frame(packet<<4 | checksum(packet))
}

// EncodeCommand builds the frame for a special command. Commands always set
// the telemetry bit.
func EncodeCommand(cmd Command) Frame {
	return EncodeThrottle(uint16(cmd), true)
}

// checksum folds the 12-bit packet into three nibbles.
func checksum(packet uint16) uint16 {
	return (packet ^ packet>>4 ^ packet>>8) & checksumMask
}

// Value returns the 11-bit throttle or command carried by the frame.
func (f Frame) Value() uint16 {
	return uint16(f) >> 5
}

// Telemetry reports whether the telemetry request bit is set.
func (f Frame) Telemetry() bool {
	return uint16(f)&telemetryBit != 0
}

// Checksum returns the low four bits of the frame.
func (f Frame) Checksum() uint16 {
	return uint16(f) & checksumMask
}

// Valid recomputes the checksum from the value and telemetry bit.
func (f Frame) Valid() bool {
	return checksum(uint16(f)>>4) == f.Checksum()
}

// ToDutyCodes expands f into one compare value per bit, MSB first, and leaves
// the final slot at zero.
func ToDutyCodes(f Frame, high, low uint32) DutyCodes {
	var codes DutyCodes
	for i := 0; i < FrameBits; i++ {
		if uint16(f)&(0x8000>>i) != 0 {
			codes[i] = high
		} else {
			codes[i] = low
		}
	}
	return codes
}
