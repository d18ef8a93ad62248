package receiver

import "github.com/BryanSouza91/QuadFC/internal/bounds"

// CRSF (TBS Crossfire) framing, also spoken by ExpressLRS receivers.
//
//	sync | length | type | payload | crc8
//
// length counts type, payload and crc. The RC channels frame carries 16
// channels packed as 11-bit little-endian values in a 22-byte payload.
const (
	crsfSync                = 0xC8
	crsfFrameTypeRCChannels = 0x16
	crsfRCPayloadSize       = 22
	crsfRCLength            = 1 + crsfRCPayloadSize + 1
	crsfPacketSize          = 2 + crsfRCLength
	crsfChannels            = 16

	crsfChannelMin = 172  // 988us
	crsfChannelMax = 1811 // 2012us

	// CRSFBaudRate is the UART rate of a CRSF receiver.
	CRSFBaudRate = 420000
)

type crsfState int

const (
	crsfDestination crsfState = iota
	crsfLength
	crsfType
	crsfPayload
	crsfChecksum
)

// CRSF decodes RC channel frames from a CRSF byte stream. Other frame types
// are skipped.
type CRSF struct {
	state    crsfState
	packet   [crsfPacketSize]byte
	index    int
	channels [NumChannels]uint16
	bad      uint32
}

// NewCRSF returns a parser waiting for a sync byte.
func NewCRSF() *CRSF {
	return &CRSF{}
}

func (p *CRSF) reset() {
	p.index = 0
	p.state = crsfDestination
}

// Feed consumes one byte and reports whether it completed a valid RC frame.
func (p *CRSF) Feed(b byte) bool {
	switch p.state {
	case crsfDestination:
		if b == crsfSync {
			p.packet[0] = b
			p.index = 1
			p.state = crsfLength
		}
	case crsfLength:
		if b != crsfRCLength {
			p.reset()
			return false
		}
		p.packet[p.index] = b
		p.index++
		p.state = crsfType
	case crsfType:
		if b != crsfFrameTypeRCChannels {
			p.reset()
			return false
		}
		p.packet[p.index] = b
		p.index++
		p.state = crsfPayload
	case crsfPayload:
		p.packet[p.index] = b
		p.index++
		if p.index >= crsfPacketSize-1 {
			p.state = crsfChecksum
		}
	case crsfChecksum:
		// The CRC covers type and payload.
		ok := crc8(p.packet[2:p.index]) == b
		p.reset()
		if !ok {
			p.bad++
			return false
		}
		p.unpack()
		return true
	}
	return false
}

// unpack extracts the 11-bit channel values and converts them to microseconds.
func (p *CRSF) unpack() {
	bitstream := p.packet[3 : 3+crsfRCPayloadSize]

	var bitsMerged uint
	var readValue uint32
	var readByteIndex int
	for n := 0; n < crsfChannels; n++ {
		for bitsMerged < 11 {
			readValue |= uint32(bitstream[readByteIndex]) << bitsMerged
			readByteIndex++
			bitsMerged += 8
		}
		raw := int32(readValue & 0x07FF)
		readValue >>= 11
		bitsMerged -= 11
		us := bounds.MapRange(raw, crsfChannelMin, crsfChannelMax, MinPulseUs, MaxPulseUs)
		p.channels[n] = uint16(bounds.Clamp[int32](us, 0, 0xFFFF))
	}
}

// Channels returns the last decoded channels in microseconds.
func (p *CRSF) Channels() [NumChannels]uint16 {
	return p.channels
}

// Rejected counts frames dropped for a bad CRC.
func (p *CRSF) Rejected() uint32 {
	return p.bad
}

// crc8 is CRC-8/DVB-S2 (polynomial 0xD5) as used by CRSF.
func crc8(data []byte) byte {
	crc := byte(0x00)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0xD5
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
