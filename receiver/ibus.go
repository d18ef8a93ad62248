package receiver

// FlySky iBus: 115200 baud, a 32-byte packet every 7 ms.
//
//	0x20 0x40 | 14 channels, little endian | checksum, little endian
//
// The checksum is 0xFFFF minus the sum of every preceding byte.
const (
	ibusHeader1     = 0x20
	ibusHeader2     = 0x40
	ibusChannels    = 14
	ibusPayloadSize = ibusChannels * 2
	ibusPacketSize  = 2 + ibusPayloadSize + 2

	// IBusBaudRate is the UART rate of an iBus receiver.
	IBusBaudRate = 115200
)

type ibusState int

const (
	waitingForHeader1 ibusState = iota
	waitingForHeader2
	readingPayload
	readingChecksumLow
	readingChecksumHigh
)

// IBus decodes a FlySky iBus byte stream.
type IBus struct {
	state    ibusState
	payload  [ibusPayloadSize]byte
	index    int
	checksum uint16
	received uint16
	channels [NumChannels]uint16
	bad      uint32
}

// NewIBus returns a parser waiting for a header.
func NewIBus() *IBus {
	return &IBus{}
}

// Feed consumes one byte and reports whether it completed a valid packet.
func (p *IBus) Feed(b byte) bool {
	switch p.state {
	case waitingForHeader1:
		if b == ibusHeader1 {
			p.state = waitingForHeader2
		}
	case waitingForHeader2:
		if b == ibusHeader2 {
			p.state = readingPayload
			p.index = 0
			p.checksum = 0xFFFF - ibusHeader1 - ibusHeader2
		} else {
			// Invalid header sequence, reset
			p.state = waitingForHeader1
		}
	case readingPayload:
		p.payload[p.index] = b
		p.checksum -= uint16(b)
		p.index++
		if p.index >= ibusPayloadSize {
			p.state = readingChecksumLow
		}
	case readingChecksumLow:
		p.received = uint16(b)
		p.state = readingChecksumHigh
	case readingChecksumHigh:
		p.received |= uint16(b) << 8
		p.state = waitingForHeader1
		if p.received != p.checksum {
			p.bad++
			return false
		}
		for i := 0; i < ibusChannels; i++ {
			p.channels[i] = uint16(p.payload[2*i]) | uint16(p.payload[2*i+1])<<8
		}
		return true
	}
	return false
}

// Channels returns the last decoded channels in microseconds.
func (p *IBus) Channels() [NumChannels]uint16 {
	return p.channels
}

// Rejected counts packets dropped for a bad checksum.
func (p *IBus) Rejected() uint32 {
	return p.bad
}
