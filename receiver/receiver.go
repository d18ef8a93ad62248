// Package receiver turns an RC receiver byte stream into mixer stick inputs.
package receiver

import (
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/BryanSouza91/QuadFC/internal/bounds"
	"github.com/BryanSouza91/QuadFC/mixer"
)

// NumChannels is the widest channel set any supported protocol carries.
const NumChannels = 16

// Pulse widths in microseconds.
const (
	MinPulseUs = 988
	MaxPulseUs = 2012

	stickOffsetUs = 998
	stickScaleNum = 2045
	stickScaleDen = 1000
)

// Protocol selects the wire format of the receiver.
type Protocol int

// Supported receiver protocols.
const (
	ProtocolIBus Protocol = iota
	ProtocolCRSF
	ProtocolELRS
)

func (p Protocol) String() string {
	switch p {
	case ProtocolIBus:
		return "ibus"
	case ProtocolCRSF:
		return "crsf"
	case ProtocolELRS:
		return "elrs"
	default:
		return "unknown"
	}
}

// BaudRate returns the UART rate the protocol runs at.
func (p Protocol) BaudRate() uint32 {
	if p == ProtocolIBus {
		return IBusBaudRate
	}
	return CRSFBaudRate
}

// ErrUnknownProtocol is returned for a Protocol outside the supported set.
var ErrUnknownProtocol = errors.New("unknown receiver protocol")

// Parser decodes one protocol a byte at a time.
type Parser interface {
	Feed(b byte) bool
	Channels() [NumChannels]uint16
}

// NewParser returns the parser for p.
func NewParser(p Protocol) (Parser, error) {
	switch p {
	case ProtocolIBus:
		return NewIBus(), nil
	case ProtocolCRSF, ProtocolELRS:
		// ELRS receivers speak CRSF on the UART.
		return NewCRSF(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownProtocol, "protocol %d", int(p))
	}
}

// ChannelMap assigns receiver channels (zero based) to stick inputs.
type ChannelMap struct {
	Roll, Pitch, Throttle, Yaw int
	SwitchA, SwitchB           int
}

// Config holds receiver settings.
type Config struct {
	Protocol        Protocol
	FailsafeTimeout time.Duration
	// Deadband around neutral applied to pitch, roll and yaw.
	Deadband   uint16
	SwitchHigh uint16
	Map        ChannelMap
	Clock      clock.Clock
}

// DefaultConfig is an AETR receiver on iBus with switches on channels 5 and 6.
func DefaultConfig() Config {
	return Config{
		Protocol:        ProtocolIBus,
		FailsafeTimeout: 500 * time.Millisecond,
		Deadband:        20,
		SwitchHigh:      1800,
		Map: ChannelMap{
			Roll:     0,
			Pitch:    1,
			Throttle: 2,
			Yaw:      3,
			SwitchA:  4,
			SwitchB:  5,
		},
		Clock: clock.New(),
	}
}

// Receiver tracks the latest channel values of one receiver and when they
// arrived.
type Receiver struct {
	cfg    Config
	parser Parser
	src    io.ByteReader

	mu       sync.Mutex
	channels [NumChannels]uint16
	last     time.Time
	seen     bool
}

// New returns a receiver reading from src. src may be nil when bytes are
// pushed with Feed.
func New(cfg Config, src io.ByteReader) (*Receiver, error) {
	parser, err := NewParser(cfg.Protocol)
	if err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Receiver{cfg: cfg, parser: parser, src: src}, nil
}

// Protocol returns the configured protocol.
func (r *Receiver) Protocol() Protocol {
	return r.cfg.Protocol
}

// Poll drains every byte currently available from the source and returns the
// number of complete packets decoded.
func (r *Receiver) Poll() int {
	if r.src == nil {
		return 0
	}
	packets := 0
	for {
		b, err := r.src.ReadByte()
		if err != nil {
			return packets
		}
		if r.Feed(b) {
			packets++
		}
	}
}

// Feed pushes one byte into the parser and reports whether it completed a
// packet.
func (r *Receiver) Feed(b byte) bool {
	if !r.parser.Feed(b) {
		return false
	}
	ch := r.parser.Channels()
	r.mu.Lock()
	r.channels = ch
	r.last = r.cfg.Clock.Now()
	r.seen = true
	r.mu.Unlock()
	return true
}

// Channels returns the latest raw channel values in microseconds.
func (r *Receiver) Channels() [NumChannels]uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels
}

// LastPacket returns when the latest packet was decoded.
func (r *Receiver) LastPacket() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Lost reports whether no packet has arrived within the failsafe timeout.
// A receiver that never produced a packet is lost.
func (r *Receiver) Lost() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.seen {
		return true
	}
	return r.cfg.Clock.Since(r.last) > r.cfg.FailsafeTimeout
}

// Disconnect zeroes every channel so stale sticks cannot be replayed.
func (r *Receiver) Disconnect() {
	r.mu.Lock()
	r.channels = [NumChannels]uint16{}
	r.seen = false
	r.mu.Unlock()
}

// Sticks returns the mixer input for the latest channels, or a zero input
// when the link is lost.
func (r *Receiver) Sticks() mixer.StickInput {
	if r.Lost() {
		return mixer.StickInput{}
	}
	ch := r.Channels()
	m := r.cfg.Map
	return mixer.StickInput{
		Throttle: Normalize(channel(ch, m.Throttle)),
		Pitch:    r.centered(channel(ch, m.Pitch)),
		Roll:     r.centered(channel(ch, m.Roll)),
		Yaw:      r.centered(channel(ch, m.Yaw)),
		SwitchA:  channel(ch, m.SwitchA) > r.cfg.SwitchHigh,
		SwitchB:  channel(ch, m.SwitchB) > r.cfg.SwitchHigh,
	}
}

func channel(ch [NumChannels]uint16, i int) uint16 {
	if i < 0 || i >= NumChannels {
		return 0
	}
	return ch[i]
}

func (r *Receiver) centered(us uint16) uint16 {
	v := Normalize(us)
	lo := mixer.Neutral - r.cfg.Deadband
	hi := mixer.Neutral + r.cfg.Deadband
	if v > lo && v < hi {
		return mixer.Neutral
	}
	return v
}

// Normalize scales a pulse width in microseconds onto the 0..2047 throttle
// range.
func Normalize(us uint16) uint16 {
	v := (int32(us) - stickOffsetUs) * stickScaleNum / stickScaleDen
	return uint16(bounds.Clamp[int32](v, 0, 2047))
}
