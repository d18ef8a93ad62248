package dshotsim

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrOverlap is returned when a transfer is started on a stream that is still
// enabled. Real hardware would corrupt the running transfer.
var ErrOverlap = errors.New("dshotsim: transfer started while stream enabled")

// Stream simulates one DMA stream. With AutoComplete the transfer finishes
// inside Start; otherwise it stays enabled until Complete is called, which
// models a frame still on the wire.
type Stream struct {
	mu         sync.Mutex
	dst        uintptr
	enabled    bool
	onComplete func()
	transfers  [][]uint32
	overlaps   int

	// AutoComplete finishes every transfer immediately.
	AutoComplete bool
	// NoInterrupt drops the completion callback so only the enable bit
	// signals completion.
	NoInterrupt bool
	// StartErr, when set, makes Start fail.
	StartErr error
}

// NewStream returns an idle stream.
func NewStream(autoComplete bool) *Stream {
	return &Stream{AutoComplete: autoComplete}
}

// Bind sets the destination register address.
func (s *Stream) Bind(dst uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dst = dst
}

// Start records a copy of src and enables the stream.
func (s *Stream) Start(src []uint32) error {
	if s.StartErr != nil {
		return s.StartErr
	}
	s.mu.Lock()
	if s.enabled {
		s.overlaps++
		s.mu.Unlock()
		return ErrOverlap
	}
	s.transfers = append(s.transfers, append([]uint32(nil), src...))
	s.enabled = true
	s.mu.Unlock()

	if s.AutoComplete {
		s.Complete()
	}
	return nil
}

// Enabled reports whether a transfer is running.
func (s *Stream) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// OnComplete registers the transfer-complete callback.
func (s *Stream) OnComplete(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = fn
}

// Complete finishes the running transfer and fires the callback, as the
// transfer-complete interrupt would.
func (s *Stream) Complete() {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	s.enabled = false
	fn := s.onComplete
	s.mu.Unlock()

	if fn != nil && !s.NoInterrupt {
		fn()
	}
}

// Dest returns the bound destination address.
func (s *Stream) Dest() uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dst
}

// Transfers returns every started transfer in order.
func (s *Stream) Transfers() [][]uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]uint32, len(s.transfers))
	copy(out, s.transfers)
	return out
}

// Count returns the number of started transfers.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transfers)
}

// Last returns the most recent transfer, or nil.
func (s *Stream) Last() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.transfers) == 0 {
		return nil
	}
	return s.transfers[len(s.transfers)-1]
}

// Overlaps counts Start calls that hit a running transfer.
func (s *Stream) Overlaps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlaps
}

// Reset forgets recorded transfers.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers = nil
	s.overlaps = 0
}

// Decode turns recorded compare codes back into the 16-bit frame, treating
// any code equal to high as a 1 bit. The trailing slot is ignored.
func Decode(codes []uint32, high uint32) uint16 {
	var frame uint16
	for i := 0; i < 16 && i < len(codes); i++ {
		frame <<= 1
		if codes[i] == high {
			frame |= 1
		}
	}
	return frame
}
