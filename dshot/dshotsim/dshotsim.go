// Package dshotsim provides an in-memory timer and DMA stream that satisfy the
// dshot hardware interfaces. Transfers are recorded so tests and the bench
// tooling can inspect the exact compare codes that would reach the pin.
package dshotsim

import (
	"sync"

	"github.com/pkg/errors"
)

// TimerBase is the address the simulated timer reports for its registers.
const TimerBase uintptr = 0x40010000

const ccr1Offset = 0x34

// Timer simulates a four-channel advanced timer. Compare channels are
// numbered 1 to 4; reads of other channels return zero and writes are ignored.
type Timer struct {
	mu      sync.Mutex
	top     uint32
	compare [5]uint32
	enabled [5]bool

	// TopErr, when set, is returned by SetTop.
	TopErr error
}

// NewTimer returns a stopped timer.
func NewTimer() *Timer {
	return &Timer{}
}

// SetTop records the period.
func (t *Timer) SetTop(top uint32) error {
	if t.TopErr != nil {
		return t.TopErr
	}
	if top == 0 {
		return errors.New("dshotsim: zero timer period")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.top = top
	return nil
}

func validChannel(ch uint8) bool {
	return ch >= 1 && ch <= 4
}

// CompareRegister returns the address of CCRch, or zero when there is no
// such channel.
func (t *Timer) CompareRegister(ch uint8) uintptr {
	if !validChannel(ch) {
		return 0
	}
	return TimerBase + ccr1Offset + 4*uintptr(ch-1)
}

// SetCompare writes a compare register.
func (t *Timer) SetCompare(ch uint8, v uint32) {
	if !validChannel(ch) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.compare[ch] = v
}

// EnableChannel turns on the output of channel ch (1-4).
func (t *Timer) EnableChannel(ch uint8) error {
	if !validChannel(ch) {
		return errors.Errorf("dshotsim: no compare channel %d", ch)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled[ch] = true
	return nil
}

// Top returns the programmed period.
func (t *Timer) Top() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.top
}

// Compare returns the value of CCRch.
func (t *Timer) Compare(ch uint8) uint32 {
	if !validChannel(ch) {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.compare[ch]
}

// ChannelEnabled reports whether channel ch drives its pin.
func (t *Timer) ChannelEnabled(ch uint8) bool {
	if !validChannel(ch) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled[ch]
}
