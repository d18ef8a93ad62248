//go:build tinygo && stm32f405

package main

// Register-level TIM1 + DMA2 driver for the DSHOT outputs. TinyGo's machine
// package has no DMA API on STM32, so the streams are programmed directly.

import (
	"device/stm32"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/BryanSouza91/QuadFC/dshot"
)

const (
	rccBase   = 0x40023800
	gpioABase = 0x40020000
	tim1Base  = 0x40010000
	dma2Base  = 0x40026400

	rccAHB1ENR = rccBase + 0x30
	rccAPB2ENR = rccBase + 0x44

	rccGPIOAEN = 1 << 0
	rccDMA2EN  = 1 << 22
	rccTIM1EN  = 1 << 0

	gpioMODER   = 0x00
	gpioOSPEEDR = 0x08
	gpioAFRH    = 0x24

	timCR1   = 0x00
	timDIER  = 0x0C
	timEGR   = 0x14
	timCCMR1 = 0x18
	timCCMR2 = 0x1C
	timCCER  = 0x20
	timPSC   = 0x28
	timARR   = 0x2C
	timCCR1  = 0x34
	timBDTR  = 0x44

	timCR1_CEN   = 1 << 0
	timCR1_ARPE  = 1 << 7
	timEGR_UG    = 1 << 0
	timBDTR_MOE  = 1 << 15
	timDIER_CC1D = 1 << 9

	// PWM mode 1 with preload, per half of a CCMR register.
	timOCPWM1 = 0x6<<4 | 1<<3

	dmaLIFCR = 0x08
	dmaHIFCR = 0x0C
	dmaLISR  = 0x00
	dmaHISR  = 0x04

	dmaCR_EN    = 1 << 0
	dmaCR_TCIE  = 1 << 4
	dmaCR_DIR   = 1 << 6 // memory to peripheral
	dmaCR_MINC  = 1 << 10
	dmaCR_PSIZE = 2 << 11 // 32-bit
	dmaCR_MSIZE = 2 << 13 // 32-bit
	dmaCR_PLVH  = 3 << 16
	dmaCR_CHSEL = 25

	dmaFlagsAll = 0x3D
	dmaFlagTC   = 1 << 5

	tim1DMAChannel = 6
)

func reg(addr uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

// tim1 is the advanced timer driving PA8-PA11.
type tim1 struct{}

var _ dshot.Timer = tim1{}

func enableDSHOTClocks() {
	reg(rccAHB1ENR).SetBits(rccGPIOAEN | rccDMA2EN)
	reg(rccAPB2ENR).SetBits(rccTIM1EN)
}

// configureDSHOTPins puts PA8-PA11 on AF1 (TIM1_CH1-4) at high speed.
func configureDSHOTPins() {
	for pin := uint32(8); pin <= 11; pin++ {
		moder := reg(gpioABase + gpioMODER)
		moder.ReplaceBits(0b10, 0b11, uint8(pin*2))
		reg(gpioABase+gpioOSPEEDR).ReplaceBits(0b11, 0b11, uint8(pin*2))
		reg(gpioABase+gpioAFRH).ReplaceBits(1, 0xF, uint8((pin-8)*4))
	}
}

func (tim1) SetTop(top uint32) error {
	if top == 0 || top > 0x10000 {
		return errors.Errorf("tim1: period %d out of range", top)
	}
	reg(tim1Base + timPSC).Set(0)
	reg(tim1Base + timARR).Set(top - 1)
	reg(tim1Base + timCR1).SetBits(timCR1_ARPE)
	reg(tim1Base + timEGR).Set(timEGR_UG)
	return nil
}

func (tim1) CompareRegister(ch uint8) uintptr {
	return tim1Base + timCCR1 + 4*uintptr(ch-1)
}

func (t tim1) SetCompare(ch uint8, v uint32) {
	reg(t.CompareRegister(ch)).Set(v)
}

func (tim1) EnableChannel(ch uint8) error {
	if ch < 1 || ch > 4 {
		return errors.Errorf("tim1: no channel %d", ch)
	}
	ccmr := uintptr(timCCMR1)
	if ch > 2 {
		ccmr = timCCMR2
	}
	shift := uint8(0)
	if ch%2 == 0 {
		shift = 8
	}
	reg(tim1Base+ccmr).ReplaceBits(timOCPWM1, 0xFF, shift)
	reg(tim1Base + timCCER).SetBits(1 << (4 * uint32(ch-1)))
	reg(tim1Base + timDIER).SetBits(timDIER_CC1D << uint32(ch-1))
	reg(tim1Base + timBDTR).SetBits(timBDTR_MOE)
	reg(tim1Base + timCR1).SetBits(timCR1_CEN)
	return nil
}

// dmaStream is one DMA2 stream feeding a TIM1 compare register.
type dmaStream struct {
	n          uint32
	dst        uintptr
	onComplete func()
}

var _ dshot.Stream = (*dmaStream)(nil)

// TIM1_CH1..4 requests on DMA2 channel 6.
var dmaStreams = [dshot.ESCCount]*dmaStream{
	{n: 1},
	{n: 2},
	{n: 6},
	{n: 4},
}

func (s *dmaStream) cr() *volatile.Register32 {
	return reg(dma2Base + 0x10 + 0x18*uintptr(s.n))
}

func (s *dmaStream) ndtr() *volatile.Register32 {
	return reg(dma2Base + 0x14 + 0x18*uintptr(s.n))
}

func (s *dmaStream) par() *volatile.Register32 {
	return reg(dma2Base + 0x18 + 0x18*uintptr(s.n))
}

func (s *dmaStream) m0ar() *volatile.Register32 {
	return reg(dma2Base + 0x1C + 0x18*uintptr(s.n))
}

// flagShift is the bit offset of the stream's flags in LISR/HISR.
func (s *dmaStream) flagShift() uint32 {
	return [4]uint32{0, 6, 16, 22}[s.n%4]
}

func (s *dmaStream) clearFlags() {
	ifcr := uintptr(dmaLIFCR)
	if s.n >= 4 {
		ifcr = dmaHIFCR
	}
	reg(dma2Base + ifcr).Set(dmaFlagsAll << s.flagShift())
}

func (s *dmaStream) complete() bool {
	isr := uintptr(dmaLISR)
	if s.n >= 4 {
		isr = dmaHISR
	}
	return reg(dma2Base+isr).HasBits(dmaFlagTC << s.flagShift())
}

func (s *dmaStream) Bind(dst uintptr) {
	s.dst = dst
	s.cr().ClearBits(dmaCR_EN)
	s.par().Set(uint32(dst))
	s.cr().Set(tim1DMAChannel<<dmaCR_CHSEL | dmaCR_PLVH | dmaCR_MSIZE | dmaCR_PSIZE |
		dmaCR_MINC | dmaCR_DIR | dmaCR_TCIE)
}

func (s *dmaStream) Start(src []uint32) error {
	if s.Enabled() {
		return errors.Errorf("dma2 stream %d still enabled", s.n)
	}
	if len(src) == 0 {
		return errors.New("dma2: empty transfer")
	}
	s.clearFlags()
	s.m0ar().Set(uint32(uintptr(unsafe.Pointer(&src[0]))))
	s.ndtr().Set(uint32(len(src)))
	s.cr().SetBits(dmaCR_EN)
	return nil
}

func (s *dmaStream) Enabled() bool {
	return s.cr().HasBits(dmaCR_EN)
}

func (s *dmaStream) OnComplete(fn func()) {
	s.onComplete = fn
}

func (s *dmaStream) irq() {
	if !s.complete() {
		s.clearFlags()
		return
	}
	s.clearFlags()
	if s.onComplete != nil {
		s.onComplete()
	}
}

func enableDMAInterrupts() {
	intr := []interrupt.Interrupt{
		interrupt.New(stm32.IRQ_DMA2_Stream1, func(interrupt.Interrupt) { dmaStreams[0].irq() }),
		interrupt.New(stm32.IRQ_DMA2_Stream2, func(interrupt.Interrupt) { dmaStreams[1].irq() }),
		interrupt.New(stm32.IRQ_DMA2_Stream6, func(interrupt.Interrupt) { dmaStreams[2].irq() }),
		interrupt.New(stm32.IRQ_DMA2_Stream4, func(interrupt.Interrupt) { dmaStreams[3].irq() }),
	}
	for _, i := range intr {
		i.SetPriority(0x40)
		i.Enable()
	}
}

// dshotOutputs brings up the hardware and returns the four motor outputs in
// Motor order.
func dshotOutputs() [dshot.ESCCount]dshot.Output {
	enableDSHOTClocks()
	configureDSHOTPins()
	enableDMAInterrupts()

	var out [dshot.ESCCount]dshot.Output
	for i := range out {
		out[i] = dshot.Output{Timer: tim1{}, Compare: uint8(i + 1), Stream: dmaStreams[i]}
	}
	return out
}
