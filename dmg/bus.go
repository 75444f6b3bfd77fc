// Package dmg wires the CPU, MMU and GPU together into a running console:
// it owns the bus cycle-stepping, so every CPU-visible memory access ticks
// the timer, serial port, MBC3 RTC, OAM DMA controller, APU and GPU by the
// exact number of T-cycles it costs, instead of in one lump per instruction.
package dmg

import (
	"github.com/arlojames/dmgcore/dmg/addr"
	"github.com/arlojames/dmgcore/dmg/cpu"
	"github.com/arlojames/dmgcore/dmg/memory"
	"github.com/arlojames/dmgcore/dmg/video"
)

// Bus implements cpu.Bus, and is the single place where everything timing
// sensitive gets ticked.
type Bus struct {
	CPU *cpu.CPU
	MMU *memory.MMU
	GPU *video.GPU
}

// NewBus constructs a fully wired console sharing one MMU between the CPU and GPU.
func NewBus(mmu *memory.MMU) *Bus {
	b := &Bus{MMU: mmu}
	b.GPU = video.NewGpu(mmu)
	b.CPU = cpu.New(b)
	return b
}

// ReadByte implements cpu.Bus. A bus read always costs 4 T-cycles.
func (b *Bus) ReadByte(address uint16) uint8 {
	value := b.MMU.Read(address)
	b.tick(4)
	return value
}

// WriteByte implements cpu.Bus. A bus write always costs 4 T-cycles.
func (b *Bus) WriteByte(address uint16, value uint8) {
	b.MMU.Write(address, value)
	b.tick(4)
}

// TickIdle implements cpu.Bus, for internal CPU cycles that touch no address.
func (b *Bus) TickIdle(cycles int) {
	b.tick(cycles)
}

// PendingInterrupts implements cpu.Bus: IE & IF, masked to the 5 real bits.
// It goes through the MMU's ungated accessors: the interrupt check is chip
// state, not a bus access, so an in-flight OAM DMA must not mask it to 0xFF.
func (b *Bus) PendingInterrupts() uint8 {
	return b.MMU.PendingInterrupts()
}

// ClearInterrupt implements cpu.Bus, clearing a single IF bit (0..4).
func (b *Bus) ClearInterrupt(bitIndex uint8) {
	b.MMU.ClearInterrupt(bitIndex)
}

// RequestInterrupt lets peripherals outside the CPU (the GPU, the joypad)
// raise an interrupt through the same MMU the CPU observes.
func (b *Bus) RequestInterrupt(interrupt addr.Interrupt) {
	b.MMU.RequestInterrupt(interrupt)
}

// tick is the single point where every sub-instruction-granular peripheral
// advances: MMU (timer, serial, MBC3 RTC, OAM DMA), APU and GPU.
func (b *Bus) tick(cycles int) {
	b.MMU.Tick(cycles)
	b.MMU.APU.Tick(cycles)
	b.GPU.Tick(cycles)
}

// Step runs one CPU instruction (including interrupt dispatch, or a single
// idle cycle while halted) and returns the T-cycles it consumed. All ticking
// already happened via ReadByte/WriteByte/TickIdle by the time this returns.
func (b *Bus) Step() int {
	return b.CPU.Step()
}
