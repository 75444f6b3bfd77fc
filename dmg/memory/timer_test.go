package memory

import (
	"testing"

	"github.com/arlojames/dmgcore/dmg/addr"
	"github.com/stretchr/testify/assert"
)

// TestTimerOverflowReload: TAC=0x05 selects the bit-3 falling edge as the
// TIMA clock, so with TMA=0x50 and TIMA at 0xFF,
// running 16 T-cycles must overflow TIMA, hold it at zero for the reload
// delay, reload from TMA and raise the timer interrupt.
func TestTimerOverflowReload(t *testing.T) {
	m := New()
	m.timer.Write(addr.TAC, 0x05)
	m.timer.Write(addr.TMA, 0x50)
	m.timer.tima = 0xFF

	var fired bool
	m.timer.TimerInterruptHandler = func() { fired = true }

	// 16 cycles reach the falling edge that triggers the overflow; 4 more
	// drain the reload delay, and one further tick delivers the interrupt
	// that was latched on the cycle TMA reloaded into TIMA.
	m.timer.Tick(21)

	assert.Equal(t, uint8(0x50), m.timer.tima)
	assert.True(t, fired, "timer interrupt should have fired by the end of the reload delay")
}

// TestTimerDisabledIgnoresOverflow checks the universal property: with TAC's
// enable bit clear, TIMA never changes even as DIV/the internal counter rolls
// over many times.
func TestTimerDisabledIgnoresOverflow(t *testing.T) {
	m := New()
	m.timer.Write(addr.TAC, 0x00) // enable bit clear
	m.timer.tima = 0x12

	m.timer.Tick(1 << 16)

	assert.Equal(t, uint8(0x12), m.timer.tima)
}

// TestTimerDivResetOnWrite checks DIV always resets to zero on any write,
// regardless of the value written.
func TestTimerDivResetOnWrite(t *testing.T) {
	m := New()
	m.timer.Tick(1000)
	assert.NotEqual(t, uint8(0), m.timer.Read(addr.DIV))

	m.timer.Write(addr.DIV, 0x42)
	assert.Equal(t, uint8(0), m.timer.Read(addr.DIV))
}

// TestTimerDivWriteFallingEdgeClocksTIMA: zeroing the divider while the
// TAC-selected bit is high is a falling edge like any other and must
// increment TIMA.
func TestTimerDivWriteFallingEdgeClocksTIMA(t *testing.T) {
	m := New()
	m.timer.Write(addr.TAC, 0x05) // enabled, bit 3 selected

	m.timer.Tick(8) // counter = 8, bit 3 high
	before := m.timer.tima

	m.timer.Write(addr.DIV, 0x00)

	assert.Equal(t, before+1, m.timer.tima)
}

// TestTimerTACChangeFallingEdgeClocksTIMA: rerouting the TIMA clock from a
// high bit to a low one via TAC produces the same falling edge.
func TestTimerTACChangeFallingEdgeClocksTIMA(t *testing.T) {
	m := New()
	m.timer.Write(addr.TAC, 0x05) // bit 3

	m.timer.Tick(8) // bit 3 high, bit 9 low
	before := m.timer.tima

	m.timer.Write(addr.TAC, 0x04) // switch select to bit 9

	assert.Equal(t, before+1, m.timer.tima)
}

// TestTimerTACUnusedBitsReadHigh checks the reserved-bit mask on TAC.
func TestTimerTACUnusedBitsReadHigh(t *testing.T) {
	m := New()
	m.timer.Write(addr.TAC, 0x05)
	assert.Equal(t, uint8(0xFD), m.timer.Read(addr.TAC))
}

// TestTimerWriteDuringReloadDelayCancelsReload checks the obscure reload
// timing rule: writing TIMA during the four T-cycle post-overflow delay
// cancels both the reload and the interrupt that would have fired.
func TestTimerWriteDuringReloadDelayCancelsReload(t *testing.T) {
	m := New()
	m.timer.Write(addr.TAC, 0x05)
	m.timer.Write(addr.TMA, 0x99)
	m.timer.tima = 0xFF

	var fired bool
	m.timer.TimerInterruptHandler = func() { fired = true }

	// Tick just enough to trigger the overflow (falling edge of bit 3) but
	// stay inside the 4-cycle reload delay.
	m.timer.Tick(16)
	assert.Equal(t, uint8(0), m.timer.tima, "TIMA should read 0 during the reload delay")

	m.timer.Write(addr.TIMA, 0x07)
	m.timer.Tick(8)

	assert.Equal(t, uint8(0x07), m.timer.tima, "a write during the delay wins over the TMA reload")
	assert.False(t, fired, "the interrupt should be cancelled along with the reload")
}
