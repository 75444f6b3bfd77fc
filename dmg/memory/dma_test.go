package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arlojames/dmgcore/dmg/addr"
)

func TestOAMDMACopiesPageIntoOAM(t *testing.T) {
	m := New()
	for i := 0; i < 160; i++ {
		m.Write(0xC000+uint16(i), byte(i))
	}

	m.Write(addr.DMA, 0xC0)

	// one start-delay M-cycle plus 160 bytes at one byte per 4 T-cycles
	m.Tick(4 + 160*4)

	for i := 0; i < 160; i++ {
		assert.Equal(t, byte(i), m.ReadRaw(0xFE00+uint16(i)))
	}
}

func TestOAMDMABlocksCPUVisibilityOutsideHRAM(t *testing.T) {
	m := New()
	m.Write(0xC000, 0x42)
	m.Write(0xFF80, 0x24)

	m.Write(addr.DMA, 0xC0)
	m.Tick(8) // past the start delay, transfer in flight

	assert.Equal(t, byte(0xFF), m.Read(0xC000), "WRAM reads 0xFF while DMA owns the bus")
	assert.Equal(t, byte(0x24), m.Read(0xFF80), "HRAM stays visible during DMA")

	m.Write(0xC001, 0x55)
	assert.Equal(t, byte(0x00), m.ReadRaw(0xC001), "non-HRAM writes are dropped during DMA")

	m.Tick(160 * 4)
	assert.Equal(t, byte(0x42), m.Read(0xC000), "visibility returns once the transfer ends")
}

func TestOAMDMAInterruptsStayVisible(t *testing.T) {
	m := New()
	m.Write(addr.IE, 0x04)
	m.Write(addr.DMA, 0xC0)
	m.Tick(8)

	m.RequestInterrupt(addr.TimerInterrupt)

	assert.NotZero(t, m.PendingInterrupts()&0x04,
		"the CPU's interrupt check must not be masked by an in-flight DMA")
}

func TestHRAMWriteReadRoundTrip(t *testing.T) {
	m := New()
	for a := uint16(0xFF80); a <= 0xFFFE; a++ {
		m.Write(a, byte(a))
		assert.Equal(t, byte(a), m.Read(a))
	}
}

func TestUnusableRegionNormalized(t *testing.T) {
	m := New()
	m.Write(0xFEA0, 0x12)
	assert.Equal(t, byte(0xFF), m.Read(0xFEA0))
	assert.Equal(t, byte(0xFF), m.Read(0xFEFF))
}

func TestEchoRAMMirrorsWRAM(t *testing.T) {
	m := New()
	m.Write(0xC123, 0x77)
	assert.Equal(t, byte(0x77), m.Read(0xE123))

	m.Write(0xE124, 0x88)
	assert.Equal(t, byte(0x88), m.Read(0xC124))
}

func TestIFReservedBitsReadHigh(t *testing.T) {
	m := New()
	m.Write(addr.IF, 0x00)
	assert.Equal(t, byte(0xE0), m.Read(addr.IF))

	m.Write(addr.IF, 0x05)
	assert.Equal(t, byte(0xE5), m.Read(addr.IF))
}
