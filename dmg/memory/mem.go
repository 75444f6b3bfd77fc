package memory

import (
	"fmt"
	"log/slog"

	"github.com/arlojames/dmgcore/dmg/addr"
	"github.com/arlojames/dmgcore/dmg/audio"
	"github.com/arlojames/dmgcore/dmg/bit"
	"github.com/arlojames/dmgcore/dmg/serial"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionUnused
	regionIO
	regionHRAM
)

// JoypadKey represents a key on the Gameboy joypad
type JoypadKey uint8

const (
	JoypadRight JoypadKey = iota
	JoypadLeft
	JoypadUp
	JoypadDown
	JoypadA
	JoypadB
	JoypadSelect
	JoypadStart
)

// SerialPort is the minimal interface for a serial device connected to SB/SC.
// Implementations MUST only accept reads/writes to addr.SB and addr.SC.
type SerialPort interface {
	Write(address uint16, value byte)
	Read(address uint16) byte
	Tick(cycles int)
	Reset()
}

// MMU allows access to all memory mapped I/O and data/registers
type MMU struct {
	cart      *Cartridge
	mbc       MBC
	memory    []byte
	APU       *audio.APU
	regionMap [256]memRegion

	joypadButtons uint8 // Actual state of buttons A/B/Start/Select, mapped to low bits of P1
	joypadDpad    uint8 // Actual state of d-pad directions, mapped to low bits of P1

	serial SerialPort
	timer  Timer
	dma    dmaState

	// mbc3 is set alongside mbc whenever the loaded cartridge uses MBC3, so
	// Tick can drive its real-time clock independently of the MBC interface.
	mbc3 *MBC3
}

// New creates a new memory unity with default data, i.e. nothing cartridge loaded.
// Equivalent to turning on a Gameboy without a cartridge in.
func New() *MMU {
	mmu := &MMU{
		memory:        make([]byte, 0x10000),
		cart:          NewCartridge(),
		APU:           audio.New(),
		joypadButtons: 0x0F,
		joypadDpad:    0x0F,
	}
	mmu.serial = serial.NewLogSink(func() { mmu.RequestInterrupt(addr.SerialInterrupt) })
	mmu.timer.TimerInterruptHandler = func() { mmu.RequestInterrupt(addr.TimerInterrupt) }
	initRegionMap(mmu)
	mmu.seedPostBootIO()
	return mmu
}

// seedPostBootIO writes the I/O register values the boot ROM leaves behind,
// since the boot ROM itself is never executed.
func (m *MMU) seedPostBootIO() {
	m.memory[addr.P1] = 0xCF
	m.memory[addr.IF] = 0xE1
	m.memory[addr.LCDC] = 0x91
	m.memory[addr.STAT] = 0x85
	m.memory[addr.DMA] = 0xFF
	m.memory[addr.BGP] = 0xFC
	m.memory[addr.OBP0] = 0xFF
	m.memory[addr.OBP1] = 0xFF

	// The boot ROM leaves CH1 playing the chime it just finished.
	audioSeed := []struct {
		reg   uint16
		value uint8
	}{
		{addr.NR52, 0x80},
		{addr.NR10, 0x80}, {addr.NR11, 0xBF}, {addr.NR12, 0xF3}, {addr.NR14, 0xBF},
		{addr.NR21, 0x3F}, {addr.NR22, 0x00}, {addr.NR24, 0xBF},
		{addr.NR30, 0x7F}, {addr.NR31, 0xFF}, {addr.NR32, 0x9F}, {addr.NR34, 0xBF},
		{addr.NR41, 0xFF}, {addr.NR42, 0x00}, {addr.NR43, 0x00}, {addr.NR44, 0xBF},
		{addr.NR50, 0x77}, {addr.NR51, 0xF3},
	}
	for _, s := range audioSeed {
		m.APU.WriteRegister(s.reg, s.value)
	}
}

// Tick advances any i/o that needs it, if any.
func (m *MMU) Tick(cycles int) {
	m.timer.Tick(cycles)
	if m.serial != nil {
		m.serial.Tick(cycles)
	}
	if m.mbc3 != nil {
		m.mbc3.Tick(cycles)
	}
	m.dma.tick(m, cycles)
}

// SetTimerSeed initializes the internal timer divider seed and DIV register.
func (m *MMU) SetTimerSeed(seed uint16) {
	m.timer.SetSeed(seed)
}

// SetSerialTap replaces the serial sink with one that also hands every byte
// the guest writes to SB to fn. Test harnesses use it to capture the text
// blargg-style ROMs print over the link port.
func (m *MMU) SetSerialTap(fn func(byte)) {
	m.serial = serial.NewLogSink(func() { m.RequestInterrupt(addr.SerialInterrupt) }, serial.WithTap(fn))
}

// SaveData returns the battery-backed cartridge RAM to persist, or nil when
// the loaded cartridge has no battery behind its RAM.
func (m *MMU) SaveData() []byte {
	if m.mbc == nil {
		return nil
	}
	return m.mbc.SaveData()
}

// LoadSaveData restores previously persisted cartridge RAM. Oversized or
// undersized images are clamped to the cartridge's actual RAM size.
func (m *MMU) LoadSaveData(data []byte) {
	if m.mbc != nil {
		m.mbc.LoadSaveData(data)
	}
}

// NewWithCartridge creates a new memory unit with the provided cartridge data loaded.
// Equivalent to turning on a Gameboy with a cartridge in.
func NewWithCartridge(cart *Cartridge) *MMU {
	mmu := New()
	mmu.cart = cart

	switch cart.mbcType {
	case NoMBCType:
		mmu.mbc = NewNoMBC(cart.data)
	case MBC1Type, MBC1MultiType:
		mmu.mbc = NewMBC1(cart.data, cart.hasBattery, cart.ramBankCount)
	case MBC2Type:
		mmu.mbc = NewMBC2(cart.data, cart.hasBattery)
	case MBC3Type:
		mbc3 := NewMBC3(cart.data, cart.ramBankCount, cart.hasRTC, cart.hasBattery)
		mmu.mbc3 = mbc3
		mmu.mbc = mbc3
	case MBC5Type:
		mmu.mbc = NewMBC5(cart.data, cart.hasRumble, cart.hasBattery, cart.ramBankCount)
	case MBCUnknownType:
		panic("unsupported MBC type: unknown")
	default:
		panic(fmt.Sprintf("unsupported MBC type: %d", cart.mbcType))
	}

	return mmu
}

func initRegionMap(m *MMU) {
	// ROM: 0x0000-0x7FFF
	for i := 0x00; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	// VRAM: 0x8000-0x9FFF
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	// External RAM: 0xA000-0xBFFF
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionExtRAM
	}
	// Work RAM: 0xC000-0xDFFF
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	// Echo RAM: 0xE000-0xFDFF
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	// OAM: 0xFE00-0xFE9F, Unused: 0xFEA0-0xFEFF
	m.regionMap[0xFE] = regionOAM
	// IO + HRAM: 0xFF00-0xFFFF
	m.regionMap[0xFF] = regionIO
}

// RequestInterrupt sets the interrupt flag (IF register) of the chosen interrupt to 1.
// It writes IF directly: device-side interrupt raising must not be filtered by
// the CPU-visibility gates (OAM DMA in flight, PPU mode locks) that Read/Write apply.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	var bitPos uint8
	switch interrupt {
	case addr.VBlankInterrupt:
		bitPos = 0
	case addr.LCDSTATInterrupt:
		bitPos = 1
	case addr.TimerInterrupt:
		bitPos = 2
	case addr.SerialInterrupt:
		bitPos = 3
	case addr.JoypadInterrupt:
		bitPos = 4
	default:
		panic(fmt.Sprintf("Unknown interrupt: 0x%02X", uint8(interrupt)))
	}

	m.memory[addr.IF] = bit.Set(bitPos, m.memory[addr.IF]) | 0xE0
}

// PendingInterrupts returns IE & IF masked to the five meaningful bits. The
// CPU's between-instruction interrupt check is internal chip state, not a bus
// access, so it bypasses the CPU-visibility gates.
func (m *MMU) PendingInterrupts() uint8 {
	return m.memory[addr.IE] & m.memory[addr.IF] & 0x1F
}

// ClearInterrupt clears a single IF bit (0..4), as interrupt dispatch does
// for the vector it services.
func (m *MMU) ClearInterrupt(bitIndex uint8) {
	m.memory[addr.IF] = (m.memory[addr.IF] &^ (1 << bitIndex)) | 0xE0
}

func (m *MMU) ReadBit(index uint8, address uint16) bool {
	return bit.IsSet(index, m.Read(address))
}

func (m *MMU) SetBit(index uint8, address uint16, set bool) {
	value := m.Read(address)
	if set {
		value = bit.Set(index, value)
	} else {
		value = bit.Reset(index, value)
	}
	m.Write(address, value)
}

// Read is the CPU-facing read: it applies every CPU-visibility gate (OAM DMA
// in flight, PPU mode locks on VRAM/OAM, the unusable OAM shadow) before
// touching the backing store.
func (m *MMU) Read(address uint16) byte {
	if m.dma.blocksCPUAccess(address) {
		return 0xFF
	}
	if address >= 0xFEA0 && address <= 0xFEFF {
		return 0xFF
	}
	if m.ppuBlocksAccess(address) {
		return 0xFF
	}
	return m.ReadRaw(address)
}

// lcdOn mirrors LCDC bit 7; while the LCD is disabled every PPU access gate
// is lifted and VRAM/OAM are freely accessible.
func (m *MMU) lcdOn() bool {
	return m.memory[addr.LCDC]&0x80 != 0
}

// ppuBlocksAccess reports whether the PPU currently owns address: OAM during
// modes 2 and 3, VRAM during mode 3. The mode is read back from STAT's low
// bits, which the PPU keeps current as it advances.
func (m *MMU) ppuBlocksAccess(address uint16) bool {
	if !m.lcdOn() {
		return false
	}
	mode := m.memory[addr.STAT] & 0x03
	if addr.InOAMRange(address) {
		return mode >= 2
	}
	if address >= 0x8000 && address <= 0x9FFF {
		return mode == 3
	}
	return false
}

// unmappedIO reports I/O addresses with no register behind them on a DMG.
// Reads come back as open bus (0xFF) and writes land nowhere. The unwired
// audio slots (0xFF15, 0xFF1F, 0xFF27-0xFF2F) are normalized the same way
// inside the APU's register file.
func unmappedIO(address uint16) bool {
	switch {
	case address == 0xFF03:
		return true
	case address >= 0xFF08 && address <= 0xFF0E:
		return true
	case address >= 0xFF4C && address <= 0xFF7F && address != 0xFF50:
		return true
	}
	return false
}

// WriteRaw stores a byte without the CPU-side register protections. It is
// how the PPU publishes hardware-owned state (LY, the STAT mode bits) that
// plain Write refuses to let the CPU touch.
func (m *MMU) WriteRaw(address uint16, value byte) {
	m.memory[address] = value
}

// ReadRaw reads without any CPU-visibility gate. It is the device-side view
// of memory: the PPU fetching tiles mid-scanline, the OAM DMA engine reading
// its source bytes, and tooling all see the backing store directly.
func (m *MMU) ReadRaw(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			slog.Warn("Reading from ROM/external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address))
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionVRAM, regionWRAM:
		return m.memory[address]
	case regionEcho:
		return m.memory[address-0x2000]
	case regionOAM:
		if address <= 0xFE9F {
			return m.memory[address]
		}
		// Unusable shadow area 0xFEA0-0xFEFF
		return 0xFF
	case regionIO:
		if address == addr.SB || address == addr.SC {
			return m.serial.Read(address)
		}
		if address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC {
			return m.timer.Read(address)
		}
		if addr.InAudioRange(address) {
			return m.APU.ReadRegister(address)
		}
		// Just in case, we always read the upper 3 bits of IF as 1.
		// They're not used, but have caused me some headaches when checking for
		// when the halt bug triggers (IF != 0).
		if address == addr.IF {
			return m.memory[address] | 0xE0
		}
		if address == addr.STAT {
			// bit 7 is unwired and reads 1
			return m.memory[address] | 0x80
		}
		if address >= 0xFF80 {
			// HRAM
			return m.memory[address]
		}
		if unmappedIO(address) {
			return 0xFF
		}
		// Other IO registers
		return m.memory[address]
	default:
		panic(fmt.Sprintf("Attempted read at unmapped address: 0x%X", address))
	}
}

func (m *MMU) Write(address uint16, value byte) {
	// While OAM DMA owns the bus the CPU can only reach HRAM and the I/O
	// page (where the DMA register itself lives, so a restart still works).
	if m.dma.blocksCPUAccess(address) && address < 0xFF00 {
		return
	}

	switch m.regionMap[address>>8] {
	case regionROM:
		if m.mbc == nil {
			slog.Warn("Writing to ROM with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionVRAM:
		if m.ppuBlocksAccess(address) {
			return
		}
		m.memory[address] = value
	case regionExtRAM:
		if m.mbc == nil {
			slog.Warn("Writing to external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionWRAM:
		m.memory[address] = value
	case regionEcho:
		if address <= 0xFDFF {
			m.memory[address-0x2000] = value
		}
	case regionOAM:
		if address <= 0xFE9F {
			if m.ppuBlocksAccess(address) {
				return
			}
			m.memory[address] = value
		}
		// writes to the unusable shadow 0xFEA0-0xFEFF are dropped
	case regionIO:
		if address == addr.P1 {
			m.writeJoypad(value)
			return
		}
		if address == addr.SB || address == addr.SC {
			m.serial.Write(address, value)
			return
		}
		if address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC {
			m.timer.Write(address, value)
			return
		}
		if addr.InAudioRange(address) {
			m.APU.WriteRegister(address, value)
			return
		}
		if address == addr.IF {
			// This goddamn register has its upper 3 bits always set as 1...
			// Beware if you're trying to match halt bug behavior.
			m.memory[address] = value | 0xE0
			return
		}
		if address == addr.STAT {
			// the mode and LYC-condition bits are owned by the PPU
			m.memory[address] = value&0xF8 | m.memory[address]&0x07
			return
		}
		if address == addr.LY {
			// read-only; the PPU publishes it through WriteRaw
			return
		}
		if address == addr.DMA {
			m.memory[address] = value
			m.dma.start(value)
			return
		}
		if address >= 0xFF80 {
			// HRAM
			m.memory[address] = value
			return
		}
		if unmappedIO(address) {
			return
		}
		// Other IO registers
		m.memory[address] = value
	default:
		panic(fmt.Sprintf("Attempted write at unmapped address: 0x%X", address))
	}
}

// updateJoypadRegister sets the joypad register (P1) according to selection bits
// and hardware (buttons) status.
//
// In real hw, this register is actually just a selector (bits 5-6) that control
// to which set of buttons the low bits (0-3) are mapped to.
//
// The mapping:
//   - if bit 4 is set, bits 0-3 are mapped to the 4 d-pad directions
//   - if bit 5 is set, bits 0-3 are mapped to A, B, Start, Select
//   - if both are set, hw does an AND of both button sets
//   - if neither are set, return 0x0F (high impedence state)
//
// This function is called whenever:
//   - there is a write to the P1 register (only set bits 4-5)
//   - a button is pressed or released (tracked separately)
//
// Note that 1 -> button released, 0 -> button pressed.
// Bits 6-7 are unused, they always read as 1 on real hardware.
func (m *MMU) updateJoypadRegister() {
	p1 := m.memory[addr.P1]
	result := uint8(0b11000000) // Bits 6-7 are always read as 1
	result |= p1 & 0b00110000   // Keep selection bits 4-5

	// A button group is selected if the corresponding bit is 0
	selectDpad := !bit.IsSet(4, p1)
	selectButtons := !bit.IsSet(5, p1)

	switch {
	case selectButtons && !selectDpad:
		result |= m.joypadButtons & 0x0F
	case selectDpad && !selectButtons:
		result |= m.joypadDpad & 0x0F
	case selectButtons && selectDpad:
		result |= m.joypadButtons & m.joypadDpad & 0x0F
	default:
		// no selection
		result |= 0x0F
	}

	m.memory[addr.P1] = result
}

func (m *MMU) writeJoypad(value uint8) {
	// Only bits 4-5 are writable (selection bits)
	m.memory[addr.P1] = value & 0b00110000
	m.updateJoypadRegister()
}

func (m *MMU) HandleKeyPress(key JoypadKey) {
	oldButtons := m.joypadButtons
	oldDpad := m.joypadDpad

	switch key {
	case JoypadRight:
		m.joypadDpad = bit.Reset(0, m.joypadDpad)
	case JoypadLeft:
		m.joypadDpad = bit.Reset(1, m.joypadDpad)
	case JoypadUp:
		m.joypadDpad = bit.Reset(2, m.joypadDpad)
	case JoypadDown:
		m.joypadDpad = bit.Reset(3, m.joypadDpad)
	case JoypadA:
		m.joypadButtons = bit.Reset(0, m.joypadButtons)
	case JoypadB:
		m.joypadButtons = bit.Reset(1, m.joypadButtons)
	case JoypadSelect:
		m.joypadButtons = bit.Reset(2, m.joypadButtons)
	case JoypadStart:
		m.joypadButtons = bit.Reset(3, m.joypadButtons)
	}

	buttonTransitions := oldButtons & ^m.joypadButtons
	dpadTransitions := oldDpad & ^m.joypadDpad
	if buttonTransitions|dpadTransitions != 0 {
		m.RequestInterrupt(addr.JoypadInterrupt)
	}

	m.updateJoypadRegister()
}

func (m *MMU) HandleKeyRelease(key JoypadKey) {
	switch key {
	case JoypadRight:
		m.joypadDpad = bit.Set(0, m.joypadDpad)
	case JoypadLeft:
		m.joypadDpad = bit.Set(1, m.joypadDpad)
	case JoypadUp:
		m.joypadDpad = bit.Set(2, m.joypadDpad)
	case JoypadDown:
		m.joypadDpad = bit.Set(3, m.joypadDpad)
	case JoypadA:
		m.joypadButtons = bit.Set(0, m.joypadButtons)
	case JoypadB:
		m.joypadButtons = bit.Set(1, m.joypadButtons)
	case JoypadSelect:
		m.joypadButtons = bit.Set(2, m.joypadButtons)
	case JoypadStart:
		m.joypadButtons = bit.Set(3, m.joypadButtons)
	}

	m.updateJoypadRegister()
}
