package memory

import "fmt"

const titleLength = 16

const (
	logoAddress           = 0x104
	logoLength            = 48
	titleAddress          = 0x134
	cgbFlagAddress        = 0x143
	cartridgeTypeAddress  = 0x147
	romSizeAddress        = 0x148
	ramSizeAddress        = 0x149
	headerChecksumAddress = 0x14D
)

var nintendoLogo = [logoLength]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E, 0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// mbcType identifies which memory bank controller a cartridge requires.
type mbcType uint8

const (
	NoMBCType mbcType = iota
	MBC1Type
	MBC1MultiType
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

// Cartridge holds ROM data and the header metadata needed to pick and seed
// the right MBC: mapper type, ROM/RAM sizes, and battery/RTC/rumble presence.
type Cartridge struct {
	data []byte

	title     string
	validLogo bool

	mbcType      mbcType
	hasBattery   bool
	hasRTC       bool
	hasRumble    bool
	romBankCount uint16
	ramBankCount uint8
}

// NewCartridge creates an empty cartridge, useful only for running the CPU
// with no ROM attached (e.g. in unit tests for the cpu/bus packages).
func NewCartridge() *Cartridge {
	return &Cartridge{
		data: make([]byte, 0x8000),
	}
}

// ramBankTable maps the 0x149 RAM size code to a bank count (each bank is 8KB).
var ramBankTable = map[byte]uint8{
	0x00: 0,
	0x01: 1, // unofficial, some docs list 2KB here; treated as 1 partial bank
	0x02: 1,
	0x03: 4,
	0x04: 16,
	0x05: 8,
}

// NewCartridgeWithData parses a ROM image's header and returns a Cartridge
// describing the mapper and memory layout it declares. It rejects images
// that are too short to carry a header, fail the Nintendo logo check, fail
// the header checksum, or declare an MBC code this core doesn't support —
// a bad cartridge never becomes a runnable core.
func NewCartridgeWithData(data []byte) (*Cartridge, error) {
	if len(data) < 0x150 {
		return nil, fmt.Errorf("cartridge image too short for a header: got %d bytes, need at least 0x150", len(data))
	}

	cart := &Cartridge{
		data: make([]byte, len(data)),
	}
	copy(cart.data, data)

	cart.validLogo = [logoLength]byte(data[logoAddress:logoAddress+logoLength]) == nintendoLogo
	if !cart.validLogo {
		return nil, fmt.Errorf("cartridge Nintendo logo at 0x%04X does not match, ROM is corrupt or patched", logoAddress)
	}

	cart.title = cleanGameboyTitle(data[titleAddress : titleAddress+titleLength])

	if !cart.verifyHeaderChecksum(data) {
		return nil, fmt.Errorf("cartridge header checksum mismatch at 0x%04X", headerChecksumAddress)
	}

	cart.parseMapper(data[cartridgeTypeAddress])
	if cart.mbcType == MBCUnknownType {
		return nil, fmt.Errorf("unsupported cartridge mapper code 0x%02X", data[cartridgeTypeAddress])
	}
	cart.romBankCount = romBankCount(data[romSizeAddress])
	cart.ramBankCount = ramBankTable[data[ramSizeAddress]]

	if declared := int(cart.romBankCount) * 0x4000; len(data) < declared {
		return nil, fmt.Errorf("cartridge header declares %d ROM banks (%d bytes) but the image holds only %d bytes",
			cart.romBankCount, declared, len(data))
	}

	return cart, nil
}

// Title returns the cleaned-up game title from the cartridge header.
func (c *Cartridge) Title() string {
	return c.title
}

func romBankCount(code byte) uint16 {
	return 2 << code
}

func (c *Cartridge) verifyHeaderChecksum(data []byte) bool {
	var checksum uint8
	for _, b := range data[titleAddress:headerChecksumAddress] {
		checksum = checksum - b - 1
	}
	return checksum == data[headerChecksumAddress]
}

func (c *Cartridge) parseMapper(code byte) {
	switch code {
	case 0x00:
		c.mbcType = NoMBCType
	case 0x01:
		c.mbcType = MBC1Type
	case 0x02:
		c.mbcType = MBC1Type
		c.hasBattery = false
	case 0x03:
		c.mbcType = MBC1Type
		c.hasBattery = true
	case 0x05:
		c.mbcType = MBC2Type
	case 0x06:
		c.mbcType = MBC2Type
		c.hasBattery = true
	case 0x0F:
		c.mbcType = MBC3Type
		c.hasBattery = true
		c.hasRTC = true
	case 0x10:
		c.mbcType = MBC3Type
		c.hasBattery = true
		c.hasRTC = true
	case 0x11:
		c.mbcType = MBC3Type
	case 0x12:
		c.mbcType = MBC3Type
	case 0x13:
		c.mbcType = MBC3Type
		c.hasBattery = true
	case 0x19, 0x1A:
		c.mbcType = MBC5Type
	case 0x1B:
		c.mbcType = MBC5Type
		c.hasBattery = true
	case 0x1C, 0x1D:
		c.mbcType = MBC5Type
		c.hasRumble = true
	case 0x1E:
		c.mbcType = MBC5Type
		c.hasBattery = true
		c.hasRumble = true
	default:
		c.mbcType = MBCUnknownType
	}
}

// ReadByte reads a byte at the specified address. Does not check bounds, so the caller must make sure the
// address is valid for the cartridge.
func (c Cartridge) ReadByte(addr uint16) uint8 {
	return c.data[addr]
}
