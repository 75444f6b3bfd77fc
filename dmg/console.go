package dmg

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/arlojames/dmgcore/dmg/cpu"
	"github.com/arlojames/dmgcore/dmg/memory"
	"github.com/arlojames/dmgcore/dmg/video"
)

// cyclesPerFrame is the number of T-cycles in one 59.7Hz DMG frame:
// 154 lines * 456 dots.
const cyclesPerFrame = 70224

// postBootDivSeed is the system counter value observed right after the
// (unemulated) boot ROM hands off control, used to seed DIV so timer
// behavior matches real post-boot-ROM hardware from instruction one.
const postBootDivSeed = 0xABCC

// Console is the root struct for running a full Game Boy: it owns the bus
// and tracks frame/instruction counters for headless and interactive use.
type Console struct {
	bus *Bus

	instructionCount uint64
	frameCount       uint64
}

// New creates a console with no cartridge inserted.
func New() *Console {
	return newConsole(memory.NewWithCartridge(memory.NewCartridge()))
}

// NewWithFile loads a ROM image from disk and creates a console for it.
func NewWithFile(path string) (*Console, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded ROM data", "size", len(data))
	cart, err := memory.NewCartridgeWithData(data)
	if err != nil {
		return nil, fmt.Errorf("rejected ROM %q: %w", path, err)
	}
	return newConsole(memory.NewWithCartridge(cart)), nil
}

func newConsole(mmu *memory.MMU) *Console {
	mmu.SetTimerSeed(postBootDivSeed)
	return &Console{bus: NewBus(mmu)}
}

// RunUntilFrame executes instructions until a full frame's worth of
// T-cycles (70224) has elapsed.
func (c *Console) RunUntilFrame() {
	total := 0
	for total < cyclesPerFrame {
		total += c.bus.Step()
		c.instructionCount++
	}
	c.frameCount++
	if c.frameCount%60 == 0 {
		slog.Debug("frame completed", "frame", c.frameCount, "pc", fmt.Sprintf("0x%04X", c.bus.CPU.PC()))
	}
}

// GetCurrentFrame returns the GPU's current framebuffer.
func (c *Console) GetCurrentFrame() *video.FrameBuffer {
	return c.bus.GPU.GetFrameBuffer()
}

// GetSamples drains up to count stereo sample pairs (L, R interleaved
// float32 in [-1, 1]) accumulated by the APU since the last call.
func (c *Console) GetSamples(count int) []float32 {
	return c.bus.MMU.APU.GetSamples(count)
}

// SaveData returns the battery-backed cartridge RAM for the host to persist,
// or nil when the cartridge has no battery.
func (c *Console) SaveData() []byte {
	return c.bus.MMU.SaveData()
}

// LoadSaveData restores a previously persisted cartridge RAM image.
func (c *Console) LoadSaveData(data []byte) {
	c.bus.MMU.LoadSaveData(data)
}

// SetSerialTap forwards every byte the guest writes to the serial port to fn,
// which is how test harnesses collect blargg-style pass/fail output.
func (c *Console) SetSerialTap(fn func(byte)) {
	c.bus.MMU.SetSerialTap(fn)
}

func (c *Console) HandleKeyPress(key memory.JoypadKey) {
	c.bus.MMU.HandleKeyPress(key)
}

func (c *Console) HandleKeyRelease(key memory.JoypadKey) {
	c.bus.MMU.HandleKeyRelease(key)
}

func (c *Console) GetCPU() *cpu.CPU {
	return c.bus.CPU
}

func (c *Console) GetMMU() *memory.MMU {
	return c.bus.MMU
}

func (c *Console) GetInstructionCount() uint64 { return c.instructionCount }
func (c *Console) GetFrameCount() uint64       { return c.frameCount }
